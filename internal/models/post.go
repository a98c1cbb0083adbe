package models

import "time"

// Post is a top-level feed entry. CommentCount is denormalized from the
// comments collection and only changes through single-document deltas.
type Post struct {
	ID           string    `bson:"_id" json:"id"`
	AuthorID     string    `bson:"authorId" json:"authorId"`
	Text         string    `bson:"text" json:"text"`
	Location     string    `bson:"location,omitempty" json:"location,omitempty"`
	MediaURL     string    `bson:"mediaUrl,omitempty" json:"mediaUrl,omitempty"`
	CommentCount int64     `bson:"commentCount" json:"commentCount"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PostSummary is the projection joined onto comments.
type PostSummary struct {
	ID           string `json:"id"`
	AuthorID     string `json:"authorId"`
	Text         string `json:"text"`
	MediaURL     string `json:"mediaUrl,omitempty"`
	CommentCount int64  `json:"commentCount"`
}

func (p *Post) Summary() *PostSummary {
	return &PostSummary{ID: p.ID, AuthorID: p.AuthorID, Text: p.Text, MediaURL: p.MediaURL, CommentCount: p.CommentCount}
}

// Field names used by counter updates.
const PostCommentCountField = "commentCount"
