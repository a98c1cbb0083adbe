package comment

import "github.com/socialfeed/feed-services/internal/models"

// View is a comment as returned to readers, joined with summaries of its
// author and its post. Either summary is nil when the reference no longer
// resolves.
type View struct {
	models.Comment
	User *models.UserSummary `json:"user"`
	Post *models.PostSummary `json:"post"`
}
