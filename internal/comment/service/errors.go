package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation error")
	ErrForbidden    = errors.New("forbidden")
	ErrStore        = errors.New("store error")

	ErrPostNotFound    = fmt.Errorf("post %w", ErrNotFound)
	ErrCommentNotFound = fmt.Errorf("comment %w", ErrNotFound)
)

// PartialError is returned when the comment write succeeded but the post's
// comment count could not be adjusted. The count is off by Delta until a
// retry or a recount repairs it.
type PartialError struct {
	Op        string
	PostID    string
	CommentID string
	Delta     int64
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s comment %s: post %s comment count not adjusted by %+d: %v", e.Op, e.CommentID, e.PostID, e.Delta, e.Err)
}

func (e *PartialError) Unwrap() []error { return []error{ErrStore, e.Err} }

func storeErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, what, err)
}
