// Package store is the document store adapter used by the feed services.
// It offers single-document primitives only; no operation spans two
// documents or two collections.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate document id")
)

// Collection names.
const (
	Posts    = "posts"
	Comments = "comments"
	Users    = "users"
)

// Fields is a set of string field equalities, used as a filter or a guard.
type Fields map[string]string

// Counter is the outcome of an atomic counter update.
type Counter struct {
	Before int64
	After  int64
	Delta  int64
}

// Clamped reports whether a decrement was stopped at zero instead of applying
// the full delta. An increment that lifts a negative counter to zero is not
// a clamp.
func (c Counter) Clamped() bool { return c.Delta < 0 && c.Before+c.Delta != c.After }

// Store is implemented by MemoryStore and MongoStore.
type Store interface {
	// FindOne returns the document with the given id or ErrNotFound.
	FindOne(ctx context.Context, collection, id string) (bson.Raw, error)
	// FindMany returns every document matching all of where.
	FindMany(ctx context.Context, collection string, where Fields) ([]bson.Raw, error)
	// InsertOne stores doc, which must marshal with a string _id.
	InsertOne(ctx context.Context, collection string, doc interface{}) error
	// UpdateCounter adds delta to an integer field of one document atomically,
	// never letting it drop below zero. Returns ErrNotFound if id is absent.
	UpdateCounter(ctx context.Context, collection, id, field string, delta int64) (Counter, error)
	// FindOneAndDelete removes the document with the given id whose fields also
	// match guard, returning it; ErrNotFound when nothing matched.
	FindOneAndDelete(ctx context.Context, collection, id string, guard Fields) (bson.Raw, error)
}

func clamp(before, delta int64) int64 {
	if after := before + delta; after > 0 {
		return after
	}
	return 0
}
