// Package docstore declares the document database boundary: documents
// addressed by slash-separated paths, grouped in collections, with live
// query subscriptions that deliver full snapshots.
package docstore

import (
	"context"
	"errors"
	"reflect"
	"time"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrInvalidPath     = errors.New("invalid document path")
	ErrUnsupportedOp   = errors.New("unsupported query")
	ErrSubscriptionEnd = errors.New("subscription closed")
)

type Store interface {
	// Create adds a document with a store-assigned id to collection.
	Create(ctx context.Context, collection string, fields Fields) (id string, err error)
	// Set creates or replaces the document at path.
	Set(ctx context.Context, path string, fields Fields) error
	// Update merges fields into the existing document at path.
	Update(ctx context.Context, path string, fields Fields) error
	Delete(ctx context.Context, path string) error
	// Subscribe opens a live query. The first snapshot reflects the current
	// state; every later change in scope produces a new full snapshot.
	Subscribe(ctx context.Context, q Query) (Subscription, error)
}

// Subscription is a handle to a live query. Snapshots is closed when the
// subscription is released or fails; Err reports the failure, if any.
// No snapshot is delivered after Close returns.
type Subscription interface {
	Snapshots() <-chan Snapshot
	Err() error
	Close() error
}

type Document struct {
	Id     string
	Path   string
	Fields Fields
}

// Snapshot is the full result set of a query at a point in time. Consumers
// must treat it as immutable.
type Snapshot struct {
	Docs   []Document
	ReadAt time.Time
}

type Filter struct {
	Field string
	Value any
}

type Order struct {
	Field      string
	Descending bool
}

type Query struct {
	Collection string
	Where      []Filter
	OrderBy    Order
}

// Matches reports whether fields satisfy every equality filter of q.
func (q Query) Matches(fields Fields) bool {
	for _, f := range q.Where {
		v, ok := fields[f.Field]
		if !ok || !equalValues(v, f.Value) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	}
	return reflect.DeepEqual(a, b)
}
