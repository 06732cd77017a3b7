package reqid

import (
	"context"

	"github.com/google/uuid"
)

type (
	key      struct{}
	fetchKey struct{}
)

// NewContext returns a copy of parent with a new random request ID stored.
// It also returns the generated ID.
func NewContext(parent context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(parent, key{}, id), id
}

// Ensure returns parent unchanged when it already carries a request ID.
func Ensure(parent context.Context) (context.Context, string) {
	if id, ok := FromContext(parent); ok {
		return parent, id
	}
	return NewContext(parent)
}

// FromContext extracts the request ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}

// WithFetch stores a new page-fetch ID. Fetches of one request run
// concurrently and are told apart by it.
func WithFetch(parent context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(parent, fetchKey{}, id), id
}

func FetchFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(fetchKey{}).(string)
	return id, ok
}
