package httptp

import (
	"errors"
	"fmt"

	"github.com/hanpama/graphpager/internal/language"
)

var (
	// ErrClosed is returned by Execute after Close.
	ErrClosed = errors.New("httptp: closed")
	// ErrResponseTooLarge is returned when a body exceeds MaxResponseBytes.
	ErrResponseTooLarge = errors.New("httptp: response too large")
)

// StatusError reports a non-2xx response. Body holds the start of the
// response body.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("httptp: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("httptp: unexpected status %d: %s", e.Status, e.Body)
}

// GraphQLErrors carries the errors array of a response. Responses with
// errors are failures even when they also carry partial data.
type GraphQLErrors struct {
	Errors language.ErrorList
}

func (e *GraphQLErrors) Error() string { return "graphql: " + e.Errors.Error() }

func (e *GraphQLErrors) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err
	}
	return out
}

// MalformedResponseError reports a body that is not a GraphQL response.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("httptp: malformed response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
