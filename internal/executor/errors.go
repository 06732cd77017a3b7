package executor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownParent reports a parent id with no materialized entity.
	ErrUnknownParent   = errors.New("parent id has no materialized entity")
	ErrMissingCursor   = errors.New("page has a next page but no end cursor")
	ErrMissingVariable = errors.New("missing required variable")
	ErrVariableType    = errors.New("variable value does not match its type")
)

// TransportError wraps a failed transport call with the request that failed.
type TransportError struct {
	Document  string
	Variables map[string]any
	Err       error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// PageError attributes a failure to one connection of one entity.
type PageError struct {
	// Subquery is the composition path of the connection.
	Subquery string
	// ID is the owning entity, empty for the root connection.
	ID     string
	Cursor string
	Err    error
}

func (e *PageError) Error() string {
	var b strings.Builder
	b.WriteString("page ")
	b.WriteString(e.Subquery)
	if e.ID != "" {
		fmt.Fprintf(&b, " of %q", e.ID)
	}
	if e.Cursor != "" {
		fmt.Fprintf(&b, " after %q", e.Cursor)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *PageError) Unwrap() error { return e.Err }

// PartialPaginationError lists the connections that were not walked to
// completion. The result graph returned with it is usable; the listed
// connections report result.Failed.
type PartialPaginationError struct {
	Failures []*PageError
}

func (e *PartialPaginationError) Error() string {
	if len(e.Failures) == 1 {
		return "incomplete pagination: " + e.Failures[0].Error()
	}
	return fmt.Sprintf("incomplete pagination of %d connections; first: %v", len(e.Failures), e.Failures[0])
}

func (e *PartialPaginationError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}
