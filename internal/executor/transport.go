package executor

import (
	"context"

	"github.com/hanpama/graphpager/internal/jsontree"
)

// Transport sends a document with variables and returns the response's
// data member. Implementations MUST be safe for concurrent use: the
// executor fetches pages of independent connections in parallel.
//
// Provided implementations:
// - internal/httptp.Transport: HTTP POST with bearer or GitHub App auth
// - internal/wstp.Transport: graphql-transport-ws over a websocket
// - MockTransport: canned responses for tests
type Transport interface {
	Execute(ctx context.Context, document string, variables map[string]any) (*jsontree.Node, error)
}
