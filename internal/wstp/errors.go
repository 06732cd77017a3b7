package wstp

import "errors"

var (
	ErrClosed = errors.New("wstp: closed")
	// ErrProtocol reports a message that breaks graphql-transport-ws.
	ErrProtocol = errors.New("wstp: protocol violation")
)
