package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when an HTTP request is received.
// Context carries the request context.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted after the handler completes.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}

// HTTPClientStart is emitted before a transport posts a document.
type HTTPClientStart struct {
	Endpoint string
}

// HTTPClientFinish is emitted after the transport call completes. Status is
// zero when no response was received.
type HTTPClientFinish struct {
	Endpoint string
	Status   int
	Err      error
	Duration time.Duration
}

// WSClientStart is emitted before a document is sent over a websocket.
type WSClientStart struct {
	Endpoint    string
	OperationID string
}

// WSClientFinish is emitted when the websocket operation completes.
type WSClientFinish struct {
	Endpoint    string
	OperationID string
	Err         error
	Duration    time.Duration
}
