package events

import "time"

// QueryStart is emitted before the first page of a compiled query is fetched.
type QueryStart struct {
	Document  string
	Variables map[string]any
}

// QueryFinish is emitted once every connection of the query has finished.
type QueryFinish struct {
	Document string
	// Pages counts transport calls, including subquery pages.
	Pages    int
	Err      error
	Duration time.Duration
}
