package events

import "time"

// PageFetchStart is emitted before a page is requested. Subquery is the
// composition path of the connection, empty for the root document's first
// page. ID is the owning entity, empty for root pages.
type PageFetchStart struct {
	Subquery string
	ID       string
	After    *string
}

// PageFetchFinish is emitted after a page has been fetched and merged.
type PageFetchFinish struct {
	Subquery    string
	ID          string
	After       *string
	HasNextPage bool
	Items       int
	Err         error
	Duration    time.Duration
}
