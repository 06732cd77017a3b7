package result

import (
	"encoding/json"
	"sync"

	"github.com/hanpama/graphpager/internal/schema"
)

// State is the completeness of a connection.
type State int

const (
	// Complete connections hold every item of the remote connection.
	Complete State = iota
	// Pending connections have further pages that are still to be fetched.
	Pending
	// Partial connections have further pages that were deliberately not
	// fetched: the connection is first-page-only or hit the page cap.
	Partial
	// Failed connections stopped on an error; Err reports it.
	Failed
)

func (s State) String() string {
	switch s {
	case Complete:
		return "complete"
	case Pending:
		return "pending"
	case Partial:
		return "partial"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Connection is the materialized item list of a paginated field.
type Connection struct {
	mu       sync.Mutex
	items    []any
	pageInfo schema.PageInfo
	pages    int
	state    State
	err      error
}

// NewConnection holds the first page of a connection.
func NewConnection(items []any, pi schema.PageInfo) *Connection {
	c := &Connection{}
	c.Append(items, pi)
	return c
}

// Append adds a continuation page after every earlier item.
func (c *Connection) Append(items []any, pi schema.PageInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, items...)
	c.pageInfo = pi
	c.pages++
	if pi.HasNextPage {
		c.state = Pending
	} else {
		c.state = Complete
	}
}

// Finish records why a connection with remaining pages stopped.
func (c *Connection) Finish(state State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Complete {
		return
	}
	c.state = state
	c.err = err
}

func (c *Connection) Items() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.items))
	copy(out, c.items)
	return out
}

// Records returns the items that are records, skipping null items.
func (c *Connection) Records() []*Record {
	items := c.Items()
	out := make([]*Record, 0, len(items))
	for _, it := range items {
		if r, ok := it.(*Record); ok && r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (c *Connection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// PageInfo is the page info of the last merged page.
func (c *Connection) PageInfo() schema.PageInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageInfo
}

// Pages counts merged pages.
func (c *Connection) Pages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Complete reports whether every item has been fetched.
func (c *Connection) Complete() bool { return c.State() == Complete }

func (c *Connection) MarshalJSON() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := struct {
		Nodes    []any           `json:"nodes"`
		PageInfo schema.PageInfo `json:"pageInfo"`
		State    State           `json:"state"`
	}{c.items, c.pageInfo, c.state}
	if out.Nodes == nil {
		out.Nodes = []any{}
	}
	return json.Marshal(out)
}
