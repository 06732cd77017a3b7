package executor

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/hanpama/graphpager/internal/jsontree"
)

// CallRecord captures a single Execute invocation for assertions.
type CallRecord struct {
	Document string
	// Variables is a snapshot of the variables sent.
	Variables map[string]any
}

// MockTransport implements Transport. It either returns pre-seeded
// responses in order or routes every call through a function, and records
// Execute invocations for inspection.
type MockTransport struct {
	mu        sync.Mutex
	responses []*jsontree.Node
	errs      []error
	route     func(document string, variables map[string]any) (*jsontree.Node, error)
	idx       int
	calls     []CallRecord
}

var _ Transport = (*MockTransport)(nil)

// NewMockTransport creates a MockTransport that will return the provided
// responses in order for successive Execute() invocations.
func NewMockTransport(responses ...*jsontree.Node) *MockTransport {
	cp := make([]*jsontree.Node, len(responses))
	copy(cp, responses)
	return &MockTransport{responses: cp}
}

// NewMockTransportWithErrors allows seeding per-call errors alongside responses.
// For call i, if errs[i] is non-nil, Execute returns that error and ignores responses[i].
func NewMockTransportWithErrors(responses []*jsontree.Node, errs []error) *MockTransport {
	m := NewMockTransport(responses...)
	m.errs = append([]error(nil), errs...)
	return m
}

// NewMockTransportFunc answers every call with fn. Use it when concurrent
// runners make the call order nondeterministic.
func NewMockTransportFunc(fn func(document string, variables map[string]any) (*jsontree.Node, error)) *MockTransport {
	return &MockTransport{route: fn}
}

// Execute records the invocation and returns the next queued response.
// If responses are exhausted, it returns an error.
func (m *MockTransport) Execute(ctx context.Context, document string, variables map[string]any) (*jsontree.Node, error) {
	_ = ctx
	m.mu.Lock()
	m.calls = append(m.calls, CallRecord{Document: document, Variables: maps.Clone(variables)})
	route := m.route
	m.mu.Unlock()
	if route != nil {
		return route(document, variables)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idx >= len(m.responses) && m.idx >= len(m.errs) {
		return nil, fmt.Errorf("mock transport: no more responses")
	}
	// Error has precedence if provided for this index
	if m.idx < len(m.errs) {
		if err := m.errs[m.idx]; err != nil {
			m.idx++
			return nil, err
		}
	}
	var resp *jsontree.Node
	if m.idx < len(m.responses) {
		resp = m.responses[m.idx]
	}
	m.idx++
	return resp, nil
}

// Calls returns a snapshot of recorded Execute invocations.
func (m *MockTransport) Calls() []CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallRecord, len(m.calls))
	copy(out, m.calls)
	return out
}
