package httptp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hanpama/graphpager/internal/eventbus"
	"github.com/hanpama/graphpager/internal/events"
	"github.com/hanpama/graphpager/internal/executor"
	"github.com/hanpama/graphpager/internal/jsontree"
	"github.com/hanpama/graphpager/internal/language"
)

// Transport posts GraphQL documents to a single endpoint with keep-alive
// connection reuse and deadline propagation.
type Transport struct {
	opts   *Options
	client *http.Client
	closed atomic.Bool
}

func New(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	client := o.Client
	if client == nil {
		n := o.MaxConnsPerHost
		if n <= 0 {
			n = 4
		}
		client = &http.Client{Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxConnsPerHost:     n,
			MaxIdleConnsPerHost: n,
			IdleConnTimeout:     90 * time.Second,
		}}
	}
	return &Transport{opts: o, client: client}
}

var _ executor.Transport = (*Transport)(nil)

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (t *Transport) Execute(ctx context.Context, document string, variables map[string]any) (data *jsontree.Node, err error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if _, ok := ctx.Deadline(); !ok && t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(request{Query: document, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("httptp: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range t.opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.opts.Tokens != nil {
		token, err := t.opts.Tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	status := 0
	eventbus.Publish(ctx, events.HTTPClientStart{Endpoint: t.opts.Endpoint})
	defer func() {
		eventbus.Publish(ctx, events.HTTPClientFinish{
			Endpoint: t.opts.Endpoint,
			Status:   status,
			Err:      err,
			Duration: time.Since(start),
		})
	}()

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, t.opts.MaxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > t.opts.MaxResponseBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrResponseTooLarge, t.opts.MaxResponseBytes)
	}
	n, err := jsontree.Parse(raw)
	if err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	return ReadResult(n)
}

// Close releases idle connections. Execute fails afterwards.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.client.CloseIdleConnections()
	return nil
}

// ReadResult splits a GraphQL response into its data member and its errors.
func ReadResult(n *jsontree.Node) (*jsontree.Node, error) {
	if n.Kind() != jsontree.Object {
		return nil, &MalformedResponseError{Err: fmt.Errorf("response is %s, not an object", n.Kind())}
	}
	if errs := n.Get("errors"); !errs.IsNull() {
		raw, err := errs.MarshalJSON()
		if err != nil {
			return nil, &MalformedResponseError{Err: err}
		}
		var list language.ErrorList
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, &MalformedResponseError{Err: fmt.Errorf("errors: %w", err)}
		}
		if len(list) > 0 {
			return nil, &GraphQLErrors{Errors: list}
		}
	}
	data := n.Get("data")
	if data.Kind() != jsontree.Object {
		return nil, &MalformedResponseError{Err: errors.New("response has no data")}
	}
	return data, nil
}
