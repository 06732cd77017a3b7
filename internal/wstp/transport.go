package wstp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hanpama/graphpager/internal/eventbus"
	"github.com/hanpama/graphpager/internal/events"
	"github.com/hanpama/graphpager/internal/executor"
	"github.com/hanpama/graphpager/internal/httptp"
	"github.com/hanpama/graphpager/internal/jsontree"
	"github.com/hanpama/graphpager/internal/language"
)

// Transport runs query operations over one graphql-transport-ws
// connection. Concurrent Execute calls are multiplexed by operation id.
// The connection is dialed on first use and redialed after it drops.
type Transport struct {
	opts   *Options
	closed atomic.Bool

	mu   sync.Mutex
	conn *conn
}

func New(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	return &Transport{opts: o}
}

var _ executor.Transport = (*Transport)(nil)

func (t *Transport) Execute(ctx context.Context, document string, variables map[string]any) (data *jsontree.Node, err error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	c, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	start := time.Now()
	eventbus.Publish(ctx, events.WSClientStart{Endpoint: t.opts.Endpoint, OperationID: id})
	defer func() {
		eventbus.Publish(ctx, events.WSClientFinish{
			Endpoint:    t.opts.Endpoint,
			OperationID: id,
			Err:         err,
			Duration:    time.Since(start),
		})
	}()
	return c.execute(ctx, id, document, variables)
}

// Close closes the connection. Execute fails afterwards.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	c := t.conn
	t.conn = nil
	t.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.close()
}

func (t *Transport) connect(ctx context.Context) (*conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		select {
		case <-t.conn.done:
			t.conn = nil
		default:
			return t.conn, nil
		}
	}

	header := t.opts.Header.Clone()
	var init json.RawMessage
	if t.opts.Tokens != nil {
		token, err := t.opts.Tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+token)
		init, _ = json.Marshal(map[string]string{"Authorization": "Bearer " + token})
	}
	d := *t.opts.Dialer
	d.Subprotocols = []string{Subprotocol}
	ws, resp, err := d.DialContext(ctx, t.opts.Endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wstp: dial %s: %w", t.opts.Endpoint, &httptp.StatusError{Status: resp.StatusCode})
		}
		return nil, fmt.Errorf("wstp: dial %s: %w", t.opts.Endpoint, err)
	}
	c, err := handshake(ws, init, t.opts.InitTimeout)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	go c.readLoop()
	t.conn = c
	return c, nil
}

// handshake sends connection_init and waits for connection_ack.
func handshake(ws *websocket.Conn, payload json.RawMessage, timeout time.Duration) (*conn, error) {
	if ws.Subprotocol() != Subprotocol {
		return nil, fmt.Errorf("%w: server chose subprotocol %q", ErrProtocol, ws.Subprotocol())
	}
	if err := ws.WriteJSON(Message{Type: TypeConnectionInit, Payload: payload}); err != nil {
		return nil, err
	}
	if timeout > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(timeout))
	}
	var ack Message
	if err := ws.ReadJSON(&ack); err != nil {
		return nil, fmt.Errorf("wstp: connection_init: %w", err)
	}
	if ack.Type != TypeConnectionAck {
		return nil, fmt.Errorf("%w: want %s, got %q", ErrProtocol, TypeConnectionAck, ack.Type)
	}
	_ = ws.SetReadDeadline(time.Time{})
	return &conn{
		ws:      ws,
		pending: make(map[string]chan Message),
		done:    make(chan struct{}),
	}, nil
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Message
	done    chan struct{}
	err     error
}

func (c *conn) write(m Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(m)
}

func (c *conn) execute(ctx context.Context, id, document string, variables map[string]any) (*jsontree.Node, error) {
	payload, err := json.Marshal(SubscribePayload{Query: document, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("wstp: encode request: %w", err)
	}
	// next, complete and error are the most a query operation receives.
	ch := make(chan Message, 3)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(Message{ID: id, Type: TypeSubscribe, Payload: payload}); err != nil {
		return nil, err
	}

	var result json.RawMessage
	for {
		select {
		case <-ctx.Done():
			_ = c.write(Message{ID: id, Type: TypeComplete})
			return nil, ctx.Err()
		case <-c.done:
			return nil, c.err
		case m := <-ch:
			switch m.Type {
			case TypeNext:
				result = m.Payload
			case TypeError:
				var list language.ErrorList
				if err := json.Unmarshal(m.Payload, &list); err != nil {
					return nil, &httptp.MalformedResponseError{Err: err}
				}
				return nil, &httptp.GraphQLErrors{Errors: list}
			case TypeComplete:
				if result == nil {
					return nil, fmt.Errorf("%w: operation %s completed without a result", ErrProtocol, id)
				}
				n, err := jsontree.Parse(result)
				if err != nil {
					return nil, &httptp.MalformedResponseError{Err: err}
				}
				return httptp.ReadResult(n)
			}
		}
	}
}

func (c *conn) readLoop() {
	for {
		var m Message
		if err := c.ws.ReadJSON(&m); err != nil {
			c.fail(fmt.Errorf("wstp: read: %w", err))
			return
		}
		switch m.Type {
		case TypePing:
			if err := c.write(Message{Type: TypePong}); err != nil {
				c.fail(err)
				return
			}
			continue
		case TypePong:
			continue
		case TypeNext, TypeError, TypeComplete:
		default:
			c.fail(fmt.Errorf("%w: unexpected message %q", ErrProtocol, m.Type))
			return
		}
		c.mu.Lock()
		ch := c.pending[m.ID]
		c.mu.Unlock()
		if ch == nil {
			continue
		}
		select {
		case ch <- m:
		default:
		}
	}
}

// fail records the first connection error and wakes every operation.
func (c *conn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.done)
	_ = c.ws.Close()
}

func (c *conn) close() error {
	c.writeMu.Lock()
	err := c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.fail(ErrClosed)
	return err
}
