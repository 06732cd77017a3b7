package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hanpama/graphpager/internal/language"
)

const subprotocol = "graphql-transport-ws"

// Close codes of graphql-transport-ws.
const (
	closeBadRequest   = 4400
	closeUnauthorized = 4401
	closeForbidden    = 4403
	closeInitTimeout  = 4408
	closeDuplicateID  = 4409
	closeTooManyInits = 4429
)

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin:  func(r *http.Request) bool { return true },
	Subprotocols: []string{subprotocol},
}

// wsConnection serves one graphql-transport-ws connection. Operations run
// concurrently; writes are serialized.
type wsConnection struct {
	ws *websocket.Conn
	h  *Handler

	writeMu sync.Mutex

	mu         sync.Mutex
	operations map[string]context.CancelFunc
	wg         sync.WaitGroup
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &wsConnection{ws: ws, h: h, operations: map[string]context.CancelFunc{}}
	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		c.wg.Wait()
		_ = ws.Close()
	}()

	if ws.Subprotocol() != subprotocol {
		c.closeWith(closeBadRequest, "unsupported subprotocol")
		return
	}
	if !c.init(r.Header.Get("Authorization")) {
		return
	}

	for {
		var m wsMessage
		if err := ws.ReadJSON(&m); err != nil {
			return
		}
		switch m.Type {
		case "subscribe":
			if !c.start(ctx, m) {
				return
			}
		case "complete":
			c.stop(m.ID)
		case "ping":
			_ = c.write(wsMessage{Type: "pong"})
		case "pong":
		case "connection_init":
			c.closeWith(closeTooManyInits, "too many initialisation requests")
			return
		default:
			c.closeWith(closeBadRequest, "unexpected message "+m.Type)
			return
		}
	}
}

// init waits for connection_init and acknowledges it. Credentials may
// arrive on the upgrade request or in the init payload.
func (c *wsConnection) init(header string) bool {
	if c.h.opt.Timeout > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.h.opt.Timeout))
	}
	var m wsMessage
	if err := c.ws.ReadJSON(&m); err != nil {
		c.closeWith(closeInitTimeout, "connection initialisation timeout")
		return false
	}
	_ = c.ws.SetReadDeadline(time.Time{})
	if m.Type != "connection_init" {
		c.closeWith(closeUnauthorized, "unauthorized")
		return false
	}
	var payload struct {
		Authorization string `json:"Authorization"`
	}
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			c.closeWith(closeBadRequest, "invalid connection_init payload")
			return false
		}
	}
	if payload.Authorization != "" {
		header = payload.Authorization
	}
	if err := c.h.authenticate(header); err != nil {
		c.closeWith(closeForbidden, "forbidden")
		return false
	}
	return c.write(wsMessage{Type: "connection_ack"}) == nil
}

func (c *wsConnection) start(ctx context.Context, m wsMessage) bool {
	var req GraphQLRequest
	if err := json.Unmarshal(m.Payload, &req); err != nil || m.ID == "" {
		c.closeWith(closeBadRequest, "invalid subscribe message")
		return false
	}
	c.mu.Lock()
	if _, ok := c.operations[m.ID]; ok {
		c.mu.Unlock()
		c.closeWith(closeDuplicateID, "subscriber for "+m.ID+" already exists")
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	c.operations[m.ID] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.stop(m.ID)
		res := c.h.executeOne(ctx, req)
		if ctx.Err() != nil {
			return
		}
		if res.Data == nil && len(res.Errors) > 0 {
			_ = c.write(wsMessage{ID: m.ID, Type: "error", Payload: errorsPayload(res.Errors)})
			return
		}
		payload, _ := json.Marshal(res)
		_ = c.write(wsMessage{ID: m.ID, Type: "next", Payload: payload})
		_ = c.write(wsMessage{ID: m.ID, Type: "complete"})
	}()
	return true
}

func (c *wsConnection) stop(id string) {
	c.mu.Lock()
	cancel := c.operations[id]
	delete(c.operations, id)
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *wsConnection) write(m wsMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(m)
}

func (c *wsConnection) closeWith(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}

// errorsPayload is the payload of an error message.
func errorsPayload(errs language.ErrorList) json.RawMessage {
	b, _ := json.Marshal(errs)
	return b
}
