package wstp

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hanpama/graphpager/internal/httptp"
)

// Options configures the websocket transport.
//
// Defaults:
// - Dialer:      websocket.DefaultDialer
// - InitTimeout: 10s for connection_init to be acknowledged
//
// Tokens are sent both as an Authorization header on the upgrade request
// and in the connection_init payload.
type Options struct {
	Endpoint    string
	Dialer      *websocket.Dialer
	Header      http.Header
	Tokens      httptp.TokenSource
	InitTimeout time.Duration
}

// Option mutates Options
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Dialer:      websocket.DefaultDialer,
		Header:      http.Header{},
		InitTimeout: 10 * time.Second,
	}
}

func WithEndpoint(url string) Option               { return func(o *Options) { o.Endpoint = url } }
func WithDialer(d *websocket.Dialer) Option        { return func(o *Options) { o.Dialer = d } }
func WithTokenSource(ts httptp.TokenSource) Option { return func(o *Options) { o.Tokens = ts } }
func WithInitTimeout(d time.Duration) Option       { return func(o *Options) { o.InitTimeout = d } }
func WithHeader(key, value string) Option {
	return func(o *Options) { o.Header.Add(key, value) }
}
