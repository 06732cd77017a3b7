package httptp

import (
	"net/http"
	"time"
)

// DefaultEndpoint is the GitHub GraphQL API.
const DefaultEndpoint = "https://api.github.com/graphql"

// Options configures the HTTP transport behavior.
//
// Defaults:
// - Endpoint:         DefaultEndpoint
// - Timeout:          30s (used only if the incoming context has no deadline)
// - MaxConnsPerHost:  4 (ignored when Client is set)
// - MaxResponseBytes: 64 MiB
//
// Tokens may be nil for unauthenticated endpoints.
type Options struct {
	Endpoint string
	Client   *http.Client
	Timeout  time.Duration
	Header   http.Header
	Tokens   TokenSource

	MaxConnsPerHost  int
	MaxResponseBytes int64
}

// Option mutates Options
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Endpoint:         DefaultEndpoint,
		Timeout:          30 * time.Second,
		Header:           http.Header{},
		MaxConnsPerHost:  4,
		MaxResponseBytes: 64 << 20,
	}
}

func WithEndpoint(url string) Option        { return func(o *Options) { o.Endpoint = url } }
func WithHTTPClient(c *http.Client) Option  { return func(o *Options) { o.Client = c } }
func WithTimeout(d time.Duration) Option    { return func(o *Options) { o.Timeout = d } }
func WithTokenSource(ts TokenSource) Option { return func(o *Options) { o.Tokens = ts } }
func WithMaxConnsPerHost(n int) Option      { return func(o *Options) { o.MaxConnsPerHost = n } }
func WithMaxResponseBytes(n int64) Option   { return func(o *Options) { o.MaxResponseBytes = n } }
func WithHeader(key, value string) Option {
	return func(o *Options) { o.Header.Add(key, value) }
}
