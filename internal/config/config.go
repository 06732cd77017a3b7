// Package config loads the optional YAML configuration of the graphpager
// command and turns it into transports and executor options.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hanpama/graphpager/internal/executor"
	"github.com/hanpama/graphpager/internal/httptp"
	"github.com/hanpama/graphpager/internal/wstp"
)

const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// DefaultTokenEnv names the environment variable read when no token is
// configured.
const DefaultTokenEnv = "GITHUB_TOKEN"

var ErrInvalidConfig = errors.New("invalid config")

// Config is the configuration file. Zero values fall back to Default.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	Transport string `yaml:"transport"`
	// Token is a personal access token. TokenEnv is consulted when it is
	// empty.
	Token    string     `yaml:"token"`
	TokenEnv string     `yaml:"token_env"`
	App      *AppConfig `yaml:"app"`

	Concurrency int           `yaml:"concurrency"`
	MaxPages    int           `yaml:"max_pages"`
	PageSize    int           `yaml:"page_size"`
	Timeout     time.Duration `yaml:"timeout"`

	Log     LogConfig     `yaml:"log"`
	Otel    OtelConfig    `yaml:"otel"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// AppConfig authenticates as a GitHub App with a signed JWT.
type AppConfig struct {
	ID      string `yaml:"id"`
	KeyFile string `yaml:"key_file"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type OtelConfig struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

// MetricsConfig enables a Prometheus listener when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Default() *Config {
	return &Config{
		Endpoint:    httptp.DefaultEndpoint,
		Transport:   TransportHTTP,
		TokenEnv:    DefaultTokenEnv,
		Concurrency: 4,
		PageSize:    100,
		Timeout:     30 * time.Second,
		Log:         LogConfig{Level: "info", Format: "text"},
		Otel:        OtelConfig{Service: "graphpager"},
	}
}

// Load reads the file at path over Default. An empty path yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read decodes YAML over Default and validates the result.
func Read(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Endpoint == "":
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	case c.Transport != TransportHTTP && c.Transport != TransportWebSocket:
		return fmt.Errorf("%w: transport must be %q or %q, got %q", ErrInvalidConfig, TransportHTTP, TransportWebSocket, c.Transport)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfig, c.Concurrency)
	case c.MaxPages < 0:
		return fmt.Errorf("%w: max_pages must not be negative, got %d", ErrInvalidConfig, c.MaxPages)
	case c.PageSize < 1:
		return fmt.Errorf("%w: page_size must be positive, got %d", ErrInvalidConfig, c.PageSize)
	case c.App != nil && (c.App.ID == "" || c.App.KeyFile == ""):
		return fmt.Errorf("%w: app needs both id and key_file", ErrInvalidConfig)
	case c.Log.Format != "text" && c.Log.Format != "json":
		return fmt.Errorf("%w: log format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// TokenSource returns the configured credentials, or nil for anonymous
// access.
func (c *Config) TokenSource() (httptp.TokenSource, error) {
	if c.App != nil {
		pem, err := os.ReadFile(c.App.KeyFile)
		if err != nil {
			return nil, err
		}
		return httptp.NewAppTokenSource(c.App.ID, pem)
	}
	token := c.Token
	if token == "" && c.TokenEnv != "" {
		token = os.Getenv(c.TokenEnv)
	}
	if token == "" {
		return nil, nil
	}
	return httptp.StaticToken(token), nil
}

// Transport is an executor transport that holds connections.
type Transport interface {
	executor.Transport
	Close() error
}

// NewTransport builds the configured transport.
func (c *Config) NewTransport() (Transport, error) {
	ts, err := c.TokenSource()
	if err != nil {
		return nil, err
	}
	switch c.Transport {
	case TransportWebSocket:
		opts := []wstp.Option{wstp.WithEndpoint(c.Endpoint)}
		if ts != nil {
			opts = append(opts, wstp.WithTokenSource(ts))
		}
		return wstp.New(opts...), nil
	default:
		opts := []httptp.Option{httptp.WithEndpoint(c.Endpoint), httptp.WithTimeout(c.Timeout)}
		if ts != nil {
			opts = append(opts, httptp.WithTokenSource(ts))
		}
		return httptp.New(opts...), nil
	}
}

func (c *Config) ExecutorOptions() []executor.Option {
	return []executor.Option{
		executor.WithConcurrency(c.Concurrency),
		executor.WithMaxPages(c.MaxPages),
	}
}
