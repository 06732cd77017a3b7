package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphpager/internal/httptp"
	"github.com/hanpama/graphpager/internal/wstp"
)

func TestRead(t *testing.T) {
	c, err := Read(strings.NewReader(`
endpoint: ws://localhost:8080/graphql
transport: websocket
token: abc
concurrency: 8
max_pages: 10
timeout: 5s
log: {level: debug, format: json}
otel: {endpoint: localhost:4317}
metrics: {addr: ":9090"}
`))
	require.NoError(t, err)

	want := Default()
	want.Endpoint = "ws://localhost:8080/graphql"
	want.Transport = TransportWebSocket
	want.Token = "abc"
	want.Concurrency = 8
	want.MaxPages = 10
	want.Timeout = 5 * time.Second
	want.Log = LogConfig{Level: "debug", Format: "json"}
	want.Otel = OtelConfig{Endpoint: "localhost:4317", Service: "graphpager"}
	want.Metrics = MetricsConfig{Addr: ":9090"}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	tp, err := c.NewTransport()
	require.NoError(t, err)
	require.IsType(t, &wstp.Transport{}, tp)
	require.Len(t, c.ExecutorOptions(), 2)
}

func TestReadEmpty(t *testing.T) {
	c, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, Default(), c)

	c, err = Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), c)
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{"unknown field", "endpont: x", "endpont"},
		{"transport", "transport: grpc", `transport must be "http" or "websocket"`},
		{"concurrency", "concurrency: -1", "concurrency must be positive"},
		{"max pages", "max_pages: -2", "max_pages must not be negative"},
		{"page size", "page_size: -1", "page_size must be positive"},
		{"app", "app: {id: '1'}", "app needs both id and key_file"},
		{"log format", "log: {format: xml}", "log format"},
		{"endpoint", "endpoint: ''", "endpoint is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in))
			require.ErrorIs(t, err, ErrInvalidConfig)
			require.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestTokenSource(t *testing.T) {
	t.Setenv("GRAPHPAGER_TEST_TOKEN", "from-env")

	c := Default()
	c.TokenEnv = "GRAPHPAGER_TEST_TOKEN"
	ts, err := c.TokenSource()
	require.NoError(t, err)
	require.Equal(t, httptp.StaticToken("from-env"), ts)

	c.Token = "explicit"
	ts, err = c.TokenSource()
	require.NoError(t, err)
	require.Equal(t, httptp.StaticToken("explicit"), ts)

	c.Token, c.TokenEnv = "", ""
	ts, err = c.TokenSource()
	require.NoError(t, err)
	require.Nil(t, ts)

	tp, err := c.NewTransport()
	require.NoError(t, err)
	require.IsType(t, &httptp.Transport{}, tp)
}

func TestAppTokenSource(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "app.pem")
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	c := Default()
	c.App = &AppConfig{ID: "42", KeyFile: path}
	ts, err := c.TokenSource()
	require.NoError(t, err)
	require.IsType(t, &httptp.AppTokenSource{}, ts)

	c.App.KeyFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err = c.TokenSource()
	require.ErrorIs(t, err, os.ErrNotExist)
}
