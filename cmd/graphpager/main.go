package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hanpama/graphpager/internal/config"
	"github.com/hanpama/graphpager/internal/eventbus"
	"github.com/hanpama/graphpager/internal/executor"
	"github.com/hanpama/graphpager/internal/github"
	"github.com/hanpama/graphpager/internal/logging"
	"github.com/hanpama/graphpager/internal/metrics"
	"github.com/hanpama/graphpager/internal/otel"
	"github.com/hanpama/graphpager/internal/server"
)

const rootUsage = `graphpager: exhaustive GraphQL pagination client & fixture server

USAGE:
  graphpager <command> [flags]

COMMANDS:
  serve            Serve an in-memory GraphQL graph over HTTP and websocket
  issues           Fetch every issue and comment of a repository
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -data <file>                    YAML graph to serve (required)
  -config <file>                  YAML config for log, otel and metrics settings
  -server.addr <addr>             HTTP listen address (default: :8080)
  -server.pretty                  Pretty-print JSON responses
  -server.timeout <duration>      Per-request timeout, e.g. 10s (default: 10s)
  -server.page-size-limit N       Largest accepted first/last (default: 100)
  -server.token <token>           Require a bearer token. Repeatable
  -server.cors <origin>           Allow a CORS origin. Repeatable
`

const issuesUsage = `issues FLAGS:
  -owner <login>                  Repository owner (required)
  -repo <name>                    Repository name (required)
  -config <file>                  YAML config file
  -endpoint <url>                 GraphQL endpoint (default: https://api.github.com/graphql)
  -transport <http|websocket>     Transport (default: http)
  -token <token>                  Bearer token (default: $GITHUB_TOKEN)
  -concurrency N                  Concurrent page fetches (default: 4)
  -max-pages N                    Pages per connection, 0 for no cap (default: 0)
  -page-size N                    Items requested per page (default: 100)
  -log.level <level>              debug, info, warn or error (default: info)
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("graphpager", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs, stderr)
	case "issues":
		return cmdIssues(cmdArgs, stdout, stderr)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "issues":
		fmt.Fprint(stdout, issuesUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// observe attaches logging, tracing and metrics subscribers to a fresh
// event bus. The returned function detaches them and flushes spans.
func observe(cfg *config.Config, stderr io.Writer) (*metrics.Metrics, func(), error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(stderr, hopts)
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(stderr, hopts)
	}

	eventbus.Use(eventbus.New())
	unlog := logging.Setup(slog.New(handler))
	shutdown, err := otel.Setup(cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		unlog()
		return nil, nil, fmt.Errorf("otel setup: %w", err)
	}
	m := metrics.New()
	unmetrics := m.Register()
	return m, func() {
		unmetrics()
		unlog()
		_ = shutdown(context.Background())
	}, nil
}

func cmdServe(args []string, stderr io.Writer) error {
	dataFile := ""
	configFile := ""
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	pageSizeLimit := 100
	var tokens, origins stringListFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&dataFile, "data", dataFile, "YAML graph to serve")
	fs.StringVar(&configFile, "config", configFile, "YAML config file")
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.IntVar(&pageSizeLimit, "server.page-size-limit", pageSizeLimit, "Largest accepted first/last")
	fs.Var(&tokens, "server.token", "Require a bearer token")
	fs.Var(&origins, "server.cors", "Allow a CORS origin")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}
	if dataFile == "" {
		fmt.Fprint(stderr, serveUsage)
		return fmt.Errorf("-data is required")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	graph, err := server.LoadGraphFile(dataFile)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}
	m, stop, err := observe(cfg, stderr)
	if err != nil {
		return err
	}
	defer stop()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	sopts := []server.Option{server.WithPageSizeLimit(pageSizeLimit)}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if timeout > 0 {
		sopts = append(sopts, server.WithTimeout(timeout))
	}
	if len(origins) > 0 {
		sopts = append(sopts, server.WithCORS(origins...))
	}
	for _, t := range tokens {
		sopts = append(sopts, server.WithToken(t))
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", server.New(graph, sopts...))
	if cfg.Metrics.Addr == "" {
		mux.Handle("/metrics", metrics.Handler(reg))
	} else {
		go func() {
			mm := http.NewServeMux()
			mm.Handle("/metrics", metrics.Handler(reg))
			log.Printf("metrics listening on %s", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mm); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	log.Printf("GraphQL server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func cmdIssues(args []string, stdout, stderr io.Writer) error {
	owner := ""
	repo := ""
	configFile := ""

	fs := flag.NewFlagSet("issues", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&owner, "owner", owner, "Repository owner")
	fs.StringVar(&repo, "repo", repo, "Repository name")
	fs.StringVar(&configFile, "config", configFile, "YAML config file")
	// Remaining flags override the config file only when given.
	fs.String("endpoint", "", "GraphQL endpoint")
	fs.String("transport", "", "Transport")
	fs.String("token", "", "Bearer token")
	fs.Int("concurrency", 0, "Concurrent page fetches")
	fs.Int("max-pages", 0, "Pages per connection")
	fs.Int("page-size", 0, "Items requested per page")
	fs.String("log.level", "", "Log level")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, issuesUsage)
		return err
	}
	if owner == "" || repo == "" {
		fmt.Fprint(stderr, issuesUsage)
		return fmt.Errorf("-owner and -repo are required")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := override(cfg, fs); err != nil {
		return err
	}
	_, stop, err := observe(cfg, stderr)
	if err != nil {
		return err
	}
	defer stop()

	transport, err := cfg.NewTransport()
	if err != nil {
		return err
	}
	defer transport.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ex := executor.NewExecutor(transport, cfg.ExecutorOptions()...)
	v, runErr := ex.Execute(ctx, github.IssuesWithComments(owner, repo, cfg.PageSize), nil)
	var partial *executor.PartialPaginationError
	if runErr != nil && !errors.As(runErr, &partial) {
		return runErr
	}
	if v == nil {
		return fmt.Errorf("repository %s/%s not found", owner, repo)
	}

	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, string(out))
	return runErr
}

func override(cfg *config.Config, fs *flag.FlagSet) error {
	fs.Visit(func(f *flag.Flag) {
		val := f.Value.(flag.Getter).Get()
		switch f.Name {
		case "endpoint":
			cfg.Endpoint = val.(string)
		case "transport":
			cfg.Transport = val.(string)
		case "token":
			cfg.Token = val.(string)
			cfg.App = nil
		case "concurrency":
			cfg.Concurrency = val.(int)
		case "max-pages":
			cfg.MaxPages = val.(int)
		case "page-size":
			cfg.PageSize = val.(int)
		case "log.level":
			cfg.Log.Level = val.(string)
		}
	})
	return cfg.Validate()
}
