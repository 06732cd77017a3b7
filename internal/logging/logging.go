// Package logging writes engine events to a slog.Logger.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hanpama/graphpager/internal/eventbus"
	"github.com/hanpama/graphpager/internal/events"
	"github.com/hanpama/graphpager/internal/reqid"
)

// Setup subscribes logger to the global event bus. Queries log at Info,
// pages and transport calls at Debug and failures at Warn.
func Setup(logger *slog.Logger) (unregister func()) {
	with := func(ctx context.Context) *slog.Logger {
		l := logger
		if rid, ok := reqid.FromContext(ctx); ok {
			l = l.With("request_id", rid)
		}
		return l
	}
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.QueryStart) {
			with(ctx).InfoContext(ctx, "query started", "operation", operation(e.Document), "variables", len(e.Variables))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.QueryFinish) {
			l := with(ctx)
			if e.Err != nil {
				l.WarnContext(ctx, "query finished with errors", "pages", e.Pages, "duration", e.Duration, "error", e.Err)
				return
			}
			l.InfoContext(ctx, "query finished", "pages", e.Pages, "duration", e.Duration)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.PageFetchStart) {
			with(ctx).DebugContext(ctx, "fetching page", page(e.Subquery, e.ID, e.After)...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.PageFetchFinish) {
			l := with(ctx)
			attrs := page(e.Subquery, e.ID, e.After)
			if e.Err != nil {
				l.WarnContext(ctx, "page fetch failed", append(attrs, "error", e.Err)...)
				return
			}
			l.DebugContext(ctx, "fetched page", append(attrs, "items", e.Items, "has_next_page", e.HasNextPage, "duration", e.Duration)...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPClientFinish) {
			l := with(ctx)
			if e.Err != nil {
				l.WarnContext(ctx, "graphql request failed", "endpoint", e.Endpoint, "status", e.Status, "error", e.Err)
				return
			}
			l.DebugContext(ctx, "graphql request", "endpoint", e.Endpoint, "status", e.Status, "duration", e.Duration)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.WSClientFinish) {
			l := with(ctx)
			if e.Err != nil {
				l.WarnContext(ctx, "websocket operation failed", "endpoint", e.Endpoint, "operation_id", e.OperationID, "error", e.Err)
				return
			}
			l.DebugContext(ctx, "websocket operation", "endpoint", e.Endpoint, "operation_id", e.OperationID, "duration", e.Duration)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			with(ctx).InfoContext(ctx, "served request",
				"method", e.Request.Method, "path", e.Request.URL.Path, "status", e.Status, "duration", e.Duration)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func page(subquery, id string, after *string) []any {
	if subquery == "" {
		subquery = "root"
	}
	attrs := []any{"connection", subquery}
	if id != "" {
		attrs = append(attrs, "id", id)
	}
	if after != nil {
		attrs = append(attrs, "after", *after)
	}
	return attrs
}

// operation returns the first line of a document, enough to tell queries
// apart without logging whole selections.
func operation(document string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(document), "\n")
	if len(line) > 80 {
		return fmt.Sprintf("%s...", line[:80])
	}
	return line
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging: unknown level %q", s)
	}
	return l, nil
}
