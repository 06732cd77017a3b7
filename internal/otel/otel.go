package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanpama/graphpager/internal/eventbus"
	"github.com/hanpama/graphpager/internal/events"
	"github.com/hanpama/graphpager/internal/reqid"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured. The exporter dials
// without TLS unless opts say otherwise.
func Setup(endpoint, service string, opts ...otlptracegrpc.Option) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	opts = append([]otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}, opts...)
	exp, err := otlptracegrpc.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unregister := Register(tp)
	return func(ctx context.Context) error {
		unregister()
		return tp.Shutdown(ctx)
	}, nil
}

// Register subscribes span-producing handlers backed by tp.
func Register(tp trace.TracerProvider) (unregister func()) {
	s := &subscriber{tracer: tp.Tracer("graphpager")}
	return s.register()
}

// Spans of one request share its request id. Page fetches run concurrently
// and are keyed by fetch id, websocket operations by operation id.
type subscriber struct {
	tracer     trace.Tracer
	httpSpans  sync.Map // rid -> trace.Span
	querySpans sync.Map // rid -> trace.Span
	pageSpans  sync.Map // fetch id -> trace.Span
	callSpans  sync.Map // fetch id or operation id -> trace.Span
}

func (s *subscriber) parent(ctx context.Context, m *sync.Map, key string) context.Context {
	if v, ok := m.Load(key); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *subscriber) register() func() {
	var unsubs []func()
	sub := func(u func()) { unsubs = append(unsubs, u) }

	sub(eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
		)
		s.httpSpans.Store(rid, span)
	}))

	sub(eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.httpSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		span.End()
	}))

	sub(eventbus.Subscribe(func(ctx context.Context, e events.QueryStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, &s.httpSpans, rid), "graphpager.query")
		span.SetAttributes(
			attribute.String("graphql.document", e.Document),
			attribute.Int("graphql.variable_count", len(e.Variables)),
		)
		s.querySpans.Store(rid, span)
	}))

	sub(eventbus.Subscribe(func(ctx context.Context, e events.QueryFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.querySpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("graphpager.pages", e.Pages))
		end(span, e.Err)
	}))

	sub(eventbus.Subscribe(func(ctx context.Context, e events.PageFetchStart) {
		rid, _ := reqid.FromContext(ctx)
		fid, _ := reqid.FetchFromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, &s.querySpans, rid), "graphpager.page")
		attrs := []attribute.KeyValue{attribute.String("graphpager.subquery", e.Subquery)}
		if e.ID != "" {
			attrs = append(attrs, attribute.String("graphpager.owner_id", e.ID))
		}
		if e.After != nil {
			attrs = append(attrs, attribute.String("graphpager.after", *e.After))
		}
		span.SetAttributes(attrs...)
		s.pageSpans.Store(fid, span)
	}))

	sub(eventbus.Subscribe(func(ctx context.Context, e events.PageFetchFinish) {
		fid, _ := reqid.FetchFromContext(ctx)
		v, ok := s.pageSpans.LoadAndDelete(fid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(
			attribute.Int("graphpager.items", e.Items),
			attribute.Bool("graphpager.has_next_page", e.HasNextPage),
		)
		end(span, e.Err)
	}))

	sub(eventbus.Subscribe(func(ctx context.Context, e events.HTTPClientStart) {
		fid, _ := reqid.FetchFromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, &s.pageSpans, fid), "http.client", trace.WithSpanKind(trace.SpanKindClient))
		span.SetAttributes(semconv.HTTPURLKey.String(e.Endpoint))
		s.callSpans.Store(fid, span)
	}))

	sub(eventbus.Subscribe(func(ctx context.Context, e events.HTTPClientFinish) {
		fid, _ := reqid.FetchFromContext(ctx)
		v, ok := s.callSpans.LoadAndDelete(fid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		if e.Status != 0 {
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		}
		end(span, e.Err)
	}))

	sub(eventbus.Subscribe(func(ctx context.Context, e events.WSClientStart) {
		fid, _ := reqid.FetchFromContext(ctx)
		_, span := s.tracer.Start(s.parent(ctx, &s.pageSpans, fid), "websocket.operation", trace.WithSpanKind(trace.SpanKindClient))
		span.SetAttributes(
			attribute.String("net.peer.name", e.Endpoint),
			attribute.String("graphql.operation.id", e.OperationID),
		)
		s.callSpans.Store(e.OperationID, span)
	}))

	sub(eventbus.Subscribe(func(ctx context.Context, e events.WSClientFinish) {
		v, ok := s.callSpans.LoadAndDelete(e.OperationID)
		if !ok {
			return
		}
		end(v.(trace.Span), e.Err)
	}))

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
