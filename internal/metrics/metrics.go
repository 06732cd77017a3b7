// Package metrics exports Prometheus metrics for queries, page fetches and
// transport calls. Values come from the event bus.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanpama/graphpager/internal/eventbus"
	"github.com/hanpama/graphpager/internal/events"
)

const namespace = "graphpager"

// Metrics holds the collectors fed by Register.
type Metrics struct {
	Queries        *prometheus.CounterVec
	QueryDuration  prometheus.Histogram
	QueryPages     prometheus.Histogram
	Pages          *prometheus.CounterVec
	PageDuration   *prometheus.HistogramVec
	Items          prometheus.Counter
	ClientRequests *prometheus.CounterVec
	ClientDuration *prometheus.HistogramVec
	ServerRequests *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "total",
				Help:      "Executed queries by outcome",
			},
			[]string{"outcome"},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "duration_seconds",
				Help:      "Query duration including every page",
				Buckets:   prometheus.DefBuckets,
			},
		),
		QueryPages: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "pages",
				Help:      "Transport calls per query",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		Pages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "page",
				Name:      "fetched_total",
				Help:      "Fetched pages by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		PageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "page",
				Name:      "duration_seconds",
				Help:      "Page fetch duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		Items: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "page",
				Name:      "items_total",
				Help:      "Connection items received",
			},
		),
		ClientRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "requests_total",
				Help:      "Transport calls by protocol and status",
			},
			[]string{"protocol", "status"},
		),
		ClientDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "duration_seconds",
				Help:      "Transport call duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"protocol"},
		),
		ServerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "requests_total",
				Help:      "Requests served by the fixture server",
			},
			[]string{"method", "status"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Queries, m.QueryDuration, m.QueryPages,
		m.Pages, m.PageDuration, m.Items,
		m.ClientRequests, m.ClientDuration,
		m.ServerRequests,
	}
}

// MustRegister registers every collector with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.collectors()...)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func kind(subquery string) string {
	if subquery == "" {
		return "root"
	}
	return "subquery"
}

// Register subscribes m to the global event bus.
func (m *Metrics) Register() (unregister func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.QueryFinish) {
			m.Queries.WithLabelValues(outcome(e.Err)).Inc()
			m.QueryDuration.Observe(e.Duration.Seconds())
			m.QueryPages.Observe(float64(e.Pages))
		}),
		eventbus.Subscribe(func(_ context.Context, e events.PageFetchFinish) {
			m.Pages.WithLabelValues(kind(e.Subquery), outcome(e.Err)).Inc()
			m.PageDuration.WithLabelValues(kind(e.Subquery)).Observe(e.Duration.Seconds())
			m.Items.Add(float64(e.Items))
		}),
		eventbus.Subscribe(func(_ context.Context, e events.HTTPClientFinish) {
			status := strconv.Itoa(e.Status)
			if e.Status == 0 {
				status = "none"
			}
			m.ClientRequests.WithLabelValues("http", status).Inc()
			m.ClientDuration.WithLabelValues("http").Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.WSClientFinish) {
			m.ClientRequests.WithLabelValues("websocket", outcome(e.Err)).Inc()
			m.ClientDuration.WithLabelValues("websocket").Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			m.ServerRequests.WithLabelValues(e.Request.Method, strconv.Itoa(e.Status)).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
