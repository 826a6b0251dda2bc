package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the chain-propagation engine and
// its HTTP surface.
type Metrics struct {
	ReportsProcessed          *prometheus.CounterVec
	NotificationsMaterialized *prometheus.CounterVec
	HopsExpanded              prometheus.Counter
	FrontierSize              prometheus.Histogram
	BatchFlushes              *prometheus.CounterVec
	PushesEnqueued            prometheus.Counter
	PushFailures              prometheus.Counter
	CacheLookups              *prometheus.CounterVec
	RequestDuration           *prometheus.HistogramVec
}

// New registers all metrics against the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics against reg; tests pass a fresh registry to
// avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReportsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chainrelay_reports_processed_total",
			Help: "Reports processed by the engine, by result and final status.",
		}, []string{"result", "status"}),
		NotificationsMaterialized: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chainrelay_notifications_materialized_total",
			Help: "Notification documents created or updated, by type.",
		}, []string{"type"}),
		HopsExpanded: factory.NewCounter(prometheus.CounterOpts{
			Name: "chainrelay_hops_expanded_total",
			Help: "Traversal hops expanded across all invocations.",
		}),
		FrontierSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainrelay_frontier_size",
			Help:    "Frontier size per expanded hop.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		BatchFlushes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chainrelay_batch_flushes_total",
			Help: "Physical batch flushes, by batch kind and outcome.",
		}, []string{"kind", "outcome"}),
		PushesEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "chainrelay_pushes_enqueued_total",
			Help: "Push messages handed to the push batch writer.",
		}),
		PushFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "chainrelay_push_failures_total",
			Help: "Push messages that failed to send after retries.",
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chainrelay_cache_lookups_total",
			Help: "Invocation cache lookups, by cache and hit/miss.",
		}, []string{"cache", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chainrelay_http_request_duration_seconds",
			Help:    "HTTP request latency by route, method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}
