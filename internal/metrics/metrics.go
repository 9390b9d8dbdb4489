// Package metrics holds the daemon's prometheus collectors. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "collatz"

// Collector owns a private registry so several daemons (or tests) in one
// process never collide.
type Collector struct {
	registry *prometheus.Registry

	SourceRequests    *prometheus.CounterVec
	SourceLatency     *prometheus.HistogramVec
	MessagesSent      *prometheus.CounterVec
	FeedEvents        *prometheus.CounterVec
	EmbeddingsIndexed *prometheus.CounterVec
	JobsUpserted      prometheus.Counter
}

// New creates a Collector with process and Go runtime collectors attached.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommend_source_requests_total",
			Help:      "Recommendation source fetches by outcome.",
		}, []string{"source", "outcome"}),
		SourceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommend_source_duration_seconds",
			Help:      "Recommendation source fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_messages_total",
			Help:      "Authoritative message writes by outcome.",
		}, []string{"outcome"}),
		FeedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_total",
			Help:      "Realtime connection events.",
		}, []string{"event"}),
		EmbeddingsIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_indexed_total",
			Help:      "Rows embedded by entity kind and outcome.",
		}, []string{"kind", "outcome"}),
		JobsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_upserted_total",
			Help:      "External job rows written.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.SourceRequests,
		c.SourceLatency,
		c.MessagesSent,
		c.FeedEvents,
		c.EmbeddingsIndexed,
		c.JobsUpserted,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveSource(source, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.SourceRequests.WithLabelValues(source, outcome).Inc()
	c.SourceLatency.WithLabelValues(source).Observe(d.Seconds())
}

func (c *Collector) MessageSent(outcome string) {
	if c == nil {
		return
	}
	c.MessagesSent.WithLabelValues(outcome).Inc()
}

func (c *Collector) FeedEvent(event string) {
	if c == nil {
		return
	}
	c.FeedEvents.WithLabelValues(event).Inc()
}

func (c *Collector) Embedded(kind, outcome string) {
	if c == nil {
		return
	}
	c.EmbeddingsIndexed.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) JobsWritten(n int) {
	if c == nil {
		return
	}
	c.JobsUpserted.Add(float64(n))
}
