// Package metrics records worker activity as Prometheus metrics. Serving
// them over HTTP is left to the process that embeds this worker -- this
// package only ever hands back a Handler for an external mux to mount.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the narrow interface the rest of the worker depends on, so
// components can be tested against a no-op implementation without a real
// Prometheus registry.
type Recorder interface {
	MessageProcessed(topic string)
	MessageFailed(topic string)
	MeiliIndexingDuration(indexUID string, d time.Duration)
	MeiliRetry(indexUID string)
	DLQPublishFailed(topic string)
}

// Prometheus is the production Recorder.
type Prometheus struct {
	registry *prometheus.Registry

	messagesProcessed *prometheus.CounterVec
	messagesFailed    *prometheus.CounterVec
	meiliDuration     *prometheus.HistogramVec
	meiliRetries      *prometheus.CounterVec
	dlqPublishFailed  *prometheus.CounterVec
}

// NewPrometheus constructs and registers all collectors on a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		messagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_worker_messages_processed_total",
			Help: "CDC messages successfully indexed, by topic.",
		}, []string{"topic"}),
		messagesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_worker_messages_failed_total",
			Help: "CDC messages routed to the DLQ (undecodable, invalid, or failed indexing), by topic.",
		}, []string{"topic"}),
		meiliDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "search_worker_meili_indexing_duration_seconds",
			Help:    "Time spent indexing a document end-to-end, by index.",
			Buckets: prometheus.DefBuckets,
		}, []string{"index"}),
		meiliRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_worker_meili_retry_total",
			Help: "Indexing attempts that failed with a retriable error, by index. Poll cycles on a still-pending task are not counted.",
		}, []string{"index"}),
		dlqPublishFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "search_worker_dlq_publish_failed_total",
			Help: "DLQ publish attempts that failed, by source topic.",
		}, []string{"topic"}),
	}
	reg.MustRegister(p.messagesProcessed, p.messagesFailed, p.meiliDuration, p.meiliRetries, p.dlqPublishFailed)
	return p
}

func (p *Prometheus) MessageProcessed(topic string) { p.messagesProcessed.WithLabelValues(topic).Inc() }
func (p *Prometheus) MessageFailed(topic string)    { p.messagesFailed.WithLabelValues(topic).Inc() }
func (p *Prometheus) MeiliIndexingDuration(indexUID string, d time.Duration) {
	p.meiliDuration.WithLabelValues(indexUID).Observe(d.Seconds())
}
func (p *Prometheus) MeiliRetry(indexUID string)    { p.meiliRetries.WithLabelValues(indexUID).Inc() }
func (p *Prometheus) DLQPublishFailed(topic string) { p.dlqPublishFailed.WithLabelValues(topic).Inc() }

// Handler returns the http.Handler an external process supervisor can mount
// at /metrics.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Noop discards everything; useful in tests and for components that don't
// care about metrics.
type Noop struct{}

func (Noop) MessageProcessed(string)                      {}
func (Noop) MessageFailed(string)                         {}
func (Noop) MeiliIndexingDuration(string, time.Duration)  {}
func (Noop) MeiliRetry(string)                            {}
func (Noop) DLQPublishFailed(string)                      {}
