// Package metrics exposes Prometheus counters for uploads and inventory webhooks.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	// Upload pipeline
	RowOutcomes    *prometheus.CounterVec
	Batches        *prometheus.CounterVec
	PolicyUpdates  *prometheus.CounterVec
	UploadDuration *prometheus.HistogramVec

	// Shopify client
	RemoteRetries *prometheus.CounterVec

	// Inventory webhooks
	WebhookDeliveries *prometheus.CounterVec
	RestockEvents     prometheus.Counter
	LimitDecrements   prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	const namespace = "preorder_sync"

	return &Metrics{
		RowOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_outcomes_total",
			Help:      "Upload row outcomes by status.",
		}, []string{"status"}),
		Batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metafield_batches_total",
			Help:      "metafieldsSet batches by result.",
		}, []string{"result"}),
		PolicyUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_updates_total",
			Help:      "Variant inventory policy updates by policy and result.",
		}, []string{"policy", "result"}),
		UploadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Wall time of an upload job.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"strategy", "status"}),
		RemoteRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shopify_retries_total",
			Help:      "Retried Shopify calls by API kind.",
		}, []string{"api"}),
		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Inventory webhook deliveries by result.",
		}, []string{"result"}),
		RestockEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restock_events_total",
			Help:      "Positive stock deltas recorded.",
		}),
		LimitDecrements: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preorder_limit_decrements_total",
			Help:      "Preorder limits written back after a restock.",
		}),
		gatherer: reg,
	}
}

// Handler serves the registry this Metrics was built on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Nop returns metrics bound to a private registry, for callers that do not export them.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
