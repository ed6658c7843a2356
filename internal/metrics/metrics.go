package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	Fulfillments     *prometheus.CounterVec
	Notifications    *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = New(namespace)
		prometheus.MustRegister(
			metricsInstance.UpstreamRequests,
			metricsInstance.UpstreamLatency,
			metricsInstance.Fulfillments,
			metricsInstance.Notifications,
		)
	})
	return metricsInstance
}

// New builds unregistered collectors. Tests use it directly.
func New(namespace string) *Metrics {
	return &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total outbound API requests by upstream, endpoint and status.",
		}, []string{"upstream", "endpoint", "status"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency distribution for outbound API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"upstream", "endpoint", "status"}),
		Fulfillments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fulfillments_total",
			Help:      "Order fulfillment attempts grouped by outcome.",
		}, []string{"outcome"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications grouped by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
}
