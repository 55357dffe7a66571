package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notifyhub/notification-dispatcher/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestDuration *prometheus.HistogramVec

	NotificationsPublished *prometheus.CounterVec
	NotificationsFailed    *prometheus.CounterVec
	PublishLatency         *prometheus.HistogramVec
}

// New registers all instruments with a fresh private registry. Using a
// custom registry (instead of prometheus.DefaultRegisterer) keeps tests
// isolated and avoids global state.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_requests_duration_seconds",
			Help:    "HTTP request duration by method, path, and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		NotificationsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications acknowledged by the bus, by channel.",
		}, []string{"channel"}),

		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Notifications that exhausted all publish attempts, by channel.",
		}, []string{"channel"}),

		PublishLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_publish_seconds",
			Help:    "Latency from first attempt to bus acknowledgement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
	}

	m.registry.MustRegister(
		m.HTTPRequestDuration,
		m.NotificationsPublished,
		m.NotificationsFailed,
		m.PublishLatency,
	)

	return m
}

// DispatchHooks returns the metric callbacks the dispatch service expects.
// Centralises the prometheus observation calls so the service package stays
// metrics-agnostic.
func (m *Metrics) DispatchHooks() (
	onPublished func(domain.Channel, time.Duration),
	onFailed func(domain.Channel),
) {
	onPublished = func(ch domain.Channel, latency time.Duration) {
		m.NotificationsPublished.WithLabelValues(string(ch)).Inc()
		m.PublishLatency.WithLabelValues(string(ch)).Observe(latency.Seconds())
	}
	onFailed = func(ch domain.Channel) {
		m.NotificationsFailed.WithLabelValues(string(ch)).Inc()
	}
	return
}

// Handler serves the plain-text scrape endpoint; bound to its own port by
// main, separate from the application router.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return mux
}
