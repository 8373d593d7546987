// Package metrics holds the Prometheus collectors shared by the HTTP, gRPC and outbox adapters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "credential"

// Metrics groups the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	GRPCRequests        *prometheus.CounterVec
	NotificationsQueued *prometheus.CounterVec
	OutboxDeliveries    *prometheus.CounterVec
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates the collectors and registers them with reg. Panics on duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		GRPCRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grpc_requests_total",
				Help:      "Internal gRPC calls by method and status code",
			},
			[]string{"method", "code"},
		),
		NotificationsQueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_enqueued_total",
				Help:      "Notifications handed to the outbox by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		OutboxDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_deliveries_total",
				Help:      "Outbox publish attempts by event type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
	}
	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.GRPCRequests,
		m.NotificationsQueued,
		m.OutboxDeliveries,
	)
	return m
}

func (m *Metrics) ObserveHTTP(route, method, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveGRPC(method, code string) {
	if m == nil {
		return
	}
	m.GRPCRequests.WithLabelValues(method, code).Inc()
}

func (m *Metrics) NotificationQueued(kind, outcome string) {
	if m == nil {
		return
	}
	m.NotificationsQueued.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) OutboxDelivery(eventType, outcome string) {
	if m == nil {
		return
	}
	m.OutboxDeliveries.WithLabelValues(eventType, outcome).Inc()
}
