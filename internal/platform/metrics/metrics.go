// Package metrics holds the Prometheus instruments for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	BillTransitions *prometheus.CounterVec
	BillsCreated    prometheus.Counter
	UsersCreated    prometheus.Counter
	AuditFailures   prometheus.Counter
	RequestLatency  *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		BillTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bvas_bill_transitions_total",
			Help: "Bill lifecycle transitions by operation and outcome",
		}, []string{"operation", "outcome"}),
		BillsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bvas_bills_created_total",
			Help: "Total number of bills created",
		}),
		UsersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bvas_users_created_total",
			Help: "Total number of users created in the system",
		}),
		AuditFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bvas_audit_append_failures_total",
			Help: "System audit trail appends that failed and were only logged",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bvas_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// ObserveTransition records one lifecycle transition attempt.
func (m *Metrics) ObserveTransition(operation, outcome string) {
	if m == nil {
		return
	}
	m.BillTransitions.WithLabelValues(operation, outcome).Inc()
}
