package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values for review writes.
const (
	outcomeSuccess  = "success"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

// Metrics holds the domain counters exported on /metrics.
type Metrics struct {
	reviewWrites    *prometheus.CounterVec
	reviewConflicts prometheus.Counter
	resetMails      *prometheus.CounterVec
}

// NewMetrics creates the domain collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reviewWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_review_writes_total",
			Help: "Review submissions and removals by outcome",
		}, []string{"operation", "outcome"}),
		reviewConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_review_version_conflicts_total",
			Help: "Review writes that lost an optimistic concurrency race",
		}),
		resetMails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_password_reset_emails_total",
			Help: "Password reset emails by delivery status",
		}, []string{"status"}),
	}
	reg.MustRegister(m.reviewWrites, m.reviewConflicts, m.resetMails)
	return m
}

func (m *Metrics) reviewWrite(operation, outcome string) {
	if m == nil {
		return
	}
	m.reviewWrites.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) reviewConflict() {
	if m == nil {
		return
	}
	m.reviewConflicts.Inc()
}

func (m *Metrics) resetMail(status string) {
	if m == nil {
		return
	}
	m.resetMails.WithLabelValues(status).Inc()
}
