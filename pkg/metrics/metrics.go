package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors for the notification workflow.
// Fail-soft paths (audit writes, email sends, unread-count reads) swallow
// their errors, so the counters here are the only operational signal that
// those paths are degrading.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	NotificationsSent   *prometheus.CounterVec
	EmailsFailed        prometheus.Counter
	AuditWriteFailures  prometheus.Counter
	UnreadCountFailures prometheus.Counter
	AdmitCardsGenerated prometheus.Counter
}

// New registers the workflow collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	notificationsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "In-app notifications created, labelled by notification type",
	}, []string{"type"})

	emailsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_emails_failed_total",
		Help: "Email dispatches that returned an error from the gateway",
	})

	auditWriteFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Audit log writes that failed and were swallowed",
	})

	unreadCountFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_unread_count_failures_total",
		Help: "Unread-count reads that failed and defaulted to zero",
	})

	admitCardsGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "admit_cards_generated_total",
		Help: "Admit card rows attempted during timetable publishes",
	})

	registry.MustRegister(notificationsSent, emailsFailed, auditWriteFailures, unreadCountFailures, admitCardsGenerated)

	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		NotificationsSent:   notificationsSent,
		EmailsFailed:        emailsFailed,
		AuditWriteFailures:  auditWriteFailures,
		UnreadCountFailures: unreadCountFailures,
		AdmitCardsGenerated: admitCardsGenerated,
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}
