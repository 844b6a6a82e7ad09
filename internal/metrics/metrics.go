package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clm_portal"

// Metrics holds the portal's business counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	SubmissionsTotal       *prometheus.CounterVec
	PaymentsConfirmedTotal *prometheus.CounterVec
	OutboxMessagesTotal    *prometheus.CounterVec
	UploadsRejectedTotal   *prometheus.CounterVec
	BroadcastRecipients    prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submitted applications, donations and registrations by kind.",
		}, []string{"kind"}),
		PaymentsConfirmedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_confirmed_total",
			Help:      "Payments moved to confirmed, by payment type.",
		}, []string{"payment_type"}),
		OutboxMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_messages_total",
			Help:      "Outbox delivery attempts by kind and result.",
		}, []string{"kind", "result"}),
		UploadsRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Uploads refused before reaching storage, by reason.",
		}, []string{"reason"}),
		BroadcastRecipients: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_recipients_total",
			Help:      "Notifications created by admin broadcasts.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SubmissionsTotal,
		m.PaymentsConfirmedTotal,
		m.OutboxMessagesTotal,
		m.UploadsRejectedTotal,
		m.BroadcastRecipients,
	)
	return m
}

func (m *Metrics) ObserveSubmission(kind string) {
	m.SubmissionsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObservePaymentConfirmed(paymentType string) {
	m.PaymentsConfirmedTotal.WithLabelValues(paymentType).Inc()
}

func (m *Metrics) ObserveOutbox(kind, result string) {
	m.OutboxMessagesTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveUploadRejected(reason string) {
	m.UploadsRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveBroadcast(recipients int) {
	m.BroadcastRecipients.Add(float64(recipients))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
