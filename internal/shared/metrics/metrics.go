package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	WebhookEvents       *prometheus.CounterVec
	ProcessedEvents     *prometheus.CounterVec
	EventBatchDuration  prometheus.Histogram
	RequestDuration     *prometheus.HistogramVec
	TenantStateChanges  *prometheus.CounterVec
	PaymentReminders    prometheus.Counter
	ProviderCallRetries *prometheus.CounterVec
	QueueMessages       *prometheus.CounterVec
	QueueWait           *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "account",
			Name:      "stripe_webhook_events_total",
			Help:      "Received stripe webhook events by type and intake result.",
		}, []string{"type", "result"}),
		ProcessedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "account",
			Name:      "stripe_events_processed_total",
			Help:      "Applied stripe events by type.",
		}, []string{"type"}),
		EventBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "account",
			Name:      "stripe_event_batch_duration_seconds",
			Help:      "Time to apply all pending events of a customer.",
			Buckets:   prometheus.DefBuckets,
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "account",
			Name:      "http_request_duration_seconds",
			Help:      "API request duration by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
		TenantStateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "account",
			Name:      "tenant_state_changes_total",
			Help:      "Tenant state transitions by new state.",
		}, []string{"state"}),
		PaymentReminders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "account",
			Name:      "payment_reminders_sent_total",
			Help:      "Sent payment failure reminder emails.",
		}),
		ProviderCallRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "account",
			Name:      "payment_provider_retries_total",
			Help:      "Retried payment provider calls by operation.",
		}, []string{"operation"}),
		QueueMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "account",
			Name:      "queue_messages_consumed_total",
			Help:      "Consumed queue messages by subqueue and result.",
		}, []string{"subqueue", "result"}),
		QueueWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "account",
			Name:      "queue_message_wait_seconds",
			Help:      "Time from enqueueing a message to consuming it.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"subqueue"}),
	}

	m.registry.MustRegister(
		m.WebhookEvents,
		m.ProcessedEvents,
		m.EventBatchDuration,
		m.RequestDuration,
		m.TenantStateChanges,
		m.PaymentReminders,
		m.ProviderCallRetries,
		m.QueueMessages,
		m.QueueWait,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
