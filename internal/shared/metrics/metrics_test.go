package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsAreExposed(t *testing.T) {
	m := New()
	m.WebhookEvents.WithLabelValues("invoice.paid", "pending").Inc()
	m.PaymentReminders.Inc()
	m.PaymentReminders.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PaymentReminders))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `account_stripe_webhook_events_total{result="pending",type="invoice.paid"} 1`)
}

func TestQueueMetrics(t *testing.T) {
	m := New()
	m.QueueMessages.WithLabelValues("stripe/events/process", "ok").Inc()
	m.QueueWait.WithLabelValues("stripe/events/process").Observe(0.2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueueMessages.WithLabelValues("stripe/events/process", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.QueueWait))
}
