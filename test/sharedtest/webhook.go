package sharedtest

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gavv/httpexpect"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations/stripe/stripetest"
)

var eventSeq int64

// SendWebhook posts a correctly signed event and returns the response.
func (ta *App) SendWebhook(eventType string, object stripetest.Object) *httpexpect.Response {
	id := "evt_" + strconv.FormatInt(atomic.AddInt64(&eventSeq, 1), 10)
	payload := stripetest.Event(id, eventType, time.Now(), object)

	return ta.Expect(ta.t).POST("/api/account/subscriptions/stripe-webhook").
		WithHeader("Stripe-Signature", stripetest.Sign(payload, WebhookSecret)).
		WithHeader("Content-Type", "application/json").
		WithBytes(payload).
		Expect()
}
