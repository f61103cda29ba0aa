package main

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations/stripe"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations/stripe/stripetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmulatedWebhookIsVerifiable(t *testing.T) {
	o := emulateWebhookOptions{
		eventType:      "checkout.session.completed",
		customerID:     "cus_1",
		subscriptionID: "sub_1",
		tenantID:       7,
		plan:           "Premium",
	}
	object, err := o.buildObject()
	require.NoError(t, err)

	verifier := stripe.NewEventVerifier("whsec_local")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		ev, err := verifier.VerifyEvent(body, r.Header.Get("Stripe-Signature"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "7", ev.CheckoutSession.Metadata["tenant_id"])
	}))
	defer srv.Close()

	payload := stripetest.Event("evt_1", o.eventType, time.Now(), object)
	assert.NoError(t, postWebhook(srv.URL, payload, stripetest.Sign(payload, "whsec_local")))
	assert.Error(t, postWebhook(srv.URL, payload, stripetest.Sign(payload, "whsec_other")))
}

func TestBuildObjectRejectsUnknownTypes(t *testing.T) {
	_, err := emulateWebhookOptions{eventType: "charge.captured"}.buildObject()
	assert.Error(t, err)
}
