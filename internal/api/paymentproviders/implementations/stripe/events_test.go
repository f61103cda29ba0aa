package stripe

import (
	"testing"
	"time"

	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations/stripe/stripetest"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func parse(t *testing.T, eventType string, object stripetest.Object) *paymentprovider.Event {
	ev, err := EventParser{}.ParseEvent(stripetest.Event("evt_1", eventType, created, object))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, paymentprovider.EventType(eventType), ev.Type)
	assert.Equal(t, created, ev.CreatedAt)
	return ev
}

func TestParseCheckoutSession(t *testing.T) {
	ev := parse(t, "checkout.session.completed", stripetest.CheckoutSession("cus_1", "sub_1", map[string]string{"tenant_id": "7"}))

	assert.Equal(t, "cus_1", ev.CustomerID)
	assert.Equal(t, "sub_1", ev.SubscriptionID)
	require.NotNil(t, ev.CheckoutSession)
	assert.Equal(t, "subscription", ev.CheckoutSession.Mode)
	assert.Equal(t, "7", ev.CheckoutSession.Metadata[paymentprovider.MetadataTenantID])
}

func TestParseSubscription(t *testing.T) {
	periodEnd := created.Add(30 * 24 * time.Hour)
	ev := parse(t, "customer.subscription.updated", stripetest.Subscription(stripetest.SubscriptionParams{
		ID:                 "sub_1",
		CustomerID:         "cus_1",
		Status:             "past_due",
		PriceID:            "price_standard",
		Amount:             2900,
		PeriodEnd:          periodEnd,
		CancelAtPeriodEnd:  true,
		CancellationReason: "cancellation_requested",
	}))

	assert.Equal(t, "cus_1", ev.CustomerID)
	sd := ev.Subscription
	require.NotNil(t, sd)
	assert.Equal(t, paymentprovider.SubscriptionStatusPastDue, sd.Status)
	assert.Equal(t, "price_standard", sd.PriceID)
	assert.EqualValues(t, 2900, sd.PriceAmount)
	assert.Equal(t, "usd", sd.Currency)
	require.NotNil(t, sd.CurrentPeriodEnd)
	assert.Equal(t, periodEnd.Unix(), sd.CurrentPeriodEnd.Unix())
	assert.True(t, sd.CancelAtPeriodEnd)
	assert.Equal(t, paymentprovider.CancellationReasonRequested, sd.CancellationReason)
	assert.NotNil(t, sd.Metadata)
}

func TestParseInvoice(t *testing.T) {
	ev := parse(t, "invoice.payment_failed", stripetest.Invoice(stripetest.InvoiceParams{
		ID:             "in_1",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		ChargeID:       "ch_1",
		BillingReason:  "subscription_cycle",
		Amount:         2900,
	}))

	inv := ev.Invoice
	require.NotNil(t, inv)
	assert.Equal(t, "sub_1", inv.SubscriptionID, "subscription must be taken from parent")
	assert.Equal(t, "sub_1", ev.SubscriptionID)
	assert.Equal(t, "ch_1", inv.ChargeID)
	assert.EqualValues(t, 2900, inv.AmountDue)
	assert.Zero(t, inv.AmountPaid)
	assert.Equal(t, "https://invoice.stripe.com/i/in_1", inv.HostedInvoiceURL)
}

func TestParseExpandedIDs(t *testing.T) {
	o := stripetest.Charge("ch_1", "", "in_1", 500)
	o["customer"] = map[string]interface{}{"id": "cus_1", "object": "customer"}

	ev := parse(t, "charge.refunded", o)
	assert.Equal(t, "cus_1", ev.CustomerID)
	require.NotNil(t, ev.Charge)
	assert.Equal(t, "in_1", ev.Charge.InvoiceID)
	assert.EqualValues(t, 500, ev.Charge.AmountRefunded)
}

func TestParseDisputeHasNoCustomer(t *testing.T) {
	ev := parse(t, "charge.dispute.created", stripetest.Dispute("dp_1", "ch_1", 2900))

	assert.Empty(t, ev.CustomerID)
	require.NotNil(t, ev.Dispute)
	assert.Equal(t, "ch_1", ev.Dispute.ChargeID)
	assert.Equal(t, "fraudulent", ev.Dispute.Reason)
}

func TestParseCustomerAndPaymentMethod(t *testing.T) {
	ev := parse(t, "customer.updated", stripetest.Customer("cus_1", "Acme", "billing@acme.example.com", "DK"))
	require.NotNil(t, ev.Customer)
	assert.Equal(t, "Acme", ev.Customer.BillingInfo.Name)
	require.NotNil(t, ev.Customer.BillingInfo.Address)
	assert.Equal(t, "DK", ev.Customer.BillingInfo.Address.Country)

	ev = parse(t, "payment_method.attached", stripetest.PaymentMethod("pm_1", "cus_1", "visa", "4242"))
	assert.Equal(t, "cus_1", ev.CustomerID)
	require.NotNil(t, ev.PaymentMethod)
	assert.Equal(t, "visa", ev.PaymentMethod.Method.Brand)
	assert.Equal(t, "4242", ev.PaymentMethod.Method.Last4)
	assert.Equal(t, 2030, ev.PaymentMethod.Method.ExpYear)
}

func TestParseUnhandledEvent(t *testing.T) {
	ev := parse(t, "customer.tax_id.created", stripetest.Object{"id": "txi_1", "broken": []int{1}})
	assert.Empty(t, ev.CustomerID)
	assert.Nil(t, ev.Subscription)
}

func TestParseInvalidEvent(t *testing.T) {
	_, err := EventParser{}.ParseEvent([]byte("{"))
	assert.Error(t, err)

	_, err = EventParser{}.ParseEvent([]byte(`{"type":"invoice.paid"}`))
	assert.Error(t, err)

	_, err = EventParser{}.ParseEvent(stripetest.Event("evt_1", "invoice.paid", created, stripetest.Object{"amount_due": "many"}))
	assert.Error(t, err)
}
