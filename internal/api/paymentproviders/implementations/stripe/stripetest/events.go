// Package stripetest builds webhook payloads in the Stripe format.
package stripetest

import (
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

type Object map[string]interface{}

func Event(id, eventType string, created time.Time, object Object) []byte {
	data, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     created.Unix(),
		"api_version": "2025-03-31.basil",
		"data": map[string]interface{}{
			"object": object,
		},
	})
	if err != nil {
		panic(err)
	}
	return data
}

// Sign returns a Stripe-Signature header value for the payload.
func Sign(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  secret,
	})
	return signed.Header
}

func CheckoutSession(customerID, subscriptionID string, metadata map[string]string) Object {
	return Object{
		"id":           "cs_" + subscriptionID,
		"object":       "checkout.session",
		"mode":         "subscription",
		"customer":     customerID,
		"subscription": subscriptionID,
		"metadata":     metadata,
	}
}

type SubscriptionParams struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	Amount             int64
	PeriodEnd          time.Time
	CancelAtPeriodEnd  bool
	CancellationReason string
	Metadata           map[string]string
}

func Subscription(p SubscriptionParams) Object {
	o := Object{
		"id":                   p.ID,
		"object":               "subscription",
		"customer":             p.CustomerID,
		"status":               p.Status,
		"cancel_at_period_end": p.CancelAtPeriodEnd,
		"metadata":             p.Metadata,
		"items": map[string]interface{}{
			"data": []interface{}{
				map[string]interface{}{
					"id": "si_" + p.ID,
					"price": map[string]interface{}{
						"id":          p.PriceID,
						"unit_amount": p.Amount,
						"currency":    "usd",
					},
					"current_period_end": p.PeriodEnd.Unix(),
				},
			},
		},
	}
	if p.CancellationReason != "" {
		o["cancellation_details"] = map[string]interface{}{
			"reason": p.CancellationReason,
		}
	}
	return o
}

type InvoiceParams struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	ChargeID       string
	BillingReason  string
	Amount         int64
	Paid           bool
}

func Invoice(p InvoiceParams) Object {
	o := Object{
		"id":                 p.ID,
		"object":             "invoice",
		"customer":           p.CustomerID,
		"charge":             p.ChargeID,
		"billing_reason":     p.BillingReason,
		"amount_due":         p.Amount,
		"currency":           "usd",
		"hosted_invoice_url": "https://invoice.stripe.com/i/" + p.ID,
		"attempt_count":      1,
		"parent": map[string]interface{}{
			"subscription_details": map[string]interface{}{
				"subscription": p.SubscriptionID,
			},
		},
	}
	if p.Paid {
		o["amount_paid"] = p.Amount
	}
	return o
}

func Dispute(id, chargeID string, amount int64) Object {
	return Object{
		"id":     id,
		"object": "dispute",
		"charge": chargeID,
		"amount": amount,
		"reason": "fraudulent",
	}
}

func Charge(id, customerID, invoiceID string, refunded int64) Object {
	return Object{
		"id":              id,
		"object":          "charge",
		"customer":        customerID,
		"invoice":         invoiceID,
		"amount_refunded": refunded,
		"currency":        "usd",
	}
}

func Customer(id, name, email, country string) Object {
	return Object{
		"id":     id,
		"object": "customer",
		"name":   name,
		"email":  email,
		"address": map[string]interface{}{
			"line1":   "Main street 1",
			"country": country,
		},
	}
}

func PaymentMethod(id, customerID, brand, last4 string) Object {
	return Object{
		"id":       id,
		"object":   "payment_method",
		"customer": customerID,
		"type":     "card",
		"card": map[string]interface{}{
			"brand":     brand,
			"last4":     last4,
			"exp_month": 12,
			"exp_year":  2030,
		},
	}
}
