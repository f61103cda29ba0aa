package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations/stripe/stripetest"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	uuid "github.com/satori/go.uuid"
	"github.com/spf13/cobra"
)

type emulateWebhookOptions struct {
	url            string
	eventType      string
	customerID     string
	subscriptionID string
	tenantID       uint
	plan           string
	priceID        string
	amount         int64
}

func newEmulateWebhookCmd() *cobra.Command {
	var o emulateWebhookOptions
	cmd := &cobra.Command{
		Use:   "emulate-webhook",
		Short: "Send a signed stripe webhook to a running account api",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.NewEnvConfig(logutil.NewStderrLog("accountctl"))
			secret := cfg.GetString("STRIPE_WEBHOOK_SECRET")
			if secret == "" {
				return errors.New("STRIPE_WEBHOOK_SECRET must be set")
			}

			object, err := o.buildObject()
			if err != nil {
				return err
			}

			id := "evt_emulated_" + uuid.NewV4().String()
			payload := stripetest.Event(id, o.eventType, time.Now(), object)
			if err = postWebhook(o.url, payload, stripetest.Sign(payload, secret)); err != nil {
				return errors.Wrapf(err, "failed to send %s", o.eventType)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent %s %s\n", o.eventType, id)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.url, "url", "http://localhost:3000/api/account/subscriptions/stripe-webhook", "webhook endpoint")
	f.StringVar(&o.eventType, "type", "checkout.session.completed", "stripe event type")
	f.StringVar(&o.customerID, "customer", "", "stripe customer id")
	f.StringVar(&o.subscriptionID, "subscription", "sub_emulated", "stripe subscription id")
	f.UintVar(&o.tenantID, "tenant", 0, "tenant id put into metadata")
	f.StringVar(&o.plan, "plan", "Standard", "plan put into metadata")
	f.StringVar(&o.priceID, "price", "", "price id of the subscription item")
	f.Int64Var(&o.amount, "amount", 2900, "amount in cents")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

func (o emulateWebhookOptions) metadata() map[string]string {
	md := map[string]string{"plan": o.plan}
	if o.tenantID != 0 {
		md["tenant_id"] = strconv.FormatUint(uint64(o.tenantID), 10)
	}
	return md
}

func (o emulateWebhookOptions) buildObject() (stripetest.Object, error) {
	invoice := stripetest.InvoiceParams{
		ID:             "in_emulated_" + strconv.FormatInt(time.Now().Unix(), 10),
		CustomerID:     o.customerID,
		SubscriptionID: o.subscriptionID,
		BillingReason:  "subscription_cycle",
		Amount:         o.amount,
	}

	switch o.eventType {
	case "checkout.session.completed":
		return stripetest.CheckoutSession(o.customerID, o.subscriptionID, o.metadata()), nil
	case "customer.subscription.updated", "customer.subscription.deleted":
		status := "active"
		if o.eventType == "customer.subscription.deleted" {
			status = "canceled"
		}
		return stripetest.Subscription(stripetest.SubscriptionParams{
			ID:         o.subscriptionID,
			CustomerID: o.customerID,
			Status:     status,
			PriceID:    o.priceID,
			Amount:     o.amount,
			PeriodEnd:  time.Now().AddDate(0, 1, 0),
			Metadata:   o.metadata(),
		}), nil
	case "invoice.payment_failed":
		return stripetest.Invoice(invoice), nil
	case "invoice.paid":
		invoice.Paid = true
		return stripetest.Invoice(invoice), nil
	}

	return nil, fmt.Errorf("unsupported event type %s", o.eventType)
}

func postWebhook(url string, payload []byte, signature string) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "can't make request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)

	client := http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := ioutil.ReadAll(resp.Body)
		return fmt.Errorf("got status %d: %s", resp.StatusCode, body)
	}
	return nil
}
