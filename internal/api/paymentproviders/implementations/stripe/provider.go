package stripe

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/pkg/api/models"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/invoice"
	"github.com/stripe/stripe-go/v82/subscription"
)

const ProviderName = "stripe"

const metadataTaxID = "tax_id"

var _ paymentprovider.Provider = &Provider{}

type Provider struct {
	log      logutil.Log
	currency string
}

func NewProvider(log logutil.Log, apiKey, currency string) *Provider {
	stripe.Key = apiKey
	return &Provider{
		log:      log,
		currency: currency,
	}
}

func (p Provider) Name() string {
	return ProviderName
}

// wrapErr marks retryable stripe errors with paymentprovider.ErrTransient.
func wrapErr(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if stripeErr, ok := err.(*stripe.Error); ok {
		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests || stripeErr.HTTPStatusCode >= 500 {
			return errors.Wrapf(paymentprovider.ErrTransient, "%s: %s", msg, stripeErr.Msg)
		}
		return errors.Wrapf(err, "%s: %s", msg, stripeErr.Code)
	}

	return errors.Wrap(err, msg)
}

func (p Provider) CreateCustomer(ctx context.Context, payload paymentprovider.CreateCustomerPayload) (string, error) {
	params := &stripe.CustomerParams{
		Name:  stripe.String(payload.Name),
		Email: stripe.String(payload.Email),
	}
	params.Context = ctx
	params.AddMetadata(paymentprovider.MetadataTenantID, strconv.Itoa(int(payload.TenantID)))
	params.SetIdempotencyKey(fmt.Sprintf("customer-for-tenant-%d", payload.TenantID))

	c, err := customer.New(params)
	if err != nil {
		return "", wrapErr(err, "can't create stripe customer for tenant %d", payload.TenantID)
	}

	p.log.Infof("Created stripe customer %s for tenant %d", c.ID, payload.TenantID)
	return c.ID, nil
}

func (p Provider) UpdateBillingInfo(ctx context.Context, customerID string, info models.BillingInfo) error {
	params := &stripe.CustomerParams{
		Name:  stripe.String(info.Name),
		Email: stripe.String(info.Email),
	}
	params.Context = ctx
	if info.Address != nil {
		params.Address = &stripe.AddressParams{
			Line1:      stripe.String(info.Address.Line1),
			Line2:      stripe.String(info.Address.Line2),
			PostalCode: stripe.String(info.Address.PostalCode),
			City:       stripe.String(info.Address.City),
			State:      stripe.String(info.Address.State),
			Country:    stripe.String(info.Address.Country),
		}
	}
	params.AddMetadata(metadataTaxID, info.TaxID)

	if _, err := customer.Update(customerID, params); err != nil {
		return wrapErr(err, "can't update billing info of customer %s", customerID)
	}

	return nil
}

func (p Provider) CreateCheckoutSession(ctx context.Context, payload paymentprovider.CheckoutPayload) (*paymentprovider.Session, error) {
	tenantID := strconv.Itoa(int(payload.TenantID))
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(payload.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(payload.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(payload.SuccessURL),
		CancelURL:         stripe.String(payload.CancelURL),
		ClientReferenceID: stripe.String(tenantID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				paymentprovider.MetadataTenantID: tenantID,
				paymentprovider.MetadataPlan:     string(payload.Plan),
			},
		},
	}
	if !payload.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(payload.ExpiresAt.Unix())
	}
	params.Context = ctx
	params.AddMetadata(paymentprovider.MetadataTenantID, tenantID)
	params.AddMetadata(paymentprovider.MetadataPlan, string(payload.Plan))

	s, err := session.New(params)
	if err != nil {
		return nil, wrapErr(err, "can't create checkout session for customer %s", payload.CustomerID)
	}

	return &paymentprovider.Session{ID: s.ID, URL: s.URL}, nil
}

func (p Provider) CreateSetupSession(ctx context.Context, customerID, returnURL string) (*paymentprovider.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(customerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSetup)),
		Currency:   stripe.String(p.currency),
		SuccessURL: stripe.String(returnURL),
		CancelURL:  stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return nil, wrapErr(err, "can't create setup session for customer %s", customerID)
	}

	return &paymentprovider.Session{ID: s.ID, URL: s.URL}, nil
}

func (p Provider) getItemID(ctx context.Context, subscriptionID string) (string, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return "", wrapErr(err, "can't get subscription %s", subscriptionID)
	}

	if sub.Items == nil || len(sub.Items.Data) != 1 {
		return "", fmt.Errorf("subscription %s must have exactly one item", subscriptionID)
	}

	return sub.Items.Data[0].ID, nil
}

func (p Provider) changePrice(ctx context.Context, subscriptionID, priceID, prorationBehavior string,
	metadata map[string]string) error {

	itemID, err := p.getItemID(ctx, subscriptionID)
	if err != nil {
		return err
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(itemID),
				Price: stripe.String(priceID),
			},
		},
		ProrationBehavior: stripe.String(prorationBehavior),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	if _, err = subscription.Update(subscriptionID, params); err != nil {
		return wrapErr(err, "can't change price of subscription %s to %s", subscriptionID, priceID)
	}

	return nil
}

func (p Provider) UpgradeSubscription(ctx context.Context, subscriptionID string, change paymentprovider.PlanChange) error {
	err := p.changePrice(ctx, subscriptionID, change.PriceID, "always_invoice", map[string]string{
		paymentprovider.MetadataPlan:           string(change.Plan),
		paymentprovider.MetadataScheduledPlan:  "",
		paymentprovider.MetadataScheduledAfter: "",
	})
	if err != nil {
		return err
	}

	p.log.Infof("Upgraded subscription %s from %s to %s", subscriptionID, change.CurrentPlan, change.Plan)
	return nil
}

func (p Provider) PreviewUpgrade(ctx context.Context, customerID, subscriptionID string,
	change paymentprovider.PlanChange) (*paymentprovider.Proration, error) {

	itemID, err := p.getItemID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	params := &stripe.InvoiceCreatePreviewParams{
		Customer:     stripe.String(customerID),
		Subscription: stripe.String(subscriptionID),
		SubscriptionDetails: &stripe.InvoiceCreatePreviewSubscriptionDetailsParams{
			Items: []*stripe.InvoiceCreatePreviewSubscriptionDetailsItemParams{
				{
					ID:    stripe.String(itemID),
					Price: stripe.String(change.PriceID),
				},
			},
			ProrationBehavior: stripe.String("always_invoice"),
		},
	}
	params.Context = ctx

	inv, err := invoice.CreatePreview(params)
	if err != nil {
		return nil, wrapErr(err, "can't preview upgrade of subscription %s", subscriptionID)
	}

	return &paymentprovider.Proration{
		Amount:   inv.AmountDue,
		Currency: string(inv.Currency),
	}, nil
}

func (p Provider) ScheduleDowngrade(ctx context.Context, subscriptionID string, change paymentprovider.PlanChange) error {
	err := p.changePrice(ctx, subscriptionID, change.PriceID, "none", map[string]string{
		paymentprovider.MetadataPlan:           string(change.CurrentPlan),
		paymentprovider.MetadataScheduledPlan:  string(change.Plan),
		paymentprovider.MetadataScheduledAfter: formatUnix(change.EffectiveAfter),
	})
	if err != nil {
		return err
	}

	p.log.Infof("Scheduled downgrade of subscription %s from %s to %s", subscriptionID, change.CurrentPlan, change.Plan)
	return nil
}

func (p Provider) CancelScheduledDowngrade(ctx context.Context, subscriptionID string, current paymentprovider.PlanChange) error {
	return p.changePrice(ctx, subscriptionID, current.PriceID, "none", map[string]string{
		paymentprovider.MetadataPlan:           string(current.Plan),
		paymentprovider.MetadataScheduledPlan:  "",
		paymentprovider.MetadataScheduledAfter: "",
	})
}

var stripeFeedbacks = map[string]bool{
	"customer_service": true,
	"low_quality":      true,
	"missing_features": true,
	"other":            true,
	"switched_service": true,
	"too_complex":      true,
	"too_expensive":    true,
	"unused":           true,
}

func (p Provider) CancelAtPeriodEnd(ctx context.Context, subscriptionID string, reason, feedback string) error {
	details := &stripe.SubscriptionCancellationDetailsParams{
		Comment: stripe.String(feedback),
	}
	if stripeFeedbacks[reason] {
		details.Feedback = stripe.String(reason)
	}

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd:   stripe.Bool(true),
		CancellationDetails: details,
	}
	params.Context = ctx

	if _, err := subscription.Update(subscriptionID, params); err != nil {
		return wrapErr(err, "can't cancel subscription %s", subscriptionID)
	}

	return nil
}

func (p Provider) Reactivate(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	params.Context = ctx

	if _, err := subscription.Update(subscriptionID, params); err != nil {
		return wrapErr(err, "can't reactivate subscription %s", subscriptionID)
	}

	return nil
}

func (p Provider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{
		Prorate: stripe.Bool(true),
		CancellationDetails: &stripe.SubscriptionCancelCancellationDetailsParams{
			Comment: stripe.String("duplicate subscription"),
		},
	}
	params.Context = ctx

	if _, err := subscription.Cancel(subscriptionID, params); err != nil {
		return wrapErr(err, "can't cancel subscription %s", subscriptionID)
	}

	p.log.Infof("Cancelled subscription %s", subscriptionID)
	return nil
}
