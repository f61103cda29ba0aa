package paymentprovider

import (
	"context"

	"github.com/platformplatform/account-api/pkg/api/models"
)

type Provider interface {
	Name() string

	CreateCustomer(ctx context.Context, payload CreateCustomerPayload) (string, error)
	UpdateBillingInfo(ctx context.Context, customerID string, info models.BillingInfo) error

	CreateCheckoutSession(ctx context.Context, payload CheckoutPayload) (*Session, error)
	CreateSetupSession(ctx context.Context, customerID, returnURL string) (*Session, error)

	// UpgradeSubscription changes the plan immediately and invoices proration right away.
	UpgradeSubscription(ctx context.Context, subscriptionID string, change PlanChange) error
	PreviewUpgrade(ctx context.Context, customerID, subscriptionID string, change PlanChange) (*Proration, error)

	// ScheduleDowngrade makes the next renewal charge for the lower plan without proration.
	ScheduleDowngrade(ctx context.Context, subscriptionID string, change PlanChange) error
	CancelScheduledDowngrade(ctx context.Context, subscriptionID string, current PlanChange) error

	CancelAtPeriodEnd(ctx context.Context, subscriptionID string, reason, feedback string) error
	Reactivate(ctx context.Context, subscriptionID string) error

	// CancelSubscription ends the subscription immediately with prorated credit.
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// EventVerifier checks webhook signatures.
type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (*Event, error)
}

// EventParser decodes a stored webhook payload.
type EventParser interface {
	ParseEvent(payload []byte) (*Event, error)
}
