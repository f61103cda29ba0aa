package paymentprovider

import (
	"time"

	"github.com/platformplatform/account-api/pkg/api/models"
)

type CreateCustomerPayload struct {
	TenantID uint
	Name     string
	Email    string
}

type CheckoutPayload struct {
	CustomerID string
	TenantID   uint
	Plan       models.Plan
	PriceID    string
	SuccessURL string
	CancelURL  string
	ExpiresAt  time.Time
}

type Session struct {
	ID  string
	URL string
}

// PlanChange is a target plan with its provider price.
type PlanChange struct {
	CurrentPlan models.Plan
	Plan        models.Plan
	PriceID     string

	// EffectiveAfter is the current period end for scheduled changes.
	EffectiveAfter *time.Time
}

type Proration struct {
	Amount   int64
	Currency string
}

// Event metadata keys set on provider subscriptions.
const (
	MetadataTenantID       = "tenant_id"
	MetadataPlan           = "plan"
	MetadataScheduledPlan  = "scheduled_plan"
	MetadataScheduledAfter = "scheduled_after"
)

type EventType string

const (
	EventCheckoutSessionCompleted EventType = "checkout.session.completed"
	EventSubscriptionCreated      EventType = "customer.subscription.created"
	EventSubscriptionUpdated      EventType = "customer.subscription.updated"
	EventSubscriptionDeleted      EventType = "customer.subscription.deleted"
	EventInvoicePaid              EventType = "invoice.paid"
	EventInvoicePaymentSucceeded  EventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     EventType = "invoice.payment_failed"
	EventChargeDisputeCreated     EventType = "charge.dispute.created"
	EventChargeRefunded           EventType = "charge.refunded"
	EventCustomerUpdated          EventType = "customer.updated"
	EventPaymentMethodAttached    EventType = "payment_method.attached"
)

var handledEventTypes = map[EventType]bool{
	EventCheckoutSessionCompleted: true,
	EventSubscriptionCreated:      true,
	EventSubscriptionUpdated:      true,
	EventSubscriptionDeleted:      true,
	EventInvoicePaid:              true,
	EventInvoicePaymentSucceeded:  true,
	EventInvoicePaymentFailed:     true,
	EventChargeDisputeCreated:     true,
	EventChargeRefunded:           true,
	EventCustomerUpdated:          true,
	EventPaymentMethodAttached:    true,
}

func (t EventType) IsHandled() bool {
	return handledEventTypes[t]
}

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid     SubscriptionStatus = "unpaid"
)

type CancellationReason string

const (
	CancellationReasonRequested      CancellationReason = "cancellation_requested"
	CancellationReasonPaymentFailed  CancellationReason = "payment_failed"
	CancellationReasonPaymentDispute CancellationReason = "payment_disputed"
)

func (r CancellationReason) IsInvoluntary() bool {
	return r == CancellationReasonPaymentFailed || r == CancellationReasonPaymentDispute
}

// Event is a verified provider notification with the object it's about.
type Event struct {
	ID             string
	Type           EventType
	CreatedAt      time.Time
	CustomerID     string
	SubscriptionID string

	CheckoutSession *CheckoutSessionData
	Subscription    *SubscriptionData
	Invoice         *InvoiceData
	Charge          *ChargeData
	Dispute         *DisputeData
	Customer        *CustomerData
	PaymentMethod   *PaymentMethodData
}

type CheckoutSessionData struct {
	ID             string
	Mode           string
	SubscriptionID string
	Metadata       map[string]string
}

type SubscriptionData struct {
	ID                 string
	Status             SubscriptionStatus
	PriceID            string
	PriceAmount        int64
	Currency           string
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CancellationReason CancellationReason
	Feedback           string
	Metadata           map[string]string
}

type InvoiceData struct {
	ID               string
	SubscriptionID   string
	ChargeID         string
	BillingReason    string
	AmountDue        int64
	AmountPaid       int64
	Currency         string
	HostedInvoiceURL string
	AttemptCount     int
	FailureMessage   string
}

type ChargeData struct {
	ID             string
	InvoiceID      string
	AmountRefunded int64
	Currency       string
}

type DisputeData struct {
	ID       string
	ChargeID string
	Amount   int64
	Reason   string
}

type CustomerData struct {
	ID          string
	BillingInfo models.BillingInfo
}

type PaymentMethodData struct {
	ID     string
	Method models.PaymentMethod
}
