package returntypes

import (
	"time"

	"github.com/platformplatform/account-api/pkg/api/models"
)

type EmailLoginStarted struct {
	EmailLoginID    string `json:"emailLoginId"`
	ValidForSeconds int    `json:"validForSeconds"`
}

type UserInfo struct {
	ID             uint            `json:"id"`
	TenantID       uint            `json:"tenantId"`
	Email          string          `json:"email"`
	FirstName      string          `json:"firstName"`
	LastName       string          `json:"lastName"`
	Title          string          `json:"title"`
	Role           models.UserRole `json:"role"`
	EmailConfirmed bool            `json:"emailConfirmed"`
	CreatedAt      time.Time       `json:"createdAt"`
	LastSeenAt     *time.Time      `json:"lastSeenAt,omitempty"`
}

func NewUserInfo(u *models.User) UserInfo {
	return UserInfo{
		ID:             u.ID,
		TenantID:       u.TenantID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Title:          u.Title,
		Role:           u.Role,
		EmailConfirmed: u.EmailConfirmed,
		CreatedAt:      u.CreatedAt,
		LastSeenAt:     u.LastSeenAt,
	}
}

type UserList struct {
	Users []UserInfo `json:"users"`
}

type TenantInfo struct {
	ID               uint                    `json:"id"`
	Name             string                  `json:"name"`
	State            models.TenantState      `json:"state"`
	SuspensionReason models.SuspensionReason `json:"suspensionReason,omitempty"`
	SuspendedAt      *time.Time              `json:"suspendedAt,omitempty"`
	CreatedAt        time.Time               `json:"createdAt"`
	Version          int                     `json:"version"`
}

func NewTenantInfo(t *models.Tenant) TenantInfo {
	return TenantInfo{
		ID:               t.ID,
		Name:             t.Name,
		State:            t.State,
		SuspensionReason: t.SuspensionReason,
		SuspendedAt:      t.SuspendedAt,
		CreatedAt:        t.CreatedAt,
		Version:          t.Version,
	}
}

type SubscriptionInfo struct {
	Plan                  models.Plan           `json:"plan"`
	ScheduledPlan         models.Plan           `json:"scheduledPlan,omitempty"`
	HasStripeSubscription bool                  `json:"hasStripeSubscription"`
	PriceAmount           int64                 `json:"priceAmount"`
	PriceCurrency         string                `json:"priceCurrency,omitempty"`
	CurrentPeriodEnd      *time.Time            `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd     bool                  `json:"cancelAtPeriodEnd"`
	CancellationReason    string                `json:"cancellationReason,omitempty"`
	FirstPaymentFailedAt  *time.Time            `json:"firstPaymentFailedAt,omitempty"`
	BillingInfo           *models.BillingInfo   `json:"billingInfo,omitempty"`
	PaymentMethod         *models.PaymentMethod `json:"paymentMethod,omitempty"`
	TenantState           models.TenantState    `json:"tenantState"`
	SuspensionReason      string                `json:"suspensionReason,omitempty"`
	Version               int                   `json:"version"`
}

func NewSubscriptionInfo(s *models.Subscription, t *models.Tenant) *SubscriptionInfo {
	return &SubscriptionInfo{
		Plan:                  s.Plan,
		ScheduledPlan:         s.ScheduledPlan,
		HasStripeSubscription: s.HasActiveStripeSubscription(),
		PriceAmount:           s.CurrentPriceAmount,
		PriceCurrency:         s.CurrentPriceCurrency,
		CurrentPeriodEnd:      s.CurrentPeriodEnd,
		CancelAtPeriodEnd:     s.CancelAtPeriodEnd,
		CancellationReason:    s.CancellationReason,
		FirstPaymentFailedAt:  s.FirstPaymentFailedAt,
		BillingInfo:           s.BillingInfo,
		PaymentMethod:         s.PaymentMethod,
		TenantState:           t.State,
		SuspensionReason:      string(t.SuspensionReason),
		Version:               s.Version,
	}
}

type CheckoutSession struct {
	CheckoutURL string `json:"checkoutUrl"`
}

type SetupSession struct {
	SetupURL string `json:"setupUrl"`
}

type UpgradePreview struct {
	Plan     models.Plan `json:"plan"`
	Amount   int64       `json:"amount"`
	Currency string      `json:"currency"`
}

type Transaction struct {
	ID            uint                            `json:"id"`
	Amount        int64                           `json:"amount"`
	Currency      string                          `json:"currency"`
	Status        models.PaymentTransactionStatus `json:"status"`
	InvoiceURL    string                          `json:"invoiceUrl,omitempty"`
	FailureReason string                          `json:"failureReason,omitempty"`
	OccurredAt    time.Time                       `json:"occurredAt"`
}

type TransactionList struct {
	Transactions []Transaction `json:"transactions"`
}
