package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

type Plan string

const (
	PlanBasis    Plan = "Basis"
	PlanStandard Plan = "Standard"
	PlanPremium  Plan = "Premium"
)

var planRanks = map[Plan]int{
	PlanBasis:    0,
	PlanStandard: 1,
	PlanPremium:  2,
}

func (p Plan) IsValid() bool {
	_, ok := planRanks[p]
	return ok
}

func (p Plan) IsPaid() bool {
	return p.IsValid() && p != PlanBasis
}

func (p Plan) IsHigherThan(other Plan) bool {
	return planRanks[p] > planRanks[other]
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
}

// BillingInfo is a snapshot of customer billing details stored at the payment provider.
type BillingInfo struct {
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email,omitempty"`
	Address *Address `json:"address,omitempty"`
	TaxID   string   `json:"taxId,omitempty"`
}

func (b BillingInfo) Value() (driver.Value, error) {
	return jsonValue(b)
}

func (b *BillingInfo) Scan(src interface{}) error {
	return jsonScan(src, b)
}

type PaymentMethod struct {
	Type     string `json:"type"`
	Brand    string `json:"brand,omitempty"`
	Last4    string `json:"last4,omitempty"`
	ExpMonth int    `json:"expMonth,omitempty"`
	ExpYear  int    `json:"expYear,omitempty"`
}

func (m PaymentMethod) Value() (driver.Value, error) {
	return jsonValue(m)
}

func (m *PaymentMethod) Scan(src interface{}) error {
	return jsonScan(src, m)
}

func jsonValue(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func jsonScan(src interface{}, dest interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("can't scan %T into json column", src)
	}

	if len(data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, dest), "invalid json column")
}

// Subscription is the only subscription of a tenant: free Basis plan or a paid plan
// linked to a provider subscription.
type Subscription struct {
	gorm.Model

	TenantID      uint `gorm:"unique_index;not null"`
	Plan          Plan `gorm:"not null"`
	ScheduledPlan Plan

	StripeCustomerID     string `gorm:"index"`
	StripeSubscriptionID string
	StripeStatus         string

	CurrentPriceAmount   int64
	CurrentPriceCurrency string
	CurrentPeriodEnd     *time.Time
	CancelAtPeriodEnd    bool
	CancellationReason   string
	CancellationFeedback string

	FirstPaymentFailedAt *time.Time
	LastReminderSentAt   *time.Time
	DisputedAt           *time.Time
	RefundedAt           *time.Time

	BillingInfo   *BillingInfo   `gorm:"type:text"`
	PaymentMethod *PaymentMethod `gorm:"type:text"`

	Version int
}

func (s Subscription) GoString() string {
	return fmt.Sprintf("{ID: %d, TenantID: %d, Plan: %s, Customer: %s, Subscription: %s}",
		s.ID, s.TenantID, s.Plan, s.StripeCustomerID, s.StripeSubscriptionID)
}

func (s Subscription) HasActiveStripeSubscription() bool {
	return s.StripeSubscriptionID != ""
}

func (s *Subscription) ClearPaymentFailure() {
	s.FirstPaymentFailedAt = nil
	s.LastReminderSentAt = nil
}

// RecordPaymentFailure keeps the earliest failure time.
func (s *Subscription) RecordPaymentFailure(at time.Time) {
	if s.FirstPaymentFailedAt == nil || at.Before(*s.FirstPaymentFailedAt) {
		s.FirstPaymentFailedAt = &at
	}
}

func (s Subscription) IsPaymentFailedLongerThan(d time.Duration, now time.Time) bool {
	return s.FirstPaymentFailedAt != nil && now.Sub(*s.FirstPaymentFailedAt) >= d
}

// ResetToBasis drops the provider subscription, the customer stays.
func (s *Subscription) ResetToBasis() {
	s.Plan = PlanBasis
	s.ScheduledPlan = ""
	s.StripeSubscriptionID = ""
	s.StripeStatus = ""
	s.CurrentPriceAmount = 0
	s.CurrentPeriodEnd = nil
	s.CancelAtPeriodEnd = false
	s.ClearPaymentFailure()
}
