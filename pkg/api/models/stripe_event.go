package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

type StripeEventStatus string

const (
	StripeEventStatusPending   StripeEventStatus = "Pending"
	StripeEventStatusProcessed StripeEventStatus = "Processed"
	StripeEventStatusIgnored   StripeEventStatus = "Ignored"
)

// StripeEvent is a log of received webhooks, StripeEventID is unique to process every event once.
type StripeEvent struct {
	gorm.Model

	StripeEventID        string            `gorm:"unique_index;not null"`
	Type                 string            `gorm:"not null"`
	Status               StripeEventStatus `gorm:"index;not null"`
	StripeCustomerID     string            `gorm:"index"`
	StripeSubscriptionID string
	TenantID             *uint
	StripeCreatedAt      time.Time
	Payload              string `gorm:"type:text"`
	ProcessedAt          *time.Time
	Error                string
}
