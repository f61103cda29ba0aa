package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

type PaymentTransactionStatus string

const (
	PaymentTransactionStatusSucceeded PaymentTransactionStatus = "Succeeded"
	PaymentTransactionStatusFailed    PaymentTransactionStatus = "Failed"
	PaymentTransactionStatusRefunded  PaymentTransactionStatus = "Refunded"
)

type PaymentTransaction struct {
	gorm.Model

	SubscriptionID  uint   `gorm:"index;not null"`
	StripeInvoiceID string `gorm:"index"`
	StripeChargeID  string `gorm:"index"`

	Amount        int64
	Currency      string
	Status        PaymentTransactionStatus
	InvoiceURL    string
	FailureReason string
	OccurredAt    time.Time
}
