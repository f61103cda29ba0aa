package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

type EmailLoginPurpose string

const (
	EmailLoginPurposeSignup EmailLoginPurpose = "signup"
	EmailLoginPurposeLogin  EmailLoginPurpose = "login"
)

const (
	EmailLoginValidFor   = 5 * time.Minute
	EmailLoginMaxRetries = 3
	EmailLoginMaxResends = 1
)

// EmailLogin is a one time code sent by email to sign up or log in.
type EmailLogin struct {
	gorm.Model

	PublicID    string `gorm:"unique_index;not null"`
	Email       string `gorm:"index;not null"`
	Purpose     EmailLoginPurpose
	CodeHash    string
	RetryCount  int
	ResendCount int
	ExpiresAt   time.Time
	Completed   bool
	UserID      *uint // set for login
}

func (l EmailLogin) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

func (l EmailLogin) HasRetriesLeft() bool {
	return l.RetryCount < EmailLoginMaxRetries
}
