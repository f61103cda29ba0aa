package models

import (
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
)

type TenantState string

const (
	TenantStateActive    TenantState = "Active"
	TenantStatePastDue   TenantState = "PastDue"
	TenantStateSuspended TenantState = "Suspended"
)

type SuspensionReason string

const (
	SuspensionReasonNone              SuspensionReason = ""
	SuspensionReasonPaymentFailed     SuspensionReason = "PaymentFailed"
	SuspensionReasonPaymentDisputed   SuspensionReason = "PaymentDisputed"
	SuspensionReasonCustomerCancelled SuspensionReason = "CustomerCancelled"
)

type Tenant struct {
	gorm.Model

	Name             string
	State            TenantState `gorm:"not null;default:'Active'"`
	SuspensionReason SuspensionReason
	SuspendedAt      *time.Time
	Version          int
}

func (t Tenant) GoString() string {
	return fmt.Sprintf("{ID: %d, Name: %s, State: %s, Reason: %s}", t.ID, t.Name, t.State, t.SuspensionReason)
}

func (t Tenant) IsSuspended() bool {
	return t.State == TenantStateSuspended
}

func (t *Tenant) Suspend(reason SuspensionReason, at time.Time) {
	if t.State == TenantStateSuspended && t.SuspensionReason == reason {
		return // keep original suspension time
	}

	t.State = TenantStateSuspended
	t.SuspensionReason = reason
	t.SuspendedAt = &at
}

func (t *Tenant) SetPastDue() {
	t.State = TenantStatePastDue
	t.SuspensionReason = SuspensionReasonNone
	t.SuspendedAt = nil
}

func (t *Tenant) Activate() {
	t.State = TenantStateActive
	t.SuspensionReason = SuspensionReasonNone
	t.SuspendedAt = nil
}

// StateFields returns columns changed by state transitions.
func (t Tenant) StateFields() map[string]interface{} {
	return map[string]interface{}{
		"state":             t.State,
		"suspension_reason": t.SuspensionReason,
		"suspended_at":      t.SuspendedAt,
	}
}
