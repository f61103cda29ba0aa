package billing

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/mailer"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/internal/shared/metrics"
	"github.com/platformplatform/account-api/pkg/api/models"
)

const (
	DefaultGracePeriod      = 14 * 24 * time.Hour
	DefaultReminderCooldown = 72 * time.Hour

	dateLayout = "January 2, 2006"
)

// Notifier emails tenant owners about payment problems.
type Notifier struct {
	Mailer  mailer.Mailer
	Log     logutil.Log
	Metrics *metrics.Metrics

	GracePeriod      time.Duration
	ReminderCooldown time.Duration
}

func ownerEmails(db *gorm.DB, tenantID uint) ([]string, error) {
	var emails []string
	err := db.Model(&models.User{}).
		Where("tenant_id = ? AND role = ?", tenantID, models.UserRoleOwner).
		Order("id").
		Pluck("email", &emails).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch owners of tenant %d", tenantID)
	}

	return emails, nil
}

// IsReminderDue reports whether the cooldown since the last reminder passed.
func (n Notifier) IsReminderDue(sub *models.Subscription, now time.Time) bool {
	return sub.LastReminderSentAt == nil || now.Sub(*sub.LastReminderSentAt) >= n.ReminderCooldown
}

// RemindPaymentFailed sends a reminder to owners of a past due tenant, it returns false
// if the reminder isn't due yet.
func (n Notifier) RemindPaymentFailed(ctx context.Context, db *gorm.DB, tenant *models.Tenant,
	sub *models.Subscription, now time.Time) (bool, error) {

	if !n.IsReminderDue(sub, now) {
		return false, nil
	}

	to, err := ownerEmails(db, tenant.ID)
	if err != nil {
		return false, err
	}
	if len(to) == 0 {
		n.Log.Warnf("No owners to remind about failed payment of tenant %d", tenant.ID)
		return false, nil
	}

	suspendAt := now.Add(n.GracePeriod)
	if sub.FirstPaymentFailedAt != nil {
		suspendAt = sub.FirstPaymentFailedAt.Add(n.GracePeriod)
	}

	msg, err := mailer.PaymentFailed(to, tenant.Name, suspendAt.Format(dateLayout))
	if err != nil {
		return false, err
	}

	// the reminder is claimed before sending: of concurrent senders only one wins the version
	prevSentAt := sub.LastReminderSentAt
	err = models.UpdateVersioned(db, &models.Subscription{}, sub.ID, sub.Version,
		map[string]interface{}{"last_reminder_sent_at": now})
	if models.IsRaceCondition(err) {
		n.Log.Infof("Payment reminder of tenant %d is already handled by a parallel sender", tenant.ID)
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to save reminder time of subscription %d", sub.ID)
	}
	sub.Version++
	sub.LastReminderSentAt = &now

	if err = n.Mailer.Send(ctx, *msg); err != nil {
		n.releaseReminder(db, sub, prevSentAt)
		return false, errors.Wrapf(err, "failed to send payment reminder to tenant %d", tenant.ID)
	}

	if n.Metrics != nil {
		n.Metrics.PaymentReminders.Inc()
	}
	n.Log.Infof("Sent payment failure reminder to %d owners of tenant %d", len(to), tenant.ID)
	return true, nil
}

func (n Notifier) releaseReminder(db *gorm.DB, sub *models.Subscription, prevSentAt *time.Time) {
	err := models.UpdateVersioned(db, &models.Subscription{}, sub.ID, sub.Version,
		map[string]interface{}{"last_reminder_sent_at": prevSentAt})
	if err != nil {
		n.Log.Warnf("Failed to release reminder of subscription %d: %s", sub.ID, err)
		return
	}

	sub.Version++
	sub.LastReminderSentAt = prevSentAt
}

func (n Notifier) NotifySuspended(ctx context.Context, db *gorm.DB, tenant *models.Tenant) error {
	to, err := ownerEmails(db, tenant.ID)
	if err != nil {
		return err
	}
	if len(to) == 0 {
		return nil
	}

	msg, err := mailer.Suspended(to, tenant.Name, string(tenant.SuspensionReason))
	if err != nil {
		return err
	}

	if err = n.Mailer.Send(ctx, *msg); err != nil {
		return errors.Wrapf(err, "failed to send suspension email to tenant %d", tenant.ID)
	}

	return nil
}
