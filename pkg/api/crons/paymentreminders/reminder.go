// Package paymentreminders periodically reminds past due tenants and suspends them
// after the grace period.
package paymentreminders

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/analytics"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/internal/shared/metrics"
	"github.com/platformplatform/account-api/pkg/api/billing"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/robfig/cron/v3"
)

const (
	defaultSchedule   = "@hourly"
	defaultStaleAfter = 10 * time.Minute
)

// ProcessQueue schedules processing of pending events of a customer.
type ProcessQueue interface {
	Put(customerID string) error
}

type Reminder struct {
	DB        *gorm.DB
	Log       logutil.Log
	Cfg       config.Config
	Notifier  *billing.Notifier
	Analytics analytics.Tracker
	Metrics   *metrics.Metrics
	Queue     ProcessQueue

	Now func() time.Time
}

type Result struct {
	Reminded    int
	Suspended   int
	Reactivated int
	Requeued    int
}

func (r Reminder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Schedule adds the sweep to c by PAYMENT_REMINDERS_SCHEDULE.
func (r Reminder) Schedule(c *cron.Cron) error {
	schedule := r.Cfg.GetString("PAYMENT_REMINDERS_SCHEDULE")
	if schedule == "" {
		schedule = defaultSchedule
	}

	_, err := c.AddFunc(schedule, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.Log.Warnf("Can't run payment reminders: %s", err)
		}
	})
	if err != nil {
		return errors.Wrapf(err, "invalid payment reminders schedule %q", schedule)
	}

	return nil
}

func (r Reminder) RunOnce(ctx context.Context) (*Result, error) {
	var res Result

	var tenants []models.Tenant
	if err := r.DB.Where("state = ?", models.TenantStatePastDue).Order("id").Find(&tenants).Error; err != nil {
		return nil, errors.Wrap(err, "can't get past due tenants")
	}

	now := r.now()
	var failedN int
	for i := range tenants {
		outcome, err := r.processTenant(ctx, &tenants[i], now)
		if err != nil {
			failedN++
			r.Log.Warnf("Failed to process past due tenant %d: %s", tenants[i].ID, err)
			continue
		}
		switch outcome {
		case outcomeSuspended:
			res.Suspended++
		case outcomeReminded:
			res.Reminded++
		case outcomeReactivated:
			res.Reactivated++
		}
	}

	requeued, err := r.requeueStaleEvents(now)
	if err != nil {
		return nil, err
	}
	res.Requeued = requeued

	r.Log.Infof("Processed %d past due tenants: reminded %d, suspended %d, reactivated %d, failed %d; requeued %d customers",
		len(tenants), res.Reminded, res.Suspended, res.Reactivated, failedN, res.Requeued)
	return &res, nil
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeReminded
	outcomeSuspended
	outcomeReactivated
)

func (r Reminder) processTenant(ctx context.Context, tenant *models.Tenant, now time.Time) (outcome, error) {
	var sub models.Subscription
	if err := r.DB.Where("tenant_id = ?", tenant.ID).First(&sub).Error; err != nil {
		return outcomeNone, errors.Wrapf(err, "failed to fetch subscription")
	}

	// the failure was cleared without reactivation, there is nothing to remind about
	if sub.FirstPaymentFailedAt == nil {
		if err := r.reactivate(tenant); err != nil {
			return outcomeNone, err
		}
		return outcomeReactivated, nil
	}

	if sub.IsPaymentFailedLongerThan(r.Notifier.GracePeriod, now) {
		if err := r.suspend(ctx, tenant, now); err != nil {
			return outcomeNone, err
		}
		return outcomeSuspended, nil
	}

	reminded, err := r.Notifier.RemindPaymentFailed(ctx, r.DB, tenant, &sub, now)
	if err != nil || !reminded {
		return outcomeNone, err
	}
	return outcomeReminded, nil
}

func (r Reminder) reactivate(tenant *models.Tenant) error {
	tenant.Activate()
	if err := models.UpdateVersioned(r.DB, &models.Tenant{}, tenant.ID, tenant.Version, tenant.StateFields()); err != nil {
		return errors.Wrap(err, "failed to reactivate")
	}
	tenant.Version++

	if r.Metrics != nil {
		r.Metrics.TenantStateChanges.WithLabelValues(string(tenant.State)).Inc()
	}
	r.Log.Warnf("Reactivated past due tenant %d without a payment failure", tenant.ID)
	return nil
}

func (r Reminder) suspend(ctx context.Context, tenant *models.Tenant, now time.Time) error {
	tenant.Suspend(models.SuspensionReasonPaymentFailed, now)
	if err := models.UpdateVersioned(r.DB, &models.Tenant{}, tenant.ID, tenant.Version, tenant.StateFields()); err != nil {
		return errors.Wrap(err, "failed to suspend")
	}
	tenant.Version++

	if r.Metrics != nil {
		r.Metrics.TenantStateChanges.WithLabelValues(string(tenant.State)).Inc()
	}
	r.Analytics.Track(tenant.ID, analytics.EventTenantSuspended, map[string]interface{}{
		"reason": tenant.SuspensionReason,
	})
	r.Log.Infof("Suspended tenant %d after payment failure grace period", tenant.ID)

	if err := r.Notifier.NotifySuspended(ctx, r.DB, tenant); err != nil {
		r.Log.Warnf("Failed to notify tenant %d about suspension: %s", tenant.ID, err)
	}
	return nil
}

// requeueStaleEvents schedules customers whose events weren't processed in time,
// e.g. when an enqueue after webhook intake failed.
func (r Reminder) requeueStaleEvents(now time.Time) (int, error) {
	if r.Queue == nil {
		return 0, nil
	}

	staleAfter := r.Cfg.GetDuration("STALE_EVENTS_TIMEOUT", defaultStaleAfter)
	var customers []string
	err := r.DB.Model(&models.StripeEvent{}).
		Where("status = ? AND stripe_customer_id != '' AND created_at < ?",
			models.StripeEventStatusPending, now.Add(-staleAfter)).
		Order("stripe_customer_id").
		Pluck("DISTINCT stripe_customer_id", &customers).Error
	if err != nil {
		return 0, errors.Wrap(err, "can't get stale pending events")
	}

	var n int
	for _, c := range customers {
		if err = r.Queue.Put(c); err != nil {
			r.Log.Warnf("Failed to requeue customer %s: %s", c, err)
			continue
		}
		n++
	}

	return n, nil
}
