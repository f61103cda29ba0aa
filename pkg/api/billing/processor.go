// Package billing applies verified payment provider events to subscriptions and tenants.
package billing

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/analytics"
	"github.com/platformplatform/account-api/internal/api/paymentproviders"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	"github.com/platformplatform/account-api/internal/shared/db/gormdb"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/internal/shared/metrics"
	"github.com/platformplatform/account-api/pkg/api/models"
)

// SubscriptionCanceller stops billing of a provider subscription right away.
type SubscriptionCanceller interface {
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

type Processor struct {
	DB        *gorm.DB
	Log       logutil.Log
	Parser    paymentprovider.EventParser
	Prices    *paymentproviders.PriceCatalog
	Notifier  *Notifier
	Analytics analytics.Tracker
	Metrics   *metrics.Metrics

	// optional, duplicate subscriptions are only logged without it
	Subscriptions SubscriptionCanceller

	Now func() time.Time
}

// BatchResult describes what one ProcessCustomerEvents call did.
type BatchResult struct {
	TenantID    uint
	Processed   int
	Failed      int
	TenantState models.TenantState
	Duplicates  []string

	Suspended   bool
	Reactivated bool
	Reminded    bool
}

func (p Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// ProcessCustomerEvents applies all pending events of the customer in one transaction
// ordered by their creation time at the provider.
func (p Processor) ProcessCustomerEvents(ctx context.Context, customerID string) (*BatchResult, error) {
	startedAt := time.Now()
	b, err := p.applyPending(customerID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to process events of customer %s", customerID)
	}
	if b == nil {
		return &BatchResult{}, nil
	}

	if p.Metrics != nil {
		p.Metrics.EventBatchDuration.Observe(time.Since(startedAt).Seconds())
		for _, t := range b.appliedTypes {
			p.Metrics.ProcessedEvents.WithLabelValues(string(t)).Inc()
		}
	}

	res := &BatchResult{
		TenantID:    b.tenant.ID,
		Processed:   len(b.appliedTypes),
		Failed:      b.failed,
		TenantState: b.tenant.State,
		Duplicates:  b.duplicates,
	}
	p.afterCommit(ctx, b, res)
	return res, nil
}

func (p Processor) fetchSubscription(tx *gorm.DB, customerID string, events []models.StripeEvent) (*models.Subscription, error) {
	var sub models.Subscription
	err := tx.Where("stripe_customer_id = ?", customerID).First(&sub).Error
	if err == nil {
		return &sub, nil
	}
	if !gormdb.IsRecordNotFound(err) {
		return nil, errors.Wrapf(err, "failed to fetch subscription of customer %s", customerID)
	}

	// customers created outside of the checkout flow are linked by tenant metadata
	tenantID := p.findTenantInMetadata(events)
	if tenantID == 0 {
		return nil, nil
	}

	if err = tx.Where("tenant_id = ? AND stripe_customer_id = ''", tenantID).First(&sub).Error; err != nil {
		if gormdb.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to fetch subscription of tenant %d", tenantID)
	}

	sub.StripeCustomerID = customerID
	p.Log.Infof("Linked customer %s to subscription %d by metadata", customerID, sub.ID)
	return &sub, nil
}

func (p Processor) findTenantInMetadata(events []models.StripeEvent) uint {
	for _, e := range events {
		ev, err := p.Parser.ParseEvent([]byte(e.Payload))
		if err != nil {
			continue
		}

		var md map[string]string
		switch {
		case ev.CheckoutSession != nil:
			md = ev.CheckoutSession.Metadata
		case ev.Subscription != nil:
			md = ev.Subscription.Metadata
		}

		if id := parseUint(md[paymentprovider.MetadataTenantID]); id != 0 {
			return id
		}
	}

	return 0
}

func (p Processor) applyPending(customerID string) (b *batch, retErr error) {
	tx, finish, err := gormdb.StartTx(p.DB)
	if err != nil {
		return nil, err
	}
	defer finish(&retErr)

	var events []models.StripeEvent
	err = tx.Where("stripe_customer_id = ? AND status = ?", customerID, models.StripeEventStatusPending).
		Order("stripe_created_at, id").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch pending events")
	}
	if len(events) == 0 {
		p.Log.Infof("No pending events of customer %s", customerID)
		return nil, nil
	}

	sub, err := p.fetchSubscription(tx, customerID, events)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		p.Log.Warnf("No subscription for customer %s, keeping %d events pending", customerID, len(events))
		return nil, nil
	}

	var tenant models.Tenant
	if err = tx.Where("id = ?", sub.TenantID).First(&tenant).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to fetch tenant %d", sub.TenantID)
	}

	b = newBatch(p, tx, sub, &tenant)
	for i := range events {
		if err = b.applyStored(&events[i]); err != nil {
			return nil, err
		}
	}

	if err = b.save(); err != nil {
		return nil, err
	}

	return b, nil
}

func (p Processor) cancelDuplicates(ctx context.Context, b *batch) {
	for _, id := range b.duplicates {
		if p.Subscriptions == nil {
			p.Log.Errorf("Subscription %s of tenant %d must be cancelled manually", id, b.tenant.ID)
			continue
		}

		if err := p.Subscriptions.CancelSubscription(ctx, id); err != nil {
			p.Log.Errorf("Failed to cancel duplicate subscription %s of tenant %d: %s", id, b.tenant.ID, err)
			continue
		}
		p.Log.Infof("Cancelled duplicate subscription %s of tenant %d", id, b.tenant.ID)
	}
}

func (p Processor) afterCommit(ctx context.Context, b *batch, res *BatchResult) {
	p.cancelDuplicates(ctx, b)

	for _, e := range b.analyticsEvents {
		p.Analytics.Track(b.tenant.ID, e.name, e.props)
	}

	stateChanged := b.tenant.State != b.origState || b.tenant.SuspensionReason != b.origReason
	if stateChanged && p.Metrics != nil {
		p.Metrics.TenantStateChanges.WithLabelValues(string(b.tenant.State)).Inc()
	}

	switch {
	case b.tenant.IsSuspended() && stateChanged:
		res.Suspended = true
		p.Analytics.Track(b.tenant.ID, analytics.EventTenantSuspended, map[string]interface{}{
			"reason": b.tenant.SuspensionReason,
		})
		if err := p.Notifier.NotifySuspended(ctx, p.DB, b.tenant); err != nil {
			p.Log.Warnf("Failed to notify about suspension: %s", err)
		}

	case b.tenant.State == models.TenantStatePastDue:
		sent, err := p.Notifier.RemindPaymentFailed(ctx, p.DB, b.tenant, b.sub, p.now())
		if err != nil {
			p.Log.Warnf("Failed to remind about failed payment: %s", err)
		}
		res.Reminded = sent

	case b.origState == models.TenantStateSuspended && b.tenant.State == models.TenantStateActive:
		res.Reactivated = true
		p.Analytics.Track(b.tenant.ID, analytics.EventTenantReactivated, nil)
	}
}

func subscriptionFields(s *models.Subscription) map[string]interface{} {
	return map[string]interface{}{
		"plan":                    s.Plan,
		"scheduled_plan":          s.ScheduledPlan,
		"stripe_customer_id":      s.StripeCustomerID,
		"stripe_subscription_id":  s.StripeSubscriptionID,
		"stripe_status":           s.StripeStatus,
		"current_price_amount":    s.CurrentPriceAmount,
		"current_price_currency":  s.CurrentPriceCurrency,
		"current_period_end":      s.CurrentPeriodEnd,
		"cancel_at_period_end":    s.CancelAtPeriodEnd,
		"cancellation_reason":     s.CancellationReason,
		"cancellation_feedback":   s.CancellationFeedback,
		"first_payment_failed_at": s.FirstPaymentFailedAt,
		"last_reminder_sent_at":   s.LastReminderSentAt,
		"disputed_at":             s.DisputedAt,
		"refunded_at":             s.RefundedAt,
		"billing_info":            s.BillingInfo,
		"payment_method":          s.PaymentMethod,
	}
}

func (b *batch) save() error {
	err := models.UpdateVersioned(b.tx, &models.Subscription{}, b.sub.ID, b.sub.Version, subscriptionFields(b.sub))
	if err != nil {
		return errors.Wrapf(err, "failed to save subscription %d", b.sub.ID)
	}
	b.sub.Version++

	if b.tenant.State != b.origState || b.tenant.SuspensionReason != b.origReason {
		err = models.UpdateVersioned(b.tx, &models.Tenant{}, b.tenant.ID, b.tenant.Version, b.tenant.StateFields())
		if err != nil {
			return errors.Wrapf(err, "failed to save tenant %d", b.tenant.ID)
		}
		b.tenant.Version++
	}

	return nil
}
