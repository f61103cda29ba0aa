package billing

import (
	"strconv"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/analytics"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	"github.com/platformplatform/account-api/internal/shared/db/gormdb"
	"github.com/platformplatform/account-api/pkg/api/models"
)

const billingReasonCycle = "subscription_cycle"

type analyticsEvent struct {
	name  string
	props map[string]interface{}
}

// batch is the state of one transaction applying events of a customer.
type batch struct {
	p      Processor
	tx     *gorm.DB
	now    time.Time
	sub    *models.Subscription
	tenant *models.Tenant

	origState  models.TenantState
	origReason models.SuspensionReason

	// once set no later event of the batch changes tenant state
	suspendedInBatch bool

	appliedTypes    []paymentprovider.EventType
	failed          int
	analyticsEvents []analyticsEvent

	// subscriptions of checkouts completed while another one was current
	duplicates []string
}

func newBatch(p Processor, tx *gorm.DB, sub *models.Subscription, tenant *models.Tenant) *batch {
	return &batch{
		p:          p,
		tx:         tx,
		now:        p.now(),
		sub:        sub,
		tenant:     tenant,
		origState:  tenant.State,
		origReason: tenant.SuspensionReason,
	}
}

func parseUint(s string) uint {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

func parseUnix(s string) *time.Time {
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts == 0 {
		return nil
	}

	t := time.Unix(ts, 0).UTC()
	return &t
}

func (b *batch) track(name string, props map[string]interface{}) {
	b.analyticsEvents = append(b.analyticsEvents, analyticsEvent{name: name, props: props})
}

func (b *batch) suspend(reason models.SuspensionReason) {
	if b.suspendedInBatch {
		return
	}

	b.tenant.Suspend(reason, b.now)
	b.suspendedInBatch = true
	b.p.Log.Infof("Suspending tenant %d: %s", b.tenant.ID, reason)
}

func (b *batch) setPastDue() {
	if b.suspendedInBatch || b.tenant.IsSuspended() {
		return
	}

	b.tenant.SetPastDue()
}

func (b *batch) activate(allowedReasons ...models.SuspensionReason) {
	if b.suspendedInBatch {
		b.p.Log.Infof("Keeping tenant %d suspended by an earlier event of the batch", b.tenant.ID)
		return
	}

	switch b.tenant.State {
	case models.TenantStateActive:
		return
	case models.TenantStatePastDue:
		b.tenant.Activate()
	case models.TenantStateSuspended:
		for _, r := range allowedReasons {
			if r == b.tenant.SuspensionReason {
				b.tenant.Activate()
				return
			}
		}
	}
}

func (b *batch) markEvent(e *models.StripeEvent, status models.StripeEventStatus, errText string) error {
	fields := map[string]interface{}{
		"status":       status,
		"tenant_id":    b.tenant.ID,
		"processed_at": b.now,
		"error":        errText,
	}
	if err := b.tx.Model(e).Updates(fields).Error; err != nil {
		return errors.Wrapf(err, "failed to mark event %s as %s", e.StripeEventID, status)
	}

	return nil
}

func (b *batch) applyStored(e *models.StripeEvent) error {
	ev, err := b.p.Parser.ParseEvent([]byte(e.Payload))
	if err != nil {
		b.failed++
		b.p.Log.Warnf("Ignoring unparseable stored event %s: %s", e.StripeEventID, err)
		return b.markEvent(e, models.StripeEventStatusIgnored, err.Error())
	}

	if err = b.apply(ev); err != nil {
		return errors.Wrapf(err, "failed to apply event %s of type %s", ev.ID, ev.Type)
	}

	b.appliedTypes = append(b.appliedTypes, ev.Type)
	return b.markEvent(e, models.StripeEventStatusProcessed, "")
}

//nolint:gocyclo
func (b *batch) apply(ev *paymentprovider.Event) error {
	switch ev.Type {
	case paymentprovider.EventCheckoutSessionCompleted:
		b.applyCheckoutCompleted(ev)
	case paymentprovider.EventSubscriptionCreated, paymentprovider.EventSubscriptionUpdated:
		b.applySubscriptionChanged(ev)
	case paymentprovider.EventSubscriptionDeleted:
		b.applySubscriptionDeleted(ev)
	case paymentprovider.EventInvoicePaymentFailed:
		return b.applyInvoiceFailed(ev)
	case paymentprovider.EventInvoicePaid, paymentprovider.EventInvoicePaymentSucceeded:
		return b.applyInvoicePaid(ev)
	case paymentprovider.EventChargeDisputeCreated:
		at := ev.CreatedAt
		b.sub.DisputedAt = &at
	case paymentprovider.EventChargeRefunded:
		return b.applyChargeRefunded(ev)
	case paymentprovider.EventCustomerUpdated:
		if ev.Customer != nil {
			info := ev.Customer.BillingInfo
			b.sub.BillingInfo = &info
		}
	case paymentprovider.EventPaymentMethodAttached:
		if ev.PaymentMethod != nil {
			pm := ev.PaymentMethod.Method
			b.sub.PaymentMethod = &pm
		}
	default:
		b.p.Log.Infof("No handler for stored event %s of type %s", ev.ID, ev.Type)
	}

	return nil
}

func (b *batch) applyCheckoutCompleted(ev *paymentprovider.Event) {
	cs := ev.CheckoutSession
	if cs == nil || cs.SubscriptionID == "" {
		return // setup sessions are followed by payment_method.attached
	}
	if b.isOtherSubscription(cs.SubscriptionID) {
		b.p.Log.Errorf("Tenant %d completed checkout of subscription %s while having subscription %s, "+
			"keeping the current one", b.tenant.ID, cs.SubscriptionID, b.sub.StripeSubscriptionID)
		b.duplicates = append(b.duplicates, cs.SubscriptionID)
		return
	}

	b.sub.StripeSubscriptionID = cs.SubscriptionID
	if plan := models.Plan(cs.Metadata[paymentprovider.MetadataPlan]); plan.IsPaid() {
		b.sub.Plan = plan
	}
	b.sub.ScheduledPlan = ""
	b.sub.CancelAtPeriodEnd = false
	b.sub.CancellationReason = ""
	b.sub.CancellationFeedback = ""
	b.sub.ClearPaymentFailure()

	b.activate(models.SuspensionReasonPaymentFailed, models.SuspensionReasonPaymentDisputed,
		models.SuspensionReasonCustomerCancelled)
	b.track(analytics.EventSubscriptionStarted, map[string]interface{}{"plan": b.sub.Plan})
}

func (b *batch) isOtherSubscription(id string) bool {
	return b.sub.StripeSubscriptionID != "" && b.sub.StripeSubscriptionID != id
}

func (b *batch) syncPlan(sd *paymentprovider.SubscriptionData) {
	scheduled := models.Plan(sd.Metadata[paymentprovider.MetadataScheduledPlan])
	scheduledAfter := parseUnix(sd.Metadata[paymentprovider.MetadataScheduledAfter])
	metaPlan := models.Plan(sd.Metadata[paymentprovider.MetadataPlan])

	// a scheduled downgrade already has the lower price, the paid plan lasts until the period end
	if scheduled.IsPaid() && metaPlan.IsPaid() && scheduledAfter != nil &&
		sd.CurrentPeriodEnd != nil && !sd.CurrentPeriodEnd.After(*scheduledAfter) {

		b.sub.Plan = metaPlan
		b.sub.ScheduledPlan = scheduled
		return
	}

	if plan, ok := b.p.Prices.Plan(sd.PriceID); ok {
		b.sub.Plan = plan
	} else if metaPlan.IsPaid() {
		b.sub.Plan = metaPlan
	}
	b.sub.ScheduledPlan = ""
}

func (b *batch) applySubscriptionChanged(ev *paymentprovider.Event) {
	sd := ev.Subscription
	if sd == nil {
		return
	}
	if b.isOtherSubscription(sd.ID) {
		b.p.Log.Warnf("Ignoring %s of subscription %s, tenant %d has subscription %s",
			ev.Type, sd.ID, b.tenant.ID, b.sub.StripeSubscriptionID)
		return
	}
	if sd.Status == paymentprovider.SubscriptionStatusCanceled {
		return // customer.subscription.deleted follows
	}

	b.sub.StripeSubscriptionID = sd.ID
	b.syncPlan(sd)
	b.sub.StripeStatus = string(sd.Status)
	b.sub.CurrentPriceAmount = sd.PriceAmount
	b.sub.CurrentPriceCurrency = sd.Currency
	b.sub.CurrentPeriodEnd = sd.CurrentPeriodEnd
	b.sub.CancelAtPeriodEnd = sd.CancelAtPeriodEnd
	if sd.CancelAtPeriodEnd && sd.Feedback != "" {
		b.sub.CancellationFeedback = sd.Feedback
	}

	switch sd.Status {
	case paymentprovider.SubscriptionStatusPastDue:
		b.sub.RecordPaymentFailure(ev.CreatedAt)
		b.setPastDue()
	case paymentprovider.SubscriptionStatusActive, paymentprovider.SubscriptionStatusTrialing:
		b.sub.ClearPaymentFailure()
		if b.tenant.State == models.TenantStatePastDue {
			b.activate()
		}
	case paymentprovider.SubscriptionStatusUnpaid:
		b.sub.RecordPaymentFailure(ev.CreatedAt)
		b.suspend(models.SuspensionReasonPaymentFailed)
	}
}

func (b *batch) applySubscriptionDeleted(ev *paymentprovider.Event) {
	sd := ev.Subscription
	if sd == nil {
		return
	}
	if b.isOtherSubscription(sd.ID) || b.sub.StripeSubscriptionID == "" {
		b.p.Log.Infof("Ignoring deletion of not current subscription %s", sd.ID)
		return
	}

	switch sd.CancellationReason {
	case paymentprovider.CancellationReasonPaymentFailed:
		b.suspend(models.SuspensionReasonPaymentFailed)
	case paymentprovider.CancellationReasonPaymentDispute:
		b.suspend(models.SuspensionReasonPaymentDisputed)
	default:
		b.activate() // nothing can be past due on the free plan
	}

	prevPlan := b.sub.Plan
	b.sub.ResetToBasis()
	b.sub.StripeStatus = string(paymentprovider.SubscriptionStatusCanceled)
	b.sub.CancellationReason = string(sd.CancellationReason)
	b.track(analytics.EventSubscriptionChanged, map[string]interface{}{
		"from":   prevPlan,
		"to":     models.PlanBasis,
		"reason": sd.CancellationReason,
	})
}

// saveTransaction keeps one row per invoice.
func (b *batch) saveTransaction(inv *paymentprovider.InvoiceData, status models.PaymentTransactionStatus,
	amount int64, occurredAt time.Time) error {

	var t models.PaymentTransaction
	err := b.tx.Where("subscription_id = ? AND stripe_invoice_id = ?", b.sub.ID, inv.ID).First(&t).Error
	if err != nil && !gormdb.IsRecordNotFound(err) {
		return errors.Wrapf(err, "failed to fetch transaction of invoice %s", inv.ID)
	}

	t.SubscriptionID = b.sub.ID
	t.StripeInvoiceID = inv.ID
	if inv.ChargeID != "" {
		t.StripeChargeID = inv.ChargeID
	}
	t.Amount = amount
	t.Currency = inv.Currency
	t.Status = status
	t.InvoiceURL = inv.HostedInvoiceURL
	t.OccurredAt = occurredAt
	if status == models.PaymentTransactionStatusFailed {
		t.FailureReason = inv.FailureMessage
	} else {
		t.FailureReason = ""
	}

	if err = b.tx.Save(&t).Error; err != nil {
		return errors.Wrapf(err, "failed to save transaction of invoice %s", inv.ID)
	}

	return nil
}

func (b *batch) isOtherInvoice(ev *paymentprovider.Event) bool {
	inv := ev.Invoice
	if inv.SubscriptionID == "" || !b.isOtherSubscription(inv.SubscriptionID) {
		return false
	}

	b.p.Log.Warnf("Ignoring %s of invoice %s of subscription %s, tenant %d has subscription %s",
		ev.Type, inv.ID, inv.SubscriptionID, b.tenant.ID, b.sub.StripeSubscriptionID)
	return true
}

func (b *batch) applyInvoiceFailed(ev *paymentprovider.Event) error {
	inv := ev.Invoice
	if inv == nil || b.isOtherInvoice(ev) {
		return nil
	}

	if err := b.saveTransaction(inv, models.PaymentTransactionStatusFailed, inv.AmountDue, ev.CreatedAt); err != nil {
		return err
	}

	b.sub.RecordPaymentFailure(ev.CreatedAt)
	b.setPastDue()
	if b.sub.IsPaymentFailedLongerThan(b.p.Notifier.GracePeriod, b.now) {
		b.suspend(models.SuspensionReasonPaymentFailed)
	}

	return nil
}

func (b *batch) applyInvoicePaid(ev *paymentprovider.Event) error {
	inv := ev.Invoice
	if inv == nil || b.isOtherInvoice(ev) {
		return nil
	}

	if err := b.saveTransaction(inv, models.PaymentTransactionStatusSucceeded, inv.AmountPaid, ev.CreatedAt); err != nil {
		return err
	}

	b.sub.ClearPaymentFailure()
	b.activate(models.SuspensionReasonPaymentFailed)

	if inv.BillingReason == billingReasonCycle && b.sub.ScheduledPlan != "" {
		b.p.Log.Infof("Applying scheduled plan %s of tenant %d", b.sub.ScheduledPlan, b.tenant.ID)
		b.track(analytics.EventSubscriptionChanged, map[string]interface{}{
			"from": b.sub.Plan,
			"to":   b.sub.ScheduledPlan,
		})
		b.sub.Plan = b.sub.ScheduledPlan
		b.sub.ScheduledPlan = ""
	}

	return nil
}

func (b *batch) applyChargeRefunded(ev *paymentprovider.Event) error {
	ch := ev.Charge
	if ch == nil {
		return nil
	}

	at := ev.CreatedAt
	b.sub.RefundedAt = &at

	q := b.tx.Model(&models.PaymentTransaction{}).Where("subscription_id = ?", b.sub.ID)
	if ch.InvoiceID != "" {
		q = q.Where("stripe_charge_id = ? OR stripe_invoice_id = ?", ch.ID, ch.InvoiceID)
	} else {
		q = q.Where("stripe_charge_id = ?", ch.ID)
	}

	res := q.Updates(map[string]interface{}{
		"status":           models.PaymentTransactionStatusRefunded,
		"stripe_charge_id": ch.ID,
	})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to mark charge %s as refunded", ch.ID)
	}
	if res.RowsAffected == 0 {
		b.p.Log.Warnf("No transaction for refunded charge %s", ch.ID)
	}

	return nil
}
