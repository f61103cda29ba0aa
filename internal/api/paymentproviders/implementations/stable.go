package implementations

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	"github.com/platformplatform/account-api/pkg/api/models"
)

// Check the struct is implementing the Provider interface.
var _ paymentprovider.Provider = &StableProvider{}

type RetryObserver func(operation string)

// StableProvider retries transient errors of the underlying provider with exponential backoff.
type StableProvider struct {
	underlying   paymentprovider.Provider
	totalTimeout time.Duration
	maxRetries   int
	onRetry      RetryObserver
	newBackOff   func() backoff.BackOff
}

func NewStableProvider(underlying paymentprovider.Provider, totalTimeout time.Duration, maxRetries int,
	onRetry RetryObserver) *StableProvider {

	p := &StableProvider{
		underlying:   underlying,
		totalTimeout: totalTimeout,
		maxRetries:   maxRetries,
		onRetry:      onRetry,
	}
	p.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = p.totalTimeout
		return b
	}
	return p
}

func (p StableProvider) Name() string {
	return p.underlying.Name()
}

func (p StableProvider) retry(ctx context.Context, operation string, f func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), uint64(p.maxRetries)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		if attempt > 1 && p.onRetry != nil {
			p.onRetry(operation)
		}

		err := f()
		if err == nil {
			return nil
		}
		if errors.Cause(err) != paymentprovider.ErrTransient {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func (p StableProvider) CreateCustomer(ctx context.Context, payload paymentprovider.CreateCustomerPayload) (id string, err error) {
	err = p.retry(ctx, "create_customer", func() error {
		id, err = p.underlying.CreateCustomer(ctx, payload)
		return err
	})
	return
}

func (p StableProvider) UpdateBillingInfo(ctx context.Context, customerID string, info models.BillingInfo) error {
	return p.retry(ctx, "update_billing_info", func() error {
		return p.underlying.UpdateBillingInfo(ctx, customerID, info)
	})
}

func (p StableProvider) CreateCheckoutSession(ctx context.Context,
	payload paymentprovider.CheckoutPayload) (s *paymentprovider.Session, err error) {

	err = p.retry(ctx, "create_checkout_session", func() error {
		s, err = p.underlying.CreateCheckoutSession(ctx, payload)
		return err
	})
	return
}

func (p StableProvider) CreateSetupSession(ctx context.Context, customerID, returnURL string) (s *paymentprovider.Session, err error) {
	err = p.retry(ctx, "create_setup_session", func() error {
		s, err = p.underlying.CreateSetupSession(ctx, customerID, returnURL)
		return err
	})
	return
}

func (p StableProvider) UpgradeSubscription(ctx context.Context, subscriptionID string, change paymentprovider.PlanChange) error {
	return p.retry(ctx, "upgrade_subscription", func() error {
		return p.underlying.UpgradeSubscription(ctx, subscriptionID, change)
	})
}

func (p StableProvider) PreviewUpgrade(ctx context.Context, customerID, subscriptionID string,
	change paymentprovider.PlanChange) (pr *paymentprovider.Proration, err error) {

	err = p.retry(ctx, "preview_upgrade", func() error {
		pr, err = p.underlying.PreviewUpgrade(ctx, customerID, subscriptionID, change)
		return err
	})
	return
}

func (p StableProvider) ScheduleDowngrade(ctx context.Context, subscriptionID string, change paymentprovider.PlanChange) error {
	return p.retry(ctx, "schedule_downgrade", func() error {
		return p.underlying.ScheduleDowngrade(ctx, subscriptionID, change)
	})
}

func (p StableProvider) CancelScheduledDowngrade(ctx context.Context, subscriptionID string, current paymentprovider.PlanChange) error {
	return p.retry(ctx, "cancel_scheduled_downgrade", func() error {
		return p.underlying.CancelScheduledDowngrade(ctx, subscriptionID, current)
	})
}

func (p StableProvider) CancelAtPeriodEnd(ctx context.Context, subscriptionID string, reason, feedback string) error {
	return p.retry(ctx, "cancel_at_period_end", func() error {
		return p.underlying.CancelAtPeriodEnd(ctx, subscriptionID, reason, feedback)
	})
}

func (p StableProvider) Reactivate(ctx context.Context, subscriptionID string) error {
	return p.retry(ctx, "reactivate", func() error {
		return p.underlying.Reactivate(ctx, subscriptionID)
	})
}

func (p StableProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return p.retry(ctx, "cancel_subscription", func() error {
		return p.underlying.CancelSubscription(ctx, subscriptionID)
	})
}
