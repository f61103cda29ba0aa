package subscription

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/analytics"
	"github.com/platformplatform/account-api/internal/api/apierrors"
	"github.com/platformplatform/account-api/internal/api/paymentproviders"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	"github.com/platformplatform/account-api/internal/api/validation"
	"github.com/platformplatform/account-api/internal/shared/cache"
	"github.com/platformplatform/account-api/internal/shared/db/gormdb"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/platformplatform/account-api/pkg/api/policy"
	"github.com/platformplatform/account-api/pkg/api/request"
	"github.com/platformplatform/account-api/pkg/api/returntypes"
)

var (
	ErrAlreadySubscribed    = apierrors.NewNotAcceptableError("ALREADY_SUBSCRIBED").WithMessage("Tenant already has an active subscription.")
	ErrNoActiveSubscription = apierrors.NewNotAcceptableError("NO_ACTIVE_SUBSCRIPTION").WithMessage("No active subscription found.")
	ErrCheckoutBasis        = apierrors.NewNotAcceptableError("INVALID_PLAN").WithMessage("Cannot subscribe to the Basis plan.")
	ErrNotHigherPlan        = apierrors.NewNotAcceptableError("INVALID_PLAN").WithMessage("Can only upgrade to a higher plan.")
	ErrDowngradeToBasis     = apierrors.NewNotAcceptableError("INVALID_PLAN").WithMessage("Cannot downgrade to the Basis plan.")
	ErrNotLowerPlan         = apierrors.NewNotAcceptableError("INVALID_PLAN").WithMessage("Can only downgrade to a lower plan.")
	ErrNoScheduledDowngrade = apierrors.NewNotAcceptableError("NO_SCHEDULED_DOWNGRADE").WithMessage("No downgrade is scheduled.")
	ErrAlreadyCancelling    = apierrors.NewNotAcceptableError("ALREADY_CANCELLING").WithMessage("Subscription is already scheduled for cancellation.")
	ErrNotCancelling        = apierrors.NewNotAcceptableError("NOT_CANCELLING").WithMessage("Subscription is not scheduled for cancellation.")
)

const (
	upgradePreviewTTL = 5 * time.Minute

	// stripe accepts checkout expiration from 30 minutes to 24 hours
	checkoutSessionTTL = time.Hour

	maxBillingNameLength = 100
	maxTaxIDLength       = 20
	maxFeedbackLength    = 500
)

func validatePlan(v *apierrors.ValidationError, plan models.Plan) {
	if !plan.IsValid() {
		v.Add("plan", "Plan must be Basis, Standard or Premium.")
	}
}

type CheckoutPayload struct {
	Plan       models.Plan `json:"plan"`
	SuccessURL string      `json:"successUrl"`
	CancelURL  string      `json:"cancelUrl"`
}

func (p CheckoutPayload) FillLogContext(lctx logutil.Context) {
	lctx["plan"] = p.Plan
}

func (p CheckoutPayload) validate() error {
	v := apierrors.NewValidationError()
	validatePlan(v, p.Plan)
	validation.URL(v, "successUrl", p.SuccessURL, "Success url")
	validation.URL(v, "cancelUrl", p.CancelURL, "Cancel url")
	return v.OrNil()
}

type PlanPayload struct {
	Plan models.Plan `json:"plan"`
}

func (p PlanPayload) FillLogContext(lctx logutil.Context) {
	lctx["plan"] = p.Plan
}

func (p PlanPayload) validate() error {
	v := apierrors.NewValidationError()
	validatePlan(v, p.Plan)
	return v.OrNil()
}

type PlanQuery struct {
	Plan models.Plan `request:"plan,urlParam,"`
}

func (q PlanQuery) FillLogContext(lctx logutil.Context) {
	lctx["plan"] = q.Plan
}

type CancelPayload struct {
	Reason   string `json:"reason"`
	Feedback string `json:"feedback"`
}

func (p CancelPayload) FillLogContext(lctx logutil.Context) {
	lctx["cancellation_reason"] = p.Reason
}

func (p CancelPayload) validate() error {
	v := apierrors.NewValidationError()
	validation.Required(v, "reason", p.Reason, "Reason")
	validation.MaxLength(v, "feedback", p.Feedback, "Feedback", maxFeedbackLength)
	return v.OrNil()
}

type BillingInfoPayload struct {
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Address *models.Address `json:"address"`
	TaxID   string          `json:"taxId"`
}

func (p *BillingInfoPayload) validate() error {
	p.Email = validation.NormalizeEmail(p.Email)

	v := apierrors.NewValidationError()
	validation.Required(v, "name", p.Name, "Name")
	validation.MaxLength(v, "name", p.Name, "Name", maxBillingNameLength)
	validation.Email(v, "email", p.Email)
	validation.MaxLength(v, "taxId", p.TaxID, "Tax id", maxTaxIDLength)
	if p.Address != nil {
		validation.Country(v, "address.country", p.Address.Country)
	}
	return v.OrNil()
}

type SetupPayload struct {
	ReturnURL string `json:"returnUrl"`
}

type Service interface {
	//url:/api/account/subscriptions/current
	Current(rc *request.AuthorizedContext) (*returntypes.SubscriptionInfo, error)

	//url:/api/account/subscriptions/checkout method:POST
	Checkout(rc *request.AuthorizedContext, payload *CheckoutPayload) (*returntypes.CheckoutSession, error)

	//url:/api/account/subscriptions/upgrade-preview
	UpgradePreview(rc *request.AuthorizedContext, query *PlanQuery) (*returntypes.UpgradePreview, error)

	//url:/api/account/subscriptions/upgrade method:POST
	Upgrade(rc *request.AuthorizedContext, payload *PlanPayload) (*returntypes.SubscriptionInfo, error)

	//url:/api/account/subscriptions/downgrade method:POST
	Downgrade(rc *request.AuthorizedContext, payload *PlanPayload) (*returntypes.SubscriptionInfo, error)

	//url:/api/account/subscriptions/cancel-downgrade method:POST
	CancelDowngrade(rc *request.AuthorizedContext) (*returntypes.SubscriptionInfo, error)

	//url:/api/account/subscriptions/cancel method:POST
	Cancel(rc *request.AuthorizedContext, payload *CancelPayload) (*returntypes.SubscriptionInfo, error)

	//url:/api/account/subscriptions/reactivate method:POST
	Reactivate(rc *request.AuthorizedContext) (*returntypes.SubscriptionInfo, error)

	//url:/api/account/subscriptions/billing-info method:PUT
	UpdateBillingInfo(rc *request.AuthorizedContext, payload *BillingInfoPayload) (*returntypes.SubscriptionInfo, error)

	//url:/api/account/subscriptions/payment-method/setup method:POST
	SetupPaymentMethod(rc *request.AuthorizedContext, payload *SetupPayload) (*returntypes.SetupSession, error)

	//url:/api/account/subscriptions/transactions
	Transactions(rc *request.AuthorizedContext) (*returntypes.TransactionList, error)
}

type BasicService struct {
	Provider  paymentprovider.Provider
	Prices    *paymentproviders.PriceCatalog
	Cache     cache.Cache
	Analytics analytics.Tracker
}

func fetchSubscription(rc *request.AuthorizedContext) (*models.Subscription, error) {
	var sub models.Subscription
	if err := rc.DB.Where("tenant_id = ?", rc.Tenant.ID).First(&sub).Error; err != nil {
		if gormdb.IsRecordNotFound(err) {
			return nil, errors.Wrapf(apierrors.ErrNotFound, "no subscription for tenant %d", rc.Tenant.ID)
		}
		return nil, errors.Wrapf(err, "failed to fetch subscription of tenant %d", rc.Tenant.ID)
	}

	rc.Lctx["subscription_id"] = sub.ID
	return &sub, nil
}

// fetchManagedSubscription checks owner role and returns subscription linked to the provider.
func fetchManagedSubscription(rc *request.AuthorizedContext) (*models.Subscription, error) {
	if err := policy.RequireOwner(rc, policy.ErrNotOwnerForSubscriptions); err != nil {
		return nil, err
	}

	sub, err := fetchSubscription(rc)
	if err != nil {
		return nil, err
	}

	if !sub.HasActiveStripeSubscription() {
		return nil, ErrNoActiveSubscription
	}

	return sub, nil
}

func (s BasicService) updateSubscription(rc *request.AuthorizedContext, sub *models.Subscription,
	fields map[string]interface{}) (*returntypes.SubscriptionInfo, error) {

	if err := models.UpdateVersioned(rc.DB, &models.Subscription{}, sub.ID, sub.Version, fields); err != nil {
		return nil, errors.Wrap(err, "failed to update subscription")
	}

	updated, err := fetchSubscription(rc)
	if err != nil {
		return nil, err
	}

	return returntypes.NewSubscriptionInfo(updated, rc.Tenant), nil
}

func (s BasicService) planChange(sub *models.Subscription, plan models.Plan) (*paymentprovider.PlanChange, error) {
	priceID, err := s.Prices.PriceID(plan)
	if err != nil {
		return nil, err
	}

	return &paymentprovider.PlanChange{
		CurrentPlan:    sub.Plan,
		Plan:           plan,
		PriceID:        priceID,
		EffectiveAfter: sub.CurrentPeriodEnd,
	}, nil
}

func (s BasicService) Current(rc *request.AuthorizedContext) (*returntypes.SubscriptionInfo, error) {
	sub, err := fetchSubscription(rc)
	if err != nil {
		return nil, err
	}

	return returntypes.NewSubscriptionInfo(sub, rc.Tenant), nil
}

func (s BasicService) ensureCustomer(rc *request.AuthorizedContext, sub *models.Subscription) error {
	if sub.StripeCustomerID != "" {
		return nil
	}

	customerID, err := s.Provider.CreateCustomer(rc.Ctx, paymentprovider.CreateCustomerPayload{
		TenantID: rc.Tenant.ID,
		Name:     rc.Tenant.Name,
		Email:    rc.User.Email,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create payment provider customer")
	}

	// customer is saved before checkout to match webhooks of abandoned sessions too
	if err = rc.DB.Model(sub).UpdateColumn("stripe_customer_id", customerID).Error; err != nil {
		return errors.Wrapf(err, "failed to save customer id %s", customerID)
	}

	sub.StripeCustomerID = customerID
	rc.Log.Infof("Created payment provider customer %s", customerID)
	return nil
}

type openCheckout struct {
	Plan models.Plan
	URL  string
}

// the key changes once a completed checkout is saved
func openCheckoutKey(sub *models.Subscription) string {
	return fmt.Sprintf("open_checkout/%d/%d", sub.ID, sub.Version)
}

func (s BasicService) Checkout(rc *request.AuthorizedContext, payload *CheckoutPayload) (*returntypes.CheckoutSession, error) {
	if err := policy.RequireOwner(rc, policy.ErrNotOwnerForSubscriptions); err != nil {
		return nil, err
	}

	if err := payload.validate(); err != nil {
		return nil, err
	}

	if !payload.Plan.IsPaid() {
		return nil, ErrCheckoutBasis
	}

	sub, err := fetchSubscription(rc)
	if err != nil {
		return nil, err
	}

	if sub.HasActiveStripeSubscription() {
		return nil, ErrAlreadySubscribed
	}

	key := openCheckoutKey(sub)
	var open openCheckout
	err = s.Cache.Get(key, &open)
	if err == nil && open.Plan == payload.Plan {
		rc.Log.Infof("Reusing open checkout session for plan %s", open.Plan)
		return &returntypes.CheckoutSession{CheckoutURL: open.URL}, nil
	}
	if err != nil && err != cache.ErrMiss {
		rc.Log.Warnf("Failed to get open checkout session from cache: %s", err)
	}

	priceID, err := s.Prices.PriceID(payload.Plan)
	if err != nil {
		return nil, err
	}

	if err = s.ensureCustomer(rc, sub); err != nil {
		return nil, err
	}

	session, err := s.Provider.CreateCheckoutSession(rc.Ctx, paymentprovider.CheckoutPayload{
		CustomerID: sub.StripeCustomerID,
		TenantID:   rc.Tenant.ID,
		Plan:       payload.Plan,
		PriceID:    priceID,
		SuccessURL: payload.SuccessURL,
		CancelURL:  payload.CancelURL,
		ExpiresAt:  time.Now().Add(checkoutSessionTTL),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create checkout session")
	}

	open = openCheckout{Plan: payload.Plan, URL: session.URL}
	if err = s.Cache.Set(key, checkoutSessionTTL, open); err != nil {
		rc.Log.Warnf("Failed to save open checkout session to cache: %s", err)
	}

	return &returntypes.CheckoutSession{CheckoutURL: session.URL}, nil
}

func upgradePreviewKey(sub *models.Subscription, plan models.Plan) string {
	return fmt.Sprintf("upgrade_preview/%d/%d/%s", sub.ID, sub.Version, plan)
}

func (s BasicService) UpgradePreview(rc *request.AuthorizedContext, query *PlanQuery) (*returntypes.UpgradePreview, error) {
	sub, err := fetchManagedSubscription(rc)
	if err != nil {
		return nil, err
	}

	if !query.Plan.IsValid() {
		return nil, apierrors.NewValidationError().Add("plan", "Plan must be Basis, Standard or Premium.")
	}
	if !query.Plan.IsHigherThan(sub.Plan) {
		return nil, ErrNotHigherPlan
	}

	key := upgradePreviewKey(sub, query.Plan)
	var ret returntypes.UpgradePreview
	err = s.Cache.Get(key, &ret)
	if err == nil {
		return &ret, nil
	}
	if err != cache.ErrMiss {
		rc.Log.Warnf("Failed to get upgrade preview from cache: %s", err)
	}

	change, err := s.planChange(sub, query.Plan)
	if err != nil {
		return nil, err
	}

	proration, err := s.Provider.PreviewUpgrade(rc.Ctx, sub.StripeCustomerID, sub.StripeSubscriptionID, *change)
	if err != nil {
		return nil, errors.Wrap(err, "failed to preview upgrade")
	}

	ret = returntypes.UpgradePreview{
		Plan:     query.Plan,
		Amount:   proration.Amount,
		Currency: proration.Currency,
	}
	if err = s.Cache.Set(key, upgradePreviewTTL, ret); err != nil {
		rc.Log.Warnf("Failed to save upgrade preview to cache: %s", err)
	}

	return &ret, nil
}

func (s BasicService) Upgrade(rc *request.AuthorizedContext, payload *PlanPayload) (*returntypes.SubscriptionInfo, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}

	sub, err := fetchManagedSubscription(rc)
	if err != nil {
		return nil, err
	}

	if err = policy.RequireNotSuspended(rc); err != nil {
		return nil, err
	}

	if !payload.Plan.IsHigherThan(sub.Plan) {
		return nil, ErrNotHigherPlan
	}

	change, err := s.planChange(sub, payload.Plan)
	if err != nil {
		return nil, err
	}

	if err = s.Provider.UpgradeSubscription(rc.Ctx, sub.StripeSubscriptionID, *change); err != nil {
		return nil, errors.Wrap(err, "failed to upgrade subscription")
	}

	s.Analytics.Track(rc.Tenant.ID, analytics.EventSubscriptionChanged, map[string]interface{}{
		"from": sub.Plan,
		"to":   payload.Plan,
	})

	return s.updateSubscription(rc, sub, map[string]interface{}{
		"plan":           payload.Plan,
		"scheduled_plan": "",
	})
}

func (s BasicService) Downgrade(rc *request.AuthorizedContext, payload *PlanPayload) (*returntypes.SubscriptionInfo, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}

	sub, err := fetchManagedSubscription(rc)
	if err != nil {
		return nil, err
	}

	if err = policy.RequireNotSuspended(rc); err != nil {
		return nil, err
	}

	if payload.Plan == models.PlanBasis {
		return nil, ErrDowngradeToBasis
	}
	if !sub.Plan.IsHigherThan(payload.Plan) {
		return nil, ErrNotLowerPlan
	}

	change, err := s.planChange(sub, payload.Plan)
	if err != nil {
		return nil, err
	}

	if err = s.Provider.ScheduleDowngrade(rc.Ctx, sub.StripeSubscriptionID, *change); err != nil {
		return nil, errors.Wrap(err, "failed to schedule downgrade")
	}

	return s.updateSubscription(rc, sub, map[string]interface{}{
		"scheduled_plan": payload.Plan,
	})
}

func (s BasicService) CancelDowngrade(rc *request.AuthorizedContext) (*returntypes.SubscriptionInfo, error) {
	sub, err := fetchManagedSubscription(rc)
	if err != nil {
		return nil, err
	}

	if sub.ScheduledPlan == "" {
		return nil, ErrNoScheduledDowngrade
	}

	current, err := s.planChange(sub, sub.Plan)
	if err != nil {
		return nil, err
	}

	if err = s.Provider.CancelScheduledDowngrade(rc.Ctx, sub.StripeSubscriptionID, *current); err != nil {
		return nil, errors.Wrap(err, "failed to cancel scheduled downgrade")
	}

	return s.updateSubscription(rc, sub, map[string]interface{}{
		"scheduled_plan": "",
	})
}

func (s BasicService) Cancel(rc *request.AuthorizedContext, payload *CancelPayload) (*returntypes.SubscriptionInfo, error) {
	sub, err := fetchManagedSubscription(rc)
	if err != nil {
		return nil, err
	}

	if sub.CancelAtPeriodEnd {
		return nil, ErrAlreadyCancelling
	}

	if err = payload.validate(); err != nil {
		return nil, err
	}

	if err = s.Provider.CancelAtPeriodEnd(rc.Ctx, sub.StripeSubscriptionID, payload.Reason, payload.Feedback); err != nil {
		return nil, errors.Wrap(err, "failed to cancel subscription")
	}

	return s.updateSubscription(rc, sub, map[string]interface{}{
		"cancel_at_period_end":  true,
		"cancellation_reason":   payload.Reason,
		"cancellation_feedback": payload.Feedback,
	})
}

func (s BasicService) Reactivate(rc *request.AuthorizedContext) (*returntypes.SubscriptionInfo, error) {
	sub, err := fetchManagedSubscription(rc)
	if err != nil {
		return nil, err
	}

	if !sub.CancelAtPeriodEnd {
		return nil, ErrNotCancelling
	}

	if err = s.Provider.Reactivate(rc.Ctx, sub.StripeSubscriptionID); err != nil {
		return nil, errors.Wrap(err, "failed to reactivate subscription")
	}

	return s.updateSubscription(rc, sub, map[string]interface{}{
		"cancel_at_period_end":  false,
		"cancellation_reason":   "",
		"cancellation_feedback": "",
	})
}

func (s BasicService) UpdateBillingInfo(rc *request.AuthorizedContext, payload *BillingInfoPayload) (*returntypes.SubscriptionInfo, error) {
	if err := policy.RequireOwner(rc, policy.ErrNotOwnerForSubscriptions); err != nil {
		return nil, err
	}

	if err := payload.validate(); err != nil {
		return nil, err
	}

	sub, err := fetchSubscription(rc)
	if err != nil {
		return nil, err
	}

	if err = s.ensureCustomer(rc, sub); err != nil {
		return nil, err
	}

	info := models.BillingInfo{
		Name:    payload.Name,
		Email:   payload.Email,
		Address: payload.Address,
		TaxID:   payload.TaxID,
	}
	if err = s.Provider.UpdateBillingInfo(rc.Ctx, sub.StripeCustomerID, info); err != nil {
		return nil, errors.Wrap(err, "failed to update billing info")
	}

	return s.updateSubscription(rc, sub, map[string]interface{}{
		"billing_info": &info,
	})
}

func (s BasicService) SetupPaymentMethod(rc *request.AuthorizedContext, payload *SetupPayload) (*returntypes.SetupSession, error) {
	v := apierrors.NewValidationError()
	validation.URL(v, "returnUrl", payload.ReturnURL, "Return url")
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	sub, err := fetchManagedSubscription(rc)
	if err != nil {
		return nil, err
	}

	session, err := s.Provider.CreateSetupSession(rc.Ctx, sub.StripeCustomerID, payload.ReturnURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create payment method setup session")
	}

	return &returntypes.SetupSession{SetupURL: session.URL}, nil
}

func (s BasicService) Transactions(rc *request.AuthorizedContext) (*returntypes.TransactionList, error) {
	sub, err := fetchSubscription(rc)
	if err != nil {
		return nil, err
	}

	var txs []models.PaymentTransaction
	if err = rc.DB.Where("subscription_id = ?", sub.ID).Order("occurred_at DESC, id DESC").Find(&txs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to fetch payment transactions")
	}

	ret := &returntypes.TransactionList{Transactions: []returntypes.Transaction{}}
	for _, t := range txs {
		ret.Transactions = append(ret.Transactions, returntypes.Transaction{
			ID:            t.ID,
			Amount:        t.Amount,
			Currency:      t.Currency,
			Status:        t.Status,
			InvoiceURL:    t.InvoiceURL,
			FailureReason: t.FailureReason,
			OccurredAt:    t.OccurredAt,
		})
	}
	return ret, nil
}
