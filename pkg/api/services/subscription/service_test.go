package subscription_test

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations/stripe/stripetest"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/platformplatform/account-api/test/sharedtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	successURL = "https://app.example.com/ok"
	cancelURL  = "https://app.example.com/cancel"
)

func checkout(u *sharedtest.User, plan models.Plan) string {
	return u.E.POST("/api/account/subscriptions/checkout").
		WithJSON(map[string]string{"plan": string(plan), "successUrl": successURL, "cancelUrl": cancelURL}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("checkoutUrl").String().Raw()
}

// subscribe runs checkout and delivers webhooks stripe sends after payment
func subscribe(t *testing.T, ta *sharedtest.App, u *sharedtest.User) models.Subscription {
	checkout(u, models.PlanStandard)
	customerID := u.Subscription().StripeCustomerID
	require.NotEmpty(t, customerID)

	md := map[string]string{"tenant_id": strconv.Itoa(int(u.TenantID)), "plan": string(models.PlanStandard)}
	ta.SendWebhook("checkout.session.completed", stripetest.CheckoutSession(customerID, "sub_1", md)).
		Status(http.StatusOK)
	ta.SendWebhook("customer.subscription.updated", stripetest.Subscription(stripetest.SubscriptionParams{
		ID:         "sub_1",
		CustomerID: customerID,
		Status:     "active",
		PriceID:    sharedtest.PriceStandard,
		Amount:     2900,
		PeriodEnd:  time.Now().Add(30 * 24 * time.Hour),
		Metadata:   md,
	})).Status(http.StatusOK)
	require.NotZero(t, ta.ProcessQueue())

	return u.Subscription()
}

func TestCurrentOfNewTenant(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")

	obj := u.E.GET("/api/account/subscriptions/current").
		Expect().
		Status(http.StatusOK).
		JSON().Object()
	obj.Value("plan").String().Equal(string(models.PlanBasis))
	obj.Value("hasStripeSubscription").Boolean().False()
	obj.Value("tenantState").String().Equal(string(models.TenantStateActive))
}

func TestCheckout(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")

	url := checkout(u, models.PlanStandard)
	assert.Contains(t, url, "https://checkout.example.com/cs_fake")
	assert.Equal(t, "cus_fake1", u.Subscription().StripeCustomerID)

	// customer is reused by next checkout
	checkout(u, models.PlanPremium)
	assert.Len(t, ta.Provider.CallsOf("CreateCustomer"), 1)

	calls := ta.Provider.CallsOf("CreateCheckoutSession")
	require.Len(t, calls, 2)
	assert.Equal(t, []string{string(models.PlanPremium), sharedtest.PricePremium}, calls[1].Args)
}

func TestRepeatedCheckoutReusesOpenSession(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")

	first := checkout(u, models.PlanStandard)
	assert.Equal(t, first, checkout(u, models.PlanStandard))
	assert.Len(t, ta.Provider.CallsOf("CreateCheckoutSession"), 1)

	assert.NotEqual(t, first, checkout(u, models.PlanPremium))
	assert.Len(t, ta.Provider.CallsOf("CreateCheckoutSession"), 2)
}

func TestSecondCompletedCheckoutIsCancelled(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")
	sub := subscribe(t, ta, u)

	md := map[string]string{"tenant_id": strconv.Itoa(int(u.TenantID)), "plan": string(models.PlanPremium)}
	ta.SendWebhook("checkout.session.completed", stripetest.CheckoutSession(sub.StripeCustomerID, "sub_2", md)).
		Status(http.StatusOK)
	require.NotZero(t, ta.ProcessQueue())

	after := u.Subscription()
	assert.Equal(t, "sub_1", after.StripeSubscriptionID)
	assert.Equal(t, models.PlanStandard, after.Plan)

	calls := ta.Provider.CallsOf("CancelSubscription")
	require.Len(t, calls, 1)
	assert.Equal(t, "sub_2", calls[0].SubscriptionID)
}

func TestCheckoutValidation(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")

	u.E.POST("/api/account/subscriptions/checkout").
		WithJSON(map[string]string{"plan": "Gold", "successUrl": "not a url", "cancelUrl": cancelURL}).
		Expect().
		Status(http.StatusBadRequest)

	obj := u.E.POST("/api/account/subscriptions/checkout").
		WithJSON(map[string]string{"plan": string(models.PlanBasis), "successUrl": successURL, "cancelUrl": cancelURL}).
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Path("$.error").Object()
	obj.Value("code").String().Equal("INVALID_PLAN")
	obj.Value("message").String().Equal("Cannot subscribe to the Basis plan.")

	assert.Empty(t, ta.Provider.CallsOf("CreateCheckoutSession"))
}

func TestCheckoutCompleted(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")

	sub := subscribe(t, ta, u)
	assert.Equal(t, models.PlanStandard, sub.Plan)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
	assert.EqualValues(t, 2900, sub.CurrentPriceAmount)

	obj := u.E.GET("/api/account/subscriptions/current").
		Expect().
		Status(http.StatusOK).
		JSON().Object()
	obj.Value("plan").String().Equal(string(models.PlanStandard))
	obj.Value("hasStripeSubscription").Boolean().True()
	obj.Value("priceAmount").Number().Equal(2900)

	u.E.POST("/api/account/subscriptions/checkout").
		WithJSON(map[string]string{"plan": string(models.PlanPremium), "successUrl": successURL, "cancelUrl": cancelURL}).
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Path("$.error.code").String().Equal("ALREADY_SUBSCRIBED")
}

func TestUpgrade(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")
	subscribe(t, ta, u)

	for i := 0; i < 2; i++ {
		obj := u.E.GET("/api/account/subscriptions/upgrade-preview").
			WithQuery("plan", string(models.PlanPremium)).
			Expect().
			Status(http.StatusOK).
			JSON().Object()
		obj.Value("amount").Number().Equal(1500)
		obj.Value("currency").String().Equal("usd")
	}
	assert.Len(t, ta.Provider.CallsOf("PreviewUpgrade"), 1, "second preview must be cached")

	u.E.GET("/api/account/subscriptions/upgrade-preview").
		WithQuery("plan", string(models.PlanStandard)).
		Expect().
		Status(http.StatusNotAcceptable)

	u.E.POST("/api/account/subscriptions/upgrade").
		WithJSON(map[string]string{"plan": string(models.PlanPremium)}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("plan").String().Equal(string(models.PlanPremium))

	calls := ta.Provider.CallsOf("UpgradeSubscription")
	require.Len(t, calls, 1)
	assert.Equal(t, "sub_1", calls[0].SubscriptionID)
	assert.Equal(t, sharedtest.PricePremium, calls[0].Change.PriceID)
	assert.Equal(t, models.PlanPremium, u.Subscription().Plan)
}

func TestDowngrade(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")
	subscribe(t, ta, u)

	u.E.POST("/api/account/subscriptions/downgrade").
		WithJSON(map[string]string{"plan": string(models.PlanBasis)}).
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Path("$.error.message").String().Equal("Cannot downgrade to the Basis plan.")

	u.E.POST("/api/account/subscriptions/downgrade").
		WithJSON(map[string]string{"plan": string(models.PlanPremium)}).
		Expect().
		Status(http.StatusNotAcceptable)

	u.E.POST("/api/account/subscriptions/cancel-downgrade").
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Path("$.error.code").String().Equal("NO_SCHEDULED_DOWNGRADE")

	u.E.POST("/api/account/subscriptions/upgrade").
		WithJSON(map[string]string{"plan": string(models.PlanPremium)}).
		Expect().
		Status(http.StatusOK)

	obj := u.E.POST("/api/account/subscriptions/downgrade").
		WithJSON(map[string]string{"plan": string(models.PlanStandard)}).
		Expect().
		Status(http.StatusOK).
		JSON().Object()
	obj.Value("plan").String().Equal(string(models.PlanPremium))
	obj.Value("scheduledPlan").String().Equal(string(models.PlanStandard))
	assert.Len(t, ta.Provider.CallsOf("ScheduleDowngrade"), 1)

	u.E.POST("/api/account/subscriptions/cancel-downgrade").
		Expect().
		Status(http.StatusOK).
		JSON().Object().NotContainsKey("scheduledPlan")
	assert.Len(t, ta.Provider.CallsOf("CancelScheduledDowngrade"), 1)
	assert.Empty(t, u.Subscription().ScheduledPlan)
}

func TestCancelAndReactivate(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")
	subscribe(t, ta, u)

	u.E.POST("/api/account/subscriptions/reactivate").
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Path("$.error.code").String().Equal("NOT_CANCELLING")

	u.E.POST("/api/account/subscriptions/cancel").
		WithJSON(map[string]string{"feedback": "too expensive"}).
		Expect().
		Status(http.StatusBadRequest).
		JSON().Path("$.error.fields").Object().ContainsKey("reason")

	u.E.POST("/api/account/subscriptions/cancel").
		WithJSON(map[string]string{"reason": "TooExpensive", "feedback": "too expensive"}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("cancelAtPeriodEnd").Boolean().True()

	sub := u.Subscription()
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, "too expensive", sub.CancellationFeedback)

	u.E.POST("/api/account/subscriptions/cancel").
		WithJSON(map[string]string{"reason": "TooExpensive"}).
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Path("$.error.code").String().Equal("ALREADY_CANCELLING")

	u.E.POST("/api/account/subscriptions/reactivate").
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("cancelAtPeriodEnd").Boolean().False()
	assert.Len(t, ta.Provider.CallsOf("Reactivate"), 1)
}

func TestManagingRequiresSubscription(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")

	u.E.POST("/api/account/subscriptions/upgrade").
		WithJSON(map[string]string{"plan": string(models.PlanPremium)}).
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Path("$.error.code").String().Equal("NO_ACTIVE_SUBSCRIPTION")

	u.E.POST("/api/account/subscriptions/payment-method/setup").
		WithJSON(map[string]string{"returnUrl": successURL}).
		Expect().
		Status(http.StatusNotAcceptable)
}

func TestOnlyOwnerManagesSubscription(t *testing.T) {
	ta := sharedtest.RunApp(t)
	owner := ta.Signup(t, "owner@example.com")
	subscribe(t, ta, owner)
	admin := owner.Invite("admin@example.com", models.UserRoleAdmin)

	admin.E.GET("/api/account/subscriptions/current").
		Expect().
		Status(http.StatusOK)

	admin.E.POST("/api/account/subscriptions/cancel").
		WithJSON(map[string]string{"reason": "TooExpensive"}).
		Expect().
		Status(http.StatusForbidden).
		JSON().Path("$.error.message").String().Equal("Only owners can manage subscriptions.")

	admin.E.POST("/api/account/subscriptions/checkout").
		WithJSON(map[string]string{"plan": string(models.PlanPremium), "successUrl": successURL, "cancelUrl": cancelURL}).
		Expect().
		Status(http.StatusForbidden)

	assert.Empty(t, ta.Provider.CallsOf("CancelAtPeriodEnd"))
}

func TestUpdateBillingInfo(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")

	u.E.PUT("/api/account/subscriptions/billing-info").
		WithJSON(map[string]interface{}{"name": "", "email": "wrong"}).
		Expect().
		Status(http.StatusBadRequest)

	obj := u.E.PUT("/api/account/subscriptions/billing-info").
		WithJSON(map[string]interface{}{
			"name":  "Acme Inc",
			"email": "billing@acme.example.com",
			"address": map[string]string{
				"line1":      "1 Main St",
				"postalCode": "1000",
				"city":       "Copenhagen",
				"country":    "DK",
			},
		}).
		Expect().
		Status(http.StatusOK).
		JSON().Object()
	obj.Path("$.billingInfo.name").String().Equal("Acme Inc")

	calls := ta.Provider.CallsOf("UpdateBillingInfo")
	require.Len(t, calls, 1)
	assert.Equal(t, "cus_fake1", calls[0].CustomerID)

	sub := u.Subscription()
	require.NotNil(t, sub.BillingInfo)
	assert.Equal(t, "billing@acme.example.com", sub.BillingInfo.Email)
}

func TestSetupPaymentMethod(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")
	subscribe(t, ta, u)

	u.E.POST("/api/account/subscriptions/payment-method/setup").
		WithJSON(map[string]string{"returnUrl": "ftp:/x"}).
		Expect().
		Status(http.StatusBadRequest)

	u.E.POST("/api/account/subscriptions/payment-method/setup").
		WithJSON(map[string]string{"returnUrl": successURL}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("setupUrl").String().Contains("https://checkout.example.com/setup/")
}

func TestPaymentFailureAndRecovery(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")
	sub := subscribe(t, ta, u)

	ta.SendWebhook("invoice.payment_failed", stripetest.Invoice(stripetest.InvoiceParams{
		ID:             "in_1",
		CustomerID:     sub.StripeCustomerID,
		SubscriptionID: "sub_1",
		ChargeID:       "ch_1",
		BillingReason:  "subscription_cycle",
		Amount:         2900,
	})).Status(http.StatusOK)
	ta.ProcessQueue()

	assert.Equal(t, models.TenantStatePastDue, u.Tenant().State)
	sent := ta.Mailer.SentTo("owner@example.com")
	require.NotEmpty(t, sent)
	assert.Equal(t, "Payment failed", sent[len(sent)-1].Subject)

	txs := u.E.GET("/api/account/subscriptions/transactions").
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("transactions").Array()
	txs.Length().Equal(1)
	txs.Element(0).Object().Value("status").String().Equal(string(models.PaymentTransactionStatusFailed))

	// past due tenants can still manage their plan
	u.E.POST("/api/account/subscriptions/upgrade").
		WithJSON(map[string]string{"plan": string(models.PlanPremium)}).
		Expect().
		Status(http.StatusOK)

	ta.SendWebhook("invoice.paid", stripetest.Invoice(stripetest.InvoiceParams{
		ID:             "in_1",
		CustomerID:     sub.StripeCustomerID,
		SubscriptionID: "sub_1",
		ChargeID:       "ch_1",
		BillingReason:  "subscription_cycle",
		Amount:         2900,
		Paid:           true,
	})).Status(http.StatusOK)
	ta.ProcessQueue()

	assert.Equal(t, models.TenantStateActive, u.Tenant().State)
	assert.Nil(t, u.Subscription().FirstPaymentFailedAt)
	u.E.GET("/api/account/subscriptions/transactions").
		Expect().
		Status(http.StatusOK).
		JSON().Path("$.transactions[0].status").String().Equal(string(models.PaymentTransactionStatusSucceeded))
}

func TestSuspendedTenantCannotChangePlan(t *testing.T) {
	ta := sharedtest.RunApp(t)
	u := ta.Signup(t, "owner@example.com")
	sub := subscribe(t, ta, u)

	ta.SendWebhook("customer.subscription.updated", stripetest.Subscription(stripetest.SubscriptionParams{
		ID:         "sub_1",
		CustomerID: sub.StripeCustomerID,
		Status:     "unpaid",
		PriceID:    sharedtest.PriceStandard,
		Amount:     2900,
		PeriodEnd:  time.Now().Add(30 * 24 * time.Hour),
	})).Status(http.StatusOK)
	ta.ProcessQueue()

	tenant := u.Tenant()
	require.Equal(t, models.TenantStateSuspended, tenant.State)
	assert.Equal(t, models.SuspensionReasonPaymentFailed, tenant.SuspensionReason)

	u.E.POST("/api/account/subscriptions/upgrade").
		WithJSON(map[string]string{"plan": string(models.PlanPremium)}).
		Expect().
		Status(http.StatusNotAcceptable).
		JSON().Path("$.error.code").String().Equal("TENANT_SUSPENDED")

	// fixing payment stays possible
	u.E.POST("/api/account/subscriptions/payment-method/setup").
		WithJSON(map[string]string{"returnUrl": successURL}).
		Expect().
		Status(http.StatusOK)
	u.E.GET("/api/account/subscriptions/current").
		Expect().
		Status(http.StatusOK).
		JSON().Object().Value("tenantState").String().Equal(string(models.TenantStateSuspended))
}
