package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/apierrors"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations/stripe"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations/stripe/stripetest"
	"github.com/platformplatform/account-api/internal/shared/db/gormdb/gormdbtest"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/internal/shared/metrics"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/platformplatform/account-api/pkg/api/request"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

type queueMock struct {
	puts []string
	err  error
}

func (q *queueMock) Put(customerID string) error {
	if q.err != nil {
		return q.err
	}
	q.puts = append(q.puts, customerID)
	return nil
}

type testEnv struct {
	db    *gorm.DB
	svc   BasicService
	queue *queueMock
	rc    *request.AnonymousContext
}

func newTestEnv(t *testing.T) *testEnv {
	db := gormdbtest.OpenSQLite(t, models.All()...)
	q := &queueMock{}
	return &testEnv{
		db:    db,
		queue: q,
		svc: BasicService{
			Verifier: stripe.NewEventVerifier(testSecret),
			Queue:    q,
			Metrics:  metrics.New(),
		},
		rc: &request.AnonymousContext{
			BaseContext: request.BaseContext{
				Ctx:       context.Background(),
				Log:       logutil.NewStderrLog("test"),
				Lctx:      logutil.Context{},
				DB:        db,
				StartedAt: time.Now(),
			},
		},
	}
}

func (e *testEnv) receive(payload []byte) error {
	sig := &request.StripeSignature{Signature: stripetest.Sign(payload, testSecret)}
	return e.svc.Receive(e.rc, sig, request.Body(payload))
}

func (e *testEnv) events(t *testing.T) []models.StripeEvent {
	var events []models.StripeEvent
	require.NoError(t, e.db.Order("id").Find(&events).Error)
	return events
}

func subscriptionUpdated(id string) []byte {
	return stripetest.Event(id, "customer.subscription.updated", time.Now(), stripetest.Subscription(stripetest.SubscriptionParams{
		ID:         "sub_1",
		CustomerID: "cus_1",
		Status:     "active",
		PriceID:    "price_std",
		Amount:     1900,
	}))
}

func TestReceiveStoresAndEnqueues(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.receive(subscriptionUpdated("evt_1")))

	events := e.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "evt_1", events[0].StripeEventID)
	assert.Equal(t, models.StripeEventStatusPending, events[0].Status)
	assert.Equal(t, "cus_1", events[0].StripeCustomerID)
	assert.Equal(t, "sub_1", events[0].StripeSubscriptionID)
	assert.Equal(t, []string{"cus_1"}, e.queue.puts)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		e.svc.Metrics.WebhookEvents.WithLabelValues("customer.subscription.updated", resultAccepted)))
}

func TestReceiveRejectsInvalidSignature(t *testing.T) {
	e := newTestEnv(t)
	payload := subscriptionUpdated("evt_1")

	err := e.svc.Receive(e.rc, &request.StripeSignature{Signature: stripetest.Sign(payload, "whsec_other")}, payload)
	require.Error(t, err)
	assert.Equal(t, apierrors.ErrBadRequest, errors.Cause(err))

	err = e.svc.Receive(e.rc, &request.StripeSignature{}, payload)
	assert.Equal(t, apierrors.ErrBadRequest, errors.Cause(err))

	assert.Empty(t, e.events(t))
	assert.Empty(t, e.queue.puts)
}

func TestReceiveSkipsDuplicates(t *testing.T) {
	e := newTestEnv(t)
	payload := subscriptionUpdated("evt_1")
	require.NoError(t, e.receive(payload))
	require.NoError(t, e.receive(payload))

	assert.Len(t, e.events(t), 1)
	assert.Equal(t, []string{"cus_1"}, e.queue.puts)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		e.svc.Metrics.WebhookEvents.WithLabelValues("customer.subscription.updated", resultDuplicate)))
}

func TestReceiveIgnoresUnhandledTypes(t *testing.T) {
	e := newTestEnv(t)
	payload := stripetest.Event("evt_1", "customer.tax_id.created", time.Now(), stripetest.Object{
		"id":       "txi_1",
		"object":   "tax_id",
		"customer": "cus_1",
	})
	require.NoError(t, e.receive(payload))

	events := e.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, models.StripeEventStatusIgnored, events[0].Status)
	assert.Empty(t, e.queue.puts)
}

func TestReceiveResolvesDisputeCustomer(t *testing.T) {
	e := newTestEnv(t)
	sub := models.Subscription{TenantID: 1, Plan: models.PlanStandard, StripeCustomerID: "cus_1"}
	require.NoError(t, e.db.Create(&sub).Error)
	require.NoError(t, e.db.Create(&models.PaymentTransaction{
		SubscriptionID:  sub.ID,
		StripeInvoiceID: "in_1",
		StripeChargeID:  "ch_1",
		Amount:          1900,
		Status:          models.PaymentTransactionStatusSucceeded,
		OccurredAt:      time.Now(),
	}).Error)

	require.NoError(t, e.receive(stripetest.Event("evt_1", "charge.dispute.created", time.Now(),
		stripetest.Dispute("dp_1", "ch_1", 1900))))
	require.NoError(t, e.receive(stripetest.Event("evt_2", "charge.dispute.created", time.Now(),
		stripetest.Dispute("dp_2", "ch_unknown", 500))))

	events := e.events(t)
	require.Len(t, events, 2)
	assert.Equal(t, "cus_1", events[0].StripeCustomerID)
	assert.Equal(t, "", events[1].StripeCustomerID)
	assert.Equal(t, models.StripeEventStatusPending, events[1].Status)
	assert.Equal(t, []string{"cus_1"}, e.queue.puts)
}

func TestReceiveFailsWhenQueueIsDown(t *testing.T) {
	e := newTestEnv(t)
	e.queue.err = errors.New("connection refused")

	require.Error(t, e.receive(subscriptionUpdated("evt_1")))
	// the event is saved, the retried delivery is a duplicate and the cron picks it up
	assert.Len(t, e.events(t), 1)
}
