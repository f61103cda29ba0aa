package webhook

import (
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/apierrors"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	"github.com/platformplatform/account-api/internal/shared/db/gormdb"
	"github.com/platformplatform/account-api/internal/shared/metrics"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/platformplatform/account-api/pkg/api/request"
)

const MaxBodyBytes = 256 << 10

const (
	resultInvalid   = "invalid"
	resultDuplicate = "duplicate"
	resultIgnored   = "ignored"
	resultAccepted  = "accepted"
)

// ProcessQueue schedules processing of pending events of a customer.
type ProcessQueue interface {
	Put(customerID string) error
}

type Service interface {
	//url:/api/account/subscriptions/stripe-webhook method:POST
	Receive(rc *request.AnonymousContext, sig *request.StripeSignature, body request.Body) error
}

type BasicService struct {
	Verifier paymentprovider.EventVerifier
	Queue    ProcessQueue
	Metrics  *metrics.Metrics
}

func (s BasicService) count(eventType paymentprovider.EventType, result string) {
	if s.Metrics != nil {
		s.Metrics.WebhookEvents.WithLabelValues(string(eventType), result).Inc()
	}
}

// resolveCustomer finds customer of events without it, e.g. disputes reference only a charge.
func resolveCustomer(rc *request.AnonymousContext, ev *paymentprovider.Event) (string, error) {
	if ev.CustomerID != "" || ev.Dispute == nil || ev.Dispute.ChargeID == "" {
		return ev.CustomerID, nil
	}

	var tx models.PaymentTransaction
	err := rc.DB.Where("stripe_charge_id = ?", ev.Dispute.ChargeID).First(&tx).Error
	if err != nil {
		if gormdb.IsRecordNotFound(err) {
			rc.Log.Warnf("No transaction for disputed charge %s", ev.Dispute.ChargeID)
			return "", nil
		}
		return "", errors.Wrapf(err, "failed to find transaction of charge %s", ev.Dispute.ChargeID)
	}

	var sub models.Subscription
	if err = rc.DB.Where("id = ?", tx.SubscriptionID).First(&sub).Error; err != nil {
		return "", errors.Wrapf(err, "failed to fetch subscription %d", tx.SubscriptionID)
	}

	return sub.StripeCustomerID, nil
}

func isKnownEvent(rc *request.AnonymousContext, id string) (bool, error) {
	var n int
	if err := rc.DB.Model(&models.StripeEvent{}).Where("stripe_event_id = ?", id).Count(&n).Error; err != nil {
		return false, errors.Wrapf(err, "failed to check event %s", id)
	}

	return n != 0, nil
}

func (s BasicService) Receive(rc *request.AnonymousContext, sig *request.StripeSignature, body request.Body) error {
	ev, err := s.Verifier.VerifyEvent(body, sig.Signature)
	if err != nil {
		s.count("", resultInvalid)
		return errors.Wrapf(apierrors.ErrBadRequest, "invalid webhook: %s", err)
	}

	rc.Lctx["stripe_event_id"] = ev.ID
	rc.Lctx["stripe_event_type"] = ev.Type

	known, err := isKnownEvent(rc, ev.ID)
	if err != nil {
		return err
	}
	if known {
		s.count(ev.Type, resultDuplicate)
		rc.Log.Infof("Skipping duplicate event")
		return nil
	}

	customerID, err := resolveCustomer(rc, ev)
	if err != nil {
		return err
	}

	status := models.StripeEventStatusPending
	if !ev.Type.IsHandled() {
		status = models.StripeEventStatusIgnored
	}

	se := models.StripeEvent{
		StripeEventID:        ev.ID,
		Type:                 string(ev.Type),
		Status:               status,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: ev.SubscriptionID,
		StripeCreatedAt:      ev.CreatedAt,
		Payload:              string(body),
	}
	if err = rc.DB.Create(&se).Error; err != nil {
		// a parallel delivery of the same event could have been saved first
		if known, _ = isKnownEvent(rc, ev.ID); known {
			s.count(ev.Type, resultDuplicate)
			return nil
		}
		return errors.Wrapf(err, "failed to save event %s", ev.ID)
	}

	if status == models.StripeEventStatusIgnored {
		s.count(ev.Type, resultIgnored)
		return nil
	}

	s.count(ev.Type, resultAccepted)
	if customerID == "" {
		rc.Log.Warnf("Event has no customer, keeping it pending")
		return nil
	}

	if err = s.Queue.Put(customerID); err != nil {
		return errors.Wrapf(err, "failed to enqueue processing of customer %s", customerID)
	}

	return nil
}
