package stripe

import (
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	"github.com/stripe/stripe-go/v82/webhook"
)

type EventVerifier struct {
	EventParser

	secret string
}

func NewEventVerifier(secret string) *EventVerifier {
	return &EventVerifier{secret: secret}
}

func (v EventVerifier) VerifyEvent(payload []byte, signature string) (*paymentprovider.Event, error) {
	if v.secret == "" {
		return nil, errors.Wrap(paymentprovider.ErrInvalidSignature, "no webhook secret configured")
	}

	// events of any api version are parsed by our own structs
	_, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Wrap(paymentprovider.ErrInvalidSignature, err.Error())
	}

	return v.ParseEvent(payload)
}
