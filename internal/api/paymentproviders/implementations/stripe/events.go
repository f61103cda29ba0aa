package stripe

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	"github.com/platformplatform/account-api/pkg/api/models"
)

// expandableID is an object id which Stripe sends either as a string or as an expanded object.
type expandableID string

func (id *expandableID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = expandableID(s)
		return nil
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*id = expandableID(obj.ID)
	return nil
}

type eventEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSessionObject struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	Customer     expandableID      `json:"customer"`
	Subscription expandableID      `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type priceObject struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

type subscriptionObject struct {
	ID                  string            `json:"id"`
	Customer            expandableID      `json:"customer"`
	Status              string            `json:"status"`
	CancelAtPeriodEnd   bool              `json:"cancel_at_period_end"`
	CurrentPeriodEnd    int64             `json:"current_period_end"`
	Metadata            map[string]string `json:"metadata"`
	CancellationDetails *struct {
		Reason   string `json:"reason"`
		Feedback string `json:"feedback"`
	} `json:"cancellation_details"`
	Items struct {
		Data []struct {
			ID               string      `json:"id"`
			Price            priceObject `json:"price"`
			CurrentPeriodEnd int64       `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

type invoiceObject struct {
	ID               string       `json:"id"`
	Customer         expandableID `json:"customer"`
	Subscription     expandableID `json:"subscription"`
	Charge           expandableID `json:"charge"`
	BillingReason    string       `json:"billing_reason"`
	AmountDue        int64        `json:"amount_due"`
	AmountPaid       int64        `json:"amount_paid"`
	Currency         string       `json:"currency"`
	HostedInvoiceURL string       `json:"hosted_invoice_url"`
	AttemptCount     int          `json:"attempt_count"`
	Parent           *struct {
		SubscriptionDetails *struct {
			Subscription expandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	LastFinalizationError *struct {
		Message string `json:"message"`
	} `json:"last_finalization_error"`
}

type chargeObject struct {
	ID             string       `json:"id"`
	Customer       expandableID `json:"customer"`
	Invoice        expandableID `json:"invoice"`
	AmountRefunded int64        `json:"amount_refunded"`
	Currency       string       `json:"currency"`
}

type disputeObject struct {
	ID     string       `json:"id"`
	Charge expandableID `json:"charge"`
	Amount int64        `json:"amount"`
	Reason string       `json:"reason"`
}

type customerObject struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address *struct {
		Line1      string `json:"line1"`
		Line2      string `json:"line2"`
		PostalCode string `json:"postal_code"`
		City       string `json:"city"`
		State      string `json:"state"`
		Country    string `json:"country"`
	} `json:"address"`
	Metadata map[string]string `json:"metadata"`
}

type paymentMethodObject struct {
	ID       string       `json:"id"`
	Customer expandableID `json:"customer"`
	Type     string       `json:"type"`
	Card     *struct {
		Brand    string `json:"brand"`
		Last4    string `json:"last4"`
		ExpMonth int    `json:"exp_month"`
		ExpYear  int    `json:"exp_year"`
	} `json:"card"`
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

type EventParser struct{}

func (EventParser) ParseEvent(payload []byte) (*paymentprovider.Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Wrap(paymentprovider.ErrInvalidEvent, err.Error())
	}
	if env.ID == "" || env.Type == "" {
		return nil, errors.Wrap(paymentprovider.ErrInvalidEvent, "no event id or type")
	}

	ev := &paymentprovider.Event{
		ID:        env.ID,
		Type:      paymentprovider.EventType(env.Type),
		CreatedAt: time.Unix(env.Created, 0).UTC(),
	}
	if !ev.Type.IsHandled() {
		return ev, nil // data isn't needed
	}

	if err := parseObject(ev, env.Data.Object); err != nil {
		return nil, errors.Wrapf(paymentprovider.ErrInvalidEvent, "can't parse %s object: %s", ev.Type, err)
	}

	return ev, nil
}

//nolint:gocyclo
func parseObject(ev *paymentprovider.Event, raw json.RawMessage) error {
	switch ev.Type {
	case paymentprovider.EventCheckoutSessionCompleted:
		var o checkoutSessionObject
		if err := json.Unmarshal(raw, &o); err != nil {
			return err
		}
		ev.CustomerID = string(o.Customer)
		ev.SubscriptionID = string(o.Subscription)
		ev.CheckoutSession = &paymentprovider.CheckoutSessionData{
			ID:             o.ID,
			Mode:           o.Mode,
			SubscriptionID: string(o.Subscription),
			Metadata:       o.Metadata,
		}

	case paymentprovider.EventSubscriptionCreated, paymentprovider.EventSubscriptionUpdated,
		paymentprovider.EventSubscriptionDeleted:

		var o subscriptionObject
		if err := json.Unmarshal(raw, &o); err != nil {
			return err
		}
		ev.CustomerID = string(o.Customer)
		ev.SubscriptionID = o.ID
		ev.Subscription = convertSubscription(&o)

	case paymentprovider.EventInvoicePaid, paymentprovider.EventInvoicePaymentSucceeded,
		paymentprovider.EventInvoicePaymentFailed:

		var o invoiceObject
		if err := json.Unmarshal(raw, &o); err != nil {
			return err
		}
		ev.CustomerID = string(o.Customer)
		ev.Invoice = convertInvoice(&o)
		ev.SubscriptionID = ev.Invoice.SubscriptionID

	case paymentprovider.EventChargeRefunded:
		var o chargeObject
		if err := json.Unmarshal(raw, &o); err != nil {
			return err
		}
		ev.CustomerID = string(o.Customer)
		ev.Charge = &paymentprovider.ChargeData{
			ID:             o.ID,
			InvoiceID:      string(o.Invoice),
			AmountRefunded: o.AmountRefunded,
			Currency:       o.Currency,
		}

	case paymentprovider.EventChargeDisputeCreated:
		var o disputeObject
		if err := json.Unmarshal(raw, &o); err != nil {
			return err
		}
		// disputes have no customer, it's resolved by the charge
		ev.Dispute = &paymentprovider.DisputeData{
			ID:       o.ID,
			ChargeID: string(o.Charge),
			Amount:   o.Amount,
			Reason:   o.Reason,
		}

	case paymentprovider.EventCustomerUpdated:
		var o customerObject
		if err := json.Unmarshal(raw, &o); err != nil {
			return err
		}
		ev.CustomerID = o.ID
		ev.Customer = convertCustomer(&o)

	case paymentprovider.EventPaymentMethodAttached:
		var o paymentMethodObject
		if err := json.Unmarshal(raw, &o); err != nil {
			return err
		}
		ev.CustomerID = string(o.Customer)
		pm := paymentprovider.PaymentMethodData{
			ID:     o.ID,
			Method: models.PaymentMethod{Type: o.Type},
		}
		if o.Card != nil {
			pm.Method.Brand = o.Card.Brand
			pm.Method.Last4 = o.Card.Last4
			pm.Method.ExpMonth = o.Card.ExpMonth
			pm.Method.ExpYear = o.Card.ExpYear
		}
		ev.PaymentMethod = &pm
	}

	return nil
}

func convertSubscription(o *subscriptionObject) *paymentprovider.SubscriptionData {
	sd := &paymentprovider.SubscriptionData{
		ID:                o.ID,
		Status:            paymentprovider.SubscriptionStatus(o.Status),
		CancelAtPeriodEnd: o.CancelAtPeriodEnd,
		CurrentPeriodEnd:  unixTime(o.CurrentPeriodEnd),
		Metadata:          o.Metadata,
	}
	if sd.Metadata == nil {
		sd.Metadata = map[string]string{}
	}

	if len(o.Items.Data) != 0 {
		item := o.Items.Data[0]
		sd.PriceID = item.Price.ID
		sd.PriceAmount = item.Price.UnitAmount
		sd.Currency = item.Price.Currency
		if item.CurrentPeriodEnd != 0 { // newer api versions moved it to items
			sd.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
		}
	}

	if o.CancellationDetails != nil {
		sd.CancellationReason = paymentprovider.CancellationReason(o.CancellationDetails.Reason)
		sd.Feedback = o.CancellationDetails.Feedback
	}

	return sd
}

func convertInvoice(o *invoiceObject) *paymentprovider.InvoiceData {
	inv := &paymentprovider.InvoiceData{
		ID:               o.ID,
		SubscriptionID:   string(o.Subscription),
		ChargeID:         string(o.Charge),
		BillingReason:    o.BillingReason,
		AmountDue:        o.AmountDue,
		AmountPaid:       o.AmountPaid,
		Currency:         o.Currency,
		HostedInvoiceURL: o.HostedInvoiceURL,
		AttemptCount:     o.AttemptCount,
	}

	if inv.SubscriptionID == "" && o.Parent != nil && o.Parent.SubscriptionDetails != nil {
		inv.SubscriptionID = string(o.Parent.SubscriptionDetails.Subscription)
	}
	if o.LastFinalizationError != nil {
		inv.FailureMessage = o.LastFinalizationError.Message
	}

	return inv
}

func convertCustomer(o *customerObject) *paymentprovider.CustomerData {
	info := models.BillingInfo{
		Name:  o.Name,
		Email: o.Email,
		TaxID: o.Metadata[metadataTaxID],
	}
	if o.Address != nil {
		info.Address = &models.Address{
			Line1:      o.Address.Line1,
			Line2:      o.Address.Line2,
			PostalCode: o.Address.PostalCode,
			City:       o.Address.City,
			State:      o.Address.State,
			Country:    o.Address.Country,
		}
	}

	return &paymentprovider.CustomerData{
		ID:          o.ID,
		BillingInfo: info,
	}
}

func formatUnix(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}
