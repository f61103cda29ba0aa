// Package fake is an in-memory payment provider for tests and local development.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	"github.com/platformplatform/account-api/pkg/api/models"
)

const ProviderName = "fake"

type Call struct {
	Method         string
	SubscriptionID string
	CustomerID     string
	Change         paymentprovider.PlanChange
	Args           []string
}

type Provider struct {
	mu       sync.Mutex
	seq      int
	calls    []Call
	failures map[string][]error

	ProrationAmount int64
}

var _ paymentprovider.Provider = &Provider{}

func NewProvider() *Provider {
	return &Provider{
		failures:        map[string][]error{},
		ProrationAmount: 1500,
	}
}

func (p *Provider) Name() string {
	return ProviderName
}

// FailNext makes next n calls of method return err.
func (p *Provider) FailNext(method string, err error, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < n; i++ {
		p.failures[method] = append(p.failures[method], err)
	}
}

func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]Call(nil), p.calls...)
}

func (p *Provider) CallsOf(method string) []Call {
	var ret []Call
	for _, c := range p.Calls() {
		if c.Method == method {
			ret = append(ret, c)
		}
	}
	return ret
}

func (p *Provider) record(c Call) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if errs := p.failures[c.Method]; len(errs) != 0 {
		p.failures[c.Method] = errs[1:]
		return errs[0]
	}

	p.calls = append(p.calls, c)
	return nil
}

func (p *Provider) nextID(prefix string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	return fmt.Sprintf("%s_fake%d", prefix, p.seq)
}

func (p *Provider) CreateCustomer(ctx context.Context, payload paymentprovider.CreateCustomerPayload) (string, error) {
	if err := p.record(Call{Method: "CreateCustomer", Args: []string{payload.Email}}); err != nil {
		return "", err
	}
	return p.nextID("cus"), nil
}

func (p *Provider) UpdateBillingInfo(ctx context.Context, customerID string, info models.BillingInfo) error {
	return p.record(Call{Method: "UpdateBillingInfo", CustomerID: customerID, Args: []string{info.Name, info.Email}})
}

func (p *Provider) CreateCheckoutSession(ctx context.Context, payload paymentprovider.CheckoutPayload) (*paymentprovider.Session, error) {
	err := p.record(Call{Method: "CreateCheckoutSession", CustomerID: payload.CustomerID,
		Args: []string{string(payload.Plan), payload.PriceID}})
	if err != nil {
		return nil, err
	}

	id := p.nextID("cs")
	return &paymentprovider.Session{ID: id, URL: "https://checkout.example.com/" + id}, nil
}

func (p *Provider) CreateSetupSession(ctx context.Context, customerID, returnURL string) (*paymentprovider.Session, error) {
	if err := p.record(Call{Method: "CreateSetupSession", CustomerID: customerID, Args: []string{returnURL}}); err != nil {
		return nil, err
	}

	id := p.nextID("cs")
	return &paymentprovider.Session{ID: id, URL: "https://checkout.example.com/setup/" + id}, nil
}

func (p *Provider) UpgradeSubscription(ctx context.Context, subscriptionID string, change paymentprovider.PlanChange) error {
	return p.record(Call{Method: "UpgradeSubscription", SubscriptionID: subscriptionID, Change: change})
}

func (p *Provider) PreviewUpgrade(ctx context.Context, customerID, subscriptionID string,
	change paymentprovider.PlanChange) (*paymentprovider.Proration, error) {

	err := p.record(Call{Method: "PreviewUpgrade", CustomerID: customerID, SubscriptionID: subscriptionID, Change: change})
	if err != nil {
		return nil, err
	}
	return &paymentprovider.Proration{Amount: p.ProrationAmount, Currency: "usd"}, nil
}

func (p *Provider) ScheduleDowngrade(ctx context.Context, subscriptionID string, change paymentprovider.PlanChange) error {
	return p.record(Call{Method: "ScheduleDowngrade", SubscriptionID: subscriptionID, Change: change})
}

func (p *Provider) CancelScheduledDowngrade(ctx context.Context, subscriptionID string, current paymentprovider.PlanChange) error {
	return p.record(Call{Method: "CancelScheduledDowngrade", SubscriptionID: subscriptionID, Change: current})
}

func (p *Provider) CancelAtPeriodEnd(ctx context.Context, subscriptionID string, reason, feedback string) error {
	return p.record(Call{Method: "CancelAtPeriodEnd", SubscriptionID: subscriptionID, Args: []string{reason, feedback}})
}

func (p *Provider) Reactivate(ctx context.Context, subscriptionID string) error {
	return p.record(Call{Method: "Reactivate", SubscriptionID: subscriptionID})
}

func (p *Provider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return p.record(Call{Method: "CancelSubscription", SubscriptionID: subscriptionID})
}
