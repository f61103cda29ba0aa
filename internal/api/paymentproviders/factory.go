package paymentproviders

import (
	"time"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations/fake"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations/stripe"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
)

// Build returns provider configured by PAYMENT_PROVIDER: stripe (default) or fake.
func Build(cfg config.Config, log logutil.Log, onRetry implementations.RetryObserver) (paymentprovider.Provider, error) {
	var p paymentprovider.Provider
	switch name := cfg.GetString("PAYMENT_PROVIDER"); name {
	case "", stripe.ProviderName:
		apiKey := cfg.GetString("STRIPE_API_KEY")
		if apiKey == "" {
			return nil, errors.New("no STRIPE_API_KEY in config")
		}
		currency := cfg.GetString("STRIPE_CURRENCY")
		if currency == "" {
			currency = "usd"
		}
		p = stripe.NewProvider(log.Child("stripe"), apiKey, currency)
	case fake.ProviderName:
		log.Warnf("Using fake payment provider")
		p = fake.NewProvider()
	default:
		return nil, errors.Errorf("invalid payment provider %q", name)
	}

	timeout := cfg.GetDuration("PAYMENT_PROVIDER_TIMEOUT", 30*time.Second)
	return implementations.NewStableProvider(p, timeout, cfg.GetInt("PAYMENT_PROVIDER_MAX_RETRIES", 3), onRetry), nil
}

func BuildEventVerifier(cfg config.Config) *stripe.EventVerifier {
	return stripe.NewEventVerifier(cfg.GetString("STRIPE_WEBHOOK_SECRET"))
}
