package paymentproviders

import (
	"testing"

	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceCatalog(t *testing.T) {
	cfg := config.NewMapConfig(map[string]string{
		"STRIPE_PRICE_STANDARD": "price_std",
		"STRIPE_PRICE_PREMIUM":  "price_prem",
	}, config.NewEnvConfig(logutil.NewStderrLog("test")))
	c := NewPriceCatalogFromConfig(cfg)

	price, err := c.PriceID(models.PlanPremium)
	require.NoError(t, err)
	assert.Equal(t, "price_prem", price)

	_, err = c.PriceID(models.PlanBasis)
	assert.Error(t, err)

	plan, ok := c.Plan("price_std")
	assert.True(t, ok)
	assert.Equal(t, models.PlanStandard, plan)

	_, ok = c.Plan("price_unknown")
	assert.False(t, ok)
}

func TestBuildProvider(t *testing.T) {
	base := config.NewEnvConfig(logutil.NewStderrLog("test"))

	_, err := Build(config.NewMapConfig(map[string]string{"PAYMENT_PROVIDER": "stripe", "STRIPE_API_KEY": ""}, base),
		logutil.NewStderrLog("test"), nil)
	assert.Error(t, err)

	p, err := Build(config.NewMapConfig(map[string]string{"PAYMENT_PROVIDER": "fake"}, base),
		logutil.NewStderrLog("test"), nil)
	require.NoError(t, err)
	assert.Equal(t, "fake", p.Name())

	_, err = Build(config.NewMapConfig(map[string]string{"PAYMENT_PROVIDER": "paypal"}, base),
		logutil.NewStderrLog("test"), nil)
	assert.Error(t, err)
}
