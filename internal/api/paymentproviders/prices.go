package paymentproviders

import (
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/pkg/api/models"
)

// PriceCatalog maps paid plans to provider prices.
type PriceCatalog struct {
	priceByPlan map[models.Plan]string
	planByPrice map[string]models.Plan
}

func NewPriceCatalog(prices map[models.Plan]string) *PriceCatalog {
	c := &PriceCatalog{
		priceByPlan: map[models.Plan]string{},
		planByPrice: map[string]models.Plan{},
	}
	for plan, price := range prices {
		if price == "" {
			continue
		}
		c.priceByPlan[plan] = price
		c.planByPrice[price] = plan
	}
	return c
}

func NewPriceCatalogFromConfig(cfg config.Config) *PriceCatalog {
	return NewPriceCatalog(map[models.Plan]string{
		models.PlanStandard: cfg.GetString("STRIPE_PRICE_STANDARD"),
		models.PlanPremium:  cfg.GetString("STRIPE_PRICE_PREMIUM"),
	})
}

func (c PriceCatalog) PriceID(plan models.Plan) (string, error) {
	price := c.priceByPlan[plan]
	if price == "" {
		return "", errors.Errorf("no price configured for plan %s", plan)
	}
	return price, nil
}

func (c PriceCatalog) Plan(priceID string) (models.Plan, bool) {
	plan, ok := c.planByPrice[priceID]
	return plan, ok
}
