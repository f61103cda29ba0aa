package subscription

import (
	"github.com/platformplatform/account-api/internal/api/endpointutil"
	"github.com/platformplatform/account-api/internal/api/transportutil"
)

func RegisterHandlers(svc Service, regCtx *endpointutil.HandlerRegContext) {
	transportutil.RegisterHandler(regCtx, "GET", "/api/account/subscriptions/current", svc.Current)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/subscriptions/checkout", svc.Checkout)
	transportutil.RegisterHandler(regCtx, "GET", "/api/account/subscriptions/upgrade-preview", svc.UpgradePreview)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/subscriptions/upgrade", svc.Upgrade)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/subscriptions/downgrade", svc.Downgrade)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/subscriptions/cancel-downgrade", svc.CancelDowngrade)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/subscriptions/cancel", svc.Cancel)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/subscriptions/reactivate", svc.Reactivate)
	transportutil.RegisterHandler(regCtx, "PUT", "/api/account/subscriptions/billing-info", svc.UpdateBillingInfo)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/subscriptions/payment-method/setup", svc.SetupPaymentMethod)
	transportutil.RegisterHandler(regCtx, "GET", "/api/account/subscriptions/transactions", svc.Transactions)
}
