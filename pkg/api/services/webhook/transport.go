package webhook

import (
	"github.com/platformplatform/account-api/internal/api/endpointutil"
	"github.com/platformplatform/account-api/internal/api/transportutil"
)

func RegisterHandlers(svc Service, regCtx *endpointutil.HandlerRegContext) {
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/subscriptions/stripe-webhook", svc.Receive,
		transportutil.WithMaxBodyBytes(MaxBodyBytes))
}
