package tenant

import (
	"github.com/platformplatform/account-api/internal/api/endpointutil"
	"github.com/platformplatform/account-api/internal/api/transportutil"
)

func RegisterHandlers(svc Service, regCtx *endpointutil.HandlerRegContext) {
	transportutil.RegisterHandler(regCtx, "GET", "/api/account/tenants/current", svc.GetCurrent)
	transportutil.RegisterHandler(regCtx, "PUT", "/api/account/tenants/current", svc.UpdateCurrent)
}
