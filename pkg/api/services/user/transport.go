package user

import (
	"github.com/platformplatform/account-api/internal/api/endpointutil"
	"github.com/platformplatform/account-api/internal/api/transportutil"
)

func RegisterHandlers(svc Service, regCtx *endpointutil.HandlerRegContext) {
	transportutil.RegisterHandler(regCtx, "GET", "/api/account/users", svc.List)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/users/invite", svc.Invite)
	transportutil.RegisterHandler(regCtx, "PUT", "/api/account/users/{id}/change-role", svc.ChangeRole)
	transportutil.RegisterHandler(regCtx, "DELETE", "/api/account/users/{id}", svc.Delete)
}
