package auth

import (
	"github.com/platformplatform/account-api/internal/api/endpointutil"
	"github.com/platformplatform/account-api/internal/api/transportutil"
)

func RegisterHandlers(svc Service, regCtx *endpointutil.HandlerRegContext) {
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/signups/start", svc.StartSignup)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/signups/{email_login_id}/complete", svc.CompleteSignup)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/signups/{email_login_id}/resend-code", svc.ResendSignupCode)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/authentication/login/start", svc.StartLogin)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/authentication/login/{email_login_id}/complete", svc.CompleteLogin)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/authentication/login/{email_login_id}/resend-code", svc.ResendLoginCode)
	transportutil.RegisterHandler(regCtx, "POST", "/api/account/authentication/logout", svc.Logout)
	transportutil.RegisterHandler(regCtx, "GET", "/api/account/users/me", svc.Me)
}
