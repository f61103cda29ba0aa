package request

import "github.com/platformplatform/account-api/internal/shared/logutil"

type UserID struct {
	UserID uint `request:"id,urlPart,"`
}

func (u UserID) FillLogContext(lctx logutil.Context) {
	lctx["target_user_id"] = u.UserID
}

type EmailLoginID struct {
	EmailLoginID string `request:"email_login_id,urlPart,"`
}

func (l EmailLoginID) FillLogContext(lctx logutil.Context) {
	lctx["email_login_id"] = l.EmailLoginID
}

type StripeSignature struct {
	Signature string `request:"Stripe-Signature,header,"`
}
