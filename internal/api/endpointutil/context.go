package endpointutil

import (
	"context"
	"time"

	"github.com/platformplatform/account-api/internal/api/session"
	"github.com/platformplatform/account-api/internal/shared/apperrors"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/pkg/api/request"
)

type contextKey string

const (
	contextKeyRequestContext contextKey = "endpoint/requestContext"
	contextKeyError          contextKey = "endpoint/error"
)

func RequestContext(ctx context.Context) request.Context {
	rc, _ := ctx.Value(contextKeyRequestContext).(request.Context)
	return rc
}

func StoreRequestContext(ctx context.Context, rc request.Context) context.Context {
	return context.WithValue(ctx, contextKeyRequestContext, rc)
}

// StoreError saves an error of request initialization, the endpoint returns it instead of running.
func StoreError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, contextKeyError, err)
}

func Error(ctx context.Context) error {
	err, _ := ctx.Value(contextKeyError).(error)
	return err
}

// Incoming carries per-request data extracted by the transport.
type Incoming struct {
	Sess      *session.RequestContext
	RequestID string
}

func makeBaseRequestContext(ctx context.Context, in Incoming, hctx *HandlerRegContext) request.BaseContext {
	lctx := logutil.Context{"request_id": in.RequestID}
	log := logutil.WrapLogWithContext(hctx.Log, lctx)
	log = apperrors.WrapLogWithTracker(log, lctx, hctx.ErrTracker)

	return request.BaseContext{
		Ctx:       ctx,
		Log:       log,
		Lctx:      lctx,
		DB:        hctx.DB,
		StartedAt: time.Now(),
		ReqID:     in.RequestID,
		SessCtx:   in.Sess,
	}
}

func MakeAnonymousRequestContext(ctx context.Context, in Incoming, hctx *HandlerRegContext) *request.AnonymousContext {
	return &request.AnonymousContext{
		BaseContext: makeBaseRequestContext(ctx, in, hctx),
	}
}

func MakeAuthorizedRequestContext(ctx context.Context, in Incoming, hctx *HandlerRegContext) (*request.AuthorizedContext, error) {
	au, err := hctx.Authorizer.Authorize(in.Sess)
	if err != nil {
		return nil, err
	}

	base := makeBaseRequestContext(ctx, in, hctx)
	base.Lctx["user_id"] = au.User.ID
	base.Lctx["tenant_id"] = au.User.TenantID
	base.Lctx["role"] = au.User.Role
	base.Lctx["tenant_state"] = au.Tenant.State

	return &request.AuthorizedContext{
		BaseContext: base,
		User:        au.User,
		Tenant:      au.Tenant,
		AuthSess:    au.AuthSess,
	}, nil
}
