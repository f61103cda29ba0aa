package request

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/platformplatform/account-api/internal/api/session"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/pkg/api/models"
)

type Context interface {
	RequestID() string
	RequestStartedAt() time.Time
	Logger() logutil.Log
	LogContext() logutil.Context
	SessContext() *session.RequestContext
}

type BaseContext struct {
	Ctx  context.Context
	Log  logutil.Log
	Lctx logutil.Context
	DB   *gorm.DB

	StartedAt time.Time
	ReqID     string

	SessCtx *session.RequestContext
}

func (ctx BaseContext) RequestID() string {
	return ctx.ReqID
}

func (ctx BaseContext) RequestStartedAt() time.Time {
	return ctx.StartedAt
}

func (ctx BaseContext) Logger() logutil.Log {
	return ctx.Log
}

func (ctx BaseContext) LogContext() logutil.Context {
	return ctx.Lctx
}

func (ctx BaseContext) SessContext() *session.RequestContext {
	return ctx.SessCtx
}

type AnonymousContext struct {
	BaseContext
}

type AuthorizedContext struct {
	BaseContext

	User     *models.User
	Tenant   *models.Tenant
	AuthSess *session.Session
}

func (ac AuthorizedContext) ToAnonymousContext() *AnonymousContext {
	return &AnonymousContext{
		BaseContext: ac.BaseContext,
	}
}
