package session

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/platformplatform/account-api/internal/shared/logutil"
)

type RequestContext struct {
	Saver    *Saver
	Registry *sessions.Registry
}

func NewRequestContext(r *http.Request, log logutil.Log) *RequestContext {
	return &RequestContext{
		Saver:    NewSaver(log),
		Registry: sessions.GetRegistry(r),
	}
}
