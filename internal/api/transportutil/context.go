package transportutil

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"time"

	kitlog "github.com/go-kit/kit/log"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/endpointutil"
	"github.com/platformplatform/account-api/internal/api/session"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	uuid "github.com/satori/go.uuid"
)

const requestIDHeader = "X-Request-ID"

var requestIDRe = regexp.MustCompile(`^[A-Za-z0-9\-_.]{8,64}$`)

// requestID reuses the id set by a proxy, other values may be forged log input.
func requestID(r *http.Request) string {
	if id := r.Header.Get(requestIDHeader); requestIDRe.MatchString(id) {
		return id
	}
	return uuid.NewV4().String()
}

// withRequestID sets the response header before any encoder runs, error responses included.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func incoming(ctx context.Context, r *http.Request, hctx endpointutil.HandlerRegContext) endpointutil.Incoming {
	id, ok := ctx.Value(requestIDKey).(string)
	if !ok {
		id = requestID(r)
	}

	return endpointutil.Incoming{
		Sess:      session.NewRequestContext(r, hctx.Log),
		RequestID: id,
	}
}

func MakeStoreAnonymousRequestContext(hctx endpointutil.HandlerRegContext) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		hctx.ErrTracker = hctx.ErrTracker.WithHTTPRequest(r)
		rc := endpointutil.MakeAnonymousRequestContext(ctx, incoming(ctx, r, hctx), &hctx)
		return endpointutil.StoreRequestContext(ctx, rc)
	}
}

func MakeStoreAuthorizedRequestContext(hctx endpointutil.HandlerRegContext) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		hctx.ErrTracker = hctx.ErrTracker.WithHTTPRequest(r)
		rc, err := endpointutil.MakeAuthorizedRequestContext(ctx, incoming(ctx, r, hctx), &hctx)
		if err != nil {
			return endpointutil.StoreError(ctx, errors.Wrap(err, "failed to authorize"))
		}

		return endpointutil.StoreRequestContext(ctx, rc)
	}
}

func MakeFinalizeRequest(hctx *endpointutil.HandlerRegContext, route string) httptransport.ServerFinalizerFunc {
	return func(ctx context.Context, code int, r *http.Request) {
		rc := endpointutil.RequestContext(ctx)
		startedAt := time.Now()
		if rc != nil {
			startedAt = rc.RequestStartedAt()
			rc.Logger().Debugf("http", "%s %s respond %d for %s", r.Method, r.URL.Path, code, time.Since(startedAt))
		} else {
			hctx.Log.Debugf("http", "%s %s respond %d with no request context", r.Method, r.URL.Path, code)
		}

		if hctx.Metrics != nil && rc != nil {
			hctx.Metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(code)).
				Observe(time.Since(startedAt).Seconds())
		}
	}
}

type ctxKey string

const (
	errKey         ctxKey = "transport/error"
	httpRequestKey ctxKey = "transport/httpRequest"
	requestIDKey   ctxKey = "transport/requestID"
)

func storeContextError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, errKey, err)
}

func GetContextError(ctx context.Context) error {
	v := ctx.Value(errKey)
	if v == nil {
		return nil
	}

	return v.(error)
}

func StoreHTTPRequestToContext(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, httpRequestKey, r)
}

func getHTTPRequestFromContext(ctx context.Context) *http.Request {
	return ctx.Value(httpRequestKey).(*http.Request)
}

// errorLogger adapts go-kit transport error logging to logutil.
type errorLogger struct {
	log logutil.Log
}

func AdaptErrorLogger(log logutil.Log) kitlog.Logger {
	return errorLogger{log: log}
}

func (l errorLogger) Log(keyvals ...interface{}) error {
	for i := 0; i+1 < len(keyvals); i += 2 {
		if keyvals[i] != "err" {
			continue
		}

		err, ok := keyvals[i+1].(error)
		if !ok || isExpectedError(err) {
			return nil
		}
		l.log.Errorf("Request failed: %s", err)
	}
	return nil
}
