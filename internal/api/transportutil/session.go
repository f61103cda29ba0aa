package transportutil

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/endpointutil"
)

// FinalizeResponse saves changed sessions to cookies.
func FinalizeResponse(ctx context.Context, w http.ResponseWriter) context.Context {
	rc := endpointutil.RequestContext(ctx)
	if rc == nil { // authorization failed, nothing to save
		return ctx
	}

	r := getHTTPRequestFromContext(ctx)
	if err := rc.SessContext().Saver.FinalizeHTTP(r, w); err != nil {
		rc.Logger().Errorf("Request failed on session finalization: %s", err)
		return storeContextError(ctx, errors.Wrap(err, "failed to finalize session"))
	}

	return ctx
}
