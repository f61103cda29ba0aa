package apperrors

import (
	"strings"

	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
)

const (
	trackerRollbar = "rollbar"
	trackerSentry  = "sentry"
)

// GetTracker builds the tracker selected by ERROR_TRACKER, tracked items are always scrubbed.
func GetTracker(cfg config.Config, log logutil.Log, project string) Tracker {
	env := cfg.GetString("GO_ENV")

	var t Tracker
	switch kind := strings.ToLower(cfg.GetString("ERROR_TRACKER")); kind {
	case trackerRollbar:
		t = NewRollbarTracker(cfg.GetString("ROLLBAR_TOKEN"), project, env)
	case trackerSentry:
		st, err := NewSentryTracker(cfg.GetString("SENTRY_DSN"), project, env)
		if err != nil {
			log.Warnf("Can't make sentry error tracker: %s", err)
			return NewNopTracker()
		}
		t = st
	case "", "none":
		return NewNopTracker()
	default:
		log.Warnf("Unknown error tracker %q, errors won't be tracked", kind)
		return NewNopTracker()
	}

	return NewScrubbingTracker(t)
}
