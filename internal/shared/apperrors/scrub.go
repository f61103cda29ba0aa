package apperrors

import (
	"net/http"
	"regexp"
)

const redacted = "[redacted]"

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// one-time login codes are six digits
	codeRe = regexp.MustCompile(`\b[0-9]{6}\b`)

	sensitiveKeys = map[string]bool{
		"email":        true,
		"code":         true,
		"password":     true,
		"session":      true,
		"billing_info": true,
	}
)

// ScrubbingTracker removes personal data before the item leaves the service.
type ScrubbingTracker struct {
	underlying Tracker
}

func NewScrubbingTracker(underlying Tracker) *ScrubbingTracker {
	return &ScrubbingTracker{underlying: underlying}
}

func scrubText(s string) string {
	s = emailRe.ReplaceAllString(s, redacted)
	return codeRe.ReplaceAllString(s, redacted)
}

func (t ScrubbingTracker) Track(level Level, errorText string, ctx map[string]interface{}) {
	var scrubbed map[string]interface{}
	if ctx != nil {
		scrubbed = make(map[string]interface{}, len(ctx))
		for k, v := range ctx {
			if sensitiveKeys[k] {
				scrubbed[k] = redacted
				continue
			}
			if s, ok := v.(string); ok {
				v = scrubText(s)
			}
			scrubbed[k] = v
		}
	}

	t.underlying.Track(level, scrubText(errorText), scrubbed)
}

func (t ScrubbingTracker) WithHTTPRequest(r *http.Request) Tracker {
	return ScrubbingTracker{underlying: t.underlying.WithHTTPRequest(r)}
}
