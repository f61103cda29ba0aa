package apperrors

import (
	"net/http"
	"strings"
)

type Level string

const (
	LevelError Level = "ERROR"
	LevelWarn  Level = "WARN"
)

type Tracker interface {
	Track(level Level, errorText string, ctx map[string]interface{})
	WithHTTPRequest(r *http.Request) Tracker
}

// splitErrorText splits "failed to process events of customer cus_1: db is down"
// into a stable class for grouping and a variable detail.
func splitErrorText(errorText string) (class, detail string) {
	parts := strings.SplitN(errorText, ": ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}
