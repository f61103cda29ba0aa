package apperrors

import (
	"errors"
	"net/http"

	"github.com/stvp/rollbar"
)

var rollbarLevels = map[Level]string{
	LevelError: rollbar.ERR,
	LevelWarn:  rollbar.WARN,
}

type RollbarTracker struct {
	r       *http.Request
	project string
}

func NewRollbarTracker(token, project, env string) *RollbarTracker {
	rollbar.Environment = env
	rollbar.Token = token

	return &RollbarTracker{
		project: project,
	}
}

func (t RollbarTracker) Track(level Level, errorText string, ctx map[string]interface{}) {
	class, detail := splitErrorText(errorText)

	props := map[string]interface{}{}
	for k, v := range ctx {
		props[k] = v
	}
	if detail != "" {
		props["error_detail"] = detail
	}

	fields := []*rollbar.Field{
		{Name: "props", Data: props},
		{Name: "service", Data: t.project},
	}

	rollbarLevel, ok := rollbarLevels[level]
	if !ok {
		rollbarLevel = rollbar.INFO
	}

	if t.r != nil {
		rollbar.RequestError(rollbarLevel, t.r, errors.New(class), fields...)
		return
	}
	rollbar.Error(rollbarLevel, errors.New(class), fields...)
}

func (t RollbarTracker) WithHTTPRequest(r *http.Request) Tracker {
	t.r = r
	return t
}
