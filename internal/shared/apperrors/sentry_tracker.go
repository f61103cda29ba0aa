package apperrors

import (
	"fmt"
	"net/http"

	"github.com/getsentry/raven-go"
	"github.com/pkg/errors"
)

var sentryLevels = map[Level]raven.Severity{
	LevelError: raven.ERROR,
	LevelWarn:  raven.WARNING,
}

type SentryTracker struct {
	r       *http.Request
	project string
}

var _ Tracker = SentryTracker{}

func NewSentryTracker(dsn, project, env string) (*SentryTracker, error) {
	raven.SetEnvironment(env)
	if err := raven.SetDSN(dsn); err != nil {
		return nil, errors.Wrap(err, "can't set sentry dsn")
	}

	return &SentryTracker{project: project}, nil
}

func (t SentryTracker) Track(level Level, errorText string, ctx map[string]interface{}) {
	tags := map[string]string{"service": t.project}
	for k, v := range ctx {
		tags[k] = fmt.Sprintf("%v", v)
	}

	var interfaces []raven.Interface
	if t.r != nil {
		interfaces = append(interfaces, raven.NewHttp(t.r))
	}

	class, _ := splitErrorText(errorText)
	p := raven.NewPacket(errorText, interfaces...)
	p.Fingerprint = []string{class}

	p.Level = raven.INFO
	if l, ok := sentryLevels[level]; ok {
		p.Level = l
	}

	raven.Capture(p, tags)
}

func (t SentryTracker) WithHTTPRequest(r *http.Request) Tracker {
	t.r = r
	return t
}
