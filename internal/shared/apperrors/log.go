package apperrors

import (
	"fmt"

	"github.com/platformplatform/account-api/internal/shared/logutil"
)

// WrapLogWithTracker sends errors and warnings to the tracker before logging them.
func WrapLogWithTracker(log logutil.Log, lctx logutil.Context, t Tracker) logutil.Log {
	return trackedLog{
		log:  log,
		lctx: lctx,
		t:    t,
	}
}

type trackedLog struct {
	log       logutil.Log
	lctx      logutil.Context
	t         Tracker
	component string
}

func (tl trackedLog) track(level Level, format string, args []interface{}) {
	ctx := map[string]interface{}{}
	for k, v := range tl.lctx {
		ctx[k] = v
	}
	if tl.component != "" {
		ctx["component"] = tl.component
	}

	tl.t.Track(level, fmt.Sprintf(format, args...), ctx)
}

func (tl trackedLog) Fatalf(format string, args ...interface{}) {
	tl.track(LevelError, format, args)
	tl.log.Fatalf(format, args...)
}

func (tl trackedLog) Errorf(format string, args ...interface{}) {
	tl.track(LevelError, format, args)
	tl.log.Errorf(format, args...)
}

func (tl trackedLog) Warnf(format string, args ...interface{}) {
	tl.track(LevelWarn, format, args)
	tl.log.Warnf(format, args...)
}

func (tl trackedLog) Infof(format string, args ...interface{}) {
	tl.log.Infof(format, args...)
}

func (tl trackedLog) Debugf(key string, format string, args ...interface{}) {
	tl.log.Debugf(key, format, args...)
}

func (tl trackedLog) Child(name string) logutil.Log {
	child := tl
	child.log = tl.log.Child(name)
	if tl.component != "" {
		name = tl.component + "/" + name
	}
	child.component = name
	return child
}

func (tl trackedLog) SetLevel(level logutil.LogLevel) {
	tl.log.SetLevel(level)
}
