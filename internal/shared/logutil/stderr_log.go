package logutil

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// StderrLog writes through logrus. Debugf output is enabled per key,
// "*" enables every key.
type StderrLog struct {
	name      string
	logger    *logrus.Logger
	level     LogLevel
	debugKeys map[string]bool
}

var _ Log = NewStderrLog("")

func NewStderrLog(name string, debugKeys ...string) *StderrLog {
	logger := logrus.New()
	logger.Out = os.Stderr
	logger.SetLevel(logrus.DebugLevel) // filtering is done by level
	logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	sl := &StderrLog{
		name:      name,
		logger:    logger,
		level:     LogLevelInfo,
		debugKeys: map[string]bool{},
	}
	sl.EnableDebug(debugKeys...)
	return sl
}

// Configure applies LOG_LEVEL, LOG_FORMAT and DEBUG style settings.
// Unknown level or format values are reported and ignored.
func (sl *StderrLog) Configure(level, format string, debugKeys []string) {
	if level != "" {
		if l, ok := ParseLevel(strings.ToLower(level)); ok {
			sl.level = l
		} else {
			sl.Warnf("Unknown log level %q, keeping %d", level, sl.level)
		}
	}

	switch format {
	case "", "text":
	case "json":
		sl.logger.Formatter = &logrus.JSONFormatter{}
	default:
		sl.Warnf("Unknown log format %q, using text", format)
	}

	sl.EnableDebug(debugKeys...)
}

func (sl *StderrLog) EnableDebug(keys ...string) {
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			sl.debugKeys[k] = true
		}
	}
}

func (sl *StderrLog) SetOutput(w io.Writer) {
	sl.logger.Out = w
}

func (sl *StderrLog) SetLevel(level LogLevel) {
	sl.level = level
}

func (sl StderrLog) entry() *logrus.Entry {
	if sl.name == "" {
		return logrus.NewEntry(sl.logger)
	}
	return sl.logger.WithField("log", sl.name)
}

func (sl StderrLog) Fatalf(format string, args ...interface{}) {
	sl.entry().Errorf(format, args...)
	os.Exit(1)
}

func (sl StderrLog) Errorf(format string, args ...interface{}) {
	if sl.level <= LogLevelError {
		sl.entry().Errorf(format, args...)
	}
}

func (sl StderrLog) Warnf(format string, args ...interface{}) {
	if sl.level <= LogLevelWarn {
		sl.entry().Warnf(format, args...)
	}
}

func (sl StderrLog) Infof(format string, args ...interface{}) {
	if sl.level <= LogLevelInfo {
		sl.entry().Infof(format, args...)
	}
}

func (sl StderrLog) Debugf(key string, format string, args ...interface{}) {
	if !sl.debugKeys[key] && !sl.debugKeys["*"] {
		return
	}

	sl.entry().WithField("debug", key).Debugf(format, args...)
}

// Child shares the logger and debug keys, its name is appended with "/".
func (sl StderrLog) Child(name string) Log {
	child := sl
	if sl.name != "" {
		name = fmt.Sprintf("%s/%s", sl.name, name)
	}
	child.name = name
	return &child
}
