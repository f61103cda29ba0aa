package logutil

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestContextLogAppendsSortedPairs(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	sl := NewStderrLog("api")
	sl.SetOutput(&buf)

	log := WrapLogWithContext(sl, Context{"tenant_id": 7, "customer": "cus_100%"})
	log.Infof("processed %d events", 3)

	out := buf.String()
	assert.Contains(t, out, "processed 3 events [customer=cus_100% tenant_id=7]")
	assert.Contains(t, out, "log=api")
}

func TestStderrLogLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStderrLog("", "webhook")
	sl.SetOutput(&buf)
	sl.SetLevel(LogLevelWarn)

	sl.Infof("hidden")
	sl.Warnf("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	sl.SetLevel(LogLevelDebug)
	sl.Debugf("webhook", "debug %s", "on")
	sl.Debugf("other", "debug %s", "off")
	assert.Contains(t, buf.String(), "debug on")
	assert.NotContains(t, buf.String(), "debug off")
}

func TestChildKeepsContext(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	sl := NewStderrLog("root")
	sl.SetOutput(&buf)

	log := WrapLogWithContext(sl, Context{"k": "v"}).Child("sub")
	log.Warnf("msg")
	assert.Contains(t, buf.String(), "msg [k=v]")
	assert.Contains(t, buf.String(), "log=root/sub")
}

func TestConfigure(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStderrLog("api")
	sl.SetOutput(&buf)
	sl.Configure("WARN", "json", []string{" billing ", ""})

	sl.Infof("hidden")
	sl.Warnf("shown")
	sl.Debugf("billing", "applied %s", "evt_1")
	sl.Debugf("session", "not enabled")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"msg":"applied evt_1"`)
	assert.Contains(t, out, `"debug":"billing"`)
	assert.NotContains(t, out, "not enabled")

	buf.Reset()
	sl.Configure("loud", "yaml", nil)
	assert.Equal(t, LogLevelWarn, sl.level)
	assert.Contains(t, buf.String(), "Unknown log level")
	assert.Contains(t, buf.String(), "Unknown log format")
}
