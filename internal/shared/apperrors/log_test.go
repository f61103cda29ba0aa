package apperrors

import (
	"bytes"
	"testing"

	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackedLogSendsWarningsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	sl := logutil.NewStderrLog("test")
	sl.SetOutput(&buf)

	mt := &MemoryTracker{}
	log := WrapLogWithTracker(sl, logutil.Context{"event_id": "evt_1"}, mt)

	log.Infof("not tracked")
	log.Warnf("webhook: %s", "bad signature")
	log.Child("billing").Child("notifier").Errorf("can't apply event")

	items := mt.Items()
	if assert.Len(t, items, 2) {
		assert.Equal(t, LevelWarn, items[0].Level)
		assert.Equal(t, "webhook: bad signature", items[0].Text)
		assert.Equal(t, "evt_1", items[0].Ctx["event_id"])
		assert.NotContains(t, items[0].Ctx, "component")

		assert.Equal(t, LevelError, items[1].Level)
		assert.Equal(t, "billing/notifier", items[1].Ctx["component"])
	}
	assert.Contains(t, buf.String(), "not tracked")
}

func TestScrubbingTracker(t *testing.T) {
	mt := &MemoryTracker{}
	st := NewScrubbingTracker(mt)

	st.Track(LevelWarn, "failed to send code 123456 to Owner@Example.com: smtp is down", map[string]interface{}{
		"email":       "owner@example.com",
		"tenant_id":   uint(7),
		"description": "invite of a.b@c.io",
	})

	items := mt.Items()
	if assert.Len(t, items, 1) {
		assert.Equal(t, "failed to send code [redacted] to [redacted]: smtp is down", items[0].Text)
		assert.Equal(t, redacted, items[0].Ctx["email"])
		assert.Equal(t, uint(7), items[0].Ctx["tenant_id"])
		assert.Equal(t, "invite of [redacted]", items[0].Ctx["description"])
	}
}

func TestSplitErrorText(t *testing.T) {
	class, detail := splitErrorText("failed to process events of customer cus_1: db: closed")
	assert.Equal(t, "failed to process events of customer cus_1", class)
	assert.Equal(t, "db: closed", detail)

	class, detail = splitErrorText("panic")
	assert.Equal(t, "panic", class)
	assert.Empty(t, detail)
}

func TestGetTracker(t *testing.T) {
	log := logutil.NewStderrLog("test")
	env := config.NewEnvConfig(log)

	for _, kind := range []string{"", "none", "bugsnag"} {
		cfg := config.NewMapConfig(map[string]string{"ERROR_TRACKER": kind}, env)
		_, ok := GetTracker(cfg, log, "account-api").(*NopTracker)
		assert.True(t, ok, kind)
	}

	cfg := config.NewMapConfig(map[string]string{"ERROR_TRACKER": "Rollbar", "ROLLBAR_TOKEN": "token"}, env)
	_, ok := GetTracker(cfg, log, "account-api").(*ScrubbingTracker)
	assert.True(t, ok)
}
