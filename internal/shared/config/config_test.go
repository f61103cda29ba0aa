package config

import (
	"os"
	"testing"
	"time"

	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/stretchr/testify/assert"
)

func TestEnvConfigDurations(t *testing.T) {
	cfg := NewEnvConfig(logutil.NewStderrLog("test"))

	os.Setenv("TEST_GRACE", "14d")
	defer os.Unsetenv("TEST_GRACE")
	assert.Equal(t, 14*24*time.Hour, cfg.GetDuration("test_grace", time.Hour))

	os.Setenv("TEST_GRACE", "90m")
	assert.Equal(t, 90*time.Minute, cfg.GetDuration("TEST_GRACE", time.Hour))

	os.Setenv("TEST_GRACE", "soon")
	assert.Equal(t, time.Hour, cfg.GetDuration("TEST_GRACE", time.Hour))

	assert.Equal(t, time.Second, cfg.GetDuration("TEST_MISSING_KEY", time.Second))
}

func TestEnvConfigScalars(t *testing.T) {
	cfg := NewEnvConfig(logutil.NewStderrLog("test"))

	os.Setenv("TEST_FLAG", "true")
	os.Setenv("TEST_NUM", "42")
	defer os.Unsetenv("TEST_FLAG")
	defer os.Unsetenv("TEST_NUM")

	assert.True(t, cfg.GetBool("TEST_FLAG", false))
	assert.Equal(t, 42, cfg.GetInt("TEST_NUM", 1))

	os.Setenv("TEST_NUM", "x")
	assert.Equal(t, 1, cfg.GetInt("TEST_NUM", 1))
}

func TestMapConfigOverrides(t *testing.T) {
	os.Setenv("TEST_BASE", "env")
	defer os.Unsetenv("TEST_BASE")

	cfg := NewMapConfig(map[string]string{
		"stripe_api_key": "sk_test",
		"test_cooldown":  "3d",
		"test_retries":   "5",
		"test_enabled":   "1",
	}, NewEnvConfig(logutil.NewStderrLog("test")))

	assert.Equal(t, "sk_test", cfg.GetString("STRIPE_API_KEY"))
	assert.Equal(t, "env", cfg.GetString("TEST_BASE"))
	assert.Equal(t, 72*time.Hour, cfg.GetDuration("TEST_COOLDOWN", 0))
	assert.Equal(t, 5, cfg.GetInt("TEST_RETRIES", 0))
	assert.True(t, cfg.GetBool("TEST_ENABLED", false))
}

func TestListsAndBools(t *testing.T) {
	os.Setenv("TEST_ORIGINS", " https://a.example.com, ,https://b.example.com")
	defer os.Unsetenv("TEST_ORIGINS")

	env := NewEnvConfig(logutil.NewStderrLog("test"))
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, env.GetStrings("TEST_ORIGINS", nil))
	assert.Equal(t, []string{"x"}, env.GetStrings("TEST_MISSING_KEY", []string{"x"}))

	cfg := NewMapConfig(map[string]string{"test_list": "c", "test_flag": "yes", "test_empty": ""}, env)
	assert.Equal(t, []string{"c"}, cfg.GetStrings("TEST_LIST", nil))
	assert.Equal(t, []string{"d"}, cfg.GetStrings("TEST_EMPTY", []string{"d"}))
	assert.True(t, cfg.GetBool("TEST_FLAG", false))
}
