package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platformplatform/account-api/internal/shared/logutil"
)

// EnvConfig reads upper-cased keys from the process environment.
// Unparsable values are logged and the default is used.
type EnvConfig struct {
	log logutil.Log
}

func NewEnvConfig(log logutil.Log) *EnvConfig {
	return &EnvConfig{log: log}
}

func (c EnvConfig) GetString(key string) string {
	return os.Getenv(strings.ToUpper(key))
}

// parse calls f for a set value, false means the default must be used.
func (c EnvConfig) parse(key string, f func(v string) error) bool {
	v := c.GetString(key)
	if v == "" {
		return false
	}

	if err := f(v); err != nil {
		c.log.Warnf("Config: bad %s=%q: %s", strings.ToUpper(key), v, err)
		return false
	}
	return true
}

// GetDuration accepts Go durations and also days: "14d".
func (c EnvConfig) GetDuration(key string, def time.Duration) time.Duration {
	var d time.Duration
	if !c.parse(key, func(v string) (err error) {
		d, err = parseDuration(v)
		return err
	}) {
		return def
	}
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if days := strings.TrimSuffix(s, "d"); days != s {
		n, err := strconv.Atoi(days)
		return time.Duration(n) * 24 * time.Hour, err
	}
	return time.ParseDuration(s)
}

func (c EnvConfig) GetInt(key string, def int) int {
	var n int
	if !c.parse(key, func(v string) (err error) {
		n, err = strconv.Atoi(v)
		return err
	}) {
		return def
	}
	return n
}

func (c EnvConfig) GetBool(key string, def bool) bool {
	var b bool
	if !c.parse(key, func(v string) error {
		var ok bool
		if b, ok = parseBool(v); !ok {
			return errNotBool
		}
		return nil
	}) {
		return def
	}
	return b
}

func (c EnvConfig) GetStrings(key string, def []string) []string {
	if list := splitList(c.GetString(key)); len(list) != 0 {
		return list
	}
	return def
}
