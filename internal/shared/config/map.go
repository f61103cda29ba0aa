package config

import (
	"strconv"
	"strings"
	"time"
)

// MapConfig overrides values of the underlying config, keys are case-insensitive.
type MapConfig struct {
	values     map[string]string
	underlying Config
}

func NewMapConfig(values map[string]string, underlying Config) *MapConfig {
	m := map[string]string{}
	for k, v := range values {
		m[strings.ToUpper(k)] = v
	}
	return &MapConfig{values: m, underlying: underlying}
}

func (c MapConfig) lookup(key string) (string, bool) {
	v, ok := c.values[strings.ToUpper(key)]
	return v, ok
}

func (c MapConfig) GetString(key string) string {
	if v, ok := c.lookup(key); ok {
		return v
	}
	return c.underlying.GetString(key)
}

func (c MapConfig) GetDuration(key string, def time.Duration) time.Duration {
	if v, ok := c.lookup(key); ok {
		if d, err := parseDuration(v); err == nil {
			return d
		}
	}
	return c.underlying.GetDuration(key, def)
}

func (c MapConfig) GetInt(key string, def int) int {
	if v, ok := c.lookup(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return c.underlying.GetInt(key, def)
}

func (c MapConfig) GetBool(key string, def bool) bool {
	if v, ok := c.lookup(key); ok {
		if b, ok := parseBool(v); ok {
			return b
		}
	}
	return c.underlying.GetBool(key, def)
}

func (c MapConfig) GetStrings(key string, def []string) []string {
	if v, ok := c.lookup(key); ok {
		if list := splitList(v); len(list) != 0 {
			return list
		}
	}
	return c.underlying.GetStrings(key, def)
}
