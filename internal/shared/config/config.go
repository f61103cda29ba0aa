// Package config reads settings from the environment, keys are case-insensitive.
package config

import (
	"errors"
	"strings"
	"time"
)

var errNotBool = errors.New("want one of 1, true, yes, 0, false, no")

type Config interface {
	GetString(key string) string
	GetStrings(key string, def []string) []string
	GetDuration(key string, def time.Duration) time.Duration
	GetInt(key string, def int) int
	GetBool(key string, def bool) bool
}

// splitList parses "a, b,,c" to [a b c].
func splitList(s string) []string {
	var ret []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			ret = append(ret, v)
		}
	}
	return ret
}

func parseBool(s string) (value, ok bool) {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}
