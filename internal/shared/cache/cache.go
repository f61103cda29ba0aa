package cache

import (
	"time"
)

type Cache interface {
	// Get fills dest and returns ErrMiss if there is no key.
	Get(key string, dest interface{}) error
	Set(key string, expireTimeout time.Duration, value interface{}) error
	Delete(key string) error
}
