package redis

import (
	"errors"
	"fmt"
	"time"

	"github.com/garyburd/redigo/redis"
	"github.com/platformplatform/account-api/internal/shared/config"
	redsync "gopkg.in/redsync.v1"
)

func GetPool(cfg config.Config) (*redis.Pool, error) {
	redisURL, err := GetURL(cfg)
	if err != nil {
		return nil, err
	}

	return NewPool(func() (redis.Conn, error) {
		return redis.DialURL(redisURL)
	}, cfg.GetInt("REDIS_MAX_IDLE", 10)), nil
}

func NewPool(dial func() (redis.Conn, error), maxIdle int) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     maxIdle,
		IdleTimeout: 240 * time.Second,
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, pingErr := c.Do("PING")
			return pingErr
		},
		Dial: dial,
	}
}

func GetURL(cfg config.Config) (string, error) {
	if redisURL := cfg.GetString("REDIS_URL"); redisURL != "" {
		return redisURL, nil
	}

	host := cfg.GetString("REDIS_HOST")
	password := cfg.GetString("REDIS_PASSWORD")
	if host == "" {
		return "", errors.New("no REDIS_URL or REDIS_{HOST,PASSWORD} in config")
	}
	if password == "" {
		return fmt.Sprintf("redis://%s", host), nil
	}

	return fmt.Sprintf("redis://h:%s@%s", password, host), nil
}

func NewDistLockFactory(pool *redis.Pool) *redsync.Redsync {
	return redsync.New([]redsync.Pool{pool})
}
