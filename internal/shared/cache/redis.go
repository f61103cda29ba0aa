package cache

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/garyburd/redigo/redis"
	pkgerrors "github.com/pkg/errors"
)

var ErrMiss = errors.New("cache miss")

type Redis struct {
	pool   *redis.Pool
	prefix string
}

func NewRedis(pool *redis.Pool, prefix string) *Redis {
	return &Redis{
		pool:   pool,
		prefix: prefix,
	}
}

func (c Redis) Get(key string, dest interface{}) error {
	conn := c.pool.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", c.prefix+key))
	if err == redis.ErrNil {
		return ErrMiss
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "can't get key %s", key)
	}

	if err = json.Unmarshal(data, dest); err != nil {
		return pkgerrors.Wrapf(err, "can't unmarshal value of key %s", key)
	}

	return nil
}

func (c Redis) Set(key string, expireTimeout time.Duration, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrapf(err, "can't marshal value of key %s", key)
	}

	conn := c.pool.Get()
	defer conn.Close()

	ms := int64(expireTimeout / time.Millisecond)
	if ms <= 0 {
		_, err = conn.Do("SET", c.prefix+key, data)
	} else {
		_, err = conn.Do("SET", c.prefix+key, data, "PX", ms)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "can't set key %s", key)
	}

	return nil
}

func (c Redis) Delete(key string) error {
	conn := c.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("DEL", c.prefix+key); err != nil {
		return pkgerrors.Wrapf(err, "can't delete key %s", key)
	}

	return nil
}
