package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/garyburd/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invoicePreview struct {
	Amount   int64
	Currency string
}

func TestRedisCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	c := NewRedis(&redis.Pool{
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", s.Addr())
		},
	}, "test/")

	var got invoicePreview
	assert.Equal(t, ErrMiss, c.Get("preview", &got))

	require.NoError(t, c.Set("preview", time.Minute, invoicePreview{Amount: 1250, Currency: "usd"}))
	require.NoError(t, c.Get("preview", &got))
	assert.Equal(t, invoicePreview{Amount: 1250, Currency: "usd"}, got)
	assert.True(t, s.Exists("test/preview"))

	s.FastForward(2 * time.Minute)
	assert.Equal(t, ErrMiss, c.Get("preview", &got))

	require.NoError(t, c.Set("forever", 0, 1))
	require.NoError(t, c.Delete("forever"))
	assert.False(t, s.Exists("test/forever"))
}
