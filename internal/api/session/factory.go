package session

import (
	"time"

	"github.com/garyburd/redigo/redis"
	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/config"
	redistore "gopkg.in/boj/redistore.v1"
)

const keyPrefix = "account_session_"

// Factory builds redis-backed cookie sessions. Cookie attributes are read
// once from COOKIE_DOMAIN and COOKIE_SECURE.
type Factory struct {
	store   *redistore.RediStore
	options sessions.Options
}

func NewFactory(redisPool *redis.Pool, cfg config.Config, maxAge time.Duration) (*Factory, error) {
	secret := cfg.GetString("SESSION_SECRET")
	if len(secret) < 16 {
		return nil, errors.New("SESSION_SECRET must be at least 16 chars")
	}

	store, err := redistore.NewRediStoreWithPool(redisPool, []byte(secret))
	if err != nil {
		return nil, errors.Wrap(err, "can't create redis session store")
	}
	store.SetSerializer(redistore.JSONSerializer{})
	store.SetKeyPrefix(keyPrefix)
	store.SetMaxAge(int(maxAge / time.Second))

	return &Factory{
		store: store,
		options: sessions.Options{
			Path:     "/",
			Domain:   cfg.GetString("COOKIE_DOMAIN"),
			MaxAge:   int(maxAge / time.Second),
			HttpOnly: true,
			Secure:   cfg.GetBool("COOKIE_SECURE", cfg.GetString("GO_ENV") == "prod"),
		},
	}, nil
}

func (f *Factory) Build(ctx *RequestContext, name string) (*Session, error) {
	gs, err := ctx.Registry.Get(f.store, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get session %s", name)
	}

	// the store shares one Options value between sessions, Delete mutates ours
	opts := f.options
	gs.Options = &opts

	return &Session{
		gs:    gs,
		saver: ctx.Saver,
	}, nil
}
