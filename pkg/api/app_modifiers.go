package app

import (
	"time"

	redigo "github.com/garyburd/redigo/redis"
	"github.com/jinzhu/gorm"
	"github.com/platformplatform/account-api/internal/api/analytics"
	"github.com/platformplatform/account-api/internal/api/mailer"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	"github.com/platformplatform/account-api/internal/shared/apperrors"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
)

type Modifier func(a *App)

func SetConfig(cfg config.Config) Modifier {
	return func(a *App) {
		a.cfg = cfg
	}
}

func SetLog(log logutil.Log) Modifier {
	return func(a *App) {
		a.log = log
	}
}

func SetErrTracker(t apperrors.Tracker) Modifier {
	return func(a *App) {
		a.errTracker = t
	}
}

func SetDB(db *gorm.DB) Modifier {
	return func(a *App) {
		a.gormDB = db
	}
}

func SetRedisPool(pool *redigo.Pool) Modifier {
	return func(a *App) {
		a.redisPool = pool
	}
}

func SetPaymentProvider(p paymentprovider.Provider) Modifier {
	return func(a *App) {
		a.paymentProvider = p
	}
}

func SetMailer(m mailer.Mailer) Modifier {
	return func(a *App) {
		a.mailer = m
	}
}

func SetAnalytics(t analytics.Tracker) Modifier {
	return func(a *App) {
		a.analytics = t
	}
}

func SetNow(now func() time.Time) Modifier {
	return func(a *App) {
		a.now = now
	}
}
