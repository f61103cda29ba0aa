// Package sharedtest runs the whole api over in-memory storage for http tests.
package sharedtest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gavv/httpexpect"
	redigo "github.com/garyburd/redigo/redis"
	"github.com/jinzhu/gorm"
	"github.com/platformplatform/account-api/internal/api/analytics"
	"github.com/platformplatform/account-api/internal/api/mailer"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations/fake"
	"github.com/platformplatform/account-api/internal/shared/apperrors"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/db/gormdb/gormdbtest"
	"github.com/platformplatform/account-api/internal/shared/db/redis"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	app "github.com/platformplatform/account-api/pkg/api"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/stretchr/testify/require"
)

const (
	WebhookSecret = "whsec_test"
	PriceStandard = "price_standard"
	PricePremium  = "price_premium"
)

type App struct {
	app    *app.App
	server *httptest.Server
	t      *testing.T

	DB        *gorm.DB
	Redis     *miniredis.Miniredis
	Provider  *fake.Provider
	Mailer    *mailer.MemoryMailer
	Analytics *analytics.MemoryTracker
}

func RunApp(t *testing.T) *App {
	log := logutil.NewStderrLog("test")
	log.SetLevel(logutil.LogLevelWarn)

	cfg := config.NewMapConfig(map[string]string{
		"SESSION_SECRET":        "test-session-secret",
		"QUEUE_BACKEND":         "redis",
		"STRIPE_WEBHOOK_SECRET": WebhookSecret,
		"STRIPE_PRICE_STANDARD": PriceStandard,
		"STRIPE_PRICE_PREMIUM":  PricePremium,
		"COOKIE_SECURE":         "false",
	}, config.NewEnvConfig(log))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	ta := &App{
		t:         t,
		DB:        gormdbtest.OpenSQLite(t, models.All()...),
		Redis:     mr,
		Provider:  fake.NewProvider(),
		Mailer:    &mailer.MemoryMailer{},
		Analytics: &analytics.MemoryTracker{},
	}

	pool := redis.NewPool(func() (redigo.Conn, error) {
		return redigo.Dial("tcp", mr.Addr())
	}, 10)

	ta.app = app.NewApp(
		app.SetLog(log),
		app.SetConfig(cfg),
		app.SetErrTracker(apperrors.NewNopTracker()),
		app.SetDB(ta.DB),
		app.SetRedisPool(pool),
		app.SetPaymentProvider(ta.Provider),
		app.SetMailer(ta.Mailer),
		app.SetAnalytics(ta.Analytics),
	)

	ta.server = httptest.NewServer(ta.app.GetHTTPHandler())
	t.Cleanup(ta.server.Close)

	return ta
}

// Expect returns a client with its own cookie jar.
func (ta *App) Expect(t *testing.T) *httpexpect.Expect {
	return httpexpect.New(t, ta.server.URL)
}

// ProcessQueue handles all queued messages.
func (ta *App) ProcessQueue() int {
	var n int
	for ta.app.ConsumePrimaryQueue(context.Background(), 10*time.Millisecond) {
		n++
	}
	return n
}

func (ta *App) SendPaymentReminders() {
	_, err := ta.app.SendPaymentReminders(context.Background())
	require.NoError(ta.t, err)
}
