package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	redigo "github.com/garyburd/redigo/redis"
	"github.com/gorilla/mux"
	"github.com/jinzhu/gorm"
	_ "github.com/mattes/migrate/database/postgres" // must be first
	"github.com/platformplatform/account-api/internal/api/analytics"
	"github.com/platformplatform/account-api/internal/api/endpointutil"
	"github.com/platformplatform/account-api/internal/api/mailer"
	"github.com/platformplatform/account-api/internal/api/paymentproviders"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/implementations/stripe"
	"github.com/platformplatform/account-api/internal/api/paymentproviders/paymentprovider"
	apisession "github.com/platformplatform/account-api/internal/api/session"
	"github.com/platformplatform/account-api/internal/api/util"
	"github.com/platformplatform/account-api/internal/shared/apperrors"
	"github.com/platformplatform/account-api/internal/shared/cache"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/db/gormdb"
	"github.com/platformplatform/account-api/internal/shared/db/migrations"
	"github.com/platformplatform/account-api/internal/shared/db/redis"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/internal/shared/metrics"
	"github.com/platformplatform/account-api/internal/shared/queue/aws/consumer"
	"github.com/platformplatform/account-api/internal/shared/queue/aws/sqs"
	"github.com/platformplatform/account-api/internal/shared/queue/consumers"
	"github.com/platformplatform/account-api/internal/shared/queue/producers"
	"github.com/platformplatform/account-api/internal/shared/queue/redisqueue"
	"github.com/platformplatform/account-api/pkg/api/auth"
	"github.com/platformplatform/account-api/pkg/api/billing"
	"github.com/platformplatform/account-api/pkg/api/crons/paymentreminders"
	authsvc "github.com/platformplatform/account-api/pkg/api/services/auth"
	"github.com/platformplatform/account-api/pkg/api/services/subscription"
	"github.com/platformplatform/account-api/pkg/api/services/tenant"
	"github.com/platformplatform/account-api/pkg/api/services/user"
	"github.com/platformplatform/account-api/pkg/api/services/webhook"
	"github.com/platformplatform/account-api/pkg/api/workers/primaryqueue"
	"github.com/platformplatform/account-api/pkg/api/workers/primaryqueue/stripeevents"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/urfave/negroni"
	"gopkg.in/redsync.v1"
)

const (
	queueBackendRedis = "redis"
	queueBackendSQS   = "sqs"

	primaryQueueName = "primary"
)

type appServices struct {
	auth         authsvc.Service
	tenant       tenant.Service
	user         user.Service
	subscription subscription.Service
	webhook      webhook.Service
}

type queues struct {
	primarySQS   *sqs.Queue
	primaryRedis *redisqueue.Queue

	producers struct {
		primaryMultiplexer *producers.Multiplexer

		stripeEventsProcessor *stripeevents.ProcessorProducer
	}
}

type App struct {
	cfg              config.Config
	log              logutil.Log
	trackedLog       logutil.Log
	errTracker       apperrors.Tracker
	gormDB           *gorm.DB
	migrationsRunner *migrations.Runner
	services         appServices
	awsSess          *session.Session
	queues           queues
	authSessFactory  *apisession.Factory
	authorizer       *auth.Authorizer
	distLockFactory  *redsync.Redsync
	redisPool        *redigo.Pool

	paymentProvider paymentprovider.Provider
	eventVerifier   paymentprovider.EventVerifier
	prices          *paymentproviders.PriceCatalog
	mailer          mailer.Mailer
	analytics       analytics.Tracker
	metrics         *metrics.Metrics
	now             func() time.Time

	eventsProcessor  *billing.Processor
	paymentReminders *paymentreminders.Reminder
}

func (a App) GetDB() *gorm.DB {
	return a.gormDB
}

//nolint:gocyclo
func (a *App) buildDeps() {
	if a.log == nil {
		slog := logutil.NewStderrLog("account-api")
		if a.cfg == nil {
			a.cfg = config.NewEnvConfig(slog)
		}
		slog.Configure(a.cfg.GetString("LOG_LEVEL"), a.cfg.GetString("LOG_FORMAT"), a.cfg.GetStrings("DEBUG", nil))
		a.log = slog
	}

	if a.cfg == nil {
		a.cfg = config.NewEnvConfig(a.log)
	}

	if a.errTracker == nil {
		a.errTracker = apperrors.GetTracker(a.cfg, a.log, "account-api")
	}
	if a.trackedLog == nil {
		a.trackedLog = apperrors.WrapLogWithTracker(a.log, nil, a.errTracker)
	}

	if a.gormDB == nil {
		dbConnString, err := gormdb.GetDBConnString(a.cfg)
		if err != nil {
			a.log.Fatalf("Can't get DB conn string: %s", err)
		}

		gormDB, err := gormdb.GetDB(a.cfg, a.trackedLog, dbConnString)
		if err != nil {
			a.log.Fatalf("Can't get DB: %s", err)
		}
		a.gormDB = gormDB
	}

	if a.redisPool == nil {
		redisPool, err := redis.GetPool(a.cfg)
		if err != nil {
			a.log.Fatalf("Can't get redis pool: %s", err)
		}
		a.redisPool = redisPool
	}
	a.distLockFactory = redis.NewDistLockFactory(a.redisPool)

	if a.metrics == nil {
		a.metrics = metrics.New()
	}

	if a.paymentProvider == nil {
		p, err := paymentproviders.Build(a.cfg, a.trackedLog, func(operation string) {
			a.metrics.ProviderCallRetries.WithLabelValues(operation).Inc()
		})
		if err != nil {
			a.log.Fatalf("Can't build payment provider: %s", err)
		}
		a.paymentProvider = p
	}
	if a.eventVerifier == nil {
		a.eventVerifier = paymentproviders.BuildEventVerifier(a.cfg)
	}
	if a.prices == nil {
		a.prices = paymentproviders.NewPriceCatalogFromConfig(a.cfg)
	}

	if a.mailer == nil {
		a.mailer = mailer.New(a.cfg, a.trackedLog)
	}
	if a.analytics == nil {
		a.analytics = analytics.NewTracker(a.cfg, a.trackedLog)
	}
	if a.now == nil {
		a.now = time.Now
	}
}

func (a *App) buildAwsSess() {
	awsCfg := aws.NewConfig().WithRegion(a.cfg.GetString("AWS_REGION"))
	if a.cfg.GetBool("AWS_DEBUG", false) {
		awsCfg = awsCfg.WithLogLevel(aws.LogDebugWithHTTPBody)
	}
	endpoint := a.cfg.GetString("SQS_ENDPOINT")
	if endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(endpoint)
	}
	awsSess, err := session.NewSession(awsCfg)
	if err != nil {
		a.log.Fatalf("Can't make aws session: %s", err)
	}
	a.awsSess = awsSess
}

func (a App) queueBackend() string {
	backend := strings.ToLower(a.cfg.GetString("QUEUE_BACKEND"))
	if backend == "" {
		return queueBackendRedis
	}
	return backend
}

func (a App) primaryQueueTimeouts() primaryqueue.Timeouts {
	return primaryqueue.TimeoutsFromConfig(a.cfg)
}

func (a *App) buildQueues() {
	switch backend := a.queueBackend(); backend {
	case queueBackendRedis:
		a.queues.primaryRedis = redisqueue.NewQueue(primaryQueueName, a.redisPool, a.trackedLog)
		a.queues.producers.primaryMultiplexer = producers.NewMultiplexer(a.queues.primaryRedis)
	case queueBackendSQS:
		a.buildAwsSess()
		a.queues.primarySQS = sqs.NewQueue(a.cfg.GetString("SQS_PRIMARY_QUEUE_URL"),
			a.awsSess, a.trackedLog, sqs.Options{VisibilityTimeout: a.primaryQueueTimeouts().Visibility})
		a.queues.producers.primaryMultiplexer = producers.NewMultiplexer(a.queues.primarySQS)
	default:
		a.log.Fatalf("Invalid QUEUE_BACKEND %q", backend)
	}

	stripeEventsProcessor := &stripeevents.ProcessorProducer{}
	if err := stripeEventsProcessor.Register(a.queues.producers.primaryMultiplexer); err != nil {
		a.log.Fatalf("Failed to create 'process stripe events' producer: %s", err)
	}
	a.queues.producers.stripeEventsProcessor = stripeEventsProcessor
}

func (a *App) buildBilling() {
	notifier := &billing.Notifier{
		Mailer:           a.mailer,
		Log:              a.trackedLog.Child("billing"),
		Metrics:          a.metrics,
		GracePeriod:      a.cfg.GetDuration("PAYMENT_FAILURE_GRACE_PERIOD", billing.DefaultGracePeriod),
		ReminderCooldown: a.cfg.GetDuration("PAYMENT_REMINDER_COOLDOWN", billing.DefaultReminderCooldown),
	}

	a.eventsProcessor = &billing.Processor{
		DB:            a.gormDB,
		Log:           a.trackedLog.Child("billing"),
		Parser:        stripe.EventParser{},
		Prices:        a.prices,
		Notifier:      notifier,
		Analytics:     a.analytics,
		Metrics:       a.metrics,
		Subscriptions: a.paymentProvider,
		Now:           a.now,
	}

	a.paymentReminders = &paymentreminders.Reminder{
		DB:        a.gormDB,
		Log:       a.trackedLog.Child("paymentReminders"),
		Cfg:       a.cfg,
		Notifier:  notifier,
		Analytics: a.analytics,
		Metrics:   a.metrics,
		Queue:     a.queues.producers.stripeEventsProcessor,
		Now:       a.now,
	}
}

func (a *App) buildServices() {
	a.services.auth = authsvc.BasicService{
		Authorizer: a.authorizer,
		Mailer:     a.mailer,
		Analytics:  a.analytics,
		Now:        a.now,
	}
	a.services.tenant = tenant.BasicService{}
	a.services.user = user.BasicService{
		Mailer: a.mailer,
	}
	a.services.subscription = subscription.BasicService{
		Provider:  a.paymentProvider,
		Prices:    a.prices,
		Cache:     cache.NewRedis(a.redisPool, "cache/subscriptions/"),
		Analytics: a.analytics,
	}
	a.services.webhook = webhook.BasicService{
		Verifier: a.eventVerifier,
		Queue:    a.queues.producers.stripeEventsProcessor,
		Metrics:  a.metrics,
	}
}

func (a *App) buildAuthSessFactory() {
	maxAge := a.cfg.GetDuration("AUTH_SESSION_MAX_AGE", 30*24*time.Hour)
	authSessFactory, err := apisession.NewFactory(a.redisPool, a.cfg, maxAge)
	if err != nil {
		a.log.Fatalf("Failed to make auth session factory: %s", err)
	}
	a.authSessFactory = authSessFactory
	a.authorizer = auth.NewAuthorizer(a.gormDB, a.authSessFactory)
}

func (a *App) buildMigrationsRunner() {
	dbConnString, err := gormdb.GetDBConnString(a.cfg)
	if err != nil {
		a.log.Fatalf("Can't get DB conn string: %s", err)
	}
	a.migrationsRunner = migrations.NewRunner(a.distLockFactory.NewMutex("migrations"), a.trackedLog,
		dbConnString, util.GetProjectRoot())
}

func NewApp(modifiers ...Modifier) *App {
	a := App{}
	for _, m := range modifiers {
		m(&a)
	}
	a.buildDeps()
	a.buildQueues()
	a.buildAuthSessFactory()
	a.buildBilling()
	a.buildServices()

	return &a
}

func (a App) registerHandlers(r *mux.Router) {
	regCtx := &endpointutil.HandlerRegContext{
		Router:     r,
		Authorizer: a.authorizer,
		Log:        a.log,
		ErrTracker: a.errTracker,
		Cfg:        a.cfg,
		DB:         a.gormDB,
		Metrics:    a.metrics,
	}
	authsvc.RegisterHandlers(a.services.auth, regCtx)
	tenant.RegisterHandlers(a.services.tenant, regCtx)
	user.RegisterHandlers(a.services.user, regCtx)
	subscription.RegisterHandlers(a.services.subscription, regCtx)
	webhook.RegisterHandlers(a.services.webhook, regCtx)

	r.Methods("GET").Path("/metrics").Handler(a.metrics.Handler())
}

func (a *App) Migrations() *migrations.Runner {
	if a.migrationsRunner == nil {
		a.buildMigrationsRunner()
	}
	return a.migrationsRunner
}

func (a *App) RunMigrations() error {
	return a.Migrations().Run()
}

func (a App) buildMultiplexedPrimaryQueueConsumer() *consumers.Multiplexer {
	multiplexer := consumers.NewMultiplexer()

	eventsProcessor := stripeevents.NewProcessorConsumer(a.trackedLog, a.eventsProcessor, a.primaryQueueTimeouts())
	if err := eventsProcessor.Register(multiplexer, a.distLockFactory); err != nil {
		a.log.Fatalf("Failed to register stripe events processor consumer: %s", err)
	}

	multiplexer.SetObserver(func(subqueueID string, wait time.Duration, err error) {
		a.metrics.QueueMessages.WithLabelValues(subqueueID, consumers.Result(err)).Inc()
		a.metrics.QueueWait.WithLabelValues(subqueueID).Observe(wait.Seconds())
	})
	return multiplexer
}

func (a App) runConsumers(ctx context.Context) {
	multiplexer := a.buildMultiplexedPrimaryQueueConsumer()

	if a.queues.primarySQS != nil {
		primaryQueueConsumer := consumer.NewSQS(a.trackedLog, a.cfg, a.queues.primarySQS,
			multiplexer, primaryQueueName, a.primaryQueueTimeouts().Consumer)
		go primaryQueueConsumer.Run(ctx)
		return
	}

	primaryQueueConsumer := redisqueue.NewConsumer(a.queues.primaryRedis, multiplexer,
		a.trackedLog, a.primaryQueueTimeouts().Consumer)
	go primaryQueueConsumer.Run(ctx)
}

// ConsumePrimaryQueue handles at most one message of the redis queue backend,
// it returns false if no message was received during wait.
func (a App) ConsumePrimaryQueue(ctx context.Context, wait time.Duration) bool {
	if a.queues.primaryRedis == nil {
		return false
	}

	c := redisqueue.NewConsumer(a.queues.primaryRedis, a.buildMultiplexedPrimaryQueueConsumer(),
		a.trackedLog, a.primaryQueueTimeouts().Consumer)
	return c.Poll(ctx, wait)
}

func (a App) runCrons() *cron.Cron {
	c := cron.New()
	if err := a.paymentReminders.Schedule(c); err != nil {
		a.log.Fatalf("Can't schedule payment reminders: %s", err)
	}

	c.Start()
	return c
}

// ProcessCustomerEvents applies pending provider events of the customer right away.
func (a App) ProcessCustomerEvents(ctx context.Context, customerID string) (*billing.BatchResult, error) {
	return a.eventsProcessor.ProcessCustomerEvents(ctx, customerID)
}

func (a App) SendPaymentReminders(ctx context.Context) (*paymentreminders.Result, error) {
	return a.paymentReminders.RunOnce(ctx)
}

func (a *App) RunEnvironment(ctx context.Context) {
	if err := a.RunMigrations(); err != nil {
		a.log.Fatalf("Can't run migrations: %s", err)
	}
	a.runConsumers(ctx)

	c := a.runCrons()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
}

func (a *App) RunForever() {
	a.RunEnvironment(context.Background())

	http.Handle("/", a.GetHTTPHandler())

	addr := fmt.Sprintf(":%d", a.cfg.GetInt("port", 3000))
	a.log.Infof("Listening on %s...", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		a.log.Errorf("Can't listen HTTP on %s: %s", addr, err)
		os.Exit(1)
	}
}

func (a App) allowedOrigins() []string {
	return a.cfg.GetStrings("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
}

func (a App) GetHTTPHandler() http.Handler {
	r := mux.NewRouter()
	a.registerHandlers(r)

	c := cors.New(cors.Options{
		AllowedOrigins:   a.allowedOrigins(),
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
	})

	n := negroni.Classic()
	n.Use(c)
	n.UseHandler(r)
	return n
}
