package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	mongodrv "go.mongodb.org/mongo-driver/mongo"

	"github.com/handyfix/marketplace-engine/internal/api"
	"github.com/handyfix/marketplace-engine/internal/api/handler"
	"github.com/handyfix/marketplace-engine/internal/api/metrics"
	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
	"github.com/handyfix/marketplace-engine/internal/core/service"
	"github.com/handyfix/marketplace-engine/internal/infrastructure/db/mongo"
	redisstore "github.com/handyfix/marketplace-engine/internal/infrastructure/db/redis"
	"github.com/handyfix/marketplace-engine/internal/infrastructure/events"
	"github.com/handyfix/marketplace-engine/internal/infrastructure/gateway"
	"github.com/handyfix/marketplace-engine/internal/infrastructure/queue"
	"github.com/handyfix/marketplace-engine/internal/pkg/config"
	"github.com/handyfix/marketplace-engine/pkg/logger"
)

const tokenTTL = 24 * time.Hour

// devCatalog bootstraps an empty development database.
var devCatalog = []domain.Service{
	{ID: "svc_plumbing", Name: "Plumbing repair", Category: "home", Active: true},
	{ID: "svc_electrical", Name: "Electrical inspection", Category: "home", Active: true},
	{ID: "svc_cleaning", Name: "Deep cleaning", Category: "cleaning", Active: true},
	{ID: "svc_moving", Name: "Moving help", Category: "logistics", Active: true},
}

// App wires together all dependencies and runs the marketplace engine.
type App struct {
	log         zerolog.Logger
	mongo       *mongodrv.Client
	redis       *redis.Client
	publisher   *events.KafkaPublisher
	dispatcher  *queue.Dispatcher
	stopWorkers context.CancelFunc
	httpServer  *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, log zerolog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// MongoDB: bookings, payments, profiles, catalog, chat metadata, audit.
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "marketplace-engine",
	})
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	bookingRepo := mongo.NewBookingRepository(db)
	paymentRepo := mongo.NewPaymentRepository(db)
	profileRepo := mongo.NewProfileRepository(db)
	catalogRepo := mongo.NewCatalogRepository(db)
	chatRepo := mongo.NewChatThreadRepository(db)
	authRepo := mongo.NewAuthRepository(db)
	eventLog := metrics.InstrumentEventLog(mongo.NewGatewayEventRepository(db))

	if err := mongo.EnsureIndexes(ctx, bookingRepo, paymentRepo, chatRepo, authRepo); err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, err
	}
	if cfg.IsDevelopment() {
		if err := catalogRepo.Seed(ctx, devCatalog); err != nil {
			log.Warn().Err(err).Msg("catalog seed failed")
		}
	}

	// Redis: per-booking settlement lock and webhook dedup.
	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")

	// Domain events.
	var publisher ports.EventPublisher = events.NewLogPublisher(logger.Component("events"))
	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger.Component("events"))
		publisher = kafkaPublisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publisher initialized")
	}
	publisher = metrics.InstrumentPublisher(publisher)

	// Payment gateway.
	var (
		gw      ports.PaymentGateway
		sandbox *gateway.Sandbox
	)
	switch cfg.Gateway.Mode {
	case "http":
		gw = gateway.NewHTTPClient(gateway.Config{
			BaseURL:      cfg.Gateway.BaseURL,
			APIKey:       cfg.Gateway.APIKey,
			Timeout:      cfg.Gateway.Timeout,
			FailureRatio: cfg.Gateway.BreakerFailureRatio,
			MinRequests:  cfg.Gateway.BreakerMinRequests,
			OpenTimeout:  cfg.Gateway.BreakerOpenTimeout,
		}, logger.Component("gateway"), metrics.BreakerStateChanged)
	default:
		sandbox = gateway.NewSandbox(cfg.Gateway.BaseURL, logger.Component("gateway"))
		gw = sandbox
	}
	log.Info().Str("mode", cfg.Gateway.Mode).Str("base_url", cfg.Gateway.BaseURL).Msg("payment gateway initialized")

	// Services.
	bookingService := service.NewBookingService(bookingRepo, catalogRepo, profileRepo, publisher, cfg.Engine.Currency, logger.Component("booking"))
	reconciler := service.NewPaymentReconciler(
		bookingService,
		paymentRepo,
		gw,
		mongo.NewTransactor(mongoClient),
		redisstore.NewBookingLocker(rdb, cfg.Engine.PaymentLockTTL, logger.Component("lock")),
		service.CheckoutURLs{Success: cfg.Gateway.SuccessURL, Cancel: cfg.Gateway.CancelURL},
		logger.Component("payments"),
	)
	chatService := service.NewChatAggregator(chatRepo, bookingRepo, catalogRepo, profileRepo, cfg.Engine.RecentThreadsLimit, logger.Component("chat"))
	roleSessions := service.NewRoleSessions(
		service.NewRoleResolver(profileRepo, domain.RolePolicy{ImplicitClient: cfg.Engine.ImplicitClient}, logger.Component("roles")),
		cfg.Engine.RoleWaitTimeout,
		cfg.Engine.RoleCacheTTL,
	)
	authService := service.NewAuthService(authRepo, profileRepo, cfg.JWTSecret, tokenTTL)

	eventService := service.NewGatewayEventService(
		reconciler,
		redisstore.NewDedupChecker(rdb, cfg.Redis.DedupTTL),
		eventLog,
		logger.Component("gateway-events"),
	)
	dispatcher := queue.NewDispatcher(cfg.Engine.DispatchWorkers, eventService, metrics.ObserveGatewayEvent, logger.Component("dispatcher"))

	deps := api.Deps{
		JWTSecret:       cfg.JWTSecret,
		Log:             logger.Component("http"),
		Auth:            authService,
		Roles:           roleSessions,
		Bookings:        bookingService,
		Payments:        reconciler,
		Chat:            chatService,
		Dispatcher:      dispatcher,
		VerifyWebhook:   webhookVerifier(cfg, log),
		SignatureHeader: gateway.SignatureHeader,
		HealthChecks: map[string]handler.Check{
			"mongo": handler.MongoCheck(db),
			"redis": handler.RedisCheck(rdb),
		},
	}
	if sandbox != nil {
		deps.Sandbox = sandbox
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		log:        log,
		mongo:      mongoClient,
		redis:      rdb,
		publisher:  kafkaPublisher,
		dispatcher: dispatcher,
		httpServer: httpServer,
	}, nil
}

// webhookVerifier checks gateway signatures. Without a secret, development
// accepts unsigned notifications and every other environment rejects them.
func webhookVerifier(cfg *config.Config, log zerolog.Logger) handler.SignatureVerifier {
	secret := cfg.Gateway.WebhookSecret
	if secret == "" {
		if cfg.IsDevelopment() {
			log.Warn().Msg("GATEWAY_WEBHOOK_SECRET not set; accepting unsigned webhooks")
			return func(string, []byte) error { return nil }
		}
		return func(string, []byte) error { return gateway.ErrSignatureMissing }
	}
	return func(header string, body []byte) error {
		return gateway.VerifySignature(secret, header, body, time.Now(), gateway.DefaultSignatureTolerance)
	}
}

// Run starts the dispatcher and the HTTP server and blocks until the context
// is canceled.
func (a *App) Run(ctx context.Context) error {
	workerCtx, stop := context.WithCancel(context.Background())
	a.stopWorkers = stop
	a.dispatcher.Start(workerCtx)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.httpServer.Addr).Msg("starting HTTP server")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (no new webhooks are accepted)
// 2. Dispatcher workers (in-flight events finish their current attempt)
// 3. Kafka publisher
// 4. Redis and MongoDB clients
func (a *App) Shutdown() error {
	a.log.Info().Msg("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.log.Error().Err(err).Msg("http server shutdown error")
		errs = append(errs, err)
	}

	if a.stopWorkers != nil {
		a.stopWorkers()
		a.dispatcher.Wait()
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Error().Err(err).Msg("kafka publisher close error")
			errs = append(errs, err)
		}
	}

	if err := a.redis.Close(); err != nil {
		errs = append(errs, err)
	}

	mongoCtx, mongoCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer mongoCancel()
	if err := a.mongo.Disconnect(mongoCtx); err != nil {
		errs = append(errs, err)
	}

	a.log.Info().Msg("application shutdown complete")
	return errors.Join(errs...)
}
