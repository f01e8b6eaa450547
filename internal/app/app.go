package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nthlam/WEB-NOVA-SCI/internal/config"
	"github.com/nthlam/WEB-NOVA-SCI/internal/event"
	"github.com/nthlam/WEB-NOVA-SCI/internal/gateway"
	handler "github.com/nthlam/WEB-NOVA-SCI/internal/handler/http"
	"github.com/nthlam/WEB-NOVA-SCI/internal/repository/postgres"
	redisrepo "github.com/nthlam/WEB-NOVA-SCI/internal/repository/redis"
	"github.com/nthlam/WEB-NOVA-SCI/internal/service"
	"github.com/nthlam/WEB-NOVA-SCI/migrations"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/database"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/health"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/httpclient"
	pkgkafka "github.com/nthlam/WEB-NOVA-SCI/pkg/kafka"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/middleware"
	"github.com/nthlam/WEB-NOVA-SCI/pkg/tracing"
)

// App wires together all dependencies and runs the ordering service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	orderPaid      *pkgkafka.Consumer
	dlq            *pkgkafka.DLQProducer
	settlement     *service.SettlementService
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "webnova-orders",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "webnova-orders")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis backs the settlement consumer's dedup store.
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed, continuing in degraded mode",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))
	}

	// Initialize Kafka producer with connection validation and retry.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Payment gateway client behind a circuit breaker.
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         time.Duration(cfg.GatewayTimeoutSeconds) * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    500 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	})

	cbCfg := httpclient.CircuitBreakerConfig{
		Name:         "payment-gateway",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}
	cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger).
		WithFallback(gateway.CircuitOpenFallback)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.Uint64("max_requests", uint64(cbCfg.MaxRequests)),
		slog.Int("timeout_seconds", cfg.CBTimeout),
	)

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:     cfg.GatewayBaseURL,
		AccountNo:   cfg.GatewayAccountNo,
		AccountName: cfg.GatewayAccountName,
		AcquirerID:  cfg.GatewayAcquirerID,
		Template:    cfg.GatewayTemplate,
	}, cbClient, logger)

	// Build the dependency graph.
	orderRepo := postgres.NewOrderRepository(pool)
	ledger := postgres.NewInventoryLedger(pool)
	purchaseLogRepo := postgres.NewPurchaseLogRepository(pool)
	eventProducer := event.NewProducer(producer, logger)

	checkoutService := service.NewCheckoutService(orderRepo, gatewayClient, logger)
	webhookService := service.NewWebhookService(orderRepo, purchaseLogRepo, eventProducer, []byte(cfg.WebhookSecret), logger)
	settlementService := service.NewSettlementService(orderRepo, ledger, purchaseLogRepo, eventProducer, logger)

	// Settlement consumer: Redis-backed dedup, retries in the kafka layer,
	// poison messages forwarded to the DLQ.
	idempotencyStore := redisrepo.NewIdempotencyStore(redisClient, time.Duration(cfg.IdempotencyTTLHours)*time.Hour)
	eventConsumer := event.NewConsumer(settlementService, logger)
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)

	orderPaidConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.SettlementGroupID,
		Topic:    event.TopicOrderPaid,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(idempotencyStore, eventConsumer.HandleOrderPaid, logger), logger).
		WithDLQ(dlq)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(checkoutService, webhookService, healthHandler, logger, corsCfg, cfg.PprofAllowedCIDRs)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		httpServer:     httpServer,
		orderPaid:      orderPaidConsumer,
		dlq:            dlq,
		settlement:     settlementService,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server, the settlement consumer, and the reconciliation
// sweep, then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start settlement consumer.
	go func() {
		if err := a.orderPaid.Start(ctx); err != nil {
			errCh <- fmt.Errorf("order paid consumer: %w", err)
		}
	}()

	// Start the stale-paid reconciliation sweep.
	go a.runReconciliation(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// runReconciliation periodically re-dispatches settlement for orders stuck in
// the paid status, recovering from lost order.paid publishes.
func (a *App) runReconciliation(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(a.cfg.ReconcileIntervalMins) * time.Minute)
	defer ticker.Stop()

	staleAfter := time.Duration(a.cfg.ReconcileStaleMins) * time.Minute

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.settlement.ReconcileStalePaid(ctx, staleAfter, a.cfg.ReconcileBatchSize)
			if err != nil {
				a.logger.Error("reconciliation sweep error", slog.String("error", err.Error()))
			} else if n > 0 {
				a.logger.Info("stale paid orders re-dispatched", slog.Int("republished", n))
			}
		}
	}
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumer and DLQ producer
// 4. Kafka producer
// 5. Redis client
// 6. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close the settlement consumer and DLQ producer.
	if err := a.orderPaid.Close(); err != nil {
		a.logger.Error("order paid consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.dlq.Close(); err != nil {
		a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 4. Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 5. Close Redis client.
	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 6. Close PostgreSQL pool.
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := producer.Ping(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
