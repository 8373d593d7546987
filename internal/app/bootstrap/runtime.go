package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	cacheadapter "github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/adapters/metrics"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/ports"
)

// ErrStoreUnavailable marks a backing store that stayed unreachable through every retry.
var ErrStoreUnavailable = errors.New("store unavailable")

// Runtime owns the long-lived resources of one process: store handles, servers and the
// outbox worker. The API and worker commands share it.
type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	db         *gorm.DB
	redis      *redis.Client
	httpServer *http.Server
	grpcServer *grpc.Server
	outbox     *eventadapter.OutboxWorker
	publisher  publisher
}

type publisher interface {
	ports.EventPublisher
	Close() error
}

// NewLogger builds the JSON process logger and installs it as the slog default.
func NewLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := NewLogger(cfg.LogLevel).With("service", cfg.ServiceID)
	logger.Info("bootstrapping credential lifecycle service",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"password_hasher", cfg.PasswordHasher,
	)

	db, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.MigrateOnStart {
		if err := postgres.RunMigrations(ctx, db); err != nil {
			closeDB(db)
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = connectRedis(ctx, cfg, logger)
		if err != nil {
			closeDB(db)
			return nil, err
		}
	} else {
		logger.Warn("REDIS_URL not set; login lockout disabled")
	}

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	repos := postgres.NewRepositories(db)

	deps := application.Dependencies{
		Config: application.Config{
			SessionTTL:              cfg.SessionTTL,
			VerificationCooldown:    cfg.VerificationCooldown,
			VerificationCodeTTL:     cfg.VerificationCodeTTL,
			VerificationMaxAttempts: cfg.VerificationMaxAttempts,
			VerificationCodeDigits:  cfg.VerificationCodeDigits,
			ResetLinkTTL:            cfg.ResetLinkTTL,
			FailedLoginThreshold:    cfg.FailedLoginThreshold,
			LockoutDuration:         cfg.LockoutDuration,
		},
		Users:         repos.Users,
		Sessions:      repos.Sessions,
		Verifications: repos.Verifications,
		Resets:        repos.Resets,
		Notifier:      eventadapter.NewOutboxNotifier(repos.Outbox, m),
		Hasher:        newHasher(cfg),
		Tokens:        security.NewRandomTokens(32),
	}
	if redisClient != nil {
		deps.Lockouts = cacheadapter.NewRedisLockoutStore(redisClient)
	}
	svc := application.NewService(deps)

	handler := httpadapter.NewHandler(svc, httpadapter.Options{
		Metrics:        m,
		Ready:          readinessCheck(db, redisClient),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcadapter.ObservabilityInterceptor(logger, m)))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewSessionInternalServer(svc))

	pub, err := newPublisher(cfg, logger)
	if err != nil {
		closeDB(db)
		closeRedis(redisClient)
		return nil, err
	}
	outbox := eventadapter.NewOutboxWorker(logger, repos.Outbox, pub, m, eventadapter.WorkerConfig{
		Interval:   cfg.OutboxPollInterval,
		BatchSize:  cfg.OutboxBatchSize,
		ClaimTTL:   cfg.OutboxClaimTTL,
		MaxRetries: cfg.OutboxMaxRetries,
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		httpServer: httpServer,
		grpcServer: grpcServer,
		outbox:     outbox,
		publisher:  pub,
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanup()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", lis.Addr().String())
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	return runErr
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanup()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (r *Runtime) cleanup() {
	if err := r.publisher.Close(); err != nil {
		r.logger.Warn("publisher close failed", "error", err)
	}
	closeRedis(r.redis)
	closeDB(r.db)
}

// Migrate applies the embedded migrations and returns the resulting schema version.
func Migrate(ctx context.Context, configPath string) (int64, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return 0, err
	}
	logger := NewLogger(cfg.LogLevel).With("service", cfg.ServiceID)
	db, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}
	defer closeDB(db)

	if err := postgres.RunMigrations(ctx, db); err != nil {
		return 0, err
	}
	return postgres.MigrationStatus(ctx, db)
}

// connectPostgres retries with exponential backoff so the service can start before
// the database accepts connections.
func connectPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*gorm.DB, error) {
	var db *gorm.DB
	backoff := retry.WithMaxRetries(cfg.ConnectAttempts, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			logger.Warn("postgres not reachable; retrying", "error", err)
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: postgres: %w", ErrStoreUnavailable, err)
	}
	return db, nil
}

func connectRedis(ctx context.Context, cfg Config, logger *slog.Logger) (*redis.Client, error) {
	var client *redis.Client
	backoff := retry.WithMaxRetries(cfg.ConnectAttempts, retry.NewExponential(250*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis not reachable; retrying", "error", err)
			return retry.RetryableError(err)
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: redis: %w", ErrStoreUnavailable, err)
	}
	return client, nil
}

func newHasher(cfg Config) ports.PasswordHasher {
	if cfg.PasswordHasher == hasherBcrypt {
		return security.NewBcryptHasher(cfg.BcryptCost)
	}
	return security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2Memory,
		Time:        cfg.Argon2Time,
		Parallelism: cfg.Argon2Parallelism,
	})
}

func newPublisher(cfg Config, logger *slog.Logger) (publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set; notifications are logged instead of produced")
		return eventadapter.NewLoggingPublisher(logger), nil
	}
	pub, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.NotificationTopic, cfg.NotificationTopics)
	if err != nil {
		return nil, fmt.Errorf("init kafka publisher: %w", err)
	}
	return pub, nil
}

func readinessCheck(db *gorm.DB, client *redis.Client) httpadapter.ReadinessCheck {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if client != nil {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func closeRedis(client *redis.Client) {
	if client != nil {
		_ = client.Close()
	}
}
