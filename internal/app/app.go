// Package app wires configuration, storage, the coupon service and the HTTP
// server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/coupons-api/internal/domain/coupon"
	"github.com/xenking/coupons-api/internal/domain/discount"
	"github.com/xenking/coupons-api/internal/events"
	"github.com/xenking/coupons-api/internal/handler"
	"github.com/xenking/coupons-api/internal/service"
	"github.com/xenking/coupons-api/internal/storage/memory"
	"github.com/xenking/coupons-api/internal/storage/mongo"
	"github.com/xenking/coupons-api/internal/storage/postgres"
	"github.com/xenking/coupons-api/internal/storage/rediscache"
	"github.com/xenking/coupons-api/pkg/health"
	"github.com/xenking/coupons-api/pkg/httpmiddleware"
)

// Store is a coupon repository that can report its own health.
type Store interface {
	coupon.Repository
	health.Pinger
}

// OpenStore connects to the configured coupon store and prepares its schema.
// The returned func releases the connection.
func OpenStore(ctx context.Context, cfg StorageConfig) (Store, func(), error) {
	switch cfg.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		return postgres.NewCouponRepository(pool), pool.Close, nil
	case DriverMongo:
		db, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect mongo")
		}
		disconnect := func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = db.Client().Disconnect(shutdownCtx)
		}
		repo := mongo.NewCouponRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			disconnect()
			return nil, nil, errors.Wrap(err, "ensure indexes")
		}
		return repo, disconnect, nil
	case DriverMemory:
		return memory.NewCouponRepository(), func() {}, nil
	default:
		return nil, nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	store, closeStore, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck(cfg.Storage.Driver, 5*time.Second, health.PingCheck(store))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	var repo coupon.Repository = store
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			lg.Warn("Redis unavailable", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		}
		repo = rediscache.New(repo, rdb, cfg.Cache.TTL)
	}

	opts := []service.Option{service.WithMeterProvider(m.MeterProvider())}
	if len(cfg.Events.Brokers) > 0 {
		publisher := events.NewKafka(cfg.Events.Topic, cfg.Events.Brokers...)
		defer func() { _ = publisher.Close() }()
		opts = append(opts, service.WithPublisher(publisher))
		lg.Info("Publishing coupon events",
			zap.Strings("brokers", cfg.Events.Brokers),
			zap.String("topic", cfg.Events.Topic),
		)
	}
	svc, err := service.New(repo, discount.NewEngine(), opts...)
	if err != nil {
		return errors.Wrap(err, "create service")
	}

	middlewares := []httpmiddleware.Middleware{
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.Instrument("coupons-api", m),
		httpmiddleware.LogRequests(),
	}
	if cfg.RateLimit.RPS > 0 {
		middlewares = append(middlewares, httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
		}))
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           handler.New(svc).Router(healthSvc, middlewares...),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
