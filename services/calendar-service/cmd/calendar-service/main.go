package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/huddlecal/huddle/libs/auth"
	"github.com/huddlecal/huddle/libs/config"
	"github.com/huddlecal/huddle/libs/db"
	"github.com/huddlecal/huddle/libs/httpx"
	"github.com/huddlecal/huddle/libs/kafkax"
	"github.com/huddlecal/huddle/libs/metrics"
	otelx "github.com/huddlecal/huddle/libs/otel"
	"github.com/huddlecal/huddle/libs/runtime"
	"github.com/huddlecal/huddle/services/calendar-service/internal/consumer"
	"github.com/huddlecal/huddle/services/calendar-service/internal/deadline"
	"github.com/huddlecal/huddle/services/calendar-service/internal/handlers"
	"github.com/huddlecal/huddle/services/calendar-service/internal/inbox"
	"github.com/huddlecal/huddle/services/calendar-service/internal/outbox"
	"github.com/huddlecal/huddle/services/calendar-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "calendar-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, db.PoolConfig{MaxConns: int32(config.Int("DB_MAX_CONNS", 10))})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	m := metrics.New()
	outboxRepo := outbox.NewRepository(pool)
	repo := storage.NewCalendarRepository(pool, outboxRepo)
	if config.Bool("DB_ENSURE_SCHEMA", true) {
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("schema setup failed", "err", err)
			panic(err)
		}
	}

	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, m, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	if topic := config.String("KAFKA_PROFILE_TOPIC", consumer.TopicProfileUpdated); len(brokers) > 0 && topic != "" {
		reader := consumer.NewReader(consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topic:   topic,
		})
		profiles := consumer.New(logger, reader, pool, inbox.NewRepository(), consumer.ProfileHandler(repo, logger))
		go profiles.Run(ctx)
	}

	sweeper := deadline.NewSweeper(repo, logger, m, config.String("DEADLINE_SWEEP_SCHEDULE", deadline.DefaultSchedule))
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			logger.Error("deadline sweeper stopped", "err", err)
		}
	}()

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if len(brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	rdb := newRedisClient()
	if rdb != nil {
		defer rdb.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}

	if err := startGrpcServer(ctx, logger, m); err != nil {
		logger.Error("grpc server failed", "err", err)
		panic(err)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", m.Handler())
	calendarHandler := handlers.NewCalendarHandler(repo, logger, m)
	calendarHandler.Routes(mux, auth.HS256Verifier(jwtSecret))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}),
		rateLimit(logger, rdb),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "calendar")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// newRedisClient returns nil when REDIS_ADDR is unset.
func newRedisClient() *redis.Client {
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
}

// rateLimit shares counters through Redis when available and falls back to a
// per-process limiter otherwise.
func rateLimit(logger *slog.Logger, rdb *redis.Client) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if rdb == nil {
		return httpx.NewRateLimiter(limit, time.Minute).Middleware()
	}
	limiter := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, "huddle:rl")
	return limiter.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
}
