package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/trimclip/booking-service/internal/availability"
	"github.com/trimclip/booking-service/internal/booking"
	"github.com/trimclip/booking-service/internal/cache"
	"github.com/trimclip/booking-service/internal/handlers"
	"github.com/trimclip/booking-service/internal/metrics"
	"github.com/trimclip/booking-service/internal/outbox"
	"github.com/trimclip/booking-service/internal/storage"
	"github.com/trimclip/booking-service/libs/config"
	"github.com/trimclip/booking-service/libs/db"
	"github.com/trimclip/booking-service/libs/httpx"
	"github.com/trimclip/booking-service/libs/kafkax"
	otelx "github.com/trimclip/booking-service/libs/otel"
	"github.com/trimclip/booking-service/libs/runtime"
)

func businessHours(logger *slog.Logger) availability.Hours {
	open, err := config.Clock("BUSINESS_OPEN", "08:00")
	if err != nil {
		logger.Error("invalid BUSINESS_OPEN; using default", "err", err)
		return availability.DefaultHours()
	}
	closeAt, err := config.Clock("BUSINESS_CLOSE", "20:00")
	if err != nil {
		logger.Error("invalid BUSINESS_CLOSE; using default", "err", err)
		return availability.DefaultHours()
	}
	return availability.Hours{
		Open:  open,
		Close: closeAt,
		Step:  config.Minutes("SLOT_STEP_MINUTES", 30*time.Minute),
	}
}

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}

	cacheTTL := config.Minutes("AVAILABILITY_CACHE_TTL_MINUTES", 5*time.Minute)
	var avCache cache.AvailabilityCache
	var rdb *redis.Client
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		defer func() { _ = rdb.Close() }()
		avCache = cache.NewRedisCache(rdb, cacheTTL)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(rdb)})
	} else {
		logger.Info("REDIS_ADDR not set; using in-process availability cache")
		avCache = cache.NewMemoryCache(cacheTTL)
	}

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxRepo := outbox.NewRepository(pool)
	if kafkaBrokers != "" {
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   kafkaBrokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go publisher.Run(ctx)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	} else {
		logger.Info("KAFKA_BROKERS not set; outbox events stay queued in postgres")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	coord := booking.NewCoordinator(
		storage.NewAppointmentRepository(pool, outboxRepo),
		storage.NewDirectory(pool),
		avCache,
		metrics.NewPrometheus(registry),
		logger,
		booking.Config{
			Hours:          businessHours(logger),
			InvalidateDays: config.Int("CACHE_INVALIDATE_DAYS", booking.DefaultInvalidateDays),
		},
	)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	handlers.NewBookingHandler(coord, logger).Register(mux)

	middleware := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(config.Minutes("REQUEST_TIMEOUT_MINUTES", time.Minute)),
	}
	if origins := config.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		middleware = append(middleware, httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(origins, ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type", "X-Tenant-Id", "X-Customer-Id"},
			MaxAge:         10 * time.Minute,
		}))
	}
	if limit := config.Int("RATE_LIMIT_PER_MINUTE", 0); limit > 0 {
		if rdb != nil {
			rl := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, service)
			middleware = append(middleware, rl.Middleware(logger, true))
		} else {
			middleware = append(middleware, httpx.NewRateLimiter(limit, time.Minute).Middleware())
		}
	}
	httpHandler := httpx.Chain(mux, middleware...)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
