package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/booking"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/calendar"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/handlers"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/outbox"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/internal/storage"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/libs/config"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/libs/db"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/libs/httpx"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/libs/kafkax"
	otelx "github.com/JeromeLaquay/Jeroka-backoffice-sub000/libs/otel"
	"github.com/JeromeLaquay/Jeroka-backoffice-sub000/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
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
	authSecret, err := config.RequiredString("AUTH_JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	slotRepo := storage.NewSlotRepository(pool)
	apptRepo := storage.NewAppointmentRepository(pool)
	credRepo := storage.NewCredentialRepository(pool)
	contactRepo := storage.NewContactRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	calBase := config.String("CALENDAR_API_BASE_URL", "")
	calClient := calendar.NewClient(calendar.ClientConfig{
		BaseURL:  calBase,
		TokenURL: config.String("CALENDAR_TOKEN_URL", ""),
		Timeout:  config.DurationSeconds("CALENDAR_TIMEOUT_SECONDS", 5*time.Second),
	})
	if calBase == "" {
		logger.Warn("calendar api base url not configured; mirroring will fail silently for connected owners")
	}
	mirror := calendar.NewMirror(credRepo, calClient, logger,
		config.DurationSeconds("CALENDAR_CALL_TIMEOUT_SECONDS", 3*time.Second))

	svc := booking.NewService(slotRepo, apptRepo, contactRepo, mirror, outboxRepo, logger)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	tzName := config.String("BUSINESS_TIMEZONE", "Europe/Paris")
	location, err := time.LoadLocation(tzName)
	if err != nil {
		logger.Warn("invalid business timezone; falling back to UTC", "tz", tzName, "err", err)
		location = time.UTC
	}

	publicHandler := handlers.NewPublicHandler(svc, logger)
	manageHandler := handlers.NewManageHandler(svc, logger, location)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	handlers.Routes(mux, publicHandler, manageHandler, authSecret, publicMiddleware(logger))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
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

// publicMiddleware protects the unauthenticated booking surface: body
// limit, CORS for the booking widget, and per-client rate limiting.
// Redis backs the limiter when configured so limits hold across replicas.
func publicMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	limit := config.Int("PUBLIC_RATE_LIMIT", 30)
	window := config.DurationSeconds("PUBLIC_RATE_WINDOW_SECONDS", time.Minute)

	var rateLimit httpx.Middleware
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: config.String("REDIS_PASSWORD", "")})
		rateLimit = httpx.NewRedisRateLimiter(rdb, limit, window, "booking:public").Middleware(logger, true)
	} else {
		rateLimit = httpx.NewRateLimiter(limit, window).Middleware()
	}

	cors := httpx.WithCORS(httpx.CORSPolicy{
		AllowedOrigins: splitCSV(config.String("CORS_ALLOWED_ORIGINS", "*")),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         10 * time.Minute,
	})

	return func(h http.Handler) http.Handler {
		return httpx.Chain(h,
			cors,
			rateLimit,
			httpx.WithBodyLimit(1<<20),
			httpx.WithTimeout(15*time.Second),
		)
	}
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
