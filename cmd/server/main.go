// Astrovoice - voice assistant server for astrology skills
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ashureev/astrovoice/internal/advisor"
	"github.com/ashureev/astrovoice/internal/api"
	"github.com/ashureev/astrovoice/internal/app"
	"github.com/ashureev/astrovoice/internal/assistant"
	"github.com/ashureev/astrovoice/internal/calc"
	"github.com/ashureev/astrovoice/internal/calc/builtin"
	"github.com/ashureev/astrovoice/internal/calc/httpapi"
	"github.com/ashureev/astrovoice/internal/calc/remote"
	"github.com/ashureev/astrovoice/internal/chat"
	"github.com/ashureev/astrovoice/internal/config"
	"github.com/ashureev/astrovoice/internal/dialog"
	"github.com/ashureev/astrovoice/internal/format"
	"github.com/ashureev/astrovoice/internal/identity"
	"github.com/ashureev/astrovoice/internal/middleware"
	"github.com/ashureev/astrovoice/internal/nlu"
	"github.com/ashureev/astrovoice/internal/platform"
	"github.com/ashureev/astrovoice/internal/session"
	"github.com/ashureev/astrovoice/internal/store"
)

const rateLimitEvictInterval = 5 * time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Log)
	logger.Info("Starting server", "port", cfg.Server.Port, "dev", cfg.IsDevelopment(), "session_store", cfg.Session.Store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session persistence.
	sessionStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := sessionStore.Close(); closeErr != nil {
			logger.Error("Failed to close session store", "error", closeErr)
		}
	}()

	if err := sessionStore.Ping(ctx); err != nil {
		logger.Error("Session store health check failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Session store connected")

	sessions := session.NewManager(sessionStore, cfg.Session.Timeout, logger, session.WithRetention(cfg.Session.Retention))

	// Calculation chain.
	backends := buildBackends(cfg, logger)
	for _, b := range backends {
		if c, ok := b.(interface{ Close() error }); ok {
			defer func() {
				if closeErr := c.Close(); closeErr != nil {
					logger.Warn("Failed to close backend", "error", closeErr)
				}
			}()
		}
	}
	gateway := calc.NewGateway(backends, calc.Config{
		CallTimeout:     cfg.Calc.CallTimeout,
		FallbackReserve: cfg.Calc.FallbackReserve,
		AvailabilityTTL: cfg.Calc.AvailabilityTTL,
		CacheSize:       cfg.Calc.CacheSize,
		TTLs: map[calc.OperationKind]time.Duration{
			calc.KindNatalChart:    cfg.Calc.NatalTTL,
			calc.KindCompatibility: cfg.Calc.CompatibilityTTL,
			calc.KindHoroscope:     cfg.Calc.HoroscopeTTL,
			calc.KindLunarCalendar: cfg.Calc.LunarTTL,
			calc.KindTransits:      cfg.Calc.TransitsTTL,
		},
	}, logger)
	logger.Info("Calculation gateway ready", "backends", gateway.Backends())

	extractor, err := nlu.NewExtractor(cfg.NLU.CacheSize, logger)
	if err != nil {
		logger.Error("Failed to initialize intent extractor", "error", err)
		os.Exit(1)
	}

	// Initialize AI advisor gRPC client (optional).
	var routerOpts []dialog.Option
	if cfg.Advisor.Addr != "" {
		logger.Info("Connecting to advisor service via gRPC", "address", cfg.Advisor.Addr)
		client, err := advisor.NewGrpcClient(cfg.Advisor.Addr, cfg.Advisor.Timeout, logger)
		if err != nil {
			logger.Warn("Failed to connect to advisor, AI answers will use fallbacks", "error", err)
		} else {
			defer client.Close()
			routerOpts = append(routerOpts, dialog.WithAdvisor(client))
		}
	} else {
		logger.Info("AI advisor disabled (ADVISOR_ADDR not set)")
	}

	router := dialog.NewRouter(gateway, logger, routerOpts...)
	assist := assistant.New(extractor, sessions, router, format.New(), cfg.Platforms, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)

	// Initialize handlers.
	webhookHandler := api.NewWebhookHandler(assist, platform.DefaultRegistry(), limiter, api.WebhookConfig{
		TurnDeadline: cfg.Server.TurnDeadline,
		MaxBodySize:  cfg.Server.MaxRequestBodySize,
	}, logger)
	healthHandler := api.NewHealthHandler(sessionStore, gateway, 0)
	chatRegistry := chat.NewRegistry()

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	webhookHandler.RegisterRoutes(r)

	// WebSocket chat endpoint.
	if cfg.Server.WebChatEnabled {
		chatHandler := chat.NewHandler(assist, chatRegistry, limiter, cfg.Server.TurnDeadline, cfg.Server.FrontendURL, cfg.IsDevelopment(), logger)
		r.With(
			identity.Middleware(cfg.IsDevelopment()),
			middleware.Limit(limiter, func(req *http.Request) string {
				return identity.IPFromRequest(req)
			}),
		).Get("/ws/chat", chatHandler.ServeHTTP)
		logger.Info("Web chat enabled", "path", "/ws/chat")
	}

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start background workers.
	sessions.StartSweepWorker(ctx, cfg.Session.SweepInterval)
	limiter.StartEviction(ctx, rateLimitEvictInterval)
	logger.Info("Session sweep worker started", "timeout", cfg.Session.Timeout, "interval", cfg.Session.SweepInterval)

	// Start server.
	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	chatRegistry.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped successfully")
}

func openStore(ctx context.Context, cfg *config.Config) (store.SessionStore, error) {
	kind := store.Kind(cfg.Session.Store)
	switch kind {
	case store.KindSQLite:
		return store.New(ctx, kind, store.WithSQLitePath(cfg.Session.DBPath))
	case store.KindRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		return store.New(ctx, kind, store.WithRedisClient(client), store.WithRedisTTL(cfg.Session.Retention))
	case store.KindPostgres:
		pool, err := store.NewPool(ctx, cfg.Session.PostgresDSN, 0)
		if err != nil {
			return nil, err
		}
		st, err := store.New(ctx, kind, store.WithPostgresPool(pool))
		if err != nil {
			pool.Close()
			return nil, err
		}
		return st, nil
	default:
		return store.New(ctx, kind)
	}
}

// buildBackends returns the configured backends in priority order, skipping
// those without the settings they need.
func buildBackends(cfg *config.Config, logger *slog.Logger) []calc.Backend {
	var out []calc.Backend
	for _, name := range cfg.BackendOrder() {
		switch name {
		case remote.Name:
			if cfg.Calc.RemoteAddr == "" {
				logger.Info("Remote ephemeris backend skipped (CALC_REMOTE_ADDR not set)")
				continue
			}
			b, err := remote.New(cfg.Calc.RemoteAddr, cfg.Calc.RemoteKinds, logger)
			if err != nil {
				logger.Warn("Failed to configure remote backend", "error", err)
				continue
			}
			out = append(out, b)
		case httpapi.Name:
			if cfg.Calc.HTTPBaseURL == "" {
				logger.Info("HTTP horoscope backend skipped (CALC_HTTP_BASE_URL not set)")
				continue
			}
			out = append(out, httpapi.New(cfg.Calc.HTTPBaseURL, cfg.Calc.HTTPAPIKey, cfg.Calc.HTTPAPIKinds, logger))
		case builtin.Name:
			out = append(out, builtin.New())
		default:
			logger.Warn("Unknown calculation backend in CALC_BACKENDS", "backend", name)
		}
	}
	return out
}
