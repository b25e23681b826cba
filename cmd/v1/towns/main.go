package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/covey-town/townservice/internal/v1/api"
	"github.com/covey-town/townservice/internal/v1/config"
	"github.com/covey-town/townservice/internal/v1/health"
	"github.com/covey-town/townservice/internal/v1/logging"
	"github.com/covey-town/townservice/internal/v1/middleware"
	"github.com/covey-town/townservice/internal/v1/ratelimit"
	"github.com/covey-town/townservice/internal/v1/town"
	"github.com/covey-town/townservice/internal/v1/tracing"
	"github.com/covey-town/townservice/internal/v1/transport"
	"github.com/covey-town/townservice/internal/v1/video"
)

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	// Validate environment variables before starting the server
	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode || cfg.GoEnv != "production"); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	}

	// --- Tracing (optional) ---
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(context.Background(), "townservice", cfg.OtelCollectorAddr)
		if err != nil {
			slog.Error("Failed to initialize tracer", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				slog.Error("Failed to shut down tracer provider", "error", err)
			}
		}()
		slog.Info("✅ Tracing initialized", "collector", cfg.OtelCollectorAddr)
	}

	// --- Video token source ---
	// Production mints real Twilio access tokens; development mode falls back
	// to locally signed tokens so the service runs without an account.
	var source video.TokenSource
	if cfg.TwilioAccountSid != "" && cfg.TwilioAPIKeySid != "" && cfg.TwilioAPIKeySecret != "" {
		source = video.NewTwilioTokenSource(cfg.TwilioAccountSid, cfg.TwilioAPIKeySid, cfg.TwilioAPIKeySecret)
		slog.Info("✅ Twilio video token source initialized")
	} else {
		source = video.NewTwilioTokenSource(
			"ACdevelopment00000000000000000000",
			"SKdevelopment00000000000000000000",
			"development-secret-do-not-use-in-production",
		)
		slog.Warn("⚠️  Video tokens are locally signed - DO NOT USE IN PRODUCTION")
	}
	tokenSource := video.NewBreakerSource(source)

	store := town.NewTownsStore(tokenSource)

	// --- Rate limiting ---
	limiter, err := ratelimit.NewRateLimiter(cfg)
	if err != nil {
		slog.Error("Failed to create rate limiter", "error", err)
		os.Exit(1)
	}

	// --- Set up Server ---
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware("townservice"))
	}

	// Cors
	corsConfig := cors.DefaultConfig()
	allowedOrigins := transport.ParseAllowedOrigins(cfg.AllowedOrigins, []string{"http://localhost:3000"})
	corsConfig.AllowOrigins = allowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// REST routes
	apiGroup := router.Group("/", limiter.GlobalMiddleware())
	api.NewHandler(store).RegisterRoutes(apiGroup,
		limiter.MiddlewareForEndpoint("towns"),
		limiter.MiddlewareForEndpoint("join"))

	// WebSocket subscriptions
	subscriptions := transport.NewSubscriptionHandler(store, allowedOrigins)
	router.GET("/ws/town", func(c *gin.Context) {
		if !limiter.CheckWebSocket(c) {
			return
		}
		subscriptions.ServeWs(c)
	})

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	healthHandler := health.NewHandler(store, tokenSource)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	// Start the server.
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		slog.Info("Town service starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Disconnect every town so subscribers receive townClosing before the
	// listener sockets die with the process.
	store.Shutdown()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	slog.Info("Server exiting")
}
