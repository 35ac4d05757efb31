// dailycase - daily analytics case challenge server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/dailycase/internal/api"
	"github.com/ashureev/dailycase/internal/app"
	"github.com/ashureev/dailycase/internal/config"
	"github.com/ashureev/dailycase/internal/identity"
	"github.com/ashureev/dailycase/internal/live"
	"github.com/ashureev/dailycase/internal/middleware"
	"github.com/ashureev/dailycase/internal/prewarm"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "model", cfg.Gemini.Model)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()
	slog.Info("Database connected", "path", cfg.DBPath)

	// Initialize handlers.
	limiter := api.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Stop()

	hub := live.NewHub()
	baseHandler := api.NewHandler(a.Store, a.Generator, a.Client.Model())
	challengeHandler := api.NewChallengeHandler(baseHandler, limiter)
	healthHandler := api.NewHealthHandler(a.Store)
	wsHandler := live.NewHandler(a.Store, a.Generator, hub, limiter, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	challengeHandler.RegisterRoutes(r)

	// WebSocket endpoint. Rate limited like the REST challenge route.
	r.With(limiter.Middleware).Get("/ws/challenge", wsHandler.ServeHTTP)

	// Generation can take several attempts of up to GEMINI_TIMEOUT each.
	writeTimeout := time.Duration(cfg.Retry.MaxAttempts)*(cfg.Gemini.Timeout+cfg.Retry.Backoff) + 30*time.Second
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerDone := prewarm.StartWorker(ctx, a.Store, a.Generator, cfg.PrewarmInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")
	hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	// An in-flight generation is detached from ctx, so the wait is bounded.
	if err := prewarm.Wait(shutdownCtx, workerDone); err != nil {
		slog.Warn("Prewarm worker still running at shutdown", "error", err)
	}

	slog.Info("Server stopped successfully")
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return strings.Split(cfg.FrontendURL, ",")
}

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
