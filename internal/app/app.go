// Package app assembles the store and generation pipeline from configuration.
// It is shared by the server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/dailycase/internal/config"
	"github.com/ashureev/dailycase/internal/gemini"
	"github.com/ashureev/dailycase/internal/generator"
	"github.com/ashureev/dailycase/internal/retry"
	"github.com/ashureev/dailycase/internal/schedule"
	"github.com/ashureev/dailycase/internal/store"
)

// App holds the long-lived dependencies.
type App struct {
	Store     *store.SQLiteStore
	Client    *gemini.Client
	Generator *generator.Service
}

// New opens the store and builds the generator. Close releases the store.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	catalog := schedule.DefaultCatalog()
	if cfg.CatalogPath != "" {
		c, err := schedule.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		catalog = c
		logger.Info("Loaded challenge catalog", "path", cfg.CatalogPath, "categories", len(c.Categories))
	}

	st, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("store health check: %w", err)
	}

	client := gemini.NewClient(gemini.Config{
		BaseURL:         cfg.Gemini.BaseURL,
		Model:           cfg.Gemini.Model,
		Temperature:     float32(cfg.Gemini.Temperature),
		MaxOutputTokens: int32(cfg.Gemini.MaxOutputTokens),
		Timeout:         cfg.Gemini.Timeout,
	}, logger)

	gen := generator.NewService(client,
		generator.WithCatalog(catalog),
		generator.WithPolicy(Policy(cfg.Retry)),
		generator.WithLogger(logger),
	)

	return &App{Store: st, Client: client, Generator: gen}, nil
}

// Policy converts retry settings into a retry policy.
func Policy(rc config.RetryConfig) retry.Policy {
	var backoff retry.Backoff = retry.Fixed(rc.Backoff)
	if rc.MaxBackoff > 0 {
		backoff = retry.Exponential{Base: rc.Backoff, Max: rc.MaxBackoff}
	}
	return retry.Policy{MaxAttempts: rc.MaxAttempts, Backoff: backoff}
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
