package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/tribunal/internal/anthropic"
	"github.com/MikeSquared-Agency/tribunal/internal/api"
	"github.com/MikeSquared-Agency/tribunal/internal/classifier"
	"github.com/MikeSquared-Agency/tribunal/internal/config"
	"github.com/MikeSquared-Agency/tribunal/internal/evolver"
	"github.com/MikeSquared-Agency/tribunal/internal/gateway"
	"github.com/MikeSquared-Agency/tribunal/internal/learning"
	"github.com/MikeSquared-Agency/tribunal/internal/openai"
	"github.com/MikeSquared-Agency/tribunal/internal/oracle"
	"github.com/MikeSquared-Agency/tribunal/internal/predictor"
	"github.com/MikeSquared-Agency/tribunal/internal/store"
)

// corpus is the union of what the orchestrator, evolver and API need.
// Both the Postgres store and the in-memory store satisfy it.
type corpus interface {
	learning.Corpus
	evolver.Store
	api.Reader
}

// openCorpus connects to Postgres when DATABASE_URL is set and falls back to
// the in-memory store otherwise. The returned func releases the connection.
func openCorpus(ctx context.Context, cfg config.Config, logger *slog.Logger) (corpus, string, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory corpus")
		return store.NewMemory(), "memory", func() {}, nil
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, "", nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, "", nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database connected")
	return db, "postgres", db.Close, nil
}

// newGateway builds the prediction gateway. Without PREDICTOR_URL every
// prediction comes from the rule-based predictor.
func newGateway(ctx context.Context, cfg config.Config, reg *classifier.Registry, logger *slog.Logger) (*gateway.Gateway, string, func(), error) {
	fallback, err := predictor.Default()
	if err != nil {
		return nil, "", nil, fmt.Errorf("load rules: %w", err)
	}
	if cfg.PredictorURL == "" {
		return gateway.New(nil, fallback, reg, cfg.PredictorTimeout, logger), "rule_based", func() {}, nil
	}

	var cache oracle.Cache
	release := func() {}
	if cfg.RedisURL != "" {
		rc, err := oracle.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("prediction cache unavailable, continuing without it", "error", err)
		} else {
			cache = rc
			release = func() { _ = rc.Close() }
			logger.Info("prediction cache ready")
		}
	}

	client := oracle.New(oracle.Config{
		URL:      cfg.PredictorURL,
		APIKey:   cfg.PredictorAPIKey,
		CacheTTL: cfg.CacheTTL,
	}, cache, logger)
	logger.Info("external predictor configured", "url", cfg.PredictorURL, "timeout", cfg.PredictorTimeout)
	return gateway.New(client, fallback, reg, cfg.PredictorTimeout, logger), "external", release, nil
}

// newSynthesizer picks the LLM provider used for template evolution.
func newSynthesizer(cfg config.Config) (evolver.Synthesizer, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for provider anthropic")
		}
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for provider openai")
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
