package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jmin-pingu/ihcl/internal/config"
	"github.com/jmin-pingu/ihcl/internal/contexts"
	"github.com/jmin-pingu/ihcl/internal/fetch"
	"github.com/jmin-pingu/ihcl/internal/ingestion"
)

// newStore wires the web fetcher, format parsers and context store for cfg.
func newStore(cfg config.Config, logger *zap.Logger) *contexts.Store {
	opts := fetch.DefaultOptions()
	webOptions := []fetch.WebOption{fetch.WithLogger(logger)}
	if cfg.UseBrowser {
		webOptions = append(webOptions, fetch.WithRenderer(fetch.BrowserRenderer{
			Options: opts,
			Logger:  logger,
		}))
	}
	web := fetch.NewWebFetcher(opts, webOptions...)

	resolver := ingestion.NewResolver(web, ingestion.WithResolverLogger(logger))
	return contexts.NewStore(resolver,
		contexts.WithConcurrency(cfg.Concurrency),
		contexts.WithPolicy(cfg.Policy()),
		contexts.WithLogger(logger))
}

// loadConfig merges the optional config file, explicitly-set flags applied by
// override, the GEMINI_API_KEY fallback and defaults, then validates the result.
func loadConfig(path string, override func(*config.Config)) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	if override != nil {
		override(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	cfg = cfg.MergeWithDefaults(config.Defaults())

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
