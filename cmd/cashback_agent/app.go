package main

import (
	"fmt"

	"github.com/jonathan/cashback-scout/internal/config"
	"github.com/jonathan/cashback-scout/internal/detection/pdp"
	"github.com/jonathan/cashback-scout/internal/fetch"
	"github.com/jonathan/cashback-scout/internal/logging"
	"github.com/jonathan/cashback-scout/internal/metrics"
	"github.com/jonathan/cashback-scout/internal/orchestrator"
	"github.com/jonathan/cashback-scout/internal/search"
	"github.com/jonathan/cashback-scout/internal/store"
)

// loadConfig reads the config file and environment, then applies global
// flags over it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := config.Config{}
	flags.Registry.Location = registryFlag
	flags.Logging.Level = logLevel
	flags.Logging.Format = logFormat
	merged := flags.MergeWithDefaults(*cfg)

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
}

// newSource builds the page source, with the headless browser fallback when
// detection.use_browser is set.
func newSource(cfg *config.Config, logger logging.Logger) fetch.Source {
	src := fetch.NewHTTPSource(logger)
	src.Options.Timeout = cfg.Detection.FetchTimeout
	if cfg.Detection.UseBrowser {
		src.Browser = fetch.NewBrowserSource(logger)
	}
	return src
}

// orchestratorParts are the optional collaborators a command may add.
type orchestratorParts struct {
	store    store.PageViews
	history  orchestrator.History
	metrics  *metrics.Metrics
	notifier orchestrator.Notifier
}

func newOrchestrator(cfg *config.Config, logger logging.Logger, parts orchestratorParts) (*orchestrator.Orchestrator, error) {
	if cfg.Registry.Location == "" {
		return nil, fmt.Errorf("no brand list configured: use --registry or set CASHBACK_REGISTRY_LOCATION")
	}

	return orchestrator.New(orchestrator.Config{
		Registry: orchestrator.NewCachedRegistry(
			orchestrator.NewRegistrySource(cfg.Registry.Location),
			cfg.Registry.CacheTTL,
		),
		Scorer: pdp.NewScorer(
			pdp.WithThreshold(cfg.Detection.Threshold),
			pdp.WithLogger(logger),
		),
		Store:    parts.store,
		Notifier: parts.notifier,
		History:  parts.history,
		Metrics:  parts.metrics,
		Search:   search.NewBuilder(cfg.Search.BaseURL, cfg.Search.Suffix),
		Retry: orchestrator.RetryPolicy{
			MaxAttempts: cfg.Detection.RetryAttempts,
			Delay:       cfg.Detection.RetryDelay,
		},
		Logger: logger,
		TabTTL: cfg.Store.TTL,
	}), nil
}
