package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tranmd/whaleaudit/internal/audit"
	"github.com/tranmd/whaleaudit/internal/collector/futures"
	"github.com/tranmd/whaleaudit/internal/collector/futures/binance"
	"github.com/tranmd/whaleaudit/internal/collector/futures/okx"
	"github.com/tranmd/whaleaudit/internal/config"
	"github.com/tranmd/whaleaudit/internal/history"
	"github.com/tranmd/whaleaudit/internal/llm"
	"github.com/tranmd/whaleaudit/internal/llm/factory"
	"github.com/tranmd/whaleaudit/internal/metrics"
	"github.com/tranmd/whaleaudit/internal/narrative"
	"github.com/tranmd/whaleaudit/internal/storage/archive"
)

// loadConfig reads the config file or falls back to defaults, then
// validates either way.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func buildBackend(cfg config.ArchiveConfig) (archive.Backend, error) {
	switch cfg.Type {
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		path := cfg.Path
		if path == "" {
			path = "data/archive"
		}
		return archive.NewLocalFS(path)
	}
}

func buildMarketRegistry(cfg config.MarketConfig) *futures.Registry {
	reg := futures.NewRegistry()
	for _, name := range cfg.Providers {
		switch name {
		case "binance":
			reg.Register(binance.New())
		case "okx":
			reg.Register(okx.New())
		}
	}
	return reg
}

// buildLLM returns nil when no provider is configured; analysis and
// narrative features are disabled in that case.
func buildLLM(cfg config.LLMConfig, log *zap.Logger) (llm.Provider, error) {
	if cfg.Provider == "" {
		log.Warn("no LLM provider configured, analysis and narratives disabled")
		return nil, nil
	}
	return factory.New(cfg)
}

func buildAuditor(cfg *config.Config, candles audit.CandleProvider, store *history.Store, reg *metrics.Registry, provider llm.Provider, log *zap.Logger) *audit.Auditor {
	var narrator audit.Narrator
	if provider != nil {
		narrator = narrative.New(provider, log)
	}
	return audit.New(candles, narrator, store, reg, log, audit.Config{
		MinAge:   cfg.Audit.MinAge,
		Interval: cfg.Market.Interval,
		MaxBars:  cfg.Audit.MaxBars,
	})
}
