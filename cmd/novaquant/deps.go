package main

import (
	"fmt"
	"os"

	"github.com/newthinker/novaquant/internal/backtest"
	"github.com/newthinker/novaquant/internal/config"
	"github.com/newthinker/novaquant/internal/engine"
	"github.com/newthinker/novaquant/internal/live"
	"github.com/newthinker/novaquant/internal/logger"
	"github.com/newthinker/novaquant/internal/marketdata"
	"github.com/newthinker/novaquant/internal/marketdata/yahoo"
	"github.com/newthinker/novaquant/internal/storage/barcache"
	"github.com/newthinker/novaquant/internal/strategy/builtin"
	"go.uber.org/zap"
)

// loadConfig reads --config (or defaults plus environment) and validates it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// newRunner builds the backtest runner with the cached Yahoo fetcher.
func newRunner(cfg *config.Config, log *zap.Logger) (*backtest.Runner, error) {
	store, err := barcache.New(cfg.Cache.Options())
	if err != nil {
		return nil, fmt.Errorf("creating bar cache: %w", err)
	}

	client := yahoo.New(cfg.Yahoo.BaseURL, cfg.Yahoo.Timeout)
	fetcher := marketdata.NewCachedFetcher(client.Name(), client, store, logger.Component(log, "marketdata"))

	return backtest.NewRunner(
		builtin.NewRegistry(logger.Component(log, "strategy")),
		fetcher,
		backtest.Options{
			StartingCash: cfg.Backtest.StartingCash,
			Workers:      cfg.Backtest.Workers,
		},
		logger.Component(log, "backtest"),
	), nil
}

// engineConfig resolves the engine command. Without one the bridge runs this
// binary's own engine subcommand.
func engineConfig(cfg *config.Config) (engine.Config, error) {
	command := cfg.Engine.Command
	if command == "" {
		exe, err := os.Executable()
		if err != nil {
			return engine.Config{}, fmt.Errorf("locating executable: %w", err)
		}
		command = exe
	}
	return engine.Config{
		Command:       command,
		Args:          cfg.Engine.Args,
		ReportTimeout: cfg.Engine.ReportTimeout,
	}, nil
}

func sessionConfig(cfg *config.Config) live.Config {
	return live.Config{
		StartingCash: cfg.Live.StartingCash,
		Risk: live.RiskConfig{
			PerTradeNotionalCap:   cfg.Live.PerTradeNotionalCap,
			MaxSessionDrawdownPct: cfg.Live.MaxSessionDrawdownPct,
		},
	}
}
