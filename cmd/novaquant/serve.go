package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/novaquant/internal/api"
	"github.com/newthinker/novaquant/internal/engine"
	"github.com/newthinker/novaquant/internal/feed/binance"
	"github.com/newthinker/novaquant/internal/live"
	"github.com/newthinker/novaquant/internal/logger"
	"github.com/newthinker/novaquant/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the novaquant server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Initialize logger
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	runner, err := newRunner(cfg, log)
	if err != nil {
		return err
	}
	if reg != nil {
		runner.SetRecorder(reg)
	}

	engineCfg, err := engineConfig(cfg)
	if err != nil {
		return err
	}
	bridge := engine.NewBridge(engineCfg, logger.Component(log, "engine"))
	if reg != nil {
		bridge.OnStateChange(reg.SetEngineAlive)
	}
	if cfg.Engine.Enabled {
		// A missing engine leaves the service up with live orders refused.
		if err := bridge.Start(); err != nil {
			log.Warn("engine not started", zap.Error(err))
		}
	}

	session := live.NewSession(sessionConfig(cfg), bridge, logger.Component(log, "live"))
	if reg != nil {
		session.SetObserver(reg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Live.FeedEnabled {
		startFeed(ctx, cfg.Live.Symbol, cfg.Live.FeedURL, cfg.Live.ReconnectDelay, session, reg, log)
	}

	server, err := api.NewServer(api.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		Version:           Version,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		MetricsPath:       cfg.Metrics.Path,
		MetricsWSInterval: cfg.Live.MetricsWSInterval,
	}, api.Dependencies{
		Backtester: runner,
		Session:    session,
		Engine:     bridge,
		Metrics:    reg,
	}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	log.Info("starting novaquant server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("version", Version),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stopEngine(bridge, cfg.Server.ShutdownTimeout, log)
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down novaquant server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	stopEngine(bridge, cfg.Server.ShutdownTimeout, log)
	return err
}

func startFeed(ctx context.Context, symbol, url string, reconnect time.Duration, session *live.Session, reg *metrics.Registry, log *zap.Logger) {
	feedCfg := binance.DefaultConfig(symbol)
	if url != "" {
		feedCfg.BaseURL = url
	}
	if reconnect > 0 {
		feedCfg.ReconnectDelay = reconnect
		feedCfg.MaxReconnectDelay = max(feedCfg.MaxReconnectDelay, reconnect)
	}

	client := binance.New(feedCfg, logger.Component(log, "feed"))
	if reg != nil {
		client.OnReconnect(reg.IncFeedReconnect)
	}

	go func() {
		err := client.Run(ctx, func(t binance.Tick) {
			session.OnTick(symbol, t.Mid())
		})
		log.Info("market feed stopped", zap.String("symbol", symbol), zap.Error(err))
	}()
}

func stopEngine(bridge *engine.Bridge, timeout time.Duration, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := bridge.Stop(ctx); err != nil {
		log.Warn("stopping engine", zap.Error(err))
	}
}
