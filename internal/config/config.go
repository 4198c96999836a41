package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/storage/barcache"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. NOVAQUANT_SERVER_PORT.
const EnvPrefix = "NOVAQUANT"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Live     LiveConfig     `mapstructure:"live"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Yahoo    YahooConfig    `mapstructure:"yahoo"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BacktestConfig tunes the backtest runner.
type BacktestConfig struct {
	Workers      int     `mapstructure:"workers"` // 0 means GOMAXPROCS
	StartingCash float64 `mapstructure:"starting_cash"`
}

// LiveConfig holds the live session and market feed settings.
type LiveConfig struct {
	Symbol                string        `mapstructure:"symbol"`
	StartingCash          float64       `mapstructure:"starting_cash"`
	PerTradeNotionalCap   float64       `mapstructure:"per_trade_notional_cap"`
	MaxSessionDrawdownPct float64       `mapstructure:"max_session_drawdown_pct"`
	MetricsWSInterval     time.Duration `mapstructure:"metrics_ws_interval"`
	FeedEnabled           bool          `mapstructure:"feed_enabled"`
	FeedURL               string        `mapstructure:"feed_url"`
	ReconnectDelay        time.Duration `mapstructure:"reconnect_delay"`
}

// EngineConfig describes the order engine child process. An empty command
// runs this binary's own "engine" subcommand.
type EngineConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Command       string        `mapstructure:"command"`
	Args          []string      `mapstructure:"args"`
	ReportTimeout time.Duration `mapstructure:"report_timeout"`
}

type YahooConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig selects the historical bar cache backend.
type CacheConfig struct {
	Type string            `mapstructure:"type"` // "none", "memory", "localfs" or "s3"
	Path string            `mapstructure:"path"` // For localfs
	S3   barcache.S3Config `mapstructure:"s3"`   // For S3
}

// Options converts the section to barcache options.
func (c CacheConfig) Options() barcache.Options {
	return barcache.Options{Type: c.Type, Path: c.Path, S3: c.S3}
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file over the defaults. An empty path loads
// defaults and environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so that environment overrides apply even
// when the file omits the key.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("backtest.workers", d.Backtest.Workers)
	v.SetDefault("backtest.starting_cash", d.Backtest.StartingCash)

	v.SetDefault("live.symbol", d.Live.Symbol)
	v.SetDefault("live.starting_cash", d.Live.StartingCash)
	v.SetDefault("live.per_trade_notional_cap", d.Live.PerTradeNotionalCap)
	v.SetDefault("live.max_session_drawdown_pct", d.Live.MaxSessionDrawdownPct)
	v.SetDefault("live.metrics_ws_interval", d.Live.MetricsWSInterval)
	v.SetDefault("live.feed_enabled", d.Live.FeedEnabled)
	v.SetDefault("live.feed_url", d.Live.FeedURL)
	v.SetDefault("live.reconnect_delay", d.Live.ReconnectDelay)

	v.SetDefault("engine.enabled", d.Engine.Enabled)
	v.SetDefault("engine.command", d.Engine.Command)
	v.SetDefault("engine.args", d.Engine.Args)
	v.SetDefault("engine.report_timeout", d.Engine.ReportTimeout)

	v.SetDefault("yahoo.base_url", d.Yahoo.BaseURL)
	v.SetDefault("yahoo.timeout", d.Yahoo.Timeout)

	v.SetDefault("cache.type", d.Cache.Type)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.s3.bucket", d.Cache.S3.Bucket)
	v.SetDefault("cache.s3.endpoint", d.Cache.S3.Endpoint)
	v.SetDefault("cache.s3.region", d.Cache.S3.Region)
	v.SetDefault("cache.s3.access_key", d.Cache.S3.AccessKey)
	v.SetDefault("cache.s3.secret_key", d.Cache.S3.SecretKey)
	v.SetDefault("cache.s3.prefix", d.Cache.S3.Prefix)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			ShutdownTimeout: 10 * time.Second,
		},
		Backtest: BacktestConfig{
			Workers:      0,
			StartingCash: 10_000,
		},
		Live: LiveConfig{
			Symbol:                "BTCUSDT",
			StartingCash:          1_000_000,
			PerTradeNotionalCap:   50_000,
			MaxSessionDrawdownPct: 10,
			MetricsWSInterval:     time.Second,
			FeedEnabled:           true,
			FeedURL:               "wss://stream.binance.com:9443/ws",
			ReconnectDelay:        2 * time.Second,
		},
		Engine: EngineConfig{
			Enabled:       true,
			Args:          []string{"engine"},
			ReportTimeout: 2 * time.Second,
		},
		Yahoo: YahooConfig{
			BaseURL: "https://query1.finance.yahoo.com",
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Type: "memory",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/prometheus",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Backtest.Workers < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.workers cannot be negative, got %d", c.Backtest.Workers))
	}
	if c.Backtest.StartingCash <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.starting_cash must be > 0, got %v", c.Backtest.StartingCash))
	}

	// Live validation
	if c.Live.Symbol == "" {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("live.symbol is required"))
	}
	if c.Live.StartingCash <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("live.starting_cash must be > 0, got %v", c.Live.StartingCash))
	}
	if c.Live.PerTradeNotionalCap <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("live.per_trade_notional_cap must be > 0, got %v", c.Live.PerTradeNotionalCap))
	}
	if c.Live.MaxSessionDrawdownPct <= 0 || c.Live.MaxSessionDrawdownPct > 100 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("live.max_session_drawdown_pct must be in (0, 100], got %v", c.Live.MaxSessionDrawdownPct))
	}
	if c.Live.MetricsWSInterval <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("live.metrics_ws_interval must be > 0, got %v", c.Live.MetricsWSInterval))
	}

	if c.Engine.ReportTimeout <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("engine.report_timeout must be > 0, got %v", c.Engine.ReportTimeout))
	}

	// Cache validation - backend specific settings must exist
	switch c.Cache.Type {
	case "", "none", "memory":
	case "localfs":
		if c.Cache.Path == "" {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("cache.path required when cache type is localfs"))
		}
	case "s3":
		if c.Cache.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("cache.s3.bucket required when cache type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown cache type %q", c.Cache.Type))
	}

	if c.Metrics.Enabled {
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path))
		}
		if c.Metrics.Path == "/metrics" {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("metrics.path /metrics is reserved for live metrics"))
		}
	}

	return nil
}
