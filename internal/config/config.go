// Package config defines the top-level configuration for the kraken paper
// trading bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by KRAKENBOT_* environment
// variables.
type Config struct {
	Kraken   KrakenConfig   `toml:"kraken"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Trading  TradingConfig  `toml:"trading"`
	Feed     FeedConfig     `toml:"feed"`
	Registry RegistryConfig `toml:"registry"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// KrakenConfig holds Kraken public API endpoints.
type KrakenConfig struct {
	RestHost string `toml:"rest_host"`
	WsHost   string `toml:"ws_host"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
}

// S3Config holds object storage parameters for ledger exports.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// TradingConfig holds the risk and signal parameters of the paper engine.
type TradingConfig struct {
	StartingBalance float64 `toml:"starting_balance"`
	TradeAmount     float64 `toml:"trade_amount"` // USD notional per trade
	MakerFeeRate    float64 `toml:"maker_fee_rate"`
	ProfitTargetPct float64 `toml:"profit_target_pct"`
	StopLossPct     float64 `toml:"stop_loss_pct"`
	Strategy        string  `toml:"strategy"` // "sma_cross" or "band_touch"
	ShortPeriod     int     `toml:"short_period"`
	LongPeriod      int     `toml:"long_period"`
	BandPeriod      int     `toml:"band_period"`
	BandStdDev      float64 `toml:"band_std_dev"`
	WindowSize      int     `toml:"window_size"` // ticks fetched per evaluation
	// StaleAfter flags open positions whose pair stopped ticking.
	StaleAfter duration `toml:"stale_after"`
	// StartEnabled controls whether new entries are evaluated at boot.
	StartEnabled bool `toml:"start_enabled"`
}

// FeedConfig holds websocket feed behaviour.
type FeedConfig struct {
	BackoffBase    duration `toml:"backoff_base"`
	BackoffMax     duration `toml:"backoff_max"`
	HeartbeatGrace duration `toml:"heartbeat_grace"`
	BatchSize      int      `toml:"batch_size"` // pairs per subscribe message
	MaxPairs       int      `toml:"max_pairs"`  // 0 = unlimited
}

// RegistryConfig controls the pair universe refresh loop.
type RegistryConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	// Pairs optionally restricts the universe to the listed WS names.
	Pairs []string `toml:"pairs"`
}

// ServerConfig holds the HTTP API server configuration.
type ServerConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"` // if empty, authentication is disabled
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	Events         []string `toml:"events"`
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	DiscordWebhook string   `toml:"discord_webhook"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Defaults returns a Config populated with the built-in defaults that match
// the original bot's risk settings.
func Defaults() Config {
	return Config{
		Kraken: KrakenConfig{
			RestHost: "https://api.kraken.com",
			WsHost:   "wss://ws.kraken.com/",
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "krakenbot",
			User:          "krakenbot",
			SSLMode:       "disable",
			PoolMaxConns:  8,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Trading: TradingConfig{
			StartingBalance: 100.0,
			TradeAmount:     10.0,
			MakerFeeRate:    0.0025,
			ProfitTargetPct: 0.02,
			StopLossPct:     0.015,
			Strategy:        "sma_cross",
			ShortPeriod:     3,
			LongPeriod:      5,
			BandPeriod:      20,
			BandStdDev:      2.0,
			WindowSize:      100,
			StaleAfter:      duration{2 * time.Minute},
			StartEnabled:    false,
		},
		Feed: FeedConfig{
			BackoffBase:    duration{time.Second},
			BackoffMax:     duration{60 * time.Second},
			HeartbeatGrace: duration{30 * time.Second},
			BatchSize:      50,
			MaxPairs:       0,
		},
		Registry: RegistryConfig{
			RefreshInterval: duration{time.Hour},
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Mode) {
	case "trade", "monitor", "sim":
	default:
		problems = append(problems, fmt.Sprintf("mode %q is not one of trade, monitor, sim", c.Mode))
	}

	t := c.Trading
	if t.StartingBalance <= 0 {
		problems = append(problems, "trading.starting_balance must be positive")
	}
	if t.TradeAmount <= 0 {
		problems = append(problems, "trading.trade_amount must be positive")
	}
	if t.TradeAmount > t.StartingBalance {
		problems = append(problems, "trading.trade_amount exceeds starting balance")
	}
	if t.MakerFeeRate < 0 || t.MakerFeeRate >= 1 {
		problems = append(problems, "trading.maker_fee_rate must be in [0, 1)")
	}
	if t.StopLossPct <= 0 || t.StopLossPct >= 1 {
		problems = append(problems, "trading.stop_loss_pct must be in (0, 1)")
	}
	if t.ProfitTargetPct <= 0 {
		problems = append(problems, "trading.profit_target_pct must be positive")
	}
	if t.ShortPeriod <= 0 || t.LongPeriod <= 0 || t.ShortPeriod >= t.LongPeriod {
		problems = append(problems, "trading.short_period must be positive and below long_period")
	}
	if t.BandPeriod <= 1 {
		problems = append(problems, "trading.band_period must be greater than 1")
	}
	if t.WindowSize < t.LongPeriod || t.WindowSize < t.BandPeriod {
		problems = append(problems, "trading.window_size must cover the longest indicator period")
	}

	f := c.Feed
	if f.BackoffBase.Duration <= 0 || f.BackoffMax.Duration < f.BackoffBase.Duration {
		problems = append(problems, "feed.backoff_base must be positive and no greater than backoff_max")
	}
	if f.BatchSize <= 0 {
		problems = append(problems, "feed.batch_size must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port out of range")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// duration wraps time.Duration so TOML strings like "5m" decode cleanly.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
