package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies KRAKENBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known KRAKENBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "KRAKENBOT_MODE")
	setStr(&cfg.LogLevel, "KRAKENBOT_LOG_LEVEL")

	setStr(&cfg.Kraken.RestHost, "KRAKENBOT_KRAKEN_REST_HOST")
	setStr(&cfg.Kraken.WsHost, "KRAKENBOT_KRAKEN_WS_HOST")

	setStr(&cfg.Database.DSN, "KRAKENBOT_DATABASE_DSN")
	setStr(&cfg.Database.Host, "KRAKENBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "KRAKENBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "KRAKENBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "KRAKENBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "KRAKENBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "KRAKENBOT_DATABASE_SSLMODE")
	setBool(&cfg.Database.RunMigrations, "KRAKENBOT_DATABASE_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "KRAKENBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KRAKENBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KRAKENBOT_REDIS_DB")

	setStr(&cfg.S3.Endpoint, "KRAKENBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KRAKENBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "KRAKENBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "KRAKENBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KRAKENBOT_S3_SECRET_KEY")

	setFloat(&cfg.Trading.StartingBalance, "KRAKENBOT_TRADING_STARTING_BALANCE")
	setFloat(&cfg.Trading.TradeAmount, "KRAKENBOT_TRADING_TRADE_AMOUNT")
	setFloat(&cfg.Trading.MakerFeeRate, "KRAKENBOT_TRADING_MAKER_FEE_RATE")
	setFloat(&cfg.Trading.ProfitTargetPct, "KRAKENBOT_TRADING_PROFIT_TARGET_PCT")
	setFloat(&cfg.Trading.StopLossPct, "KRAKENBOT_TRADING_STOP_LOSS_PCT")
	setStr(&cfg.Trading.Strategy, "KRAKENBOT_TRADING_STRATEGY")
	setBool(&cfg.Trading.StartEnabled, "KRAKENBOT_TRADING_START_ENABLED")
	setDuration(&cfg.Trading.StaleAfter, "KRAKENBOT_TRADING_STALE_AFTER")

	setDuration(&cfg.Feed.BackoffBase, "KRAKENBOT_FEED_BACKOFF_BASE")
	setDuration(&cfg.Feed.BackoffMax, "KRAKENBOT_FEED_BACKOFF_MAX")
	setInt(&cfg.Feed.MaxPairs, "KRAKENBOT_FEED_MAX_PAIRS")

	setStr(&cfg.Server.Host, "KRAKENBOT_SERVER_HOST")
	setInt(&cfg.Server.Port, "KRAKENBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "KRAKENBOT_SERVER_API_KEY")

	setStr(&cfg.Notify.TelegramToken, "KRAKENBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "KRAKENBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhook, "KRAKENBOT_NOTIFY_DISCORD_WEBHOOK")
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
