package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/burhankhanlodhy/scalper-bot/internal/blob/s3"
	"github.com/burhankhanlodhy/scalper-bot/internal/cache/redis"
	"github.com/burhankhanlodhy/scalper-bot/internal/config"
	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
	"github.com/burhankhanlodhy/scalper-bot/internal/notify"
	"github.com/burhankhanlodhy/scalper-bot/internal/store/memory"
	"github.com/burhankhanlodhy/scalper-bot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	PairStore   domain.PairStore
	TickStore   domain.TickStore
	LedgerStore domain.LedgerStore

	// Caches
	PriceCache  domain.PriceCache
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Object storage (nil when no bucket is configured)
	Archiver domain.LedgerArchiver

	// Notifications
	Notifier *notify.Notifier
}

// usesMemoryStores returns true for modes that run entirely in-process.
func usesMemoryStores(mode string) bool {
	return mode == "sim"
}

// Wire constructs the concrete dependency implementations for the given
// configuration and returns them with a cleanup function to be called on
// shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	if usesMemoryStores(cfg.Mode) {
		// Sim mode: the whole pipeline runs against in-process stores.
		deps.PairStore = memory.NewPairStore()
		deps.TickStore = memory.NewTickStore(cfg.Trading.WindowSize * 10)
		deps.LedgerStore = memory.NewLedgerStore()
		deps.PriceCache = memory.NewPriceCache()
		deps.SignalBus = memory.NewSignalBus()
		deps.RateLimiter = memory.NewRateLimiter()
	} else {
		// --- PostgreSQL ---
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.PairStore = postgres.NewPairStore(pool)
		deps.TickStore = postgres.NewTickStore(pool)
		deps.LedgerStore = postgres.NewLedgerStore(pool)

		// --- Redis ---
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- S3 ledger export (optional) ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.Archiver = s3blob.NewArchiver(s3Client, cfg.S3.Prefix)
	}

	// --- Notifications ---
	timeout := 10 * time.Second
	if cfg.Notify.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Notify.TimeoutSeconds) * time.Second
	}
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
			timeout,
		))
	}
	if cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook, timeout))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
