// Package registry maintains the tradeable-pair universe, refreshed
// periodically from the venue and persisted for reporting.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// VenueClient fetches the pair universe from the external venue.
type VenueClient interface {
	USDPairs(ctx context.Context) ([]domain.Pair, error)
}

// Registry owns pair identity. Refresh failures retain the last-known-good
// set; the subscription list never collapses to empty because one poll
// failed.
type Registry struct {
	client VenueClient
	store  domain.PairStore
	logger *slog.Logger

	// allowed optionally restricts the universe to these WS names.
	allowed  map[string]bool
	maxPairs int

	mu        sync.RWMutex
	pairs     []domain.Pair
	onRefresh func()
}

// New creates a Registry. allowedWSNames may be empty (no filter); maxPairs
// of 0 means unlimited. store may be nil (sim mode persists nothing).
func New(client VenueClient, store domain.PairStore, allowedWSNames []string, maxPairs int, logger *slog.Logger) *Registry {
	allowed := make(map[string]bool, len(allowedWSNames))
	for _, name := range allowedWSNames {
		allowed[name] = true
	}
	return &Registry{
		client:   client,
		store:    store,
		logger:   logger.With(slog.String("component", "pair_registry")),
		allowed:  allowed,
		maxPairs: maxPairs,
	}
}

// OnRefresh registers a callback invoked after every successful Refresh,
// once the new universe is visible. Subscribers use it to push universe
// changes to a live feed without waiting for a reconnect.
func (r *Registry) OnRefresh(fn func()) {
	r.mu.Lock()
	r.onRefresh = fn
	r.mu.Unlock()
}

// Refresh fetches the current universe, replacing stale entries. On fetch
// failure the previous set stays in place and the error is returned.
func (r *Registry) Refresh(ctx context.Context) error {
	pairs, err := r.client.USDPairs(ctx)
	if err != nil {
		r.logger.Warn("pair refresh failed, keeping last known set", slog.String("error", err.Error()))
		return fmt.Errorf("registry: refresh: %w", err)
	}

	if len(r.allowed) > 0 {
		filtered := pairs[:0]
		for _, p := range pairs {
			if r.allowed[p.WSName] {
				filtered = append(filtered, p)
			}
		}
		pairs = filtered
	}

	if r.store != nil {
		if err := r.store.UpsertBatch(ctx, pairs); err != nil {
			// The in-memory set is still usable for subscriptions.
			r.logger.Warn("pair persistence failed", slog.String("error", err.Error()))
		}
	}

	r.mu.Lock()
	r.pairs = pairs
	notify := r.onRefresh
	r.mu.Unlock()

	r.logger.Info("pair universe refreshed", slog.Int("pairs", len(pairs)))
	if notify != nil {
		notify()
	}
	return nil
}

// List returns the current known set.
func (r *Registry) List() []domain.Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Pair(nil), r.pairs...)
}

// SubscriptionList returns the WS names of online pairs, capped at the
// configured maximum. This feeds the feed client's subscription.
func (r *Registry) SubscriptionList() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pairs))
	for _, p := range r.pairs {
		if !p.Online() {
			continue
		}
		names = append(names, p.WSName)
		if r.maxPairs > 0 && len(names) >= r.maxPairs {
			break
		}
	}
	return names
}

// Run refreshes the universe on the given interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = r.Refresh(ctx) // already logged; last-known-good retained
		}
	}
}
