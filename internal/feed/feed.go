// Package feed maintains the streaming price subscription and normalizes
// inbound messages into ticks for the rest of the pipeline.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// Transport is the connection the feed client drives. Implementations must
// support repeated Connect calls so one Transport value can live across
// reconnects. The production implementation is kraken.WSClient; tests
// substitute a fake.
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, pairs []string) error
	// ReadTick blocks until the next tick or a transport failure. Parse
	// failures are handled inside the transport and never surface here.
	ReadTick(ctx context.Context) (domain.Tick, error)
	Close() error
}

// State is the connection state of the feed client.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnected    State = "CONNECTED"
	StateReconnecting State = "RECONNECTING"
)

// Client owns the feed connection lifecycle: subscribe, deliver ticks in
// receipt order, and recover from transport failures with bounded
// exponential backoff. Tick delivery pauses while reconnecting; downstream
// must tolerate timestamp gaps.
type Client struct {
	transport   Transport
	backoffBase time.Duration
	backoffMax  time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	pairs []string
	state State

	ticks      chan domain.Tick
	reconnects int64

	onReconnect func() // metrics hook, optional
}

// NewClient creates a feed client over the given transport. Backoff starts
// at base, doubles per failed attempt, and is capped at max; it resets to
// base after any successful reconnect.
func NewClient(transport Transport, base, max time.Duration, logger *slog.Logger) *Client {
	return &Client{
		transport:   transport,
		backoffBase: base,
		backoffMax:  max,
		logger:      logger.With(slog.String("component", "feed")),
		state:       StateDisconnected,
		ticks:       make(chan domain.Tick, 256),
	}
}

// OnReconnect registers a callback invoked once per reconnect attempt.
func (c *Client) OnReconnect(fn func()) { c.onReconnect = fn }

// Subscribe sets (or replaces) the pair universe the client subscribes to.
// If the client is currently connected the new subscription is sent
// immediately; otherwise it is applied on the next (re)connect.
func (c *Client) Subscribe(ctx context.Context, pairs []string) error {
	c.mu.Lock()
	c.pairs = append([]string(nil), pairs...)
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	if err := c.transport.Subscribe(ctx, pairs); err != nil {
		return err
	}
	return nil
}

// Ticks returns the delivery channel. It is closed when Run returns, so the
// sequence is non-restartable; a consumer ranges over it exactly once.
func (c *Client) Ticks() <-chan domain.Tick { return c.ticks }

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reconnects returns how many reconnect attempts have been made.
func (c *Client) Reconnects() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnects
}

// Run drives the connection until ctx is cancelled. Each cycle connects,
// resubscribes, and pumps ticks into the delivery channel; any transport
// failure moves the client to RECONNECTING and schedules the next attempt.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.ticks)
	defer c.transport.Close()

	delay := c.backoffBase

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.tryConnect(ctx) {
			// Any successful connect resets the backoff counter.
			delay = c.backoffBase

			err := c.pump(ctx)
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.setState(StateDisconnected)
				return ctx.Err()
			}
			c.logger.Warn("feed connection lost", slog.String("error", err.Error()))
		}

		c.setState(StateReconnecting)
		c.mu.Lock()
		c.reconnects++
		c.mu.Unlock()
		if c.onReconnect != nil {
			c.onReconnect()
		}

		c.logger.Info("reconnecting", slog.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.backoffMax {
			delay = c.backoffMax
		}
	}
}

// tryConnect attempts to connect and subscribe. On success the client is
// CONNECTED.
func (c *Client) tryConnect(ctx context.Context) bool {
	if err := c.transport.Connect(ctx); err != nil {
		c.logger.Warn("connect failed", slog.String("error", err.Error()))
		return false
	}

	c.mu.Lock()
	pairs := append([]string(nil), c.pairs...)
	c.mu.Unlock()

	if len(pairs) > 0 {
		if err := c.transport.Subscribe(ctx, pairs); err != nil {
			c.logger.Warn("subscribe failed", slog.String("error", err.Error()))
			_ = c.transport.Close()
			return false
		}
	}

	c.setState(StateConnected)
	c.logger.Info("feed connected", slog.Int("pairs", len(pairs)))
	return true
}

// pump reads ticks and forwards them until the transport fails or ctx ends.
func (c *Client) pump(ctx context.Context) error {
	for {
		tick, err := c.transport.ReadTick(ctx)
		if err != nil {
			return err
		}
		select {
		case c.ticks <- tick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
