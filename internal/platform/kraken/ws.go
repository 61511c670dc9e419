package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 15 * time.Second

	// subscribeGap spaces out batched subscribe commands so large
	// universes do not overwhelm the venue.
	subscribeGap = 500 * time.Millisecond
)

// WSClient connects to the Kraken v1 websocket feed, subscribes to the
// ticker channel, and turns inbound frames into domain.Tick values. One
// WSClient can be connected, torn down, and connected again; the feed layer
// drives that lifecycle.
type WSClient struct {
	wsURL          string
	batchSize      int
	heartbeatGrace time.Duration
	logger         *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSClient creates a websocket client for the given endpoint,
// e.g. "wss://ws.kraken.com/". heartbeatGrace is the maximum silence
// (heartbeats included) tolerated before a read fails and the connection
// is considered dead.
func NewWSClient(wsURL string, batchSize int, heartbeatGrace time.Duration, logger *slog.Logger) *WSClient {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &WSClient{
		wsURL:          wsURL,
		batchSize:      batchSize,
		heartbeatGrace: heartbeatGrace,
		logger:         logger.With(slog.String("component", "kraken_ws")),
	}
}

// Connect dials the websocket endpoint. Any previous connection is closed
// first.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("kraken/ws: connect: %w", err)
	}
	w.conn = conn
	return nil
}

// Subscribe sends ticker subscriptions for the given WS pair names in
// batches. The venue confirms each subscription asynchronously via
// subscriptionStatus events, which the read loop logs.
func (w *WSClient) Subscribe(ctx context.Context, pairs []string) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("kraken/ws: subscribe: %w", domain.ErrWSDisconnect)
	}

	for start := 0; start < len(pairs); start += w.batchSize {
		end := start + w.batchSize
		if end > len(pairs) {
			end = len(pairs)
		}

		cmd := wsSubscribe{Event: "subscribe", Pair: pairs[start:end]}
		cmd.Subscription.Name = "ticker"

		payload, err := json.Marshal(cmd)
		if err != nil {
			return fmt.Errorf("kraken/ws: marshal subscribe: %w", err)
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return fmt.Errorf("kraken/ws: send subscribe: %w", err)
		}

		if end < len(pairs) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(subscribeGap):
			}
		}
	}

	w.logger.Info("ticker subscriptions sent", slog.Int("pairs", len(pairs)))
	return nil
}

// ReadTick blocks until the next ticker frame arrives and returns it as a
// Tick. Event messages (heartbeat, systemStatus, subscriptionStatus) and
// malformed frames are consumed and skipped; only transport failures are
// returned. Silence beyond the heartbeat grace fails the read.
func (w *WSClient) ReadTick(ctx context.Context) (domain.Tick, error) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return domain.Tick{}, fmt.Errorf("kraken/ws: read: %w", domain.ErrWSDisconnect)
	}

	for {
		if err := ctx.Err(); err != nil {
			return domain.Tick{}, err
		}

		_ = conn.SetReadDeadline(time.Now().Add(w.heartbeatGrace))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return domain.Tick{}, fmt.Errorf("kraken/ws: read: %w", err)
		}

		tick, ok, err := w.parseMessage(raw)
		if err != nil {
			// Malformed frames are dropped, never fatal.
			w.logger.Warn("dropping malformed message", slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}
		return tick, nil
	}
}

// parseMessage classifies a raw frame. It returns (tick, true, nil) for
// ticker data, (_, false, nil) for event frames, and an error for frames
// that cannot be interpreted at all.
func (w *WSClient) parseMessage(raw []byte) (domain.Tick, bool, error) {
	if len(raw) == 0 {
		return domain.Tick{}, false, fmt.Errorf("empty frame: %w", domain.ErrParse)
	}

	// Event frames are JSON objects.
	if raw[0] == '{' {
		var evt wsEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			return domain.Tick{}, false, fmt.Errorf("decode event: %w", domain.ErrParse)
		}
		switch evt.Event {
		case "heartbeat", "pong":
		case "systemStatus":
			w.logger.Info("venue system status", slog.String("status", evt.Status))
		case "subscriptionStatus":
			if evt.Status == "error" {
				w.logger.Warn("subscription rejected",
					slog.String("pair", evt.Pair),
					slog.String("error", evt.ErrorMessage),
				)
			} else {
				w.logger.Debug("subscription status",
					slog.String("pair", evt.Pair),
					slog.String("status", evt.Status),
				)
			}
		default:
			w.logger.Debug("ignoring event", slog.String("event", evt.Event))
		}
		return domain.Tick{}, false, nil
	}

	// Data frames are JSON arrays: [channelID, payload, channelName, pair].
	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		return domain.Tick{}, false, fmt.Errorf("decode frame: %w", domain.ErrParse)
	}
	if len(frame) < 4 {
		return domain.Tick{}, false, fmt.Errorf("short frame: %w", domain.ErrParse)
	}

	var channel string
	if err := json.Unmarshal(frame[2], &channel); err != nil || channel != "ticker" {
		return domain.Tick{}, false, nil
	}
	var pair string
	if err := json.Unmarshal(frame[3], &pair); err != nil || pair == "" {
		return domain.Tick{}, false, fmt.Errorf("frame pair: %w", domain.ErrParse)
	}

	var payload tickerPayload
	if err := json.Unmarshal(frame[1], &payload); err != nil {
		return domain.Tick{}, false, fmt.Errorf("ticker payload: %w", domain.ErrParse)
	}

	tick, err := payload.toTick(pair)
	if err != nil {
		return domain.Tick{}, false, err
	}
	return tick, true, nil
}

// toTick converts a ticker payload into a domain.Tick. The v1 feed does not
// carry a venue timestamp on ticker frames, so local receipt time is used.
func (p tickerPayload) toTick(pair string) (domain.Tick, error) {
	price, err := firstNumber(p.Close)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("ticker close price: %w", domain.ErrParse)
	}

	// Bid/ask/volume are best-effort; a missing field does not drop the tick.
	bid, _ := firstNumber(p.Bid)
	ask, _ := firstNumber(p.Ask)
	volume := 0.0
	if len(p.Volume) > 1 {
		volume, _ = p.Volume[1].Float64()
	} else if v, err := firstNumber(p.Volume); err == nil {
		volume = v
	}

	now := time.Now().UTC()
	return domain.Tick{
		Symbol:     pair,
		Price:      price,
		Bid:        bid,
		Ask:        ask,
		Volume:     volume,
		Timestamp:  now,
		ReceivedAt: now,
	}, nil
}

func firstNumber(fields []json.Number) (float64, error) {
	if len(fields) == 0 {
		return 0, fmt.Errorf("missing field")
	}
	return fields[0].Float64()
}

// Close tears down the current connection if one exists.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}
