// Package metrics exposes prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksIngested counts ticks accepted from the feed, per pair.
	TicksIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "krakenbot",
		Name:      "ticks_ingested_total",
		Help:      "Ticks received from the price feed.",
	}, []string{"pair"})

	// FeedReconnects counts feed reconnect attempts.
	FeedReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "krakenbot",
		Name:      "feed_reconnects_total",
		Help:      "Websocket reconnect attempts.",
	})

	// TradesOpened counts OPEN transitions, per pair.
	TradesOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "krakenbot",
		Name:      "trades_opened_total",
		Help:      "Paper trades opened.",
	}, []string{"pair"})

	// TradesClosed counts terminal transitions, per pair and status.
	TradesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "krakenbot",
		Name:      "trades_closed_total",
		Help:      "Paper trades closed, labelled by exit status.",
	}, []string{"pair", "status"})

	// OpenConflicts counts entries rejected by the one-open-per-pair
	// invariant; a non-zero value means a race resolved safely.
	OpenConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "krakenbot",
		Name:      "open_conflicts_total",
		Help:      "Entries rejected because an open trade already existed.",
	})

	// StalePairs gauges pairs whose open positions have stale prices.
	StalePairs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "krakenbot",
		Name:      "stale_pairs",
		Help:      "Pairs with open trades and no recent price data.",
	})

	// StorageErrors counts failed persistence operations, per operation.
	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "krakenbot",
		Name:      "storage_errors_total",
		Help:      "Failed storage-layer operations.",
	}, []string{"op"})
)
