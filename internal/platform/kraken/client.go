// Package kraken provides clients for the Kraken public REST API and the v1
// websocket ticker feed.
package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// Client is a thin client for the Kraken public REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the given REST host,
// e.g. "https://api.kraken.com".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// USDPairs fetches the tradeable-pair universe and returns the pairs quoted
// in USD, sorted by symbol.
func (c *Client) USDPairs(ctx context.Context) ([]domain.Pair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/0/public/AssetPairs", nil)
	if err != nil {
		return nil, fmt.Errorf("kraken: build asset pairs request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kraken: fetch asset pairs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kraken: asset pairs: unexpected status %d", resp.StatusCode)
	}

	var parsed assetPairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("kraken: decode asset pairs: %w", err)
	}
	if len(parsed.Error) > 0 {
		return nil, fmt.Errorf("kraken: asset pairs: api error: %s", strings.Join(parsed.Error, ", "))
	}

	now := time.Now().UTC()
	pairs := make([]domain.Pair, 0, len(parsed.Result))
	for symbol, info := range parsed.Result {
		if info.Quote != "ZUSD" && info.Quote != "USD" {
			continue
		}
		if info.WSName == "" {
			continue
		}
		status := domain.PairStatusOnline
		if info.Status != "" && info.Status != "online" {
			status = domain.PairStatusOffline
		}
		pairs = append(pairs, domain.Pair{
			Symbol:    symbol,
			Altname:   info.Altname,
			WSName:    info.WSName,
			Base:      normalizeAsset(info.Base),
			Quote:     "USD",
			Status:    status,
			UpdatedAt: now,
		})
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Symbol < pairs[j].Symbol })
	return pairs, nil
}

// normalizeAsset strips Kraken's legacy X/Z asset-class prefixes so XXBT
// becomes XBT and ZUSD becomes USD. Short codes are left untouched.
func normalizeAsset(asset string) string {
	if len(asset) == 4 && (asset[0] == 'X' || asset[0] == 'Z') {
		return asset[1:]
	}
	return asset
}
