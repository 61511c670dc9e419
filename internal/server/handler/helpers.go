// Package handler contains the HTTP handlers for the bot's API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// writeJSON marshals v as JSON and writes it with the given status code.
// If marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseTradeFilter extracts trade list filters from the query string.
// Defaults: limit=50 (max 500), offset=0. Unknown status values are
// ignored rather than rejected.
func parseTradeFilter(r *http.Request) domain.TradeFilter {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	filter := domain.TradeFilter{
		Symbol: q.Get("symbol"),
		Limit:  limit,
		Offset: offset,
	}

	if v := q.Get("status"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			switch domain.TradeStatus(strings.ToUpper(strings.TrimSpace(raw))) {
			case domain.TradeStatusOpen:
				filter.Statuses = append(filter.Statuses, domain.TradeStatusOpen)
			case domain.TradeStatusClosed:
				filter.Statuses = append(filter.Statuses, domain.TradeStatusClosed)
			case domain.TradeStatusStopped:
				filter.Statuses = append(filter.Statuses, domain.TradeStatusStopped)
			}
		}
	}

	if v := q.Get("since"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Since = &ts
		}
	}
	if v := q.Get("until"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Until = &ts
		}
	}

	return filter
}

// pathParam extracts a named path parameter using Go 1.22+ routing.
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
