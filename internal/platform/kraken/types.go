package kraken

import "encoding/json"

// assetPairsResponse is the envelope of the /0/public/AssetPairs endpoint.
type assetPairsResponse struct {
	Error  []string                 `json:"error"`
	Result map[string]assetPairInfo `json:"result"`
}

// assetPairInfo is one entry of the AssetPairs result map.
type assetPairInfo struct {
	Altname string `json:"altname"`
	WSName  string `json:"wsname"`
	Base    string `json:"base"`
	Quote   string `json:"quote"`
	Status  string `json:"status"`
}

// wsEvent is the common shape of event messages on the v1 websocket feed
// (systemStatus, subscriptionStatus, heartbeat, pong).
type wsEvent struct {
	Event        string `json:"event"`
	Status       string `json:"status"`
	Pair         string `json:"pair"`
	ErrorMessage string `json:"errorMessage"`
	Subscription struct {
		Name string `json:"name"`
	} `json:"subscription"`
}

// wsSubscribe is the subscribe command sent on the websocket.
type wsSubscribe struct {
	Event        string   `json:"event"`
	Pair         []string `json:"pair"`
	Subscription struct {
		Name string `json:"name"`
	} `json:"subscription"`
}

// tickerPayload is the ticker object inside a data frame:
// [channelID, {"a":[...],"b":[...],"c":[...],"v":[...]}, "ticker", "XBT/USD"].
// Prices arrive as JSON strings.
type tickerPayload struct {
	Ask    []json.Number `json:"a"` // [price, wholeLotVolume, lotVolume]
	Bid    []json.Number `json:"b"`
	Close  []json.Number `json:"c"` // [price, lotVolume]
	Volume []json.Number `json:"v"` // [today, last24h]
}
