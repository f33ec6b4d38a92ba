package model

// SnapshotRow is the JSON representation written to snapshot sinks.
type SnapshotRow struct {
	Rank              int     `json:"rank"`
	Address           string  `json:"address"`
	Name              string  `json:"name"`
	Symbol            string  `json:"symbol"`
	Score             float64 `json:"score"`
	MarketCap         float64 `json:"market_cap"`
	Volume24h         float64 `json:"volume_24h"`
	MarketCapDelta24h float64 `json:"market_cap_delta_24h"`
	UniqueHolders     int64   `json:"unique_holders"`
	CapturedAt        string  `json:"captured_at"`
}
