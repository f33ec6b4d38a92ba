package model

import "time"

// Entity is a tradable on-chain asset record normalized at the feed boundary.
type Entity struct {
	ID                string    `json:"id"`
	Address           string    `json:"address"`
	Name              string    `json:"name"`
	Symbol            string    `json:"symbol"`
	CreatedAt         time.Time `json:"created_at"`
	MarketCap         float64   `json:"market_cap"`
	Volume24h         float64   `json:"volume_24h"`
	MarketCapDelta24h float64   `json:"market_cap_delta_24h"`
	UniqueHolders     int64     `json:"unique_holders"`
	ImageURI          string    `json:"image_uri,omitempty"`
}

// ScoredEntity pairs an entity with its composite ranking score. MatchScore
// is set only on search results.
type ScoredEntity struct {
	Entity
	Score      float64 `json:"score"`
	MatchScore int     `json:"match_score,omitempty"`
}
