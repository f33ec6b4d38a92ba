package model

// PriceData captures the trading-pair fields served by the price oracle.
type PriceData struct {
	PriceUSD       float64 `json:"price_usd"`
	VolumeH24      float64 `json:"volume_h24"`
	PriceChangeH24 float64 `json:"price_change_h24"`
}

// Equal reports whether two records carry identical observable fields.
func (p PriceData) Equal(other PriceData) bool {
	return p.PriceUSD == other.PriceUSD &&
		p.VolumeH24 == other.VolumeH24 &&
		p.PriceChangeH24 == other.PriceChangeH24
}
