// Package rank computes composite trending scores over aggregated entities.
package rank

import (
	"sort"
	"strings"

	"tokenscope/internal/model"
)

// Weights control the contribution of each signal to the composite score.
type Weights struct {
	CapDelta float64
	Volume   float64
	Holders  float64
}

// DefaultWeights are empirically tuned; treat as configuration, not truth.
var DefaultWeights = Weights{
	CapDelta: 1.5,
	Volume:   0.001,
	Holders:  2,
}

// Score computes the composite score for a single entity. Zero-valued fields
// contribute nothing.
func Score(entity model.Entity, w Weights) float64 {
	return entity.MarketCapDelta24h*w.CapDelta +
		entity.Volume24h*w.Volume +
		float64(entity.UniqueHolders)*w.Holders
}

// Rank scores every entity, sorts descending by score with ties broken by
// ascending lower-cased address, and truncates to limit. Truncation happens
// strictly after sorting; limit <= 0 keeps everything. Rank is pure: the
// input slice is never mutated and the output is freshly allocated.
func Rank(entities []model.Entity, w Weights, limit int) []model.ScoredEntity {
	scored := make([]model.ScoredEntity, 0, len(entities))
	for _, entity := range entities {
		scored = append(scored, model.ScoredEntity{
			Entity: entity,
			Score:  Score(entity, w),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return strings.ToLower(scored[i].Address) < strings.ToLower(scored[j].Address)
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
