// Package stabilize diffs successive aggregated snapshots so downstream
// consumers only see entities whose volatile fields materially changed.
package stabilize

import (
	"strings"

	"tokenscope/internal/model"
)

// Delta is the low-churn view emitted to the presentation layer. Full marks a
// structural change (different membership or length) where every entity of
// the next snapshot is republished.
type Delta struct {
	Changed []model.Entity
	Full    bool
}

// Empty reports whether the delta carries nothing to republish.
func (d Delta) Empty() bool {
	return !d.Full && len(d.Changed) == 0
}

// Diff compares next against previous on the volatile field subset. Entities
// absent from previous are changed by definition; a length mismatch
// short-circuits to everything-changed.
func Diff(previous, next []model.Entity) Delta {
	if len(previous) != len(next) {
		return Delta{Changed: append([]model.Entity(nil), next...), Full: true}
	}

	prevByAddr := make(map[string]model.Entity, len(previous))
	for _, entity := range previous {
		prevByAddr[strings.ToLower(entity.Address)] = entity
	}

	var changed []model.Entity
	for _, entity := range next {
		old, existed := prevByAddr[strings.ToLower(entity.Address)]
		if !existed || volatileChanged(old, entity) {
			changed = append(changed, entity)
		}
	}
	return Delta{Changed: changed}
}

func volatileChanged(old, next model.Entity) bool {
	return old.MarketCap != next.MarketCap ||
		old.Volume24h != next.Volume24h ||
		old.MarketCapDelta24h != next.MarketCapDelta24h ||
		old.UniqueHolders != next.UniqueHolders
}
