package rank

import (
	"reflect"
	"testing"

	"tokenscope/internal/model"
)

func TestScoreFormula(t *testing.T) {
	entity := model.Entity{
		MarketCapDelta24h: 10,
		Volume24h:         1000,
		UniqueHolders:     5,
	}

	got := Score(entity, DefaultWeights)
	want := 10*1.5 + 1000*0.001 + 5*2.0
	if got != want {
		t.Fatalf("score mismatch: %v != %v", got, want)
	}
}

func TestScoreMissingFieldsAreZero(t *testing.T) {
	if got := Score(model.Entity{}, DefaultWeights); got != 0 {
		t.Fatalf("expected zero score, got %v", got)
	}
}

func TestRankOrdersDescendingWithAddressTieBreak(t *testing.T) {
	entities := []model.Entity{
		{Address: "0xcc", UniqueHolders: 1},
		{Address: "0xbb", UniqueHolders: 1},
		{Address: "0xaa", UniqueHolders: 5},
	}

	ranked := Rank(entities, DefaultWeights, 0)

	var order []string
	for _, scored := range ranked {
		order = append(order, scored.Address)
	}
	want := []string{"0xaa", "0xbb", "0xcc"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order mismatch: %v != %v", order, want)
	}
}

func TestRankDeterministic(t *testing.T) {
	entities := []model.Entity{
		{Address: "0x03", Volume24h: 10},
		{Address: "0x01", Volume24h: 10},
		{Address: "0x02", Volume24h: 500},
	}

	first := Rank(entities, DefaultWeights, 0)
	for i := 0; i < 10; i++ {
		again := Rank(entities, DefaultWeights, 0)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("ranking is not deterministic: %+v != %+v", first, again)
		}
	}
}

func TestRankTruncatesAfterSorting(t *testing.T) {
	entities := []model.Entity{
		{Address: "0x01", UniqueHolders: 1},
		{Address: "0x02", UniqueHolders: 3},
		{Address: "0x03", UniqueHolders: 2},
	}

	ranked := Rank(entities, DefaultWeights, 1)
	if len(ranked) != 1 {
		t.Fatalf("expected 1 result, got %d", len(ranked))
	}
	if ranked[0].Address != "0x02" {
		t.Fatalf("expected top entity 0x02, got %s", ranked[0].Address)
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	entities := []model.Entity{
		{Address: "0x02", UniqueHolders: 1},
		{Address: "0x01", UniqueHolders: 9},
	}
	snapshot := append([]model.Entity(nil), entities...)

	Rank(entities, DefaultWeights, 0)

	if !reflect.DeepEqual(entities, snapshot) {
		t.Fatalf("input mutated: %+v", entities)
	}
}
