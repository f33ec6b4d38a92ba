package search

import (
	"testing"

	"tokenscope/internal/model"
)

func testEntities() []model.Entity {
	return []model.Entity{
		{Address: "0x0000000000000000000000000000000000000001", Name: "Ethereum", Symbol: "ETH"},
		{Address: "0x0000000000000000000000000000000000000002", Name: "Ether Token", Symbol: "ETHX"},
		{Address: "0x0000000000000000000000000000000000000003", Name: "Doge Wow", Symbol: "WOW"},
	}
}

func TestSearchExactBeatsSubstring(t *testing.T) {
	index := Build(testEntities(), nil)

	results := index.Search("eth", 0)
	if len(results) < 2 {
		t.Fatalf("expected both ether entities to match, got %d results", len(results))
	}
	if results[0].Name != "Ethereum" {
		t.Fatalf("expected Ethereum first (exact symbol match), got %s", results[0].Name)
	}
	if results[1].Name != "Ether Token" {
		t.Fatalf("expected Ether Token second, got %s", results[1].Name)
	}
	for _, result := range results {
		if result.MatchScore <= 0 {
			t.Fatalf("zero-score result leaked: %+v", result)
		}
	}
}

func TestSearchMonotonicSignalStrength(t *testing.T) {
	entities := []model.Entity{
		{Address: "0x01", Name: "Moonshot", Symbol: "MOON"},
		{Address: "0x02", Name: "Moonshot Finance Token", Symbol: "MFT"},
		{Address: "0x03", Name: "Monshot", Symbol: "MST"}, // one edit away
	}
	index := Build(entities, nil)

	results := index.Search("moonshot", 0)
	if len(results) < 3 {
		t.Fatalf("expected 3 matches, got %d", len(results))
	}

	scores := map[string]int{}
	for _, result := range results {
		scores[result.Address] = result.MatchScore
	}
	if scores["0x01"] < scores["0x02"] {
		t.Fatalf("exact match must score at least substring: %v", scores)
	}
	if scores["0x02"] < scores["0x03"] {
		t.Fatalf("substring must score at least fuzzy: %v", scores)
	}
}

func TestSearchByAddress(t *testing.T) {
	index := Build(testEntities(), nil)

	results := index.Search("0x0000000000000000000000000000000000000003", 0)
	if len(results) == 0 {
		t.Fatalf("expected address lookup to match")
	}
	if results[0].Symbol != "WOW" {
		t.Fatalf("expected WOW, got %s", results[0].Symbol)
	}
	if results[0].MatchScore < 100 {
		t.Fatalf("expected exact address score >= 100, got %d", results[0].MatchScore)
	}
}

func TestSearchPopularityBoost(t *testing.T) {
	entities := []model.Entity{
		{Address: "0x01", Name: "Wrapped Ether", Symbol: "WETH"},
		{Address: "0x02", Name: "Wrapped Elephant", Symbol: "WELE"},
	}
	index := Build(entities, nil)

	results := index.Search("wrapped", 0)
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	if results[0].Symbol != "WETH" {
		t.Fatalf("expected allow-listed WETH first, got %s", results[0].Symbol)
	}
	if results[0].MatchScore-results[1].MatchScore < 20 {
		t.Fatalf("expected at least the popularity margin, got %d vs %d",
			results[0].MatchScore, results[1].MatchScore)
	}
}

func TestSearchDropsZeroScores(t *testing.T) {
	index := Build(testEntities(), nil)
	if results := index.Search("zzzzqqqq", 0); len(results) != 0 {
		t.Fatalf("expected no matches, got %d", len(results))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	index := Build(testEntities(), nil)
	if results := index.Search("   ", 0); results != nil {
		t.Fatalf("expected nil for empty query, got %v", results)
	}
}

func TestSearchLimit(t *testing.T) {
	entities := make([]model.Entity, 0, 20)
	for i := 0; i < 20; i++ {
		entities = append(entities, model.Entity{
			Address: "0x" + string(rune('a'+i)),
			Name:    "Pepe Classic",
			Symbol:  "PEPE",
		})
	}
	index := Build(entities, nil)

	if got := len(index.Search("pepe", 0)); got != DefaultLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultLimit, got)
	}
	if got := len(index.Search("pepe", 5)); got != 5 {
		t.Fatalf("expected 5 results, got %d", got)
	}
}

func TestSearchIndexesAddressOnlyEntities(t *testing.T) {
	entities := []model.Entity{{Address: "0xdeadbeef"}}
	index := Build(entities, nil)

	results := index.Search("0xdeadbeef", 0)
	if len(results) != 1 {
		t.Fatalf("expected nameless entity to match on address, got %d", len(results))
	}
}

func TestBuildReusesUnchangedEntries(t *testing.T) {
	entities := testEntities()
	first := Build(entities, nil)

	// Volatile fields change; name/symbol/address do not.
	entities[0].Volume24h = 999
	second := Build(entities, first)

	if second.Len() != len(entities) {
		t.Fatalf("expected %d entries, got %d", len(entities), second.Len())
	}
	if second.entries[0].Entity.Volume24h != 999 {
		t.Fatalf("reused entry must carry the updated entity")
	}
	if second.entries[0].NormalizedName != "ethereum" {
		t.Fatalf("normalized form lost on reuse")
	}
}
