// Package search answers free-text queries against the aggregated entity set
// using a blended exact/substring/fuzzy/term-overlap scoring model.
package search

import (
	"sort"
	"strings"

	"tokenscope/internal/model"
)

// DefaultLimit bounds a query's result set when the caller passes no limit.
const DefaultLimit = 15

// MinQueryLength is enforced by callers; shorter queries yield an empty
// result rather than an error.
const MinQueryLength = 2

// Score additions per matching signal. The final score is the sum of every
// applicable addition; signals are cumulative, not exclusive.
const (
	scoreExact       = 100
	scoreSubstring   = 50
	scoreAddressSub  = 30
	scoreTermInIndex = 10
	scoreIndexInTerm = 5
	scorePopular     = 20
	fuzzyThreshold   = 0.7
	fuzzyWeight      = 40
)

// Entry is the cached searchable form of one entity.
type Entry struct {
	Entity           model.Entity
	NormalizedName   string
	NormalizedSymbol string
	NormalizedAddr   string
	Terms            []string
}

// Index holds the searchable entries plus the popularity allow-list.
type Index struct {
	entries []Entry
	boosts  map[string]struct{}
}

// DefaultBoosts lists well-known entities, keyed by normalized symbol, that
// receive a flat popularity addition.
var DefaultBoosts = []string{"weth", "eth", "usdc", "dai", "zora", "degen"}

// Build constructs the index for a fresh entity set. When prev is non-nil,
// entries whose name, symbol, and address are unchanged are reused instead of
// renormalized.
func Build(entities []model.Entity, prev *Index) *Index {
	var reusable map[string]Entry
	if prev != nil {
		reusable = make(map[string]Entry, len(prev.entries))
		for _, entry := range prev.entries {
			reusable[strings.ToLower(entry.Entity.Address)] = entry
		}
	}

	index := &Index{entries: make([]Entry, 0, len(entities))}
	if prev != nil {
		index.boosts = prev.boosts
	} else {
		index.boosts = make(map[string]struct{}, len(DefaultBoosts))
		for _, symbol := range DefaultBoosts {
			index.boosts[symbol] = struct{}{}
		}
	}

	for _, entity := range entities {
		key := strings.ToLower(entity.Address)
		if old, ok := reusable[key]; ok &&
			old.Entity.Name == entity.Name &&
			old.Entity.Symbol == entity.Symbol &&
			old.Entity.Address == entity.Address {
			old.Entity = entity
			index.entries = append(index.entries, old)
			continue
		}
		index.entries = append(index.entries, buildEntry(entity))
	}
	return index
}

// SetBoosts replaces the popularity allow-list with normalized keys.
func (ix *Index) SetBoosts(keys []string) {
	ix.boosts = make(map[string]struct{}, len(keys))
	for _, key := range keys {
		ix.boosts[Normalize(key)] = struct{}{}
	}
}

// Len returns the number of indexed entities.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

func buildEntry(entity model.Entity) Entry {
	entry := Entry{
		Entity:           entity,
		NormalizedName:   Normalize(entity.Name),
		NormalizedSymbol: Normalize(entity.Symbol),
		NormalizedAddr:   strings.ToLower(entity.Address),
	}

	seen := make(map[string]struct{})
	addTerm := func(term string) {
		term = strings.ToLower(term)
		if term == "" {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		entry.Terms = append(entry.Terms, term)
	}

	for _, word := range strings.Fields(entity.Name) {
		addTerm(word)
	}
	for _, word := range strings.Fields(entity.Symbol) {
		addTerm(word)
	}
	addTerm(entry.NormalizedName)
	addTerm(entry.NormalizedSymbol)
	addTerm(entry.NormalizedAddr)

	return entry
}

// Normalize lower-cases the input and strips every non-alphanumeric rune.
func Normalize(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range strings.ToLower(input) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Search scores every indexed entity against the query, drops zero scores,
// and returns the top results sorted by descending match score with ties
// broken by ascending address.
func (ix *Index) Search(query string, limit int) []model.ScoredEntity {
	if ix == nil {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	rawQuery := strings.TrimSpace(query)
	q := Normalize(rawQuery)
	if q == "" {
		return nil
	}
	lowerQuery := strings.ToLower(rawQuery)

	terms := make([]string, 0, 4)
	for _, term := range strings.Fields(rawQuery) {
		if normalized := Normalize(term); normalized != "" {
			terms = append(terms, normalized)
		}
	}

	results := make([]model.ScoredEntity, 0, limit)
	for _, entry := range ix.entries {
		score := ix.scoreEntry(entry, rawQuery, q, lowerQuery, terms)
		if score <= 0 {
			continue
		}
		results = append(results, model.ScoredEntity{
			Entity:     entry.Entity,
			Score:      float64(score),
			MatchScore: score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].MatchScore != results[j].MatchScore {
			return results[i].MatchScore > results[j].MatchScore
		}
		return strings.ToLower(results[i].Address) < strings.ToLower(results[j].Address)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (ix *Index) scoreEntry(entry Entry, rawQuery, q, lowerQuery string, terms []string) int {
	score := 0

	// Exact matches are cumulative across fields.
	if entry.NormalizedName != "" && entry.NormalizedName == q {
		score += scoreExact
	}
	if entry.NormalizedSymbol != "" && entry.NormalizedSymbol == q {
		score += scoreExact
	}
	if entry.NormalizedAddr == lowerQuery {
		score += scoreExact
	}

	if containsEither(entry.NormalizedName, q) {
		score += scoreSubstring
	}
	if containsEither(entry.NormalizedSymbol, q) {
		score += scoreSubstring
	}
	if lowerQuery != "" && strings.Contains(entry.NormalizedAddr, lowerQuery) {
		score += scoreAddressSub
	}

	if sim := Similarity(entry.Entity.Name, rawQuery); sim > fuzzyThreshold {
		score += int(sim * fuzzyWeight)
	}
	if sim := Similarity(entry.Entity.Symbol, rawQuery); sim > fuzzyThreshold {
		score += int(sim * fuzzyWeight)
	}

	for _, term := range terms {
		for _, indexed := range entry.Terms {
			if strings.Contains(indexed, term) {
				score += scoreTermInIndex
			} else if strings.Contains(term, indexed) {
				score += scoreIndexInTerm
			}
		}
	}

	if score > 0 {
		if _, popular := ix.boosts[entry.NormalizedSymbol]; popular {
			score += scorePopular
		} else if _, popular := ix.boosts[entry.NormalizedAddr]; popular {
			score += scorePopular
		}
	}

	return score
}

func containsEither(field, q string) bool {
	if field == "" || q == "" {
		return false
	}
	return strings.Contains(field, q) || strings.Contains(q, field)
}
