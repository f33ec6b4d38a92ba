package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokenscope/internal/model"
)

type fakeSource struct {
	name  string
	pages []Page
	err   error
	gate  chan struct{} // optional: wait before returning
	done  chan struct{} // optional: closed after returning
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, count int, cursor string) (Page, error) {
	if f.gate != nil {
		<-f.gate
		// Give the earlier source's goroutine time to report its outcome.
		time.Sleep(20 * time.Millisecond)
	}
	if f.done != nil {
		defer close(f.done)
	}
	if f.err != nil {
		return Page{}, f.err
	}
	idx := f.calls
	f.calls++
	if idx >= len(f.pages) {
		return Page{}, nil
	}
	return f.pages[idx], nil
}

func entity(address string, volume float64) model.Entity {
	return model.Entity{Address: address, Name: "token " + address, Symbol: "TKN", Volume24h: volume}
}

func TestAggregateDeduplicatesByLowerCasedAddress(t *testing.T) {
	source := &fakeSource{
		name: "gainers",
		pages: []Page{{
			Entities: []model.Entity{entity("0xAA", 100), entity("0xaa", 500)},
		}},
	}

	agg := NewAggregator(nil)
	result, err := agg.Aggregate(context.Background(), []Source{source}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Entities) != 1 {
		t.Fatalf("expected 1 entity after dedup, got %d", len(result.Entities))
	}
	if got := result.Entities[0].Volume24h; got != 500 {
		t.Fatalf("expected last-write-wins volume 500, got %v", got)
	}
	if got := result.Entities[0].Address; got != "0xaa" {
		t.Fatalf("expected address 0xaa, got %s", got)
	}
}

func TestAggregateLastCompletionWins(t *testing.T) {
	gate := make(chan struct{})
	fast := &fakeSource{
		name:  "fast",
		pages: []Page{{Entities: []model.Entity{entity("0xAB", 100)}}},
		done:  gate,
	}
	slow := &fakeSource{
		name:  "slow",
		pages: []Page{{Entities: []model.Entity{entity("0xab", 500)}}},
		gate:  gate,
	}

	agg := NewAggregator(nil)
	result, err := agg.Aggregate(context.Background(), []Source{slow, fast}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(result.Entities))
	}
	if got := result.Entities[0].Volume24h; got != 500 {
		t.Fatalf("expected later completion to win with volume 500, got %v", got)
	}
}

func TestAggregatePartialFailure(t *testing.T) {
	okSource := &fakeSource{
		name:  "gainers",
		pages: []Page{{Entities: []model.Entity{entity("0x01", 10)}}},
	}
	badSource := &fakeSource{name: "newest", err: errors.New("upstream down")}

	agg := NewAggregator(nil)
	result, err := agg.Aggregate(context.Background(), []Source{okSource, badSource}, 10)
	if err != nil {
		t.Fatalf("partial failure must not fail the pass: %v", err)
	}

	if len(result.Entities) != 1 {
		t.Fatalf("expected 1 entity from the healthy source, got %d", len(result.Entities))
	}
	if len(result.Failed) != 1 || result.Failed[0].Source != "newest" {
		t.Fatalf("expected failure reported for newest, got %+v", result.Failed)
	}
}

func TestAggregateAllSourcesFailed(t *testing.T) {
	bad1 := &fakeSource{name: "a", err: errors.New("down")}
	bad2 := &fakeSource{name: "b", err: errors.New("down")}

	agg := NewAggregator(nil)
	result, err := agg.Aggregate(context.Background(), []Source{bad1, bad2}, 10)
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("expected ErrAllSourcesFailed, got %v", err)
	}
	if len(result.Entities) != 0 {
		t.Fatalf("expected empty result, got %d entities", len(result.Entities))
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(result.Failed))
	}
}

func TestAggregateSkipsEmptyAddresses(t *testing.T) {
	source := &fakeSource{
		name: "gainers",
		pages: []Page{{
			Entities: []model.Entity{{Name: "no address"}, entity("0x02", 1)},
		}},
	}

	agg := NewAggregator(nil)
	result, err := agg.Aggregate(context.Background(), []Source{source}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entities) != 1 {
		t.Fatalf("expected record without address to be dropped, got %d", len(result.Entities))
	}
}

func TestNormalizeChecksumsHexAddresses(t *testing.T) {
	normalized, ok := normalize(model.Entity{Address: "0x52908400098527886e0f7030069857d2e4169ee7"})
	if !ok {
		t.Fatalf("expected valid entity")
	}
	if normalized.Address != "0x52908400098527886E0F7030069857D2E4169EE7" {
		t.Fatalf("expected checksummed address, got %s", normalized.Address)
	}
}
