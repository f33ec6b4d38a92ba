package enrich

import (
	"context"
	"sync"
	"testing"
	"time"

	"tokenscope/internal/model"
)

// supersedeOracle blocks its first lookup until the context is canceled, then
// returns a value anyway, modeling a slow response landing after supersession.
type supersedeOracle struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
}

func (o *supersedeOracle) TokenPrice(ctx context.Context, address string) (model.PriceData, error) {
	o.mu.Lock()
	o.calls++
	first := o.calls == 1
	o.mu.Unlock()

	if first {
		close(o.started)
		<-ctx.Done()
		return model.PriceData{PriceUSD: 111}, nil
	}
	return model.PriceData{PriceUSD: 2}, nil
}

func TestGetPricesSupersededCallCannotOverwrite(t *testing.T) {
	oracle := &supersedeOracle{started: make(chan struct{})}
	cache := NewCache(CacheConfig{TTL: time.Millisecond}, oracle, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cache.GetPrices(context.Background(), []string{"0xaa"})
	}()

	<-oracle.started

	// The newer call supersedes the blocked one and lands its own value.
	result := cache.GetPrices(context.Background(), []string{"0xaa"})
	wg.Wait()

	if result["0xaa"].PriceUSD != 2 {
		t.Fatalf("expected newer fetch to win, got %+v", result)
	}

	cache.mu.RLock()
	final := cache.entries["0xaa"]
	cache.mu.RUnlock()
	if final.data.PriceUSD != 2 {
		t.Fatalf("superseded response overwrote newer entry: %+v", final.data)
	}
}
