package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tokenscope/internal/model"
)

// CacheConfig holds per-entry freshness and batching settings.
type CacheConfig struct {
	TTL             time.Duration // entry is fresh if now - fetchedAt < TTL
	Retention       time.Duration // stale entries survive failed refreshes this long
	BatchSize       int           // concurrent outbound lookups per batch
	RefreshInterval time.Duration // background refresh period
}

// DefaultCacheConfig mirrors the engine's named constants.
var DefaultCacheConfig = CacheConfig{
	TTL:             30 * time.Second,
	Retention:       5 * time.Minute,
	BatchSize:       3,
	RefreshInterval: 10 * time.Second,
}

type entry struct {
	data      model.PriceData
	fetchedAt time.Time
}

// Cache is a per-address TTL cache over the oracle with
// stale-while-revalidate semantics. Entries are replaced wholesale, never
// mutated field by field, so concurrent readers never observe a torn write.
type Cache struct {
	cfg    CacheConfig
	oracle Oracle
	logger *zap.Logger
	clock  func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	current *inflight

	rateLimited atomic.Bool
}

func NewCache(cfg CacheConfig, oracle Oracle, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig.TTL
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultCacheConfig.Retention
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultCacheConfig.BatchSize
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultCacheConfig.RefreshInterval
	}

	return &Cache{
		cfg:     cfg,
		oracle:  oracle,
		logger:  logger,
		clock:   time.Now,
		entries: make(map[string]entry),
	}
}

// RateLimited reports whether the most recent oracle pass was throttled.
func (c *Cache) RateLimited() bool {
	return c.rateLimited.Load()
}

// GetPrices returns the best available price data for the requested
// addresses. Fresh entries are served without a network call; stale or
// missing ones are fetched in batches, and stale values are still served when
// their refresh fails. A new call aborts the previous call's in-flight
// fetches so a slow, superseded response can never overwrite a newer entry.
func (c *Cache) GetPrices(ctx context.Context, addresses []string) map[string]model.PriceData {
	now := c.clock()
	result := make(map[string]model.PriceData, len(addresses))
	toFetch := make([]string, 0, len(addresses))
	seen := make(map[string]struct{}, len(addresses))

	c.mu.RLock()
	for _, address := range addresses {
		key := strings.ToLower(address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		cached, ok := c.entries[key]
		if ok {
			result[key] = cached.data
			if now.Sub(cached.fetchedAt) < c.cfg.TTL {
				continue
			}
		}
		toFetch = append(toFetch, key)
	}
	c.mu.RUnlock()

	if len(toFetch) == 0 {
		return result
	}

	fetchCtx, call := c.supersede(ctx)
	defer c.release(call)

	throttled := false
	for start := 0; start < len(toFetch); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(toFetch) {
			end = len(toFetch)
		}
		if c.fetchBatch(fetchCtx, toFetch[start:end], result) {
			throttled = true
		}
		// Record after every batch so a canceled pass still reflects what
		// it observed.
		c.rateLimited.Store(throttled)
		if fetchCtx.Err() != nil {
			return result
		}
	}

	return result
}

type inflight struct {
	cancel context.CancelFunc
}

// supersede cancels the previous call's in-flight fetches and registers a
// fresh cancelable context for this one.
func (c *Cache) supersede(ctx context.Context) (context.Context, *inflight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	call := &inflight{cancel: cancel}
	c.current = call
	return fetchCtx, call
}

// release tears down only this call's context; a superseding call may
// already own the current slot.
func (c *Cache) release(call *inflight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call.cancel()
	if c.current == call {
		c.current = nil
	}
}

// fetchBatch issues one bounded batch of concurrent lookups and folds
// successes into the cache and the result map. Returns whether any lookup was
// rate limited.
func (c *Cache) fetchBatch(ctx context.Context, addresses []string, result map[string]model.PriceData) bool {
	type outcome struct {
		address string
		data    model.PriceData
		err     error
	}

	outcomes := make(chan outcome, len(addresses))
	var wg sync.WaitGroup
	for _, address := range addresses {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			data, err := c.oracle.TokenPrice(ctx, addr)
			outcomes <- outcome{address: addr, data: data, err: err}
		}(address)
	}
	wg.Wait()
	close(outcomes)

	throttled := false
	for out := range outcomes {
		if out.err != nil {
			if errors.Is(out.err, ErrRateLimited) {
				throttled = true
			}
			if ctx.Err() == nil && !errors.Is(out.err, context.Canceled) {
				c.logger.Warn("price fetch failed",
					zap.String("address", out.address),
					zap.Error(out.err),
				)
			}
			c.evictExpired(out.address)
			continue
		}
		if ctx.Err() != nil {
			// Superseded: the newer call owns the cache now.
			continue
		}
		c.store(out.address, out.data)
		result[out.address] = out.data
	}
	return throttled
}

func (c *Cache) store(address string, data model.PriceData) {
	c.mu.Lock()
	c.entries[address] = entry{data: data, fetchedAt: c.clock()}
	c.mu.Unlock()
}

// evictExpired drops an entry only when refreshes have kept failing past the
// retention window; a merely stale entry survives to serve the next read.
func (c *Cache) evictExpired(address string) {
	now := c.clock()
	c.mu.Lock()
	if cached, ok := c.entries[address]; ok && now.Sub(cached.fetchedAt) >= c.cfg.Retention {
		delete(c.entries, address)
	}
	c.mu.Unlock()
}

// RunRefresh periodically re-issues GetPrices for the currently-displayed
// address set and invokes notify with the entries whose observable fields
// actually changed. Unchanged data is never republished. Blocks until ctx is
// canceled.
func (c *Cache) RunRefresh(ctx context.Context, watched func() []string, notify func(map[string]model.PriceData)) {
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		addresses := watched()
		if len(addresses) == 0 {
			continue
		}

		before := c.snapshot(addresses)
		after := c.GetPrices(ctx, addresses)

		changed := make(map[string]model.PriceData)
		for address, data := range after {
			prev, existed := before[address]
			if !existed || !prev.Equal(data) {
				changed[address] = data
			}
		}
		if len(changed) > 0 && notify != nil {
			notify(changed)
		}
	}
}

func (c *Cache) snapshot(addresses []string) map[string]model.PriceData {
	out := make(map[string]model.PriceData, len(addresses))
	c.mu.RLock()
	for _, address := range addresses {
		key := strings.ToLower(address)
		if cached, ok := c.entries[key]; ok {
			out[key] = cached.data
		}
	}
	c.mu.RUnlock()
	return out
}
