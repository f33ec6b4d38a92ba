// Package engine drives the discovery pipeline: fetch, aggregate, score,
// enrich, diff, on a periodic timer plus on-demand invocations.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tokenscope/internal/enrich"
	"tokenscope/internal/feed"
	"tokenscope/internal/model"
	"tokenscope/internal/rank"
	"tokenscope/internal/search"
	"tokenscope/internal/stabilize"
	"tokenscope/internal/storage"
)

// Stage names one phase of a pipeline cycle.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageFetching    Stage = "fetching"
	StageAggregating Stage = "aggregating"
	StageScoring     Stage = "scoring"
	StageEnriching   Stage = "enriching"
	StageDiffing     Stage = "diffing"
)

// Config holds the engine's named constants; each is independently
// overridable through the config layer.
type Config struct {
	Weights        rank.Weights
	CountPerSource int
	RankLimit      int
	PollInterval   time.Duration
}

// DefaultConfig mirrors the documented defaults.
var DefaultConfig = Config{
	Weights:        rank.DefaultWeights,
	CountPerSource: 20,
	RankLimit:      50,
	PollInterval:   10 * time.Second,
}

// Status is the engine's observable state: what the last cycle did and
// whether the UI should show a degraded or try-again affordance.
type Status struct {
	Stage       Stage
	LastCycleAt time.Time
	LastError   string
	Degraded    bool
	RateLimited bool
	Entities    int
}

// Engine owns the canonical entity set, the search index, and the enrichment
// cache for one instance. All mutation is internal; the presentation layer
// only reads.
type Engine struct {
	cfg        Config
	aggregator *feed.Aggregator
	sources    []feed.Source
	cache      *enrich.Cache
	sinks      []storage.Sink
	logger     *zap.Logger

	cycleMu sync.Mutex // one cycle at a time

	mu       sync.RWMutex
	entities []model.Entity
	ranked   []model.ScoredEntity
	index    *search.Index
	status   Status

	updates chan stabilize.Delta
	prices  chan map[string]model.PriceData
}

func New(cfg Config, sources []feed.Source, cache *enrich.Cache, sinks []storage.Sink, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CountPerSource <= 0 {
		cfg.CountPerSource = DefaultConfig.CountPerSource
	}
	if cfg.RankLimit <= 0 {
		cfg.RankLimit = DefaultConfig.RankLimit
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig.PollInterval
	}
	if cfg.Weights == (rank.Weights{}) {
		cfg.Weights = DefaultConfig.Weights
	}

	return &Engine{
		cfg:        cfg,
		aggregator: feed.NewAggregator(logger),
		sources:    sources,
		cache:      cache,
		sinks:      sinks,
		logger:     logger,
		status:     Status{Stage: StageIdle},
		updates:    make(chan stabilize.Delta, 16),
		prices:     make(chan map[string]model.PriceData, 16),
	}
}

// Updates is the change-notification stream of diffed entity deltas.
func (e *Engine) Updates() <-chan stabilize.Delta { return e.updates }

// PriceUpdates emits enrichment changes detected by the background refresh.
func (e *Engine) PriceUpdates() <-chan map[string]model.PriceData { return e.prices }

// Run executes the pipeline until ctx is canceled: one immediate cycle, then
// one per poll interval, with the enrichment background refresh alongside.
func (e *Engine) Run(ctx context.Context) error {
	if e.cache != nil {
		go e.cache.RunRefresh(ctx, e.watchedAddresses, func(changed map[string]model.PriceData) {
			select {
			case e.prices <- changed:
			default:
				e.logger.Warn("price update dropped, consumer too slow")
			}
		})
	}

	e.RunCycle(ctx)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// RunCycle executes one pipeline pass. Fetch and enrich failures degrade to
// the last known good state instead of halting; the pure stages cannot fail
// on validated input.
func (e *Engine) RunCycle(ctx context.Context) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	started := time.Now()

	e.setStage(StageFetching)
	result, err := e.aggregator.Aggregate(ctx, e.sources, e.cfg.CountPerSource)
	if err != nil {
		e.logger.Warn("aggregation failed, serving last known good", zap.Error(err))
		e.degrade(err)
		return
	}
	if len(result.Failed) > 0 {
		e.logger.Info("partial aggregation",
			zap.Int("failed_sources", len(result.Failed)),
			zap.Int("entities", len(result.Entities)),
		)
	}

	e.setStage(StageAggregating)
	next := result.Entities

	e.setStage(StageScoring)
	ranked := rank.Rank(next, e.cfg.Weights, e.cfg.RankLimit)

	e.mu.RLock()
	prevIndex := e.index
	prevVisible := visibleEntities(e.ranked)
	e.mu.RUnlock()

	index := search.Build(next, prevIndex)

	e.setStage(StageEnriching)
	if e.cache != nil {
		e.cache.GetPrices(ctx, rankedAddresses(ranked))
	}

	e.setStage(StageDiffing)
	nextVisible := visibleEntities(ranked)
	delta := stabilize.Diff(prevVisible, nextVisible)

	e.commit(next, ranked, index, started)

	if !delta.Empty() {
		select {
		case e.updates <- delta:
		default:
			e.logger.Warn("delta dropped, consumer too slow")
		}
	}

	e.persist(ctx, next, ranked, started)

	e.logger.Debug("cycle complete",
		zap.Int("entities", len(next)),
		zap.Int("ranked", len(ranked)),
		zap.Int("changed", len(delta.Changed)),
		zap.Duration("elapsed", time.Since(started)),
	)
}

func (e *Engine) commit(entities []model.Entity, ranked []model.ScoredEntity, index *search.Index, at time.Time) {
	rateLimited := e.cache != nil && e.cache.RateLimited()

	e.mu.Lock()
	e.entities = entities
	e.ranked = ranked
	e.index = index
	e.status = Status{
		Stage:       StageIdle,
		LastCycleAt: at,
		RateLimited: rateLimited,
		Entities:    len(entities),
	}
	e.mu.Unlock()
}

func (e *Engine) degrade(err error) {
	e.mu.Lock()
	e.status.Stage = StageIdle
	e.status.Degraded = true
	e.status.LastError = err.Error()
	e.mu.Unlock()
}

func (e *Engine) setStage(stage Stage) {
	e.mu.Lock()
	e.status.Stage = stage
	e.mu.Unlock()
}

// Status returns a copy of the engine's observable state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// GetRanked returns the top entities of the last completed cycle.
func (e *Engine) GetRanked(limit int) []model.ScoredEntity {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ranked := e.ranked
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return append([]model.ScoredEntity(nil), ranked...)
}

// Search answers a free-text query against the current index. Queries below
// the minimum length yield an empty result, not an error.
func (e *Engine) Search(query string, limit int) []model.ScoredEntity {
	if len([]rune(strings.TrimSpace(query))) < search.MinQueryLength {
		return nil
	}

	e.mu.RLock()
	index := e.index
	e.mu.RUnlock()

	return index.Search(query, limit)
}

// GetEnriched returns cached-or-fetched price data for the given addresses,
// keyed by lower-cased address.
func (e *Engine) GetEnriched(ctx context.Context, addresses []string) map[string]model.PriceData {
	if e.cache == nil {
		return nil
	}
	return e.cache.GetPrices(ctx, addresses)
}

func (e *Engine) watchedAddresses() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return rankedAddresses(e.ranked)
}

func (e *Engine) persist(ctx context.Context, entities []model.Entity, ranked []model.ScoredEntity, at time.Time) {
	if len(e.sinks) == 0 || len(ranked) == 0 {
		return
	}

	for _, sink := range e.sinks {
		writer, ok := sink.(storage.TokenWriter)
		if !ok {
			continue
		}
		if err := writer.UpsertTokens(ctx, entities); err != nil {
			e.logger.Warn("token upsert failed", zap.Error(err))
		}
	}

	rows := make([]model.SnapshotRow, 0, len(ranked))
	captured := at.UTC().Format(time.RFC3339)
	for i, scored := range ranked {
		rows = append(rows, model.SnapshotRow{
			Rank:              i + 1,
			Address:           scored.Address,
			Name:              scored.Name,
			Symbol:            scored.Symbol,
			Score:             scored.Score,
			MarketCap:         scored.MarketCap,
			Volume24h:         scored.Volume24h,
			MarketCapDelta24h: scored.MarketCapDelta24h,
			UniqueHolders:     scored.UniqueHolders,
			CapturedAt:        captured,
		})
	}

	for _, sink := range e.sinks {
		if err := sink.PutSnapshot(ctx, rows); err != nil {
			e.logger.Warn("snapshot sink failed", zap.Error(err))
		}
	}
}

func rankedAddresses(ranked []model.ScoredEntity) []string {
	addresses := make([]string, 0, len(ranked))
	for _, scored := range ranked {
		addresses = append(addresses, strings.ToLower(scored.Address))
	}
	return addresses
}

func visibleEntities(ranked []model.ScoredEntity) []model.Entity {
	entities := make([]model.Entity, 0, len(ranked))
	for _, scored := range ranked {
		entities = append(entities, scored.Entity)
	}
	return entities
}
