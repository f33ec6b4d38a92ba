package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tokenscope/internal/model"
)

// ErrAllSourcesFailed is returned when every feed source failed and no
// entities could be collected.
var ErrAllSourcesFailed = errors.New("all feed sources failed")

// SourceError records a single failed source inside an aggregation pass.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Result is the outcome of one aggregation pass. Failed lists the sources
// that contributed nothing; a partially failed pass is still usable.
type Result struct {
	Entities []model.Entity
	Failed   []SourceError
}

// Aggregator fetches all sources concurrently and merges their entities into
// one deduplicated set keyed by lower-cased address.
type Aggregator struct {
	logger *zap.Logger
}

func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger}
}

type fetchOutcome struct {
	source   string
	entities []model.Entity
	err      error
}

// Aggregate drains every source concurrently, collecting up to countPerSource
// entities from each. A failing source contributes nothing but does not fail
// the pass; only a pass where every source failed returns ErrAllSourcesFailed.
// Records colliding on address are resolved last-write-wins in fetch-completion
// order. Output order carries no meaning; ranking is the scorer's job.
func (a *Aggregator) Aggregate(ctx context.Context, sources []Source, countPerSource int) (Result, error) {
	if len(sources) == 0 {
		return Result{}, nil
	}

	outcomes := make(chan fetchOutcome, len(sources))
	var wg sync.WaitGroup
	for _, source := range sources {
		wg.Add(1)
		go func(s Source) {
			defer wg.Done()
			entities, err := Drain(ctx, s, countPerSource)
			outcomes <- fetchOutcome{source: s.Name(), entities: entities, err: err}
		}(source)
	}
	wg.Wait()
	close(outcomes)

	byAddress := make(map[string]int, len(sources)*countPerSource)
	merged := make([]model.Entity, 0, len(sources)*countPerSource)
	var failed []SourceError

	for outcome := range outcomes {
		if outcome.err != nil {
			a.logger.Warn("feed source failed",
				zap.String("source", outcome.source),
				zap.Error(outcome.err),
			)
			failed = append(failed, SourceError{Source: outcome.source, Err: outcome.err})
			continue
		}
		for _, raw := range outcome.entities {
			entity, ok := normalize(raw)
			if !ok {
				continue
			}
			key := strings.ToLower(entity.Address)
			if idx, seen := byAddress[key]; seen {
				merged[idx] = entity
				continue
			}
			byAddress[key] = len(merged)
			merged = append(merged, entity)
		}
	}

	if len(failed) == len(sources) {
		return Result{Failed: failed}, fmt.Errorf("%w: %d sources", ErrAllSourcesFailed, len(sources))
	}

	return Result{Entities: merged, Failed: failed}, nil
}

// normalize rejects records without an address and canonicalizes well-formed
// hex addresses to their checksummed form. The lower-cased address remains
// the identity key, so foreign or malformed addresses still aggregate.
func normalize(entity model.Entity) (model.Entity, bool) {
	address := strings.TrimSpace(entity.Address)
	if address == "" {
		return model.Entity{}, false
	}
	if common.IsHexAddress(address) {
		address = common.HexToAddress(address).Hex()
	}
	entity.Address = address
	if entity.ID == "" {
		entity.ID = strings.ToLower(address)
	}
	return entity, true
}
