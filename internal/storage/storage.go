package storage

import (
	"context"

	"tokenscope/internal/model"
)

// Sink receives ranked snapshot rows after each pipeline cycle.
type Sink interface {
	PutSnapshot(ctx context.Context, rows []model.SnapshotRow) error
}

// TokenWriter is implemented by sinks that also maintain a canonical token
// table alongside the snapshots.
type TokenWriter interface {
	UpsertTokens(ctx context.Context, entities []model.Entity) error
}
