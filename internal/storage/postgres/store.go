package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokenscope/internal/model"
)

// Store provides Postgres persistence for tokens and ranked snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertTokens inserts or updates token records keyed by lower-cased address.
func (s *Store) UpsertTokens(ctx context.Context, entities []model.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, entity := range entities {
		batch.Queue(`
			INSERT INTO tokens (
				address, name, symbol, token_created_at, market_cap, volume_24h,
				market_cap_delta_24h, unique_holders, image_uri, created_at, updated_at
			) VALUES (lower($1), $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (address)
			DO UPDATE SET
				name = EXCLUDED.name,
				symbol = EXCLUDED.symbol,
				market_cap = EXCLUDED.market_cap,
				volume_24h = EXCLUDED.volume_24h,
				market_cap_delta_24h = EXCLUDED.market_cap_delta_24h,
				unique_holders = EXCLUDED.unique_holders,
				image_uri = EXCLUDED.image_uri,
				updated_at = now()
		`,
			entity.Address,
			entity.Name,
			entity.Symbol,
			entity.CreatedAt,
			entity.MarketCap,
			entity.Volume24h,
			entity.MarketCapDelta24h,
			entity.UniqueHolders,
			entity.ImageURI,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entities {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutSnapshot inserts one ranked snapshot. Rows sharing a captured_at form
// one consistent view; re-running a capture upserts in place.
func (s *Store) PutSnapshot(ctx context.Context, rows []model.SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO ranked_snapshots (
				captured_at, rank, address, name, symbol, score,
				market_cap, volume_24h, market_cap_delta_24h, unique_holders, created_at
			) VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8, $9, $10, now())
			ON CONFLICT (captured_at, address)
			DO UPDATE SET
				rank = EXCLUDED.rank,
				score = EXCLUDED.score,
				market_cap = EXCLUDED.market_cap,
				volume_24h = EXCLUDED.volume_24h,
				market_cap_delta_24h = EXCLUDED.market_cap_delta_24h,
				unique_holders = EXCLUDED.unique_holders
		`,
			row.CapturedAt,
			row.Rank,
			row.Address,
			row.Name,
			row.Symbol,
			row.Score,
			row.MarketCap,
			row.Volume24h,
			row.MarketCapDelta24h,
			row.UniqueHolders,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
