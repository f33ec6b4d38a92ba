package feed

import (
	"context"

	"tokenscope/internal/model"
)

// Page is one page of entities plus the cursor for continuation. An empty
// NextCursor means the feed is exhausted.
type Page struct {
	Entities   []model.Entity
	NextCursor string
}

// Source is a named, paginated upstream query. Implementations are read-only
// collaborators; the aggregator never mutates them.
type Source interface {
	Name() string
	Fetch(ctx context.Context, count int, cursor string) (Page, error)
}

// Drain pages through a source until count entities are collected or the
// cursor runs out.
func Drain(ctx context.Context, source Source, count int) ([]model.Entity, error) {
	if count <= 0 {
		return nil, nil
	}

	collected := make([]model.Entity, 0, count)
	cursor := ""
	for len(collected) < count {
		page, err := source.Fetch(ctx, count-len(collected), cursor)
		if err != nil {
			return collected, err
		}
		collected = append(collected, page.Entities...)
		if page.NextCursor == "" || len(page.Entities) == 0 {
			break
		}
		cursor = page.NextCursor
	}

	if len(collected) > count {
		collected = collected[:count]
	}
	return collected, nil
}
