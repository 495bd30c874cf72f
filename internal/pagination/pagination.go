// Package pagination turns an ordered collection plus client-supplied
// limit/offset/after parameters into a bounded page with metadata.
//
// The engine never sees a live query object. It works against Query, a
// "count + sliced fetch" contract implemented by SliceQuery for in-memory
// collections and by GormQuery for database-backed ones.
package pagination

import (
	"context"
	"fmt"

	"github.com/Kyz7/microblog/internal/apperr"
)

const DefaultMaxLimit = 25

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Query is an ordered collection keyed by K.
type Query[K, T any] interface {
	Direction() Direction
	// Count returns the size of the full ordered collection.
	Count(ctx context.Context) (int64, error)
	// CountThrough returns how many items lie at or before cursor in the
	// ordering (key <= cursor ascending, key >= cursor descending).
	CountThrough(ctx context.Context, cursor K) (int64, error)
	// Fetch returns up to limit items starting at offset. When after is set
	// only items strictly beyond it are considered.
	Fetch(ctx context.Context, after *K, offset, limit int) ([]T, error)
}

// Params are the client-supplied values. Nil means "not given".
type Params[K any] struct {
	Limit  *int
	Offset *int
	After  *K
}

type Meta struct {
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
	Count  int   `json:"count"`
	Total  int64 `json:"total"`
	After  any   `json:"after,omitempty"`
}

type Page[T any] struct {
	Data       []T  `json:"data"`
	Pagination Meta `json:"pagination"`
}

// Paginate resolves one page of q.
//
// Items sharing the cursor's exact key are all skipped in cursor mode, so a
// non-unique ordering key can skip ties at page boundaries.
//
// A non-positive limit is rejected in both modes; a cursor page of zero
// items carries no information.
func Paginate[K, T any](ctx context.Context, q Query[K, T], p Params[K], maxLimit int) (*Page[T], error) {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	limit := maxLimit
	if p.Limit != nil && *p.Limit < maxLimit {
		limit = *p.Limit
	}

	if p.Offset != nil && p.After != nil {
		return nil, fmt.Errorf("%w: offset and after cannot be combined", apperr.ErrBadRequest)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", apperr.ErrBadRequest)
	}

	total, err := q.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count collection: %w", err)
	}

	offset := 0
	var data []T
	if p.After != nil {
		through, err := q.CountThrough(ctx, *p.After)
		if err != nil {
			return nil, fmt.Errorf("count through cursor: %w", err)
		}
		offset = int(through)

		data, err = q.Fetch(ctx, p.After, 0, limit)
		if err != nil {
			return nil, fmt.Errorf("fetch page: %w", err)
		}
	} else {
		if p.Offset != nil {
			offset = *p.Offset
		}
		if offset < 0 || (offset > 0 && int64(offset) >= total) {
			return nil, fmt.Errorf("%w: offset %d out of range", apperr.ErrBadRequest, offset)
		}

		data, err = q.Fetch(ctx, nil, offset, limit)
		if err != nil {
			return nil, fmt.Errorf("fetch page: %w", err)
		}
	}

	if data == nil {
		data = []T{}
	}

	meta := Meta{
		Offset: offset,
		Limit:  limit,
		Count:  len(data),
		Total:  total,
	}
	if p.After != nil {
		meta.After = *p.After
	}

	return &Page[T]{Data: data, Pagination: meta}, nil
}
