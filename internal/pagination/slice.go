package pagination

import (
	"context"
	"slices"
)

// SliceQuery serves pages out of an in-memory collection.
type SliceQuery[K, T any] struct {
	items   []T
	key     func(T) K
	compare func(a, b K) int
	dir     Direction
}

// NewSliceQuery orders a copy of items by key in direction dir. compare
// follows the cmp.Compare convention.
func NewSliceQuery[K, T any](items []T, key func(T) K, compare func(a, b K) int, dir Direction) *SliceQuery[K, T] {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b T) int {
		c := compare(key(a), key(b))
		if dir == Desc {
			return -c
		}
		return c
	})
	return &SliceQuery[K, T]{items: sorted, key: key, compare: compare, dir: dir}
}

func (q *SliceQuery[K, T]) Direction() Direction {
	return q.dir
}

func (q *SliceQuery[K, T]) Count(ctx context.Context) (int64, error) {
	return int64(len(q.items)), nil
}

func (q *SliceQuery[K, T]) CountThrough(ctx context.Context, cursor K) (int64, error) {
	var n int64
	for _, item := range q.items {
		if !q.beyond(item, cursor) {
			n++
		}
	}
	return n, nil
}

func (q *SliceQuery[K, T]) Fetch(ctx context.Context, after *K, offset, limit int) ([]T, error) {
	items := q.items
	if after != nil {
		items = make([]T, 0, len(q.items))
		for _, item := range q.items {
			if q.beyond(item, *after) {
				items = append(items, item)
			}
		}
	}

	if offset >= len(items) {
		return []T{}, nil
	}
	end := min(offset+limit, len(items))
	return slices.Clone(items[offset:end]), nil
}

// beyond reports whether item sorts strictly after cursor.
func (q *SliceQuery[K, T]) beyond(item T, cursor K) bool {
	c := q.compare(q.key(item), cursor)
	if q.dir == Desc {
		return c < 0
	}
	return c > 0
}
