package pagination

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// GormQuery pages through rows of T selected by a scoped *gorm.DB,
// ordered by a single column.
type GormQuery[K, T any] struct {
	db       *gorm.DB
	column   string
	dir      Direction
	preloads []string
}

type GormOption func(*gormOptions)

type gormOptions struct {
	preloads []string
}

// WithPreload loads an association on fetched rows only, never on counts.
func WithPreload(name string) GormOption {
	return func(o *gormOptions) {
		o.preloads = append(o.preloads, name)
	}
}

// NewGormQuery wraps db, which may already carry Where/Joins scopes. The
// column must be unambiguous within that scope.
func NewGormQuery[K, T any](db *gorm.DB, column string, dir Direction, opts ...GormOption) *GormQuery[K, T] {
	var o gormOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &GormQuery[K, T]{
		db:       db.Session(&gorm.Session{}),
		column:   column,
		dir:      dir,
		preloads: o.preloads,
	}
}

func (q *GormQuery[K, T]) Direction() Direction {
	return q.dir
}

func (q *GormQuery[K, T]) base(ctx context.Context) *gorm.DB {
	return q.db.WithContext(ctx).Model(new(T))
}

func (q *GormQuery[K, T]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := q.base(ctx).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (q *GormQuery[K, T]) CountThrough(ctx context.Context, cursor K) (int64, error) {
	op := "<="
	if q.dir == Desc {
		op = ">="
	}

	var n int64
	err := q.base(ctx).
		Where(fmt.Sprintf("%s %s ?", q.column, op), cursor).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (q *GormQuery[K, T]) Fetch(ctx context.Context, after *K, offset, limit int) ([]T, error) {
	tx := q.base(ctx)
	if after != nil {
		op := ">"
		if q.dir == Desc {
			op = "<"
		}
		tx = tx.Where(fmt.Sprintf("%s %s ?", q.column, op), *after)
	}
	for _, p := range q.preloads {
		tx = tx.Preload(p)
	}

	var items []T
	err := tx.Order(fmt.Sprintf("%s %s", q.column, q.dir)).
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
