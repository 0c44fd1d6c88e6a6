package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/wisunmeter/pkg/db/option"
	"gorm.io/gorm"
)

type store[T any] struct {
	db *gorm.DB
}

func (r *store[T]) Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error) {
	var out []*T
	if err := r.scoped(ctx, filter, opts).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *store[T]) FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error) {
	var out T
	err := r.scoped(ctx, filter, opts).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *store[T]) Create(ctx context.Context, resource *T) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

func (r *store[T]) Count(ctx context.Context, filter *T) (int64, error) {
	var n int64
	err := r.scoped(ctx, filter, nil).Model(new(T)).Count(&n).Error
	return n, err
}

func (r *store[T]) scoped(ctx context.Context, filter *T, opts []option.QueryOption) *gorm.DB {
	q := r.db.WithContext(ctx)
	if filter != nil {
		q = q.Where(filter)
	}
	for _, opt := range opts {
		q = opt.Apply(q)
	}
	return q
}
