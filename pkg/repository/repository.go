package repository

import (
	"context"

	"github.com/smallbiznis/wisunmeter/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store. Filters are struct conditions,
// so zero-valued fields do not constrain the query.
type Repository[T any] interface {
	Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Count(ctx context.Context, filter *T) (int64, error)
}

// ProvideStore binds a Repository to db, which may be a transaction.
func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}
