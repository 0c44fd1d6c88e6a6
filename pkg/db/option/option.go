// Package option holds composable query modifiers for the generic repository.
package option

import (
	"time"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before it is executed.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryFunc func(db *gorm.DB) *gorm.DB

func (f queryFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// WithLimit caps the number of rows; non-positive values are ignored.
func WithLimit(limit int) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// QuerySortBy orders by Column, restricted to the Allow list.
type QuerySortBy struct {
	Column string
	Desc   bool
	Allow  map[string]bool
}

func WithSortBy(sort QuerySortBy) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		if sort.Column == "" || !sort.Allow[sort.Column] {
			return db
		}
		expr := sort.Column
		if sort.Desc {
			expr += " DESC"
		}
		return db.Order(expr)
	})
}

// WithTimeRange bounds column inclusively; nil bounds are open.
func WithTimeRange(column string, from, to *time.Time) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		if from != nil {
			db = db.Where(column+" >= ?", *from)
		}
		if to != nil {
			db = db.Where(column+" <= ?", *to)
		}
		return db
	})
}
