package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type HistoryFilter struct {
	DeviceID string
	NodeID   string
	From     *time.Time
	To       *time.Time
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *Record) error
	Latest(ctx context.Context, db *gorm.DB, deviceID, nodeID string) (*Record, error)
	History(ctx context.Context, db *gorm.DB, filter HistoryFilter) ([]Record, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	// DeleteBefore removes at most limit records older than cutoff and returns how many went.
	DeleteBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) (int64, error)
}
