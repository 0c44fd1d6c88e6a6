package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, device *Device) error
	Update(ctx context.Context, db *gorm.DB, device *Device) error
	Delete(ctx context.Context, db *gorm.DB, deviceID string) error
	FindByDeviceID(ctx context.Context, db *gorm.DB, deviceID string) (*Device, error)
	List(ctx context.Context, db *gorm.DB) ([]Device, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	// TouchLastSeen returns the number of rows updated.
	TouchLastSeen(ctx context.Context, db *gorm.DB, deviceID string, at time.Time) (int64, error)
}

// NodeRemover deletes the nodes linked to a device inside the caller's transaction.
type NodeRemover interface {
	DeleteByDevice(ctx context.Context, db *gorm.DB, deviceID string) ([]string, error)
}
