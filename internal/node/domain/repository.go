package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, node *Node) error
	Update(ctx context.Context, db *gorm.DB, node *Node) error
	Delete(ctx context.Context, db *gorm.DB, nodeID string) error
	// DeleteByDevice removes every node linked to deviceID and returns their external ids.
	DeleteByDevice(ctx context.Context, db *gorm.DB, deviceID string) ([]string, error)
	FindByNodeID(ctx context.Context, db *gorm.DB, nodeID string) (*Node, error)
	List(ctx context.Context, db *gorm.DB) ([]Node, error)
	ListByDevice(ctx context.Context, db *gorm.DB, deviceID string) ([]Node, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	CountStale(ctx context.Context, db *gorm.DB, before time.Time) (int64, error)
	TouchLastDataReceived(ctx context.Context, db *gorm.DB, nodeID string, at time.Time) (int64, error)
}
