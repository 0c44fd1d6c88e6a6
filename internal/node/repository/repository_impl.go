package repository

import (
	"context"
	"time"

	nodedomain "github.com/smallbiznis/wisunmeter/internal/node/domain"
	"gorm.io/gorm"
)

const nodeColumns = `id, node_id, node_name, device_ref, device_id, description, location, status, registered_at, last_data_received, created_at, updated_at`

type repo struct{}

func Provide() nodedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *nodedomain.Node) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO nodes (`+nodeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.NodeID,
		n.NodeName,
		n.DeviceRef,
		n.DeviceID,
		n.Description,
		n.Location,
		n.Status,
		n.RegisteredAt,
		n.LastDataReceived,
		n.CreatedAt,
		n.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, n *nodedomain.Node) error {
	return db.WithContext(ctx).Exec(
		`UPDATE nodes
		 SET node_name = ?, description = ?, location = ?, status = ?, last_data_received = ?, updated_at = ?
		 WHERE node_id = ?`,
		n.NodeName,
		n.Description,
		n.Location,
		n.Status,
		n.LastDataReceived,
		n.UpdatedAt,
		n.NodeID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, nodeID string) error {
	return db.WithContext(ctx).Exec(`DELETE FROM nodes WHERE node_id = ?`, nodeID).Error
}

func (r *repo) DeleteByDevice(ctx context.Context, db *gorm.DB, deviceID string) ([]string, error) {
	var ids []string
	if err := db.WithContext(ctx).Raw(
		`SELECT node_id FROM nodes WHERE device_id = ?`,
		deviceID,
	).Scan(&ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := db.WithContext(ctx).Exec(`DELETE FROM nodes WHERE device_id = ?`, deviceID).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) FindByNodeID(ctx context.Context, db *gorm.DB, nodeID string) (*nodedomain.Node, error) {
	var node nodedomain.Node
	err := db.WithContext(ctx).Raw(
		`SELECT `+nodeColumns+` FROM nodes WHERE node_id = ?`,
		nodeID,
	).Scan(&node).Error
	if err != nil {
		return nil, err
	}
	if node.ID == 0 {
		return nil, nil
	}
	return &node, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]nodedomain.Node, error) {
	var nodes []nodedomain.Node
	err := db.WithContext(ctx).Raw(
		`SELECT ` + nodeColumns + ` FROM nodes ORDER BY registered_at DESC, id DESC`,
	).Scan(&nodes).Error
	return nodes, err
}

func (r *repo) ListByDevice(ctx context.Context, db *gorm.DB, deviceID string) ([]nodedomain.Node, error) {
	var nodes []nodedomain.Node
	err := db.WithContext(ctx).Raw(
		`SELECT `+nodeColumns+` FROM nodes WHERE device_id = ? ORDER BY registered_at DESC, id DESC`,
		deviceID,
	).Scan(&nodes).Error
	return nodes, err
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&nodedomain.Node{}).Count(&count).Error
	return count, err
}

// CountStale counts nodes that have not reported since before, including nodes that never reported.
func (r *repo) CountStale(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&nodedomain.Node{}).
		Where("last_data_received IS NULL OR last_data_received < ?", before).
		Count(&count).Error
	return count, err
}

func (r *repo) TouchLastDataReceived(ctx context.Context, db *gorm.DB, nodeID string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE nodes SET last_data_received = ?, updated_at = ? WHERE node_id = ?`,
		at,
		at,
		nodeID,
	)
	return res.RowsAffected, res.Error
}
