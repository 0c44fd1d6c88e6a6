package repository

import (
	"context"
	"time"

	devicedomain "github.com/smallbiznis/wisunmeter/internal/device/domain"
	"gorm.io/gorm"
)

const deviceColumns = `id, device_id, device_name, description, ip_address, location, status, registered_at, last_seen, created_at, updated_at`

type repo struct{}

func Provide() devicedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, d *devicedomain.Device) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO devices (`+deviceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.DeviceID,
		d.DeviceName,
		d.Description,
		d.IPAddress,
		d.Location,
		d.Status,
		d.RegisteredAt,
		d.LastSeen,
		d.CreatedAt,
		d.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, d *devicedomain.Device) error {
	return db.WithContext(ctx).Exec(
		`UPDATE devices
		 SET device_name = ?, description = ?, ip_address = ?, location = ?, status = ?, last_seen = ?, updated_at = ?
		 WHERE device_id = ?`,
		d.DeviceName,
		d.Description,
		d.IPAddress,
		d.Location,
		d.Status,
		d.LastSeen,
		d.UpdatedAt,
		d.DeviceID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, deviceID string) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM devices WHERE device_id = ?`,
		deviceID,
	).Error
}

func (r *repo) FindByDeviceID(ctx context.Context, db *gorm.DB, deviceID string) (*devicedomain.Device, error) {
	var device devicedomain.Device
	err := db.WithContext(ctx).Raw(
		`SELECT `+deviceColumns+` FROM devices WHERE device_id = ?`,
		deviceID,
	).Scan(&device).Error
	if err != nil {
		return nil, err
	}
	if device.ID == 0 {
		return nil, nil
	}
	return &device, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]devicedomain.Device, error) {
	var devices []devicedomain.Device
	err := db.WithContext(ctx).Raw(
		`SELECT ` + deviceColumns + ` FROM devices ORDER BY registered_at DESC, id DESC`,
	).Scan(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&devicedomain.Device{}).Count(&count).Error
	return count, err
}

func (r *repo) TouchLastSeen(ctx context.Context, db *gorm.DB, deviceID string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE devices SET last_seen = ?, updated_at = ? WHERE device_id = ?`,
		at,
		at,
		deviceID,
	)
	return res.RowsAffected, res.Error
}
