// Package domain contains the device registry models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusError    = "error"
)

// Device is a registered e-meter gateway.
type Device struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	DeviceID     string       `gorm:"column:device_id;type:varchar(191);not null;uniqueIndex:ux_devices_device_id"`
	DeviceName   string       `gorm:"column:device_name;type:text;not null"`
	Description  string       `gorm:"type:text;not null;default:''"`
	IPAddress    string       `gorm:"column:ip_address;type:text;not null;default:''"`
	Location     string       `gorm:"type:text;not null;default:''"`
	Status       string       `gorm:"type:text;not null;default:'active'"`
	RegisteredAt time.Time    `gorm:"not null"`
	LastSeen     *time.Time   `gorm:"column:last_seen"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Device) TableName() string { return "devices" }

// ValidStatus reports whether status is one of the registry states.
func ValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusInactive, StatusError:
		return true
	default:
		return false
	}
}
