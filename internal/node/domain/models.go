// Package domain contains the mesh node registry models.
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

// Node is a Wi-SUN mesh node attached to exactly one device.
type Node struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	NodeID           string       `gorm:"column:node_id;type:varchar(191);not null;uniqueIndex:ux_nodes_node_id"`
	NodeName         string       `gorm:"column:node_name;type:text;not null"`
	DeviceRef        snowflake.ID `gorm:"column:device_ref;not null"`
	DeviceID         string       `gorm:"column:device_id;type:varchar(191);not null;index:ix_nodes_device_id"`
	Description      string       `gorm:"type:text;not null;default:''"`
	Location         string       `gorm:"type:text;not null;default:''"`
	Status           string       `gorm:"type:text;not null;default:'active'"`
	RegisteredAt     time.Time    `gorm:"not null"`
	LastDataReceived *time.Time   `gorm:"column:last_data_received"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Node) TableName() string { return "nodes" }

func ValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusInactive, StatusError:
		return true
	default:
		return false
	}
}
