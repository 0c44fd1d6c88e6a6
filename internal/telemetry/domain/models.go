// Package domain contains the persisted telemetry record and the ingest contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	SourceHTTP = "http"
	SourceUDP  = "udp"
)

// Record is one accepted meter reading.
type Record struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	DeviceID      string            `json:"deviceId" gorm:"column:device_id;type:varchar(191);not null;index:ix_meter_records_device_node_ts,priority:1"`
	NodeID        string            `json:"nodeId" gorm:"column:node_id;type:varchar(191);not null;index:ix_meter_records_device_node_ts,priority:2"`
	Current       float64           `json:"current" gorm:"not null"`
	Voltage       float64           `json:"voltage" gorm:"not null"`
	PowerFactor   float64           `json:"powerFactor" gorm:"column:power_factor;not null"`
	ApparentPower float64           `json:"apparentPower" gorm:"column:apparent_power;not null"`
	Diagnostics   datatypes.JSONMap `json:"diagnostics,omitempty"`
	Source        string            `json:"source" gorm:"type:text;not null"`
	Timestamp     time.Time         `json:"timestamp" gorm:"not null;index:ix_meter_records_device_node_ts,priority:3;index:ix_meter_records_ts"`
	CreatedAt     time.Time         `json:"-" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "meter_records" }

// Draft is a normalized payload that has not been validated against the registry.
type Draft struct {
	DeviceID      string
	NodeID        string
	Current       float64
	Voltage       float64
	PowerFactor   float64
	ApparentPower float64
	Diagnostics   map[string]any
}
