package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*Response, error)
	UpdateStatus(ctx context.Context, deviceID, status string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, deviceID string) error
	Exists(ctx context.Context, deviceID string) (bool, error)
	TouchLastSeen(ctx context.Context, deviceID string, at time.Time) error
}

type RegisterRequest struct {
	DeviceID    string `json:"deviceId"`
	DeviceName  string `json:"deviceName"`
	Description string `json:"description"`
	IPAddress   string `json:"ipAddress"`
	Location    string `json:"location"`
}

// UpdateRequest carries the mutable device attributes; nil fields are left unchanged.
type UpdateRequest struct {
	DeviceID    string  `json:"-"`
	DeviceName  *string `json:"deviceName,omitempty"`
	Description *string `json:"description,omitempty"`
	IPAddress   *string `json:"ipAddress,omitempty"`
	Location    *string `json:"location,omitempty"`
}

type Response struct {
	ID           string     `json:"id"`
	DeviceID     string     `json:"deviceId"`
	DeviceName   string     `json:"deviceName"`
	Description  string     `json:"description"`
	IPAddress    string     `json:"ipAddress"`
	Location     string     `json:"location"`
	Status       string     `json:"status"`
	RegisteredAt time.Time  `json:"registeredAt"`
	LastSeen     *time.Time `json:"lastSeen"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

var (
	ErrInvalidDeviceID   = errors.New("invalid_device_id")
	ErrInvalidDeviceName = errors.New("invalid_device_name")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrAlreadyExists     = errors.New("device_already_exists")
	ErrNotFound          = errors.New("device_not_found")
)
