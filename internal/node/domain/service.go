package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	ListByDevice(ctx context.Context, deviceID string) ([]Response, error)
	GetByNodeID(ctx context.Context, nodeID string) (*Response, error)
	UpdateStatus(ctx context.Context, nodeID, status string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, nodeID string) error
	// LinkedTo reports whether nodeID is registered under deviceID.
	LinkedTo(ctx context.Context, nodeID, deviceID string) (bool, error)
	TouchLastDataReceived(ctx context.Context, nodeID string, at time.Time) error
}

type RegisterRequest struct {
	NodeID      string `json:"nodeId"`
	NodeName    string `json:"nodeName"`
	DeviceID    string `json:"deviceId"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

type UpdateRequest struct {
	NodeID      string  `json:"-"`
	NodeName    *string `json:"nodeName,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
}

type Response struct {
	ID               string     `json:"id"`
	NodeID           string     `json:"nodeId"`
	NodeName         string     `json:"nodeName"`
	DeviceRef        string     `json:"deviceRef"`
	DeviceID         string     `json:"deviceId"`
	Description      string     `json:"description"`
	Location         string     `json:"location"`
	Status           string     `json:"status"`
	RegisteredAt     time.Time  `json:"registeredAt"`
	LastDataReceived *time.Time `json:"lastDataReceived"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

var (
	ErrInvalidNodeID   = errors.New("invalid_node_id")
	ErrInvalidNodeName = errors.New("invalid_node_name")
	ErrInvalidDeviceID = errors.New("invalid_device_id")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrAlreadyExists   = errors.New("node_already_exists")
	ErrNotFound        = errors.New("node_not_found")
)
