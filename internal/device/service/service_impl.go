package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wisunmeter/internal/cache"
	"github.com/smallbiznis/wisunmeter/internal/clock"
	devicedomain "github.com/smallbiznis/wisunmeter/internal/device/domain"
	"github.com/smallbiznis/wisunmeter/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  devicedomain.Repository
	Clock clock.Clock

	Nodes    devicedomain.NodeRemover `optional:"true"`
	Identity cache.IdentityCache      `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     devicedomain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	nodes    devicedomain.NodeRemover
	identity cache.IdentityCache
}

func New(p Params) devicedomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("device.service"),
		repo:     p.Repo,
		genID:    p.GenID,
		clock:    clk,
		nodes:    p.Nodes,
		identity: p.Identity,
	}
}

func (s *Service) Register(ctx context.Context, req devicedomain.RegisterRequest) (*devicedomain.Response, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return nil, devicedomain.ErrInvalidDeviceID
	}
	name := strings.TrimSpace(req.DeviceName)
	if name == "" {
		return nil, devicedomain.ErrInvalidDeviceName
	}

	existing, err := s.repo.FindByDeviceID(ctx, s.db, deviceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, devicedomain.ErrAlreadyExists
	}

	now := s.clock.Now()
	d := &devicedomain.Device{
		ID:           s.genID.Generate(),
		DeviceID:     deviceID,
		DeviceName:   name,
		Description:  strings.TrimSpace(req.Description),
		IPAddress:    strings.TrimSpace(req.IPAddress),
		Location:     strings.TrimSpace(req.Location),
		Status:       devicedomain.StatusActive,
		RegisteredAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, d); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, devicedomain.ErrAlreadyExists
		}
		return nil, err
	}

	s.log.Info("device registered", zap.String("device_id", deviceID))
	return toResponse(d), nil
}

func (s *Service) List(ctx context.Context) ([]devicedomain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]devicedomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) GetByDeviceID(ctx context.Context, deviceID string) (*devicedomain.Response, error) {
	item, err := s.find(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return toResponse(item), nil
}

func (s *Service) UpdateStatus(ctx context.Context, deviceID, status string) (*devicedomain.Response, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !devicedomain.ValidStatus(status) {
		return nil, devicedomain.ErrInvalidStatus
	}

	item, err := s.find(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	item.Status = status
	item.LastSeen = &now
	item.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}
	return toResponse(item), nil
}

func (s *Service) Update(ctx context.Context, req devicedomain.UpdateRequest) (*devicedomain.Response, error) {
	item, err := s.find(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}

	if req.DeviceName != nil {
		name := strings.TrimSpace(*req.DeviceName)
		if name == "" {
			return nil, devicedomain.ErrInvalidDeviceName
		}
		item.DeviceName = name
	}
	if req.Description != nil {
		item.Description = strings.TrimSpace(*req.Description)
	}
	if req.IPAddress != nil {
		item.IPAddress = strings.TrimSpace(*req.IPAddress)
	}
	if req.Location != nil {
		item.Location = strings.TrimSpace(*req.Location)
	}

	item.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}
	return toResponse(item), nil
}

// Delete removes the device and every node linked to it. Telemetry records are
// left to expire through retention.
func (s *Service) Delete(ctx context.Context, deviceID string) error {
	item, err := s.find(ctx, deviceID)
	if err != nil {
		return err
	}

	var removedNodes []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.nodes != nil {
			ids, err := s.nodes.DeleteByDevice(ctx, tx, item.DeviceID)
			if err != nil {
				return err
			}
			removedNodes = ids
		}
		return s.repo.Delete(ctx, tx, item.DeviceID)
	})
	if err != nil {
		return err
	}

	if s.identity != nil {
		s.identity.ForgetDevice(item.DeviceID)
		for _, nodeID := range removedNodes {
			s.identity.ForgetNode(nodeID)
		}
	}

	s.log.Info("device deleted",
		zap.String("device_id", item.DeviceID),
		zap.Int("nodes_removed", len(removedNodes)),
	)
	return nil
}

// Exists reports whether a device with the external id is registered.
func (s *Service) Exists(ctx context.Context, deviceID string) (bool, error) {
	if s.identity != nil && s.identity.HasDevice(deviceID) {
		return true, nil
	}
	item, err := s.repo.FindByDeviceID(ctx, s.db, deviceID)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	if s.identity != nil {
		s.identity.MarkDevice(item.DeviceID)
	}
	return true, nil
}

func (s *Service) TouchLastSeen(ctx context.Context, deviceID string, at time.Time) error {
	rows, err := s.repo.TouchLastSeen(ctx, s.db, deviceID, at)
	if err != nil {
		return err
	}
	if rows == 0 {
		return devicedomain.ErrNotFound
	}
	return nil
}

func (s *Service) find(ctx context.Context, deviceID string) (*devicedomain.Device, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, devicedomain.ErrInvalidDeviceID
	}
	item, err := s.repo.FindByDeviceID(ctx, s.db, deviceID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, devicedomain.ErrNotFound
	}
	return item, nil
}

func toResponse(d *devicedomain.Device) *devicedomain.Response {
	return &devicedomain.Response{
		ID:           d.ID.String(),
		DeviceID:     d.DeviceID,
		DeviceName:   d.DeviceName,
		Description:  d.Description,
		IPAddress:    d.IPAddress,
		Location:     d.Location,
		Status:       d.Status,
		RegisteredAt: d.RegisteredAt,
		LastSeen:     d.LastSeen,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
