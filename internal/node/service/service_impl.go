package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wisunmeter/internal/cache"
	"github.com/smallbiznis/wisunmeter/internal/clock"
	devicedomain "github.com/smallbiznis/wisunmeter/internal/device/domain"
	nodedomain "github.com/smallbiznis/wisunmeter/internal/node/domain"
	"github.com/smallbiznis/wisunmeter/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    nodedomain.Repository
	Devices devicedomain.Service
	Clock   clock.Clock

	Identity cache.IdentityCache `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     nodedomain.Repository
	devices  devicedomain.Service
	genID    *snowflake.Node
	clock    clock.Clock
	identity cache.IdentityCache
}

func New(p Params) nodedomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("node.service"),
		repo:     p.Repo,
		devices:  p.Devices,
		genID:    p.GenID,
		clock:    clk,
		identity: p.Identity,
	}
}

func (s *Service) Register(ctx context.Context, req nodedomain.RegisterRequest) (*nodedomain.Response, error) {
	nodeID := strings.TrimSpace(req.NodeID)
	if nodeID == "" {
		return nil, nodedomain.ErrInvalidNodeID
	}
	name := strings.TrimSpace(req.NodeName)
	if name == "" {
		return nil, nodedomain.ErrInvalidNodeName
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return nil, nodedomain.ErrInvalidDeviceID
	}

	device, err := s.devices.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	deviceRef, err := snowflake.ParseString(device.ID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByNodeID(ctx, s.db, nodeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nodedomain.ErrAlreadyExists
	}

	now := s.clock.Now()
	n := &nodedomain.Node{
		ID:           s.genID.Generate(),
		NodeID:       nodeID,
		NodeName:     name,
		DeviceRef:    deviceRef,
		DeviceID:     device.DeviceID,
		Description:  strings.TrimSpace(req.Description),
		Location:     strings.TrimSpace(req.Location),
		Status:       nodedomain.StatusActive,
		RegisteredAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, n); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, nodedomain.ErrAlreadyExists
		}
		return nil, err
	}

	s.log.Info("node registered",
		zap.String("node_id", nodeID),
		zap.String("device_id", device.DeviceID),
	)
	return toResponse(n), nil
}

func (s *Service) List(ctx context.Context) ([]nodedomain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return toResponses(items), nil
}

// ListByDevice returns an empty list for a device without nodes, registered or not.
func (s *Service) ListByDevice(ctx context.Context, deviceID string) ([]nodedomain.Response, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, nodedomain.ErrInvalidDeviceID
	}
	items, err := s.repo.ListByDevice(ctx, s.db, deviceID)
	if err != nil {
		return nil, err
	}
	return toResponses(items), nil
}

func (s *Service) GetByNodeID(ctx context.Context, nodeID string) (*nodedomain.Response, error) {
	item, err := s.find(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return toResponse(item), nil
}

func (s *Service) UpdateStatus(ctx context.Context, nodeID, status string) (*nodedomain.Response, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !nodedomain.ValidStatus(status) {
		return nil, nodedomain.ErrInvalidStatus
	}

	item, err := s.find(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	item.Status = status
	item.LastDataReceived = &now
	item.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}
	return toResponse(item), nil
}

func (s *Service) Update(ctx context.Context, req nodedomain.UpdateRequest) (*nodedomain.Response, error) {
	item, err := s.find(ctx, req.NodeID)
	if err != nil {
		return nil, err
	}

	if req.NodeName != nil {
		name := strings.TrimSpace(*req.NodeName)
		if name == "" {
			return nil, nodedomain.ErrInvalidNodeName
		}
		item.NodeName = name
	}
	if req.Description != nil {
		item.Description = strings.TrimSpace(*req.Description)
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

func (s *Service) Delete(ctx context.Context, nodeID string) error {
	item, err := s.find(ctx, nodeID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.db, item.NodeID); err != nil {
		return err
	}
	if s.identity != nil {
		s.identity.ForgetNode(item.NodeID)
	}
	s.log.Info("node deleted", zap.String("node_id", item.NodeID))
	return nil
}

func (s *Service) LinkedTo(ctx context.Context, nodeID, deviceID string) (bool, error) {
	if s.identity != nil {
		if owner, ok := s.identity.NodeOwner(nodeID); ok {
			return owner == deviceID, nil
		}
	}
	item, err := s.repo.FindByNodeID(ctx, s.db, nodeID)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	if s.identity != nil {
		s.identity.SetNodeOwner(item.NodeID, item.DeviceID)
	}
	return item.DeviceID == deviceID, nil
}

func (s *Service) TouchLastDataReceived(ctx context.Context, nodeID string, at time.Time) error {
	rows, err := s.repo.TouchLastDataReceived(ctx, s.db, nodeID, at)
	if err != nil {
		return err
	}
	if rows == 0 {
		return nodedomain.ErrNotFound
	}
	return nil
}

func (s *Service) find(ctx context.Context, nodeID string) (*nodedomain.Node, error) {
	nodeID = strings.TrimSpace(nodeID)
	if nodeID == "" {
		return nil, nodedomain.ErrInvalidNodeID
	}
	item, err := s.repo.FindByNodeID(ctx, s.db, nodeID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nodedomain.ErrNotFound
	}
	return item, nil
}

func toResponses(items []nodedomain.Node) []nodedomain.Response {
	resp := make([]nodedomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *toResponse(&items[i]))
	}
	return resp
}

func toResponse(n *nodedomain.Node) *nodedomain.Response {
	return &nodedomain.Response{
		ID:               n.ID.String(),
		NodeID:           n.NodeID,
		NodeName:         n.NodeName,
		DeviceRef:        n.DeviceRef.String(),
		DeviceID:         n.DeviceID,
		Description:      n.Description,
		Location:         n.Location,
		Status:           n.Status,
		RegisteredAt:     n.RegisteredAt,
		LastDataReceived: n.LastDataReceived,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}
}
