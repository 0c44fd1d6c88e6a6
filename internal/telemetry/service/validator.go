package service

import (
	"context"

	devicedomain "github.com/smallbiznis/wisunmeter/internal/device/domain"
	nodedomain "github.com/smallbiznis/wisunmeter/internal/node/domain"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
)

// Validator checks that a reading references a registered device and a node
// registered under that same device. It never writes.
type Validator struct {
	devices devicedomain.Service
	nodes   nodedomain.Service
}

func NewValidator(devices devicedomain.Service, nodes nodedomain.Service) *Validator {
	return &Validator{devices: devices, nodes: nodes}
}

func (v *Validator) Validate(ctx context.Context, deviceID, nodeID string) error {
	ok, err := v.devices.Exists(ctx, deviceID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrDeviceNotFound
	}

	linked, err := v.nodes.LinkedTo(ctx, nodeID, deviceID)
	if err != nil {
		return err
	}
	if !linked {
		return domain.ErrNodeNotFound
	}
	return nil
}
