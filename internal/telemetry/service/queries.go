package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
)

const dateOnly = "2006-01-02"

func (s *Service) Latest(ctx context.Context, deviceID, nodeID string) (*domain.Record, error) {
	deviceID, nodeID, err := pairIDs(deviceID, nodeID)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.Latest(ctx, s.db, deviceID, nodeID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrRecordNotFound
	}
	return record, nil
}

func (s *Service) History(ctx context.Context, req domain.HistoryRequest) ([]domain.Record, error) {
	deviceID, nodeID, err := pairIDs(req.DeviceID, req.NodeID)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	switch {
	case limit < 0:
		return nil, domain.ErrInvalidLimit
	case limit == 0:
		limit = domain.DefaultHistoryLimit
	case limit > domain.MaxHistoryLimit:
		limit = domain.MaxHistoryLimit
	}

	from, err := parseBound("startDate", req.StartDate, false)
	if err != nil {
		return nil, err
	}
	to, err := parseBound("endDate", req.EndDate, true)
	if err != nil {
		return nil, err
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, domain.NewValidationError("startDate", domain.CodeInvalidDate, "startDate must not be after endDate")
	}

	return s.repo.History(ctx, s.db, domain.HistoryFilter{
		DeviceID: deviceID,
		NodeID:   nodeID,
		From:     from,
		To:       to,
		Limit:    limit,
	})
}

// DeviceLatest returns the newest record of every node linked to deviceID.
// Nodes that never reported are skipped.
func (s *Service) DeviceLatest(ctx context.Context, deviceID string) ([]domain.Record, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, domain.NewValidationError("deviceId", domain.CodeMissingField, "deviceId is required")
	}

	nodes, err := s.nodes.ListByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Record, 0, len(nodes))
	for _, n := range nodes {
		record, err := s.repo.Latest(ctx, s.db, deviceID, n.NodeID)
		if err != nil {
			return nil, err
		}
		if record != nil {
			out = append(out, *record)
		}
	}
	return out, nil
}

func pairIDs(deviceID, nodeID string) (string, string, error) {
	deviceID = strings.TrimSpace(deviceID)
	nodeID = strings.TrimSpace(nodeID)
	var errs []domain.FieldError
	if deviceID == "" {
		errs = append(errs, domain.FieldError{Field: "deviceId", Code: domain.CodeMissingField, Message: "deviceId is required"})
	}
	if nodeID == "" {
		errs = append(errs, domain.FieldError{Field: "nodeId", Code: domain.CodeMissingField, Message: "nodeId is required"})
	}
	if len(errs) > 0 {
		return "", "", &domain.ValidationError{Errors: errs}
	}
	return deviceID, nodeID, nil
}

// parseBound accepts RFC3339 or a bare date. A bare end date is inclusive of
// the whole day.
func parseBound(field, value string, end bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.ParseInLocation(dateOnly, value, time.UTC)
	if err != nil {
		return nil, domain.NewValidationError(field, domain.CodeInvalidDate, field+" must be RFC3339 or YYYY-MM-DD")
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
