package service

import (
	"context"
	"errors"

	obscontext "github.com/smallbiznis/wisunmeter/internal/observability/context"
	"github.com/smallbiznis/wisunmeter/internal/observability/logger"
	"github.com/smallbiznis/wisunmeter/internal/observability/tracing"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/normalize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Handle runs Ingest and hands the outcome to reporter. Transports differ only
// in the reporter they pass.
func (s *Service) Handle(ctx context.Context, raw []byte, source string, reporter domain.Reporter) {
	record, err := s.Ingest(ctx, raw, source)
	if reporter == nil {
		return
	}
	if err != nil {
		reporter.Rejected(ctx, err)
		return
	}
	reporter.Accepted(ctx, record)
}

func (s *Service) Ingest(ctx context.Context, raw []byte, source string) (*domain.Record, error) {
	ctx = obscontext.WithSource(ctx, source)
	ctx, span := s.tracer.Start(ctx, tracing.IngestSpanName, trace.WithAttributes(
		tracing.SafeAttributes(attribute.String("telemetry.source", source))...,
	))
	defer span.End()

	record, err := s.ingest(ctx, raw, source, span)
	if err != nil {
		span.SetStatus(codes.Error, reasonFor(err))
		span.RecordError(tracing.SafeError(err))
		s.metrics.RecordTelemetryRejected(ctx, source, reasonFor(err))
		return nil, err
	}
	s.metrics.RecordTelemetryIngest(ctx, source)
	return record, nil
}

func (s *Service) ingest(ctx context.Context, raw []byte, source string, span trace.Span) (*domain.Record, error) {
	draft, err := normalize.Parse(raw)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("telemetry.device_id", draft.DeviceID),
		attribute.String("telemetry.node_id", draft.NodeID),
	)...)
	log := logger.WithDevice(logger.WithContext(ctx, s.log), draft.DeviceID, draft.NodeID)

	if err := s.checkRateLimit(ctx, log, draft.DeviceID, source); err != nil {
		return nil, err
	}

	if err := s.validator.Validate(ctx, draft.DeviceID, draft.NodeID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record := &domain.Record{
		ID:            s.genID.Generate(),
		DeviceID:      draft.DeviceID,
		NodeID:        draft.NodeID,
		Current:       draft.Current,
		Voltage:       draft.Voltage,
		PowerFactor:   draft.PowerFactor,
		ApparentPower: draft.ApparentPower,
		Source:        source,
		Timestamp:     now,
		CreatedAt:     now,
	}
	if draft.Diagnostics != nil {
		record.Diagnostics = datatypes.JSONMap(draft.Diagnostics)
	}

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		return nil, &domain.PersistenceError{Err: err}
	}

	s.touchLiveness(ctx, log, record)
	s.liveEvents.Publish(*record)

	log.Debug("telemetry accepted", zap.String("record_id", record.ID.String()))
	return record, nil
}

// touchLiveness stamps device and node last-seen times. The record is already
// stored, so failures are logged and never reported to the producer.
func (s *Service) touchLiveness(ctx context.Context, log *zap.Logger, record *domain.Record) {
	if err := s.devices.TouchLastSeen(ctx, record.DeviceID, record.Timestamp); err != nil {
		s.metrics.RecordLivenessFailure(ctx, "device")
		log.Warn("liveness update failed", zap.Error(&domain.LivenessUpdateError{Entity: "device", ID: record.DeviceID, Err: err}))
	}
	if err := s.nodes.TouchLastDataReceived(ctx, record.NodeID, record.Timestamp); err != nil {
		s.metrics.RecordLivenessFailure(ctx, "node")
		log.Warn("liveness update failed", zap.Error(&domain.LivenessUpdateError{Entity: "node", ID: record.NodeID, Err: err}))
	}
}

// checkRateLimit fails open when the limiter backend is unreachable.
func (s *Service) checkRateLimit(ctx context.Context, log *zap.Logger, deviceID, source string) error {
	if s.limiter == nil {
		return nil
	}
	decision, err := s.limiter.Allow(ctx, deviceID)
	if err != nil {
		log.Warn("ingest rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !decision.Allowed {
		s.metrics.RecordRateLimitDenied(ctx, source)
		return &domain.RateLimitedError{DeviceID: deviceID, RetryAfter: decision.RetryAfter}
	}
	return nil
}

func reasonFor(err error) string {
	var (
		vErr *domain.ValidationError
		pErr *domain.PersistenceError
	)
	switch {
	case errors.As(err, &vErr):
		return "validation"
	case errors.Is(err, domain.ErrDeviceNotFound):
		return "device_not_found"
	case errors.Is(err, domain.ErrNodeNotFound):
		return "node_not_found"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.As(err, &pErr):
		return "persistence"
	default:
		return "internal"
	}
}
