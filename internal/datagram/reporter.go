package datagram

import (
	"context"
	"errors"

	"github.com/smallbiznis/wisunmeter/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/wisunmeter/internal/observability/metrics"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"go.uber.org/zap"
)

type peerKey struct{}

func withPeer(ctx context.Context, peer string) context.Context {
	return context.WithValue(ctx, peerKey{}, peer)
}

func peerField(ctx context.Context) zap.Field {
	peer, _ := ctx.Value(peerKey{}).(string)
	return zap.String("peer", peer)
}

// LogReporter is the UDP outcome strategy: success and failure are both only logged.
type LogReporter struct {
	log *zap.Logger
}

func NewLogReporter(log *zap.Logger) *LogReporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogReporter{log: log}
}

func (r *LogReporter) Accepted(ctx context.Context, record *domain.Record) {
	log := logger.WithDevice(logger.WithContext(ctx, r.log), record.DeviceID, record.NodeID)
	log.Info("udp telemetry stored",
		zap.String("record_id", record.ID.String()),
		peerField(ctx),
	)
}

func (r *LogReporter) Rejected(ctx context.Context, err error) {
	log := logger.WithContext(ctx, r.log)
	fields := []zap.Field{peerField(ctx), zap.String("reason", dropReason(err)), zap.Error(err)}

	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		log.Warn("udp telemetry rejected", append(fields, zap.Strings("fields", validation.Fields()))...)
	case errors.Is(err, domain.ErrDeviceNotFound), errors.Is(err, domain.ErrNodeNotFound), errors.Is(err, domain.ErrRateLimited):
		log.Warn("udp telemetry rejected", fields...)
	default:
		log.Error("udp telemetry failed", fields...)
	}
}

func dropReason(err error) string {
	var validation *domain.ValidationError
	var persistence *domain.PersistenceError
	switch {
	case errors.As(err, &validation):
		return "validation"
	case errors.Is(err, domain.ErrDeviceNotFound):
		return "device_not_found"
	case errors.Is(err, domain.ErrNodeNotFound):
		return "node_not_found"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.As(err, &persistence):
		return "persistence"
	default:
		return "internal"
	}
}

type countingReporter struct {
	domain.Reporter
	metrics *obsmetrics.DatagramMetrics
}

func (r *countingReporter) Rejected(ctx context.Context, err error) {
	r.metrics.Dropped(dropReason(err))
	r.Reporter.Rejected(ctx, err)
}
