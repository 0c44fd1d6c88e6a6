package domain

import (
	"context"
	"time"
)

// Reporter turns a pipeline outcome into a transport-specific response.
type Reporter interface {
	Accepted(ctx context.Context, record *Record)
	Rejected(ctx context.Context, err error)
}

// IngestLimiter throttles ingest per device.
type IngestLimiter interface {
	Allow(ctx context.Context, deviceID string) (RateDecision, error)
}

// RateDecision is the limiter's answer for one submission. RetryAfter is zero
// when allowed or when the wait is unknown.
type RateDecision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type Service interface {
	// Ingest runs one raw payload through normalize, validate, persist, liveness and broadcast.
	Ingest(ctx context.Context, raw []byte, source string) (*Record, error)
	Handle(ctx context.Context, raw []byte, source string, reporter Reporter)

	Latest(ctx context.Context, deviceID, nodeID string) (*Record, error)
	History(ctx context.Context, req HistoryRequest) ([]Record, error)
	DeviceLatest(ctx context.Context, deviceID string) ([]Record, error)
}

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// HistoryRequest selects records for one device/node pair. Dates accept RFC3339 or
// YYYY-MM-DD; a date-only end bound covers the whole day.
type HistoryRequest struct {
	DeviceID  string
	NodeID    string
	StartDate string
	EndDate   string
	Limit     int
}
