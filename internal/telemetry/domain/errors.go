package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrDeviceNotFound = errors.New("device_not_found")
	ErrNodeNotFound   = errors.New("node_not_found")
	ErrRecordNotFound = errors.New("telemetry_not_found")
	ErrRateLimited    = errors.New("rate_limited")
	ErrInvalidLimit   = errors.New("invalid_limit")
)

const (
	CodeMissingField     = "missing_field"
	CodeInvalidNumber    = "invalid_number"
	CodeMalformedPayload = "malformed_payload"
	CodeInvalidDate      = "invalid_date"
	CodeInvalidID        = "invalid_identifier"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError is returned for payloads that can never be accepted as sent.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "validation error"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Code)
	}
	return "validation error: " + strings.Join(parts, ", ")
}

// Fields lists the offending field names in report order.
func (e *ValidationError) Fields() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		out = append(out, fe.Field)
	}
	return out
}

func NewValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Code: code, Message: message}}}
}

// RateLimitedError matches ErrRateLimited and says when the device may send again.
type RateLimitedError struct {
	DeviceID   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: device %s", ErrRateLimited, e.DeviceID)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// LivenessUpdateError reports a failed last-seen update after the record was stored.
type LivenessUpdateError struct {
	Entity string
	ID     string
	Err    error
}

func (e *LivenessUpdateError) Error() string {
	return fmt.Sprintf("update %s %s liveness: %v", e.Entity, e.ID, e.Err)
}

func (e *LivenessUpdateError) Unwrap() error { return e.Err }

// PersistenceError wraps a store failure while saving a record.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "persist telemetry record: " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }
