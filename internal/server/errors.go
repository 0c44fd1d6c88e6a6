package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	devicedomain "github.com/smallbiznis/wisunmeter/internal/device/domain"
	nodedomain "github.com/smallbiznis/wisunmeter/internal/node/domain"
	telemetrydomain "github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/export"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/liveevents"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// invalidFields maps registry sentinel codes to the request field they name.
var invalidFields = map[string]string{
	"invalid_device_id":   "deviceId",
	"invalid_device_name": "deviceName",
	"invalid_node_id":     "nodeId",
	"invalid_node_name":   "nodeName",
	"invalid_status":      "status",
	"invalid_limit":       "limit",
	"invalid_format":      "format",
	"invalid_request":     "request",
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if seconds := retryAfterSeconds(lastErr.Err); seconds > 0 {
			c.Header("Retry-After", strconv.Itoa(seconds))
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{{Field: field, Code: code, Message: message}},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   invalidFields[code],
				Code:    code,
				Message: "invalid value",
			}},
		}
	}

	switch {
	case errors.Is(err, devicedomain.ErrAlreadyExists),
		errors.Is(err, nodedomain.ErrAlreadyExists):
		return http.StatusBadRequest, errorPayload{
			Type:    "already_exists",
			Message: humanize(err),
		}
	case errors.Is(err, telemetrydomain.ErrDeviceNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "Device not found. Please register the device first.",
		}
	case errors.Is(err, telemetrydomain.ErrNodeNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "Node not found or does not belong to this device.",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: humanize(err),
		}
	case errors.Is(err, telemetrydomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many telemetry submissions for this device",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, liveevents.ErrHubUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// retryAfterSeconds rounds the limiter's wait up to whole seconds.
func retryAfterSeconds(err error) int {
	var limited *telemetrydomain.RateLimitedError
	if !errors.As(err, &limited) || limited.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(limited.RetryAfter.Seconds()))
}

// asValidationErrors also unwraps field errors raised by the ingest pipeline.
func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}

	var tErr *telemetrydomain.ValidationError
	if errors.As(err, &tErr) && tErr != nil {
		out := &ValidationErrors{Errors: make([]ValidationError, 0, len(tErr.Errors))}
		for _, fe := range tErr.Errors {
			out.Errors = append(out.Errors, ValidationError{Field: fe.Field, Code: fe.Code, Message: fe.Message})
		}
		return out
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, devicedomain.ErrInvalidDeviceID),
		errors.Is(err, devicedomain.ErrInvalidDeviceName),
		errors.Is(err, devicedomain.ErrInvalidStatus),
		errors.Is(err, nodedomain.ErrInvalidNodeID),
		errors.Is(err, nodedomain.ErrInvalidNodeName),
		errors.Is(err, nodedomain.ErrInvalidDeviceID),
		errors.Is(err, nodedomain.ErrInvalidStatus),
		errors.Is(err, telemetrydomain.ErrInvalidLimit),
		errors.Is(err, export.ErrUnsupportedFormat):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, devicedomain.ErrNotFound),
		errors.Is(err, nodedomain.ErrNotFound),
		errors.Is(err, telemetrydomain.ErrRecordNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog returns the response type and the most specific code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	switch payload.Type {
	case "not_found", "already_exists":
		return payload.Type, err.Error()
	default:
		return payload.Type, ""
	}
}

// humanize turns a sentinel code such as "device_not_found" into a message.
func humanize(err error) string {
	var target error = err
	for {
		next := errors.Unwrap(target)
		if next == nil {
			break
		}
		target = next
	}
	msg := strings.ReplaceAll(target.Error(), "_", " ")
	if msg == "" {
		return "not found"
	}
	return msg
}
