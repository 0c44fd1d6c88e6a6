package logger

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestRequestLevel(t *testing.T) {
	tests := []struct {
		name      string
		route     string
		status    int
		errorType string
		want      zapcore.Level
	}{
		{name: "accepted reading", route: "/api/meter/data", status: http.StatusCreated, want: zap.DebugLevel},
		{name: "invalid reading", route: "/api/meter/data", status: http.StatusBadRequest, errorType: "validation_error", want: zap.DebugLevel},
		{name: "unknown device", route: "/api/meter/data", status: http.StatusNotFound, errorType: "not_found", want: zap.InfoLevel},
		{name: "store failure", route: "/api/meter/data", status: http.StatusInternalServerError, errorType: "internal_error", want: zap.ErrorLevel},
		{name: "health probe", route: "/api/health", status: http.StatusOK, want: zap.DebugLevel},
		{name: "viewer stream", route: "/api/meter/stream", status: http.StatusOK, want: zap.DebugLevel},
		{name: "device registration", route: "/api/devices/register", status: http.StatusCreated, want: zap.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, requestLevel(tt.route, tt.status, tt.errorType))
		})
	}
}
