package observability

import (
	"testing"

	"github.com/smallbiznis/wisunmeter/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:   "1.2.0",
		Environment:  "production",
		OTLPEndpoint: " collector:4317 ",
		Telemetry: config.ObservabilityConfig{
			LogLevel:            "info",
			OtelEnabled:         true,
			OtelProtocol:        "grpc",
			SamplingRatio:       0.1,
			IngestSamplingRatio: 0.01,
		},
	})

	assert.Equal(t, "wisunmeter", cfg.ServiceName)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, 0.01, cfg.OtelIngestSamplingRatio)
	assert.False(t, cfg.Debug())

	assert.True(t, Config{LogLevel: "DEBUG", Environment: "production"}.Debug())
	assert.True(t, Config{Environment: "local"}.Debug())
}
