package observability

import (
	"strings"

	"github.com/smallbiznis/wisunmeter/internal/config"
)

const defaultServiceName = "wisunmeter"

// Config is the resolved observability setup for one process.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
	// OtelIngestSamplingRatio applies to meter ingest traces from either transport.
	OtelIngestSamplingRatio float64
}

func LoadConfig(cfg config.Config) Config {
	obs := cfg.Telemetry
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = defaultServiceName
	}
	format := obs.LogFormat
	if format == "" {
		format = "json"
	}
	return Config{
		ServiceName:             name,
		Environment:             strings.TrimSpace(cfg.Environment),
		Version:                 strings.TrimSpace(cfg.AppVersion),
		LogLevel:                obs.LogLevel,
		LogFormat:               format,
		OtelEnabled:             obs.OtelEnabled,
		OtelExporterEndpoint:    strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol:    obs.OtelProtocol,
		OtelSamplingRatio:       obs.SamplingRatio,
		OtelIngestSamplingRatio: obs.IngestSamplingRatio,
	}
}

// Debug is true for debug logging or any non-deployed environment.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
