package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr    string
	UDPHost     string
	UDPPort     int
	FrontendURL string

	OTLPEndpoint string
	Telemetry    ObservabilityConfig

	DBType            string
	DBPath            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RateLimit    RateLimitConfig
	FleetMetrics FleetMetricsConfig
}

// ObservabilityConfig carries logging and OpenTelemetry settings. Meters
// report every few seconds, so ingest traces get their own sampling ratio.
type ObservabilityConfig struct {
	LogLevel            string
	LogFormat           string
	OtelEnabled         bool
	OtelProtocol        string
	SamplingRatio       float64
	IngestSamplingRatio float64
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DeviceIngestRate  float64
	DeviceIngestBurst int
}

type FleetMetricsConfig struct {
	Enabled         bool
	Exporter        string
	Endpoint        string
	AuthToken       string
	IntervalSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "wisunmeter"),
		AppVersion:   getenv("APP_VERSION", "1.0.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":"+getenv("PORT", "5000")),
		UDPHost:      getenv("UDP_HOST", "0.0.0.0"),
		UDPPort:      getenvInt("UDP_PORT", 41234),
		FrontendURL:  strings.TrimSpace(getenv("FRONTEND_URL", "http://localhost:3000")),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		Telemetry: ObservabilityConfig{
			LogLevel:            strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:           strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:         getenvBool("OTEL_ENABLED", false),
			OtelProtocol:        strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio:       getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
			IngestSamplingRatio: getenvFloat("OTEL_INGEST_SAMPLING_RATIO", 0.01),
		},

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "sqlite")),
		DBPath:            getenv("DATABASE_PATH", "wisunmeter.db"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "wisun_emeter"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		RateLimit: RateLimitConfig{
			Enabled:           getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			RedisPassword:     strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			RedisDB:           getenvInt("REDIS_DB", 0),
			DeviceIngestRate:  getenvFloat("RATE_LIMIT_DEVICE_INGEST_RATE", 20),
			DeviceIngestBurst: getenvInt("RATE_LIMIT_DEVICE_INGEST_BURST", 40),
		},
		FleetMetrics: FleetMetricsConfig{
			Enabled:         getenvBool("FLEET_METRICS_ENABLED", false),
			Exporter:        strings.ToLower(getenv("FLEET_METRICS_EXPORTER", "")),
			Endpoint:        strings.TrimSpace(getenv("FLEET_METRICS_ENDPOINT", "")),
			AuthToken:       strings.TrimSpace(getenv("FLEET_METRICS_AUTH_TOKEN", "")),
			IntervalSeconds: getenvInt("FLEET_METRICS_INTERVAL_SECONDS", 60),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
