package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// TelemetryConfig holds runtime-tunable settings for telemetry storage.
type TelemetryConfig struct {
	Retention      time.Duration `mapstructure:"retention"`
	SweepInterval  time.Duration `mapstructure:"sweepInterval"`
	SweepBatchSize int           `mapstructure:"sweepBatchSize"`
	StaleAfter     time.Duration `mapstructure:"staleAfter"`
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Retention:      30 * 24 * time.Hour,
		SweepInterval:  time.Hour,
		SweepBatchSize: 500,
		StaleAfter:     10 * time.Minute,
	}
}

type TelemetryConfigHolder struct {
	current atomic.Value // holds TelemetryConfig
}

// NewStaticTelemetryConfigHolder returns a holder that never reloads.
func NewStaticTelemetryConfigHolder(cfg TelemetryConfig) *TelemetryConfigHolder {
	holder := &TelemetryConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewTelemetryConfigHolder(log *zap.Logger) (*TelemetryConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.telemetry")

	v := viper.New()
	v.SetConfigName("telemetry")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/wisunmeter")
	v.AddConfigPath(".")

	v.SetEnvPrefix("WISUNMETER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultTelemetryConfig()
	v.SetDefault("telemetry.retention", defaults.Retention)
	v.SetDefault("telemetry.sweepInterval", defaults.SweepInterval)
	v.SetDefault("telemetry.sweepBatchSize", defaults.SweepBatchSize)
	v.SetDefault("telemetry.staleAfter", defaults.StaleAfter)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg TelemetryConfig
	if err := v.UnmarshalKey("telemetry", &cfg); err != nil {
		return nil, err
	}
	if err := validateTelemetryConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticTelemetryConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var updated TelemetryConfig
		if err := v.UnmarshalKey("telemetry", &updated); err != nil {
			log.Warn("telemetry config reload failed", zap.Error(err))
			return
		}
		if err := validateTelemetryConfig(updated); err != nil {
			log.Warn("invalid telemetry config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("telemetry config reloaded",
			zap.String("file", e.Name),
			zap.Duration("retention", updated.Retention),
			zap.Duration("sweep_interval", updated.SweepInterval),
		)
	})
	v.WatchConfig()

	return holder, nil
}

func (h *TelemetryConfigHolder) Get() TelemetryConfig {
	if h == nil {
		return DefaultTelemetryConfig()
	}
	cfg, ok := h.current.Load().(TelemetryConfig)
	if !ok {
		return DefaultTelemetryConfig()
	}
	return cfg
}

func validateTelemetryConfig(cfg TelemetryConfig) error {
	if cfg.Retention <= 0 {
		return errors.New("telemetry.retention must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return errors.New("telemetry.sweepInterval must be positive")
	}
	if cfg.SweepBatchSize <= 0 {
		return errors.New("telemetry.sweepBatchSize must be positive")
	}
	if cfg.StaleAfter <= 0 {
		return errors.New("telemetry.staleAfter must be positive")
	}
	return nil
}
