package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/wisunmeter/internal/config"
	telemetrydomain "github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
)

const keyDeviceIngest = "telemetry:ingest:device:%s"

// DeviceIngestLimiter throttles telemetry per device across both transports.
type DeviceIngestLimiter struct {
	client *redis.Client
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewDeviceIngestLimiter returns nil when rate limiting is disabled.
func NewDeviceIngestLimiter(cfg config.Config) (*DeviceIngestLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.DeviceIngestRate <= 0 || limitCfg.DeviceIngestBurst <= 0 {
		return nil, errors.New("device ingest rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return newDeviceIngestLimiter(client, limitCfg.DeviceIngestRate, limitCfg.DeviceIngestBurst), nil
}

func newDeviceIngestLimiter(client *redis.Client, rate float64, burst int) *DeviceIngestLimiter {
	return &DeviceIngestLimiter{
		client: client,
		bucket: NewTokenBucket(client),
		rate:   rate,
		burst:  burst,
	}
}

func (l *DeviceIngestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow takes one token from the device's bucket.
func (l *DeviceIngestLimiter) Allow(ctx context.Context, deviceID string) (telemetrydomain.RateDecision, error) {
	if !l.Enabled() {
		return telemetrydomain.RateDecision{Allowed: true}, nil
	}
	d, err := l.bucket.Take(ctx, deviceKey(deviceID), l.rate, l.burst)
	if err != nil {
		return telemetrydomain.RateDecision{}, err
	}
	return telemetrydomain.RateDecision{Allowed: d.Allowed, RetryAfter: d.RetryAfter}, nil
}

func (l *DeviceIngestLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

func deviceKey(deviceID string) string {
	return fmt.Sprintf(keyDeviceIngest, strings.TrimSpace(deviceID))
}
