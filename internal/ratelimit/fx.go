package ratelimit

import (
	"context"

	telemetrydomain "github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewDeviceIngestLimiter),
	fx.Provide(asIngestLimiter),
	fx.Invoke(registerLifecycle),
)

// asIngestLimiter yields a nil interface when limiting is disabled so
// optional consumers skip the check entirely.
func asIngestLimiter(l *DeviceIngestLimiter) telemetrydomain.IngestLimiter {
	if l == nil {
		return nil
	}
	return l
}

func registerLifecycle(lc fx.Lifecycle, l *DeviceIngestLimiter, log *zap.Logger) {
	if l == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := l.client.Ping(ctx).Err(); err != nil {
				log.Warn("rate limit redis unreachable, ingest fails open", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return l.Close()
		},
	})
}
