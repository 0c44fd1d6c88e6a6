package fleetmetrics

import (
	"context"
	"time"

	"github.com/smallbiznis/wisunmeter/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultInterval = 60 * time.Second

var Module = fx.Module("fleet.metrics",
	fx.Provide(NewPusher),
	fx.Provide(NewCollector),
	fx.Invoke(runCollector),
)

func runCollector(lc fx.Lifecycle, cfg config.Config, c *Collector, log *zap.Logger) {
	if !cfg.FleetMetrics.Enabled || c.pusher == nil {
		return
	}
	interval := time.Duration(cfg.FleetMetrics.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting fleet metrics worker", zap.Duration("interval", interval))
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				if err := c.RunOnce(ctx); err != nil {
					log.Error("initial fleet metrics push failed", zap.Error(err))
				}
				for {
					select {
					case <-ticker.C:
						if err := c.RunOnce(ctx); err != nil {
							log.Error("periodic fleet metrics push failed", zap.Error(err))
						}
					case <-ctx.Done():
						log.Info("stopping fleet metrics worker")
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
