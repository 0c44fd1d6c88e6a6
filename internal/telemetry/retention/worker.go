package retention

import (
	"context"
	"time"

	"github.com/smallbiznis/wisunmeter/internal/clock"
	"github.com/smallbiznis/wisunmeter/internal/config"
	obsmetrics "github.com/smallbiznis/wisunmeter/internal/observability/metrics"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultRunTimeout = 2 * time.Minute
	maxBatchesPerRun  = 200
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   domain.Repository
	Config *config.TelemetryConfigHolder
	Clock  clock.Clock

	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Worker deletes telemetry records older than the configured retention window.
type Worker struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	cfg     *config.TelemetryConfigHolder
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

func NewWorker(p Params) *Worker {
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	return &Worker{
		db:      p.DB,
		log:     p.Log.Named("telemetry.retention"),
		repo:    p.Repo,
		cfg:     p.Config,
		clock:   clk,
		metrics: p.Metrics,
	}
}

// RunForever sweeps on the configured interval, re-reading it after every run
// so hot-reloaded settings apply without a restart.
func (w *Worker) RunForever(ctx context.Context) {
	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("retention sweep failed", zap.Error(err))
		}

		timer := time.NewTimer(w.cfg.Get().SweepInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunOnce removes expired records in batches and returns how many were deleted.
func (w *Worker) RunOnce(parentCtx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(parentCtx, defaultRunTimeout)
	defer cancel()

	cfg := w.cfg.Get()
	cutoff := w.clock.Now().Add(-cfg.Retention)

	var total int64
	for i := 0; i < maxBatchesPerRun; i++ {
		deleted, err := w.repo.DeleteBefore(ctx, w.db, cutoff, cfg.SweepBatchSize)
		total += deleted
		if err != nil {
			w.metrics.RecordExpired(ctx, total)
			return total, err
		}
		if deleted < int64(cfg.SweepBatchSize) {
			break
		}
	}

	w.metrics.RecordExpired(ctx, total)
	if total > 0 {
		w.log.Info("expired telemetry removed",
			zap.Int64("records", total),
			zap.Time("cutoff", cutoff),
		)
	}
	return total, nil
}
