package retention

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wisunmeter/internal/clock"
	"github.com/smallbiznis/wisunmeter/internal/config"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/repository"
	"github.com/smallbiznis/wisunmeter/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunOnceDeletesExpiredRecordsInBatches(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Record{}))

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)

	seed := func(age time.Duration, n int) {
		for i := 0; i < n; i++ {
			ts := now.Add(-age)
			require.NoError(t, conn.Create(&domain.Record{
				ID:        genID.Generate(),
				DeviceID:  "D1",
				NodeID:    "N1",
				Voltage:   230,
				Source:    domain.SourceUDP,
				Timestamp: ts,
				CreatedAt: ts,
			}).Error)
		}
	}
	seed(31*24*time.Hour, 7)
	seed(29*24*time.Hour, 3)

	cfg := config.DefaultTelemetryConfig()
	cfg.SweepBatchSize = 3

	w := NewWorker(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		Repo:   repository.Provide(),
		Config: config.NewStaticTelemetryConfigHolder(cfg),
		Clock:  clk,
	})

	deleted, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)

	var remaining int64
	require.NoError(t, conn.Model(&domain.Record{}).Count(&remaining).Error)
	assert.Equal(t, int64(3), remaining)

	deleted, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestRunForeverStopsOnCancel(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Record{}))

	cfg := config.DefaultTelemetryConfig()
	cfg.SweepInterval = 10 * time.Millisecond
	w := NewWorker(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		Repo:   repository.Provide(),
		Config: config.NewStaticTelemetryConfigHolder(cfg),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.RunForever(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
