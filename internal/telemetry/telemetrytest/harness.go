// Package telemetrytest wires the registries and the ingest pipeline on an
// in-memory database for transport tests.
package telemetrytest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wisunmeter/internal/cache"
	"github.com/smallbiznis/wisunmeter/internal/clock"
	devicedomain "github.com/smallbiznis/wisunmeter/internal/device/domain"
	devicerepo "github.com/smallbiznis/wisunmeter/internal/device/repository"
	deviceservice "github.com/smallbiznis/wisunmeter/internal/device/service"
	"github.com/smallbiznis/wisunmeter/internal/migration"
	nodedomain "github.com/smallbiznis/wisunmeter/internal/node/domain"
	noderepo "github.com/smallbiznis/wisunmeter/internal/node/repository"
	nodeservice "github.com/smallbiznis/wisunmeter/internal/node/service"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/liveevents"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/repository"
	telemetryservice "github.com/smallbiznis/wisunmeter/internal/telemetry/service"
	"github.com/smallbiznis/wisunmeter/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Epoch is the fake clock's starting point.
var Epoch = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type Harness struct {
	DB        *gorm.DB
	GenID     *snowflake.Node
	Clock     *clock.FakeClock
	Hub       *liveevents.Hub
	Records   domain.Repository
	Devices   devicedomain.Service
	Nodes     nodedomain.Service
	Telemetry domain.Service
}

type Option func(*telemetryservice.Params)

// WithLimiter installs an ingest limiter on the pipeline.
func WithLimiter(l domain.IngestLimiter) Option {
	return func(p *telemetryservice.Params) { p.Limiter = l }
}

func New(t testing.TB, opts ...Option) *Harness {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := migration.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	genID, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	log := zap.NewNop()
	clk := clock.NewFakeClock(Epoch)
	identity := cache.NewIdentityCache()
	nodeRepo := noderepo.Provide()

	devices := deviceservice.New(deviceservice.Params{
		DB: conn, Log: log, GenID: genID, Repo: devicerepo.Provide(), Clock: clk, Nodes: nodeRepo, Identity: identity,
	})
	nodes := nodeservice.New(nodeservice.Params{
		DB: conn, Log: log, GenID: genID, Repo: nodeRepo, Devices: devices, Clock: clk, Identity: identity,
	})

	hub := liveevents.NewHub()
	records := repository.Provide()
	params := telemetryservice.Params{
		DB:         conn,
		Log:        log,
		GenID:      genID,
		Repo:       records,
		Devices:    devices,
		Nodes:      nodes,
		Clock:      clk,
		LiveEvents: hub,
	}
	for _, opt := range opts {
		opt(&params)
	}

	return &Harness{
		DB:        conn,
		GenID:     genID,
		Clock:     clk,
		Hub:       hub,
		Records:   records,
		Devices:   devices,
		Nodes:     nodes,
		Telemetry: telemetryservice.New(params),
	}
}

// Seed registers device D1 with node N1 and device D2 with node N2.
func (h *Harness) Seed(t testing.TB) {
	t.Helper()
	ctx := context.Background()
	for _, d := range []string{"D1", "D2"} {
		if _, err := h.Devices.Register(ctx, devicedomain.RegisterRequest{DeviceID: d, DeviceName: "meter " + d}); err != nil {
			t.Fatalf("register device %s: %v", d, err)
		}
	}
	for node, dev := range map[string]string{"N1": "D1", "N2": "D2"} {
		if _, err := h.Nodes.Register(ctx, nodedomain.RegisterRequest{NodeID: node, NodeName: "node " + node, DeviceID: dev}); err != nil {
			t.Fatalf("register node %s: %v", node, err)
		}
	}
}

// RecordCount counts stored telemetry records.
func (h *Harness) RecordCount(t testing.TB) int64 {
	t.Helper()
	var n int64
	if err := h.DB.Model(&domain.Record{}).Count(&n).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	return n
}
