package service

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wisunmeter/internal/clock"
	devicedomain "github.com/smallbiznis/wisunmeter/internal/device/domain"
	nodedomain "github.com/smallbiznis/wisunmeter/internal/node/domain"
	obsmetrics "github.com/smallbiznis/wisunmeter/internal/observability/metrics"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/liveevents"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Devices devicedomain.Service
	Nodes   nodedomain.Service
	Clock   clock.Clock

	LiveEvents *liveevents.Hub      `optional:"true"`
	Limiter    domain.IngestLimiter `optional:"true"`
	Metrics    *obsmetrics.Metrics  `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	repo       domain.Repository
	devices    devicedomain.Service
	nodes      nodedomain.Service
	validator  *Validator
	clock      clock.Clock
	liveEvents *liveevents.Hub
	limiter    domain.IngestLimiter
	metrics    *obsmetrics.Metrics
	tracer     trace.Tracer
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("telemetry.service"),

		genID:      p.GenID,
		repo:       p.Repo,
		devices:    p.Devices,
		nodes:      p.Nodes,
		validator:  NewValidator(p.Devices, p.Nodes),
		clock:      clk,
		liveEvents: p.LiveEvents,
		limiter:    p.Limiter,
		metrics:    p.Metrics,
		tracer:     otel.Tracer("wisunmeter/telemetry"),
	}
}
