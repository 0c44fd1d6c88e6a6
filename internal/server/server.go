package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/wisunmeter/internal/clock"
	"github.com/smallbiznis/wisunmeter/internal/config"
	devicedomain "github.com/smallbiznis/wisunmeter/internal/device/domain"
	nodedomain "github.com/smallbiznis/wisunmeter/internal/node/domain"
	"github.com/smallbiznis/wisunmeter/internal/observability"
	obsmiddleware "github.com/smallbiznis/wisunmeter/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/wisunmeter/internal/observability/metrics"
	obstracing "github.com/smallbiznis/wisunmeter/internal/observability/tracing"
	telemetrydomain "github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/liveevents"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// maxIngestBody bounds POST /api/meter/data bodies.
const maxIngestBody = 1 << 20

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(allowedOrigins))
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics, allowedOrigins(cfg))
}

// allowedOrigins always admits the configured frontend; outside production
// any origin is accepted.
func allowedOrigins(cfg config.Config) []string {
	if !cfg.IsProduction() {
		return []string{"*"}
	}
	var out []string
	for _, origin := range strings.Split(cfg.FrontendURL, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	return cors.New(corsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server started", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	clock      clock.Clock
	devices    devicedomain.Service
	nodes      nodedomain.Service
	telemetry  telemetrydomain.Service
	liveEvents *liveevents.Hub
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	Clock     clock.Clock
	Devices   devicedomain.Service
	Nodes     nodedomain.Service
	Telemetry telemetrydomain.Service

	LiveEvents *liveevents.Hub `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        log.Named("http.server"),
		clock:      clk,
		devices:    p.Devices,
		nodes:      p.Nodes,
		telemetry:  p.Telemetry,
		liveEvents: p.LiveEvents,
	}

	svc.registerIndexRoutes()
	svc.registerDeviceRoutes()
	svc.registerNodeRoutes()
	svc.registerMeterRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerIndexRoutes() {
	s.engine.GET("/", s.Index)
	s.engine.GET("/api/health", s.Health)
}

func (s *Server) registerDeviceRoutes() {
	devices := s.engine.Group("/api/devices")

	devices.POST("/register", s.RegisterDevice)
	devices.GET("", s.ListDevices)
	devices.GET("/:deviceId", s.GetDevice)
	devices.PATCH("/:deviceId/status", s.UpdateDeviceStatus)
	devices.PATCH("/:deviceId", s.UpdateDevice)
	devices.DELETE("/:deviceId", s.DeleteDevice)
}

func (s *Server) registerNodeRoutes() {
	nodes := s.engine.Group("/api/nodes")

	nodes.POST("/register", s.RegisterNode)
	nodes.GET("", s.ListNodes)
	nodes.GET("/device/:deviceId", s.ListNodesByDevice)
	nodes.GET("/:nodeId", s.GetNode)
	nodes.PATCH("/:nodeId/status", s.UpdateNodeStatus)
	nodes.PATCH("/:nodeId", s.UpdateNode)
	nodes.DELETE("/:nodeId", s.DeleteNode)
}

func (s *Server) registerMeterRoutes() {
	meter := s.engine.Group("/api/meter")

	meter.POST("/data", s.IngestMeterData)
	meter.GET("/latest/:deviceId/:nodeId", s.GetLatestMeterData)
	meter.GET("/history/:deviceId/:nodeId", s.GetMeterHistory)
	meter.GET("/history/:deviceId/:nodeId/export", s.ExportMeterHistory)
	meter.GET("/device/:deviceId/latest", s.GetDeviceLatestMeterData)
	meter.GET("/stream", s.StreamMeterLiveEvents)
}
