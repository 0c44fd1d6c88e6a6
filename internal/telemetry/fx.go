package telemetry

import (
	"github.com/smallbiznis/wisunmeter/internal/telemetry/liveevents"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/repository"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/service"
	"go.uber.org/fx"
)

var Module = fx.Module("telemetry.service",
	fx.Provide(repository.Provide),
	fx.Provide(liveevents.NewHub),
	fx.Provide(service.New),
)
