package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wisunmeter/internal/cache"
	"github.com/smallbiznis/wisunmeter/internal/clock"
	"github.com/smallbiznis/wisunmeter/internal/config"
	"github.com/smallbiznis/wisunmeter/internal/datagram"
	"github.com/smallbiznis/wisunmeter/internal/device"
	"github.com/smallbiznis/wisunmeter/internal/fleetmetrics"
	"github.com/smallbiznis/wisunmeter/internal/migration"
	"github.com/smallbiznis/wisunmeter/internal/node"
	"github.com/smallbiznis/wisunmeter/internal/observability"
	"github.com/smallbiznis/wisunmeter/internal/ratelimit"
	"github.com/smallbiznis/wisunmeter/internal/server"
	"github.com/smallbiznis/wisunmeter/internal/telemetry"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/retention"
	"github.com/smallbiznis/wisunmeter/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,

		// Registries and telemetry
		device.Module,
		node.Module,
		telemetry.Module,
		retention.Module,
		fleetmetrics.Module,

		// Transports
		server.Module,
		datagram.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
