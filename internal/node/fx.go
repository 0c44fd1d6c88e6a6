package node

import (
	devicedomain "github.com/smallbiznis/wisunmeter/internal/device/domain"
	nodedomain "github.com/smallbiznis/wisunmeter/internal/node/domain"
	"github.com/smallbiznis/wisunmeter/internal/node/repository"
	"github.com/smallbiznis/wisunmeter/internal/node/service"
	"go.uber.org/fx"
)

var Module = fx.Module("node.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	// device deletion cascades through the node store
	fx.Provide(func(r nodedomain.Repository) devicedomain.NodeRemover { return r }),
)
