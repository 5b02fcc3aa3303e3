package agent

import (
	"github.com/gridsettle/tributary/internal/agent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("agent.service",
	fx.Provide(service.NewService),
)
