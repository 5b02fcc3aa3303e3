package unit

import (
	"github.com/gridsettle/tributary/internal/unit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("unit.service",
	fx.Provide(service.NewService),
)
