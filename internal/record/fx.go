package record

import (
	"github.com/gridsettle/tributary/internal/record/service"
	"go.uber.org/fx"
)

var Module = fx.Module("record.service",
	fx.Provide(service.NewService),
)
