package draft

import (
	"github.com/gridsettle/tributary/internal/draft/service"
	"go.uber.org/fx"
)

var Module = fx.Module("draft.service",
	fx.Provide(service.NewService),
)
