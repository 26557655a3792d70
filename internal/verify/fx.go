package verify

import (
	"github.com/keymasterhq/keymaster/internal/verify/service"
	"go.uber.org/fx"
)

var Module = fx.Module("verify.service",
	fx.Provide(service.New),
)
