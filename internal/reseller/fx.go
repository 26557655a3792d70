package reseller

import (
	"github.com/keymasterhq/keymaster/internal/reseller/repository"
	"github.com/keymasterhq/keymaster/internal/reseller/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reseller.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideLedger),
	fx.Provide(service.New),
)
