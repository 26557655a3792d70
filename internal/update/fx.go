package update

import (
	"github.com/keymasterhq/keymaster/internal/update/repository"
	"github.com/keymasterhq/keymaster/internal/update/service"
	"go.uber.org/fx"
)

var Module = fx.Module("update.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
