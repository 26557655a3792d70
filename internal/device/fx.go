package device

import (
	"github.com/keymasterhq/keymaster/internal/device/repository"
	"github.com/keymasterhq/keymaster/internal/device/service"
	"go.uber.org/fx"
)

var Module = fx.Module("device.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
