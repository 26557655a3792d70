package referral

import (
	"github.com/keymasterhq/keymaster/internal/referral/repository"
	"github.com/keymasterhq/keymaster/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
