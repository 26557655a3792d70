package auth

import (
	"github.com/keymasterhq/keymaster/internal/auth/repository"
	"github.com/keymasterhq/keymaster/internal/auth/service"
	"github.com/keymasterhq/keymaster/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.ProvideAdmins),
	fx.Provide(repository.ProvideSessions),
	fx.Provide(service.New),
	fx.Provide(session.NewManager),
)
