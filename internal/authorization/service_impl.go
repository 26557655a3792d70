package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectKey      = "key"
	ObjectDevice   = "device"
	ObjectReseller = "reseller"
	ObjectToken    = "token"
	ObjectUpdate   = "update"
	ObjectStats    = "stats"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionRevoke = "revoke"
	ActionManage = "manage"
	ActionRemove = "remove"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role authdomain.Role, object, action string) error {
	subject := subjectForRole(role)
	if subject == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func subjectForRole(role authdomain.Role) string {
	switch role {
	case authdomain.RoleAdmin:
		return "role:admin"
	case authdomain.RoleReseller:
		return "role:reseller"
	default:
		return ""
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Admins hold the full management surface.
		{"role:admin", ObjectKey, ActionView},
		{"role:admin", ObjectKey, ActionCreate},
		{"role:admin", ObjectKey, ActionRevoke},
		{"role:admin", ObjectKey, ActionManage},
		{"role:admin", ObjectDevice, ActionView},
		{"role:admin", ObjectDevice, ActionRemove},
		{"role:admin", ObjectDevice, ActionManage},
		{"role:admin", ObjectReseller, ActionView},
		{"role:admin", ObjectReseller, ActionManage},
		{"role:admin", ObjectToken, ActionView},
		{"role:admin", ObjectToken, ActionCreate},
		{"role:admin", ObjectToken, ActionManage},
		{"role:admin", ObjectUpdate, ActionView},
		{"role:admin", ObjectUpdate, ActionCreate},
		{"role:admin", ObjectUpdate, ActionManage},
		{"role:admin", ObjectStats, ActionView},

		// Resellers operate on their own keys only; the services scope
		// every query by owner.
		{"role:reseller", ObjectKey, ActionView},
		{"role:reseller", ObjectKey, ActionCreate},
		{"role:reseller", ObjectKey, ActionRevoke},
		{"role:reseller", ObjectDevice, ActionView},
		{"role:reseller", ObjectDevice, ActionRemove},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

var Module = fx.Module("authorization.service",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)
