// Package seed provisions the bootstrap admin account on startup.
package seed

import (
	"context"
	"strings"
	"time"

	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
	"github.com/keymasterhq/keymaster/internal/config"
	"github.com/keymasterhq/keymaster/internal/ratelimit"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	bootstrapLockKey = "bootstrap:admin"
	bootstrapLockTTL = 30 * time.Second
)

var Module = fx.Module("seed",
	fx.Invoke(EnsureBootstrapAdmin),
)

// EnsureBootstrapAdmin creates the configured admin account if it does not
// exist. Without a bootstrap password nothing is seeded; operators manage
// accounts out of band in that case. With redis configured the step is
// serialized across replicas.
func EnsureBootstrapAdmin(cfg config.Config, auth authdomain.Service, log *zap.Logger) error {
	log = log.Named("seed")

	username := strings.TrimSpace(cfg.BootstrapAdminUsername)
	password := cfg.BootstrapAdminPassword
	if username == "" || password == "" {
		log.Info("bootstrap admin not configured, skipping seed")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), bootstrapLockTTL)
	defer cancel()

	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		locker := ratelimit.NewLocker(redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: strings.TrimSpace(cfg.RedisPassword),
			DB:       cfg.RedisDB,
		}))
		token, acquired, err := locker.TryLock(ctx, bootstrapLockKey, bootstrapLockTTL)
		if err != nil {
			log.Warn("bootstrap lock unavailable, seeding anyway", zap.Error(err))
		} else if !acquired {
			// EnsureAdmin is idempotent; another replica is seeding.
			log.Info("bootstrap admin seeding held by another replica")
			return nil
		} else {
			defer func() {
				if err := locker.Release(context.Background(), bootstrapLockKey, token); err != nil {
					log.Warn("release bootstrap lock", zap.Error(err))
				}
			}()
		}
	}

	if err := auth.EnsureAdmin(ctx, username, password); err != nil {
		return err
	}
	log.Info("bootstrap admin ensured", zap.String("username", username))
	return nil
}
