package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	devicedomain "github.com/keymasterhq/keymaster/internal/device/domain"
	keydomain "github.com/keymasterhq/keymaster/internal/licensekey/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    devicedomain.Repository
	KeyRepo keydomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    devicedomain.Repository
	keyRepo keydomain.Repository
}

func New(p Params) devicedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("device.service"),
		repo:    p.Repo,
		keyRepo: p.KeyRepo,
	}
}

func (s *Service) ListByKey(ctx context.Context, keyID snowflake.ID) ([]devicedomain.Device, error) {
	return s.repo.FindByKeyID(ctx, s.db, keyID)
}

func (s *Service) RemoveFromOwnedKey(ctx context.Context, ownerID, keyID snowflake.ID, deviceID string) error {
	key, err := s.keyRepo.FindByID(ctx, s.db, keyID)
	if err != nil {
		return err
	}
	if key == nil || key.OwnerID != ownerID {
		return devicedomain.ErrKeyNotFound
	}

	removed, err := s.repo.Remove(ctx, s.db, keyID, deviceID)
	if err != nil {
		return err
	}
	if !removed {
		return devicedomain.ErrDeviceNotFound
	}
	return nil
}

func (s *Service) ResetAll(ctx context.Context) (int64, error) {
	count, err := s.repo.ResetAll(ctx, s.db)
	if err != nil {
		return 0, err
	}
	s.log.Warn("all device bindings reset", zap.Int64("removed", count))
	return count, nil
}
