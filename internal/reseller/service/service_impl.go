package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/keymasterhq/keymaster/internal/clock"
	keydomain "github.com/keymasterhq/keymaster/internal/licensekey/domain"
	"github.com/keymasterhq/keymaster/internal/notify"
	resellerdomain "github.com/keymasterhq/keymaster/internal/reseller/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     resellerdomain.Repository
	Keys     keydomain.Repository
	Notifier notify.Publisher
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     resellerdomain.Repository
	keys     keydomain.Repository
	notifier notify.Publisher
}

func New(p Params) resellerdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reseller.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		keys:     p.Keys,
		notifier: p.Notifier,
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*resellerdomain.Reseller, error) {
	reseller, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if reseller == nil {
		return nil, resellerdomain.ErrNotFound
	}
	return reseller, nil
}

func (s *Service) List(ctx context.Context) ([]resellerdomain.Overview, error) {
	resellers, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	overviews := make([]resellerdomain.Overview, 0, len(resellers))
	for i := range resellers {
		keys, err := s.keys.FindByOwner(ctx, s.db, resellers[i].ID)
		if err != nil {
			return nil, err
		}
		active := 0
		for j := range keys {
			if keys[j].StatusAt(now) == keydomain.StatusActive {
				active++
			}
		}
		overviews = append(overviews, resellerdomain.Overview{
			Reseller:   resellers[i],
			TotalKeys:  len(keys),
			ActiveKeys: active,
		})
	}
	return overviews, nil
}

func (s *Service) Profile(ctx context.Context, id snowflake.ID) (*resellerdomain.Profile, error) {
	reseller, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	keys, err := s.keys.FindByOwner(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	profile := resellerdomain.Profile{
		ID:               reseller.ID,
		Username:         reseller.Username,
		Credits:          reseller.Credits,
		RegistrationDate: reseller.RegistrationDate,
		TotalKeys:        len(keys),
	}
	for i := range keys {
		switch keys[i].StatusAt(now) {
		case keydomain.StatusActive:
			profile.ActiveKeys++
		case keydomain.StatusExpired:
			profile.ExpiredKeys++
		}
	}
	return &profile, nil
}

func (s *Service) AdjustCredits(ctx context.Context, id snowflake.ID, delta int) (*resellerdomain.Reseller, error) {
	if delta == 0 {
		return nil, resellerdomain.ErrInvalidDelta
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	matched, err := s.repo.AdjustCredits(ctx, s.db, id, delta)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, resellerdomain.ErrCreditsBelowZero
	}

	s.log.Info("reseller credits adjusted",
		zap.Int64("reseller_id", int64(id)),
		zap.Int("delta", delta),
	)
	return s.GetByID(ctx, id)
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) (*resellerdomain.Reseller, error) {
	matched, err := s.repo.SetActive(ctx, s.db, id, active)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, resellerdomain.ErrNotFound
	}

	s.log.Info("reseller status changed",
		zap.Int64("reseller_id", int64(id)),
		zap.Bool("active", active),
	)
	s.notifier.StatusChanged(ctx, id, active)
	return s.GetByID(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx, s.db)
}
