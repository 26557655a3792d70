package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/keymasterhq/keymaster/internal/auth/password"
	"github.com/keymasterhq/keymaster/internal/clock"
	referraldomain "github.com/keymasterhq/keymaster/internal/referral/domain"
	resellerdomain "github.com/keymasterhq/keymaster/internal/reseller/domain"
	"github.com/keymasterhq/keymaster/pkg/db"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      referraldomain.Repository
	Resellers resellerdomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      referraldomain.Repository
	resellers resellerdomain.Repository
}

func New(p Params) referraldomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("referral.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		resellers: p.Resellers,
	}
}

func (s *Service) Generate(ctx context.Context, credits int) (*referraldomain.Token, error) {
	if credits < 0 {
		return nil, referraldomain.ErrInvalidCredits
	}

	token := referraldomain.Token{
		ID:        s.genID.Generate(),
		Token:     ulid.Make().String(),
		CreatedAt: s.clock.Now(),
		Credits:   credits,
	}
	if err := s.repo.Insert(ctx, s.db, &token); err != nil {
		return nil, err
	}

	s.log.Info("referral token generated",
		zap.Int64("token_id", int64(token.ID)),
		zap.Int("credits", credits),
	)
	return &token, nil
}

func (s *Service) List(ctx context.Context) ([]referraldomain.Token, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) CountAvailable(ctx context.Context) (int64, error) {
	return s.repo.CountAvailable(ctx, s.db)
}

func (s *Service) RegisterReseller(ctx context.Context, req referraldomain.RegisterRequest) (*resellerdomain.Reseller, error) {
	username := strings.TrimSpace(req.Username)
	tokenString := strings.TrimSpace(req.ReferralToken)
	if username == "" || req.Password == "" || tokenString == "" {
		return nil, referraldomain.ErrInvalidRegistration
	}

	existing, err := s.resellers.FindByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, resellerdomain.ErrUsernameExists
	}

	token, err := s.repo.FindByToken(ctx, s.db, tokenString)
	if err != nil {
		return nil, err
	}
	if token == nil || token.IsUsed {
		return nil, referraldomain.ErrTokenUnavailable
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	reseller := resellerdomain.Reseller{
		ID:               s.genID.Generate(),
		Username:         username,
		PasswordHash:     hash,
		Credits:          token.Credits,
		RegistrationDate: s.clock.Now(),
		IsActive:         true,
		ReferralToken:    tokenString,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := s.repo.Claim(ctx, tx, tokenString, username)
		if err != nil {
			return err
		}
		if !claimed {
			return referraldomain.ErrTokenUnavailable
		}
		if err := s.resellers.Insert(ctx, tx, &reseller); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return resellerdomain.ErrUsernameExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reseller registered",
		zap.Int64("reseller_id", int64(reseller.ID)),
		zap.Int("credits", reseller.Credits),
	)
	return &reseller, nil
}
