package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/keymasterhq/keymaster/internal/clock"
	"github.com/keymasterhq/keymaster/internal/config"
	updatedomain "github.com/keymasterhq/keymaster/internal/update/domain"
	"github.com/keymasterhq/keymaster/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCodeAttempts = 5

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Games *config.GameCatalog
	Repo  updatedomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	games *config.GameCatalog
	repo  updatedomain.Repository
}

func New(p Params) updatedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("update.service"),
		genID: p.GenID,
		clock: p.Clock,
		games: p.Games,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req updatedomain.CreateRequest) (*updatedomain.Update, error) {
	title := strings.TrimSpace(req.Title)
	message := strings.TrimSpace(req.Message)
	if err := s.validate(title, message, req.ButtonText, req.LinkURL, req.Games); err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	now := s.clock.Now()
	update := updatedomain.Update{
		ID:         s.genID.Generate(),
		Title:      title,
		Message:    message,
		ButtonText: strings.TrimSpace(req.ButtonText),
		LinkURL:    strings.TrimSpace(req.LinkURL),
		Games:      req.Games,
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Slug collisions get a numeric suffix; the unique index arbitrates.
	base := slug.Make(title)
	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		update.Code = base
		if attempt > 0 {
			update.Code = fmt.Sprintf("%s-%d", base, attempt+1)
		}
		err = s.repo.Insert(ctx, s.db, &update)
		if err == nil {
			s.log.Info("online update created", zap.String("code", update.Code))
			return &update, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
	}
	return nil, err
}

func (s *Service) Modify(ctx context.Context, id snowflake.ID, req updatedomain.ModifyRequest) (*updatedomain.Update, error) {
	update, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if update == nil {
		return nil, updatedomain.ErrNotFound
	}

	if req.Title != nil {
		update.Title = strings.TrimSpace(*req.Title)
	}
	if req.Message != nil {
		update.Message = strings.TrimSpace(*req.Message)
	}
	if req.ButtonText != nil {
		update.ButtonText = strings.TrimSpace(*req.ButtonText)
	}
	if req.LinkURL != nil {
		update.LinkURL = strings.TrimSpace(*req.LinkURL)
	}
	if req.Games != nil {
		update.Games = *req.Games
	}
	if req.IsActive != nil {
		update.IsActive = *req.IsActive
	}

	if err := s.validate(update.Title, update.Message, update.ButtonText, update.LinkURL, update.Games); err != nil {
		return nil, err
	}

	update.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, s.db, update); err != nil {
		return nil, err
	}
	return update, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	deleted, err := s.repo.Delete(ctx, s.db, id)
	if err != nil {
		return err
	}
	if !deleted {
		return updatedomain.ErrNotFound
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*updatedomain.Update, error) {
	update, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if update == nil {
		return nil, updatedomain.ErrNotFound
	}
	return update, nil
}

func (s *Service) List(ctx context.Context) ([]updatedomain.Update, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) ListActive(ctx context.Context) ([]updatedomain.Update, error) {
	return s.repo.ListActive(ctx, s.db)
}

func (s *Service) CountByActive(ctx context.Context) (int64, int64, error) {
	return s.repo.CountByActive(ctx, s.db)
}

func (s *Service) validate(title, message, buttonText, linkURL string, games []string) error {
	if title == "" || len(title) > updatedomain.MaxTitleLen {
		return updatedomain.ErrInvalidTitle
	}
	if message == "" || len(message) > updatedomain.MaxMessageLen {
		return updatedomain.ErrInvalidMessage
	}
	buttonText = strings.TrimSpace(buttonText)
	if len(buttonText) > updatedomain.MaxButtonLen {
		return updatedomain.ErrInvalidButton
	}
	// A button without a link is a dead end in the launcher.
	if buttonText != "" && strings.TrimSpace(linkURL) == "" {
		return updatedomain.ErrInvalidButton
	}
	for _, game := range games {
		if !s.games.Valid(game) {
			return updatedomain.ErrInvalidGame
		}
	}
	return nil
}
