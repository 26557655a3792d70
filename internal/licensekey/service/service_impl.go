package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/keymasterhq/keymaster/internal/clock"
	"github.com/keymasterhq/keymaster/internal/config"
	devicedomain "github.com/keymasterhq/keymaster/internal/device/domain"
	keydomain "github.com/keymasterhq/keymaster/internal/licensekey/domain"
	"github.com/keymasterhq/keymaster/pkg/db"
	"github.com/keymasterhq/keymaster/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultExpiryDays = 30

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Games   *config.GameCatalog
	Repo    keydomain.Repository
	Devices devicedomain.Repository
	Credits keydomain.CreditLedger
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	games   *config.GameCatalog
	repo    keydomain.Repository
	devices devicedomain.Repository
	credits keydomain.CreditLedger
}

func New(p Params) keydomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("licensekey.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		games:   p.Games,
		repo:    p.Repo,
		devices: p.Devices,
		credits: p.Credits,
	}
}

func (s *Service) Create(ctx context.Context, req keydomain.CreateRequest) ([]keydomain.Response, error) {
	now := s.clock.Now()

	prefix, ok := s.games.Prefix(strings.TrimSpace(req.Game))
	if !ok {
		return nil, keydomain.ErrInvalidGame
	}
	if req.DeviceLimit < 1 {
		return nil, keydomain.ErrInvalidDeviceLimit
	}

	count := req.Count
	if count == 0 {
		count = 1
	}
	if count < 1 {
		return nil, keydomain.ErrInvalidCount
	}

	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		days := req.Days
		if days < 0 {
			return nil, keydomain.ErrInvalidExpiry
		}
		if days == 0 {
			days = defaultExpiryDays
		}
		expiresAt = now.AddDate(0, 0, days)
	}
	if !expiresAt.After(now) {
		return nil, keydomain.ErrInvalidExpiry
	}

	custom := strings.TrimSpace(req.KeyString)
	if custom != "" {
		existing, err := s.repo.FindByString(ctx, s.db, custom)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, keydomain.ErrKeyExists
		}
	}

	created := make([]keydomain.Key, 0, count)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.OwnerID != keydomain.AdminOwnerID {
			debited, err := s.credits.Debit(ctx, tx, req.OwnerID, count)
			if err != nil {
				return err
			}
			if !debited {
				return keydomain.ErrInsufficientCredits
			}
		}

		for i := 0; i < count; i++ {
			key := keydomain.Key{
				ID:          s.genID.Generate(),
				Game:        strings.TrimSpace(req.Game),
				OwnerID:     req.OwnerID,
				CreatedAt:   now,
				ExpiresAt:   expiresAt.UTC(),
				DeviceLimit: req.DeviceLimit,
			}

			if i == 0 && custom != "" {
				key.KeyString = custom
				if err := s.repo.Insert(ctx, tx, &key); err != nil {
					if db.IsDuplicateKeyErr(err) {
						return keydomain.ErrKeyExists
					}
					return err
				}
			} else if err := s.insertGenerated(ctx, tx, &key, prefix); err != nil {
				return err
			}

			created = append(created, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("license keys created",
		zap.String("game", req.Game),
		zap.Int("count", len(created)),
		zap.Int64("owner_id", int64(req.OwnerID)),
	)

	responses := make([]keydomain.Response, 0, len(created))
	for i := range created {
		responses = append(responses, toResponse(&created[i], now, 0))
	}
	return responses, nil
}

// insertGenerated retries generation when a random string collides with a
// previously issued key. The unique constraint is the arbiter. Postgres
// aborts the whole transaction on a constraint violation, so each attempt
// runs under a savepoint that is rolled back before the next try.
func (s *Service) insertGenerated(ctx context.Context, tx *gorm.DB, key *keydomain.Key, prefix string) error {
	var lastErr error
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		generated, err := generateKeyString(prefix)
		if err != nil {
			return err
		}
		key.KeyString = generated

		sp := fmt.Sprintf("keygen_%d", attempt)
		if err := tx.SavePoint(sp).Error; err != nil {
			return err
		}
		lastErr = s.repo.Insert(ctx, tx, key)
		if lastErr == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(lastErr) {
			return lastErr
		}
		if err := tx.RollbackTo(sp).Error; err != nil {
			return err
		}
		s.log.Warn("generated key string collided, retrying",
			zap.Int("attempt", attempt+1),
		)
	}
	return lastErr
}

func (s *Service) Revoke(ctx context.Context, id snowflake.ID) (*keydomain.Response, error) {
	return s.revoke(ctx, id, nil)
}

func (s *Service) RevokeOwned(ctx context.Context, ownerID, id snowflake.ID) (*keydomain.Response, error) {
	return s.revoke(ctx, id, &ownerID)
}

func (s *Service) revoke(ctx context.Context, id snowflake.ID, ownerID *snowflake.ID) (*keydomain.Response, error) {
	key, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if key == nil || (ownerID != nil && key.OwnerID != *ownerID) {
		return nil, keydomain.ErrNotFound
	}

	if !key.IsRevoked {
		if _, err := s.repo.SetRevoked(ctx, s.db, id); err != nil {
			return nil, err
		}
		key.IsRevoked = true
	}

	count, err := s.devices.CountByKeyID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(key, s.clock.Now(), count)
	return &resp, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*keydomain.Response, error) {
	return s.get(ctx, id, nil)
}

func (s *Service) GetOwned(ctx context.Context, ownerID, id snowflake.ID) (*keydomain.Response, error) {
	return s.get(ctx, id, &ownerID)
}

func (s *Service) get(ctx context.Context, id snowflake.ID, ownerID *snowflake.ID) (*keydomain.Response, error) {
	key, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if key == nil || (ownerID != nil && key.OwnerID != *ownerID) {
		return nil, keydomain.ErrNotFound
	}

	count, err := s.devices.CountByKeyID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(key, s.clock.Now(), count)
	return &resp, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID snowflake.ID) ([]keydomain.Response, error) {
	keys, err := s.repo.FindByOwner(ctx, s.db, ownerID)
	if err != nil {
		return nil, err
	}
	return s.withDeviceCounts(ctx, keys)
}

func (s *Service) ListAdminIssued(ctx context.Context) ([]keydomain.Response, error) {
	return s.ListByOwner(ctx, keydomain.AdminOwnerID)
}

func (s *Service) ListManaged(ctx context.Context, req keydomain.ListRequest) (*keydomain.ListResponse, error) {
	now := s.clock.Now()
	page := req.Page.Normalize()

	keys, total, err := s.repo.ListFiltered(ctx, s.db, keydomain.ListFilter{
		Search: req.Search,
		Game:   req.Game,
		Status: req.Status,
		Now:    now,
	}, page)
	if err != nil {
		return nil, err
	}

	responses, err := s.withDeviceCounts(ctx, keys)
	if err != nil {
		return nil, err
	}
	return &keydomain.ListResponse{
		Keys:     responses,
		PageInfo: pagination.Build(page, total),
	}, nil
}

func (s *Service) CountActive(ctx context.Context) (int64, error) {
	return s.repo.CountActive(ctx, s.db, s.clock.Now())
}

func (s *Service) withDeviceCounts(ctx context.Context, keys []keydomain.Key) ([]keydomain.Response, error) {
	ids := make([]snowflake.ID, 0, len(keys))
	for i := range keys {
		ids = append(ids, keys[i].ID)
	}
	counts, err := s.devices.CountByKeyIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	responses := make([]keydomain.Response, 0, len(keys))
	for i := range keys {
		responses = append(responses, toResponse(&keys[i], now, counts[keys[i].ID]))
	}
	return responses, nil
}

func toResponse(key *keydomain.Key, now time.Time, deviceCount int) keydomain.Response {
	return keydomain.Response{
		ID:          key.ID,
		KeyString:   key.KeyString,
		Game:        key.Game,
		OwnerID:     key.OwnerID,
		CreatedAt:   key.CreatedAt,
		ExpiresAt:   key.ExpiresAt,
		DeviceLimit: key.DeviceLimit,
		IsRevoked:   key.IsRevoked,
		Status:      key.StatusAt(now),
		DeviceCount: deviceCount,
	}
}
