package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/keymasterhq/keymaster/internal/clock"
	devicedomain "github.com/keymasterhq/keymaster/internal/device/domain"
	keydomain "github.com/keymasterhq/keymaster/internal/licensekey/domain"
	"github.com/keymasterhq/keymaster/internal/observability/metrics"
	verifydomain "github.com/keymasterhq/keymaster/internal/verify/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Keys    keydomain.Repository
	Devices devicedomain.Repository
	Metrics *metrics.VerifyMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	keys    keydomain.Repository
	devices devicedomain.Repository
	metrics *metrics.VerifyMetrics
}

func New(p Params) verifydomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("verify.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		keys:    p.Keys,
		devices: p.Devices,
		metrics: p.Metrics,
	}
}

func (s *Service) Verify(ctx context.Context, req verifydomain.Request) (*verifydomain.Result, error) {
	return s.evaluate(ctx, req, true)
}

func (s *Service) CheckOnly(ctx context.Context, req verifydomain.Request) (*verifydomain.Result, error) {
	return s.evaluate(ctx, req, false)
}

// evaluate walks the decision chain in a fixed order so the first failing
// check determines the response. Store errors propagate to the caller; a
// fault never turns into a "not valid" answer.
func (s *Service) evaluate(ctx context.Context, req verifydomain.Request, register bool) (*verifydomain.Result, error) {
	now := s.clock.Now()
	game := strings.TrimSpace(req.Game)

	key, err := s.keys.FindByString(ctx, s.db, strings.TrimSpace(req.Key))
	if err != nil {
		return nil, err
	}
	if key == nil {
		return s.decided(&verifydomain.Result{
			Message: verifydomain.MsgInvalidKey,
			Outcome: verifydomain.OutcomeInvalidKey,
		}, game), nil
	}
	if key.Game != game {
		return s.decided(&verifydomain.Result{
			Message: verifydomain.MsgWrongGame,
			Outcome: verifydomain.OutcomeWrongGame,
		}, game), nil
	}
	if key.IsRevoked {
		return s.decided(&verifydomain.Result{
			Message: verifydomain.MsgRevoked,
			Outcome: verifydomain.OutcomeRevoked,
		}, game), nil
	}
	if !key.ExpiresAt.After(now) {
		return s.decided(&verifydomain.Result{
			Expiry:  timePtr(key.ExpiresAt),
			Message: verifydomain.MsgExpired,
			Outcome: verifydomain.OutcomeExpired,
		}, game), nil
	}

	devices, err := s.devices.FindByKeyID(ctx, s.db, key.ID)
	if err != nil {
		return nil, err
	}

	deviceID := strings.TrimSpace(req.DeviceID)
	for i := range devices {
		if devices[i].DeviceID == deviceID {
			return s.decided(s.validResult(key, len(devices), verifydomain.OutcomeValid), game), nil
		}
	}

	if len(devices) >= key.DeviceLimit {
		return s.decided(&verifydomain.Result{
			Expiry:         timePtr(key.ExpiresAt),
			DeviceLimit:    intPtr(key.DeviceLimit),
			CurrentDevices: intPtr(len(devices)),
			Message:        verifydomain.MsgLimitReached,
			Outcome:        verifydomain.OutcomeLimitReached,
		}, game), nil
	}

	if !register {
		result := s.validResult(key, len(devices), verifydomain.OutcomeCanRegister)
		result.CanRegister = true
		result.Message = verifydomain.MsgCanRegister
		return s.decided(result, game), nil
	}

	return s.register(ctx, key, deviceID, now, game)
}

// register claims a binding slot. Both races resolve in the caller's favor:
// a concurrent insert of the same pair means the device is registered, and a
// lost capacity race is reported as limit reached with a fresh count.
func (s *Service) register(ctx context.Context, key *keydomain.Key, deviceID string, now time.Time, game string) (*verifydomain.Result, error) {
	device := devicedomain.Device{
		ID:             s.genID.Generate(),
		KeyID:          key.ID,
		DeviceID:       deviceID,
		FirstConnected: now,
	}

	inserted, err := s.devices.InsertIfCapacity(ctx, s.db, &device, key.DeviceLimit)
	if err != nil && !errors.Is(err, devicedomain.ErrAlreadyRegistered) {
		return nil, err
	}

	count, countErr := s.devices.CountByKeyID(ctx, s.db, key.ID)
	if countErr != nil {
		return nil, countErr
	}

	if errors.Is(err, devicedomain.ErrAlreadyRegistered) {
		return s.decided(s.validResult(key, count, verifydomain.OutcomeValid), game), nil
	}
	if !inserted {
		return s.decided(&verifydomain.Result{
			Expiry:         timePtr(key.ExpiresAt),
			DeviceLimit:    intPtr(key.DeviceLimit),
			CurrentDevices: intPtr(count),
			Message:        verifydomain.MsgLimitReached,
			Outcome:        verifydomain.OutcomeLimitReached,
		}, game), nil
	}

	s.log.Info("device registered",
		zap.Int64("key_id", int64(key.ID)),
		zap.String("game", key.Game),
		zap.Int("device_count", count),
		zap.Int("device_limit", key.DeviceLimit),
	)
	s.metrics.RecordRegistration(game)
	return s.decided(s.validResult(key, count, verifydomain.OutcomeRegistered), game), nil
}

func (s *Service) validResult(key *keydomain.Key, count int, outcome verifydomain.Outcome) *verifydomain.Result {
	return &verifydomain.Result{
		Valid:          true,
		Expiry:         timePtr(key.ExpiresAt),
		DeviceLimit:    intPtr(key.DeviceLimit),
		CurrentDevices: intPtr(count),
		Message:        verifydomain.MsgValid,
		Outcome:        outcome,
	}
}

func (s *Service) decided(result *verifydomain.Result, game string) *verifydomain.Result {
	s.metrics.RecordDecision(string(result.Outcome), game)
	return result
}

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(i int) *int { return &i }
