package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
	"github.com/keymasterhq/keymaster/internal/auth/password"
	"github.com/keymasterhq/keymaster/internal/clock"
	resellerdomain "github.com/keymasterhq/keymaster/internal/reseller/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sessionTokenBytes = 32
	sessionTTL        = 7 * 24 * time.Hour
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Admins    authdomain.AdminRepository
	Sessions  authdomain.SessionRepository
	Resellers resellerdomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	admins    authdomain.AdminRepository
	sessions  authdomain.SessionRepository
	resellers resellerdomain.Repository
}

func New(p Params) authdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("auth.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		admins:    p.Admins,
		sessions:  p.Sessions,
		resellers: p.Resellers,
	}
}

func (s *Service) LoginAdmin(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, authdomain.ErrInvalidCredentials
	}

	admin, err := s.admins.FindByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if admin == nil || !password.Verify(req.Password, admin.PasswordHash) {
		return nil, authdomain.ErrInvalidCredentials
	}

	return s.mintSession(ctx, authdomain.RoleAdmin, admin.ID, admin.Username, req)
}

func (s *Service) LoginReseller(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, authdomain.ErrInvalidCredentials
	}

	reseller, err := s.resellers.FindByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if reseller == nil || !password.Verify(req.Password, reseller.PasswordHash) {
		return nil, authdomain.ErrInvalidCredentials
	}
	if !reseller.IsActive {
		return nil, authdomain.ErrAccountSuspended
	}

	return s.mintSession(ctx, authdomain.RoleReseller, reseller.ID, reseller.Username, req)
}

func (s *Service) mintSession(ctx context.Context, role authdomain.Role, accountID snowflake.ID, username string, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &authdomain.Session{
		ID:               s.genID.Generate(),
		Role:             role,
		AccountID:        accountID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(req.UserAgent),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		ExpiresAt:        now.Add(sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessions.Insert(ctx, s.db, session); err != nil {
		return nil, err
	}

	s.log.Info("session created",
		zap.String("role", string(role)),
		zap.Int64("account_id", int64(accountID)),
	)
	return &authdomain.LoginResult{
		Role:      role,
		AccountID: accountID,
		Username:  username,
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return authdomain.ErrInvalidSession
	}

	session, err := s.sessions.FindByTokenHash(ctx, s.db, hashToken(token))
	if err != nil {
		return err
	}
	if session == nil {
		return authdomain.ErrInvalidSession
	}
	return s.sessions.Revoke(ctx, s.db, session.ID, s.clock.Now())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*authdomain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, authdomain.ErrInvalidSession
	}

	session, err := s.sessions.FindByTokenHash(ctx, s.db, hashToken(token))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, authdomain.ErrInvalidSession
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, authdomain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, authdomain.ErrSessionExpired
	}

	if err := s.sessions.UpdateLastSeen(ctx, s.db, session.ID, now); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) EnsureAdmin(ctx context.Context, username, plaintext string) error {
	username = strings.TrimSpace(username)
	if username == "" || plaintext == "" {
		return authdomain.ErrInvalidCredentials
	}

	existing, err := s.admins.FindByUsername(ctx, s.db, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := password.Hash(plaintext)
	if err != nil {
		return err
	}
	admin := &authdomain.Admin{
		ID:           s.genID.Generate(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.admins.Insert(ctx, s.db, admin); err != nil {
		return err
	}

	s.log.Info("admin account provisioned", zap.String("username", username))
	return nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
