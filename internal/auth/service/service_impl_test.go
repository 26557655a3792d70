package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
	"github.com/keymasterhq/keymaster/internal/auth/password"
	"github.com/keymasterhq/keymaster/internal/auth/repository"
	"github.com/keymasterhq/keymaster/internal/clock"
	resellerrepository "github.com/keymasterhq/keymaster/internal/reseller/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestEnsureAdminAndLogin(t *testing.T) {
	svc, env := setupAuthService(t)
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "root", "hunter22hunter22"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	// Idempotent; the existing password survives.
	if err := svc.EnsureAdmin(ctx, "root", "different password"); err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}

	result, err := svc.LoginAdmin(ctx, authdomain.LoginRequest{Username: "root", Password: "hunter22hunter22"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Role != authdomain.RoleAdmin || result.Username != "root" || result.RawToken == "" {
		t.Fatalf("unexpected login result %+v", result)
	}
	if !result.ExpiresAt.After(env.clock.Now()) {
		t.Fatal("session must expire in the future")
	}

	if _, err := svc.LoginAdmin(ctx, authdomain.LoginRequest{Username: "root", Password: "different password"}); err != authdomain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.LoginAdmin(ctx, authdomain.LoginRequest{Username: "nobody", Password: "x"}); err != authdomain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestLoginResellerSuspended(t *testing.T) {
	svc, env := setupAuthService(t)
	ctx := context.Background()

	env.seedReseller(t, "shop", "pw-pw-pw-pw", true)
	env.seedReseller(t, "frozen", "pw-pw-pw-pw", false)

	result, err := svc.LoginReseller(ctx, authdomain.LoginRequest{Username: "shop", Password: "pw-pw-pw-pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Role != authdomain.RoleReseller {
		t.Fatalf("expected reseller role, got %s", result.Role)
	}

	if _, err := svc.LoginReseller(ctx, authdomain.LoginRequest{Username: "frozen", Password: "pw-pw-pw-pw"}); err != authdomain.ErrAccountSuspended {
		t.Fatalf("expected ErrAccountSuspended, got %v", err)
	}
	if _, err := svc.LoginReseller(ctx, authdomain.LoginRequest{Username: "shop", Password: "wrong"}); err != authdomain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateLifecycle(t *testing.T) {
	svc, _ := setupAuthService(t)
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "root", "hunter22hunter22"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	result, err := svc.LoginAdmin(ctx, authdomain.LoginRequest{Username: "root", Password: "hunter22hunter22"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	session, err := svc.Authenticate(ctx, result.RawToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session.Role != authdomain.RoleAdmin || session.AccountID != result.AccountID {
		t.Fatalf("unexpected session %+v", session)
	}

	if _, err := svc.Authenticate(ctx, "garbage-token"); err != authdomain.ErrInvalidSession {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	if err := svc.Logout(ctx, result.RawToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, result.RawToken); err != authdomain.ErrSessionRevoked {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestAuthenticateExpiry(t *testing.T) {
	svc, env := setupAuthService(t)
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "root", "hunter22hunter22"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	result, err := svc.LoginAdmin(ctx, authdomain.LoginRequest{Username: "root", Password: "hunter22hunter22"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	env.clock.Advance(8 * 24 * time.Hour)
	if _, err := svc.Authenticate(ctx, result.RawToken); err != authdomain.ErrSessionExpired {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

type authEnv struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func setupAuthService(t *testing.T) (authdomain.Service, *authEnv) {
	t.Helper()

	db := openTestDB(t)
	env := &authEnv{
		db:    db,
		node:  mustNode(t),
		clock: clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}

	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     env.node,
		Clock:     env.clock,
		Admins:    repository.ProvideAdmins(),
		Sessions:  repository.ProvideSessions(),
		Resellers: resellerrepository.Provide(),
	})
	return svc, env
}

func (e *authEnv) seedReseller(t *testing.T, username, plaintext string, active bool) {
	t.Helper()
	hash, err := password.Hash(plaintext)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := e.db.Exec(
		`INSERT INTO resellers (id, username, password_hash, credits, registration_date, is_active, referral_token)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.node.Generate(), username, hash, 0, e.clock.Now(), active, "token",
	).Error; err != nil {
		t.Fatalf("seed reseller: %v", err)
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	if err := db.Exec(`CREATE TABLE admins (
		id BIGINT PRIMARY KEY,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create admins: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_admins_username
		ON admins (username)`).Error; err != nil {
		t.Fatalf("create admin index: %v", err)
	}
	if err := db.Exec(`CREATE TABLE sessions (
		id BIGINT PRIMARY KEY,
		role TEXT NOT NULL,
		account_id BIGINT NOT NULL,
		session_token_hash TEXT NOT NULL,
		user_agent TEXT,
		ip_address TEXT,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME,
		created_at DATETIME NOT NULL,
		last_seen_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create sessions: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_sessions_token_hash
		ON sessions (session_token_hash)`).Error; err != nil {
		t.Fatalf("create session index: %v", err)
	}
	if err := db.Exec(`CREATE TABLE resellers (
		id BIGINT PRIMARY KEY,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		credits INTEGER NOT NULL DEFAULT 0,
		registration_date DATETIME NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		referral_token TEXT NOT NULL,
		metadata JSON
	)`).Error; err != nil {
		t.Fatalf("create resellers: %v", err)
	}
	return db
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}
