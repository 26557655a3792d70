package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/keymasterhq/keymaster/internal/auth/password"
	"github.com/keymasterhq/keymaster/internal/clock"
	referraldomain "github.com/keymasterhq/keymaster/internal/referral/domain"
	"github.com/keymasterhq/keymaster/internal/referral/repository"
	resellerdomain "github.com/keymasterhq/keymaster/internal/reseller/domain"
	resellerrepository "github.com/keymasterhq/keymaster/internal/reseller/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestGenerateToken(t *testing.T) {
	svc, _ := setupReferralService(t)
	ctx := context.Background()

	token, err := svc.Generate(ctx, 25)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if token.Token == "" || token.IsUsed || token.Credits != 25 {
		t.Fatalf("unexpected token %+v", token)
	}

	if _, err := svc.Generate(ctx, -1); err != referraldomain.ErrInvalidCredits {
		t.Fatalf("expected ErrInvalidCredits, got %v", err)
	}

	available, err := svc.CountAvailable(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if available != 1 {
		t.Fatalf("expected 1 available token, got %d", available)
	}
}

func TestRegisterResellerSeedsCredits(t *testing.T) {
	svc, env := setupReferralService(t)
	ctx := context.Background()

	token, err := svc.Generate(ctx, 10)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	reseller, err := svc.RegisterReseller(ctx, referraldomain.RegisterRequest{
		Username:      "alice",
		Password:      "a strong one",
		ReferralToken: token.Token,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reseller.Credits != 10 || !reseller.IsActive {
		t.Fatalf("unexpected reseller %+v", reseller)
	}
	if !password.Verify("a strong one", reseller.PasswordHash) {
		t.Fatal("stored hash must verify the password")
	}

	claimed, err := env.tokens.FindByToken(ctx, env.db, token.Token)
	if err != nil {
		t.Fatalf("find token: %v", err)
	}
	if !claimed.IsUsed || claimed.UsedBy != "alice" {
		t.Fatalf("token must be claimed by alice, got %+v", claimed)
	}

	// Same token again.
	if _, err := svc.RegisterReseller(ctx, referraldomain.RegisterRequest{
		Username:      "bob",
		Password:      "another",
		ReferralToken: token.Token,
	}); err != referraldomain.ErrTokenUnavailable {
		t.Fatalf("expected ErrTokenUnavailable, got %v", err)
	}

	// Same username with a fresh token.
	fresh, err := svc.Generate(ctx, 0)
	if err != nil {
		t.Fatalf("generate fresh: %v", err)
	}
	if _, err := svc.RegisterReseller(ctx, referraldomain.RegisterRequest{
		Username:      "alice",
		Password:      "whatever",
		ReferralToken: fresh.Token,
	}); err != resellerdomain.ErrUsernameExists {
		t.Fatalf("expected ErrUsernameExists, got %v", err)
	}
}

func TestRegisterResellerValidation(t *testing.T) {
	svc, _ := setupReferralService(t)
	ctx := context.Background()

	cases := []referraldomain.RegisterRequest{
		{Username: "", Password: "pw", ReferralToken: "tok"},
		{Username: "user", Password: "", ReferralToken: "tok"},
		{Username: "user", Password: "pw", ReferralToken: ""},
	}
	for _, req := range cases {
		if _, err := svc.RegisterReseller(ctx, req); err != referraldomain.ErrInvalidRegistration {
			t.Fatalf("expected ErrInvalidRegistration for %+v, got %v", req, err)
		}
	}

	if _, err := svc.RegisterReseller(ctx, referraldomain.RegisterRequest{
		Username:      "user",
		Password:      "pw",
		ReferralToken: "no-such-token",
	}); err != referraldomain.ErrTokenUnavailable {
		t.Fatalf("expected ErrTokenUnavailable for unknown token, got %v", err)
	}
}

func TestRegisterResellerTokenRace(t *testing.T) {
	svc, env := setupReferralService(t)
	ctx := context.Background()

	token, err := svc.Generate(ctx, 5)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	const attempts = 10
	var wg sync.WaitGroup
	outcomes := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.RegisterReseller(ctx, referraldomain.RegisterRequest{
				Username:      fmt.Sprintf("racer-%d", n),
				Password:      "pw",
				ReferralToken: token.Token,
			})
			outcomes <- err
		}(i)
	}
	wg.Wait()
	close(outcomes)

	winners := 0
	for err := range outcomes {
		switch err {
		case nil:
			winners++
		case referraldomain.ErrTokenUnavailable:
		default:
			t.Fatalf("unexpected race outcome: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 registration, got %d", winners)
	}

	var count int
	if err := env.db.Raw(`SELECT COUNT(1) FROM resellers`).Scan(&count).Error; err != nil {
		t.Fatalf("count resellers: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reseller row, got %d", count)
	}
}

type referralEnv struct {
	db     *gorm.DB
	tokens referraldomain.Repository
}

func setupReferralService(t *testing.T) (referraldomain.Service, *referralEnv) {
	t.Helper()

	db := openTestDB(t)
	env := &referralEnv{
		db:     db,
		tokens: repository.Provide(),
	}

	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     mustNode(t),
		Clock:     clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Repo:      env.tokens,
		Resellers: resellerrepository.Provide(),
	})
	return svc, env
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
	if err := db.Exec(`CREATE TABLE tokens (
		id BIGINT PRIMARY KEY,
		token TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		used_by TEXT,
		is_used BOOLEAN NOT NULL DEFAULT FALSE,
		credits INTEGER NOT NULL DEFAULT 0
	)`).Error; err != nil {
		t.Fatalf("create tokens: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_tokens_token
		ON tokens (token)`).Error; err != nil {
		t.Fatalf("create token index: %v", err)
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
	if err := db.Exec(`CREATE UNIQUE INDEX ux_resellers_username
		ON resellers (username)`).Error; err != nil {
		t.Fatalf("create reseller index: %v", err)
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
