package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/keymasterhq/keymaster/internal/clock"
	keydomain "github.com/keymasterhq/keymaster/internal/licensekey/domain"
	keyrepository "github.com/keymasterhq/keymaster/internal/licensekey/repository"
	resellerdomain "github.com/keymasterhq/keymaster/internal/reseller/domain"
	"github.com/keymasterhq/keymaster/internal/reseller/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type publisherStub struct {
	mu     sync.Mutex
	events []bool
}

func (p *publisherStub) StatusChanged(_ context.Context, _ snowflake.ID, active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, active)
}

func (p *publisherStub) Events() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.events...)
}

func TestAdjustCreditsFloor(t *testing.T) {
	svc, env := setupResellerService(t)
	ctx := context.Background()
	id := env.seedReseller(t, "alice", 10)

	updated, err := svc.AdjustCredits(ctx, id, 5)
	if err != nil {
		t.Fatalf("add credits: %v", err)
	}
	if updated.Credits != 15 {
		t.Fatalf("expected 15 credits, got %d", updated.Credits)
	}

	if _, err := svc.AdjustCredits(ctx, id, -20); err != resellerdomain.ErrCreditsBelowZero {
		t.Fatalf("expected ErrCreditsBelowZero, got %v", err)
	}
	if _, err := svc.AdjustCredits(ctx, id, 0); err != resellerdomain.ErrInvalidDelta {
		t.Fatalf("expected ErrInvalidDelta, got %v", err)
	}
	if _, err := svc.AdjustCredits(ctx, snowflake.ID(999), 5); err != resellerdomain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDebitIsAtomic(t *testing.T) {
	_, env := setupResellerService(t)
	ctx := context.Background()
	id := env.seedReseller(t, "bob", 10)
	ledger := repository.ProvideLedger()

	const attempts = 20
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.Debit(ctx, env.db, id, 1)
			if err != nil {
				t.Errorf("debit: %v", err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	granted := 0
	for ok := range wins {
		if ok {
			granted++
		}
	}
	if granted != 10 {
		t.Fatalf("expected exactly 10 successful debits, got %d", granted)
	}

	var credits int
	if err := env.db.Raw(`SELECT credits FROM resellers WHERE id = ?`, id).Scan(&credits).Error; err != nil {
		t.Fatalf("read credits: %v", err)
	}
	if credits != 0 {
		t.Fatalf("expected 0 credits left, got %d", credits)
	}
}

func TestSetActivePublishes(t *testing.T) {
	svc, env := setupResellerService(t)
	ctx := context.Background()
	id := env.seedReseller(t, "carol", 0)

	suspended, err := svc.SetActive(ctx, id, false)
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if suspended.IsActive {
		t.Fatal("expected suspended account")
	}

	restored, err := svc.SetActive(ctx, id, true)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !restored.IsActive {
		t.Fatal("expected active account")
	}

	events := env.publisher.Events()
	if len(events) != 2 || events[0] || !events[1] {
		t.Fatalf("expected [false true] notifications, got %v", events)
	}

	if _, err := svc.SetActive(ctx, snowflake.ID(999), false); err != resellerdomain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfileKeyStats(t *testing.T) {
	svc, env := setupResellerService(t)
	ctx := context.Background()
	id := env.seedReseller(t, "dave", 3)

	now := env.clock.Now()
	env.seedKey(t, id, "PBGM-AAAAA-AAAAA-AAAAA", now.AddDate(0, 0, 10), false)
	env.seedKey(t, id, "PBGM-BBBBB-BBBBB-BBBBB", now.AddDate(0, 0, -1), false)
	env.seedKey(t, id, "PBGM-CCCCC-CCCCC-CCCCC", now.AddDate(0, 0, 10), true)

	profile, err := svc.Profile(ctx, id)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.TotalKeys != 3 || profile.ActiveKeys != 1 || profile.ExpiredKeys != 1 {
		t.Fatalf("unexpected stats %+v", profile)
	}
	if profile.Credits != 3 || profile.Username != "dave" {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestListOverviews(t *testing.T) {
	svc, env := setupResellerService(t)
	ctx := context.Background()
	first := env.seedReseller(t, "erin", 1)
	env.seedReseller(t, "frank", 2)

	env.seedKey(t, first, "PBGM-AAAAA-AAAAA-AAAAA", env.clock.Now().AddDate(0, 0, 10), false)

	overviews, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(overviews) != 2 {
		t.Fatalf("expected 2 resellers, got %d", len(overviews))
	}
	for _, overview := range overviews {
		if overview.ID == first {
			if overview.TotalKeys != 1 || overview.ActiveKeys != 1 {
				t.Fatalf("unexpected key stats %+v", overview)
			}
		} else if overview.TotalKeys != 0 {
			t.Fatalf("expected no keys for %s, got %d", overview.Username, overview.TotalKeys)
		}
	}
}

type resellerEnv struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	publisher *publisherStub
	keys      keydomain.Repository
}

func setupResellerService(t *testing.T) (resellerdomain.Service, *resellerEnv) {
	t.Helper()

	db := openTestDB(t)
	node := mustNode(t)
	env := &resellerEnv{
		db:        db,
		node:      node,
		clock:     clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		publisher: &publisherStub{},
		keys:      keyrepository.Provide(),
	}

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    env.clock,
		Repo:     repository.Provide(),
		Keys:     env.keys,
		Notifier: env.publisher,
	})
	return svc, env
}

func (e *resellerEnv) seedReseller(t *testing.T, username string, credits int) snowflake.ID {
	t.Helper()
	id := e.node.Generate()
	if err := e.db.Exec(
		`INSERT INTO resellers (id, username, password_hash, credits, registration_date, is_active, referral_token)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, username, "x", credits, e.clock.Now(), true, "token",
	).Error; err != nil {
		t.Fatalf("seed reseller: %v", err)
	}
	return id
}

func (e *resellerEnv) seedKey(t *testing.T, ownerID snowflake.ID, keyString string, expiresAt time.Time, revoked bool) {
	t.Helper()
	if err := e.keys.Insert(context.Background(), e.db, &keydomain.Key{
		ID:          e.node.Generate(),
		KeyString:   keyString,
		Game:        "PUBG MOBILE",
		OwnerID:     ownerID,
		CreatedAt:   e.clock.Now(),
		ExpiresAt:   expiresAt.UTC(),
		DeviceLimit: 1,
		IsRevoked:   revoked,
	}); err != nil {
		t.Fatalf("seed key: %v", err)
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
	if err := db.Exec(`CREATE TABLE license_keys (
		id BIGINT PRIMARY KEY,
		key_string TEXT NOT NULL,
		game TEXT NOT NULL,
		owner_id BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		device_limit INTEGER NOT NULL,
		is_revoked BOOLEAN NOT NULL DEFAULT FALSE
	)`).Error; err != nil {
		t.Fatalf("create license_keys: %v", err)
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
