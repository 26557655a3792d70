package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/keymasterhq/keymaster/internal/clock"
	"github.com/keymasterhq/keymaster/internal/config"
	devicerepository "github.com/keymasterhq/keymaster/internal/device/repository"
	keydomain "github.com/keymasterhq/keymaster/internal/licensekey/domain"
	"github.com/keymasterhq/keymaster/internal/licensekey/repository"
	"github.com/keymasterhq/keymaster/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ledgerStub struct {
	mu       sync.Mutex
	balances map[snowflake.ID]int
	calls    int
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{balances: map[snowflake.ID]int{}}
}

func (l *ledgerStub) Debit(ctx context.Context, tx *gorm.DB, ownerID snowflake.ID, amount int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.balances[ownerID] < amount {
		return false, nil
	}
	l.balances[ownerID] -= amount
	return true, nil
}

func (l *ledgerStub) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// collidingKeyRepo forces the first n generated strings to collide so the
// regenerate path is exercised without winning the 36^15 lottery.
type collidingKeyRepo struct {
	keydomain.Repository
	remaining int
	attempts  []string
}

func (r *collidingKeyRepo) Insert(ctx context.Context, conn *gorm.DB, key *keydomain.Key) error {
	r.attempts = append(r.attempts, key.KeyString)
	if r.remaining > 0 {
		r.remaining--
		return gorm.ErrDuplicatedKey
	}
	return r.Repository.Insert(ctx, conn, key)
}

func TestCreateRegeneratesOnCollision(t *testing.T) {
	db := openTestDB(t)
	node := mustNode(t)
	repo := &collidingKeyRepo{Repository: repository.Provide(), remaining: 2}

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Games:   config.NewStaticGameCatalog(config.DefaultGames()),
		Repo:    repo,
		Devices: devicerepository.Provide(),
		Credits: newLedgerStub(),
	})

	responses, err := svc.Create(context.Background(), keydomain.CreateRequest{
		OwnerID:     keydomain.AdminOwnerID,
		Game:        "PUBG MOBILE",
		DeviceLimit: 1,
		Days:        7,
		Count:       1,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected 1 key, got %d", len(responses))
	}

	if len(repo.attempts) != 3 {
		t.Fatalf("expected 3 insert attempts, got %d", len(repo.attempts))
	}
	seen := map[string]bool{}
	for _, attempt := range repo.attempts {
		if seen[attempt] {
			t.Fatalf("collision retry reused string %q", attempt)
		}
		seen[attempt] = true
	}
	if got := repo.attempts[len(repo.attempts)-1]; got != responses[0].KeyString {
		t.Fatalf("stored key %q is not the last attempt %q", responses[0].KeyString, got)
	}
	if count := countKeys(t, db); count != 1 {
		t.Fatalf("expected exactly 1 row after retries, got %d", count)
	}
}

func TestCreateAdminBatch(t *testing.T) {
	svc, env := setupKeyService(t)

	responses, err := svc.Create(context.Background(), keydomain.CreateRequest{
		OwnerID:     keydomain.AdminOwnerID,
		Game:        "PUBG MOBILE",
		DeviceLimit: 2,
		Days:        10,
		Count:       3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(responses) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(responses))
	}

	format := regexp.MustCompile(`^PBGM-[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}$`)
	seen := map[string]bool{}
	for _, resp := range responses {
		if !format.MatchString(resp.KeyString) {
			t.Fatalf("unexpected key format %q", resp.KeyString)
		}
		if seen[resp.KeyString] {
			t.Fatalf("duplicate key string %q in batch", resp.KeyString)
		}
		seen[resp.KeyString] = true
		if resp.Status != keydomain.StatusActive {
			t.Fatalf("expected active key, got %s", resp.Status)
		}
		want := env.clock.Now().AddDate(0, 0, 10)
		if !resp.ExpiresAt.Equal(want) {
			t.Fatalf("expected expiry %v, got %v", want, resp.ExpiresAt)
		}
	}
	if env.ledger.Calls() != 0 {
		t.Fatalf("admin issuance must not touch credits, got %d debits", env.ledger.Calls())
	}
	if count := countKeys(t, env.db); count != 3 {
		t.Fatalf("expected 3 rows, got %d", count)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := setupKeyService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  keydomain.CreateRequest
		want error
	}{
		{"unknown game", keydomain.CreateRequest{Game: "TETRIS", DeviceLimit: 1}, keydomain.ErrInvalidGame},
		{"zero limit", keydomain.CreateRequest{Game: "FREE FIRE", DeviceLimit: 0}, keydomain.ErrInvalidDeviceLimit},
		{"negative count", keydomain.CreateRequest{Game: "FREE FIRE", DeviceLimit: 1, Count: -2}, keydomain.ErrInvalidCount},
		{"negative days", keydomain.CreateRequest{Game: "FREE FIRE", DeviceLimit: 1, Days: -1}, keydomain.ErrInvalidExpiry},
		{"expiry in past", keydomain.CreateRequest{Game: "FREE FIRE", DeviceLimit: 1, ExpiresAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}, keydomain.ErrInvalidExpiry},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.req); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestCreateDefaultExpiry(t *testing.T) {
	svc, env := setupKeyService(t)

	responses, err := svc.Create(context.Background(), keydomain.CreateRequest{
		OwnerID:     keydomain.AdminOwnerID,
		Game:        "FREE FIRE",
		DeviceLimit: 1,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected 1 key by default, got %d", len(responses))
	}
	want := env.clock.Now().AddDate(0, 0, 30)
	if !responses[0].ExpiresAt.Equal(want) {
		t.Fatalf("expected default 30 day expiry %v, got %v", want, responses[0].ExpiresAt)
	}
}

func TestCreateCustomKeyString(t *testing.T) {
	svc, _ := setupKeyService(t)
	ctx := context.Background()

	custom := "FIRE-AAAAA-BBBBB-CCCCC"
	responses, err := svc.Create(ctx, keydomain.CreateRequest{
		OwnerID:     keydomain.AdminOwnerID,
		Game:        "FREE FIRE",
		DeviceLimit: 1,
		KeyString:   custom,
	})
	if err != nil {
		t.Fatalf("create custom: %v", err)
	}
	if responses[0].KeyString != custom {
		t.Fatalf("expected %q, got %q", custom, responses[0].KeyString)
	}

	if _, err := svc.Create(ctx, keydomain.CreateRequest{
		OwnerID:     keydomain.AdminOwnerID,
		Game:        "FREE FIRE",
		DeviceLimit: 1,
		KeyString:   custom,
	}); err != keydomain.ErrKeyExists {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
}

func TestCreateResellerDebitsCredits(t *testing.T) {
	svc, env := setupKeyService(t)
	ctx := context.Background()
	owner := env.node.Generate()
	env.ledger.balances[owner] = 5

	if _, err := svc.Create(ctx, keydomain.CreateRequest{
		OwnerID:     owner,
		Game:        "LAST ISLAND OF SURVIVAL",
		DeviceLimit: 1,
		Count:       3,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := env.ledger.balances[owner]; got != 2 {
		t.Fatalf("expected 2 credits left, got %d", got)
	}

	if _, err := svc.Create(ctx, keydomain.CreateRequest{
		OwnerID:     owner,
		Game:        "LAST ISLAND OF SURVIVAL",
		DeviceLimit: 1,
		Count:       3,
	}); err != keydomain.ErrInsufficientCredits {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if count := countKeys(t, env.db); count != 3 {
		t.Fatalf("failed batch must not persist keys, got %d rows", count)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	svc, _ := setupKeyService(t)
	ctx := context.Background()

	responses, err := svc.Create(ctx, keydomain.CreateRequest{
		OwnerID:     keydomain.AdminOwnerID,
		Game:        "PUBG MOBILE",
		DeviceLimit: 1,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := responses[0].ID

	first, err := svc.Revoke(ctx, id)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !first.IsRevoked || first.Status != keydomain.StatusRevoked {
		t.Fatalf("expected revoked key, got %+v", first)
	}

	second, err := svc.Revoke(ctx, id)
	if err != nil {
		t.Fatalf("revoke again: %v", err)
	}
	if !second.IsRevoked {
		t.Fatal("second revoke must leave the key revoked")
	}

	if _, err := svc.Revoke(ctx, snowflake.ID(424242)); err != keydomain.ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown key, got %v", err)
	}
}

func TestRevokeOwnedEnforcesOwnership(t *testing.T) {
	svc, env := setupKeyService(t)
	ctx := context.Background()
	owner := env.node.Generate()
	env.ledger.balances[owner] = 1

	responses, err := svc.Create(ctx, keydomain.CreateRequest{
		OwnerID:     owner,
		Game:        "PUBG MOBILE",
		DeviceLimit: 1,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := responses[0].ID

	if _, err := svc.RevokeOwned(ctx, env.node.Generate(), id); err != keydomain.ErrNotFound {
		t.Fatalf("foreign owner must get ErrNotFound, got %v", err)
	}
	if resp, err := svc.RevokeOwned(ctx, owner, id); err != nil || !resp.IsRevoked {
		t.Fatalf("owner revoke failed: %v", err)
	}
}

func TestListManagedFilters(t *testing.T) {
	svc, env := setupKeyService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, keydomain.CreateRequest{
		OwnerID:     keydomain.AdminOwnerID,
		Game:        "PUBG MOBILE",
		DeviceLimit: 1,
		Days:        1,
	}); err != nil {
		t.Fatalf("create short-lived: %v", err)
	}
	long, err := svc.Create(ctx, keydomain.CreateRequest{
		OwnerID:     keydomain.AdminOwnerID,
		Game:        "FREE FIRE",
		DeviceLimit: 1,
		Days:        90,
	})
	if err != nil {
		t.Fatalf("create long-lived: %v", err)
	}

	env.clock.Advance(48 * time.Hour)

	active, err := svc.ListManaged(ctx, keydomain.ListRequest{Status: keydomain.StatusActive})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active.Keys) != 1 || active.Keys[0].ID != long[0].ID {
		t.Fatalf("expected only the long-lived key active, got %+v", active.Keys)
	}

	expired, err := svc.ListManaged(ctx, keydomain.ListRequest{Status: keydomain.StatusExpired})
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired.Keys) != 1 || expired.Keys[0].Status != keydomain.StatusExpired {
		t.Fatalf("expected one expired key, got %+v", expired.Keys)
	}

	byGame, err := svc.ListManaged(ctx, keydomain.ListRequest{Game: "FREE FIRE"})
	if err != nil {
		t.Fatalf("list by game: %v", err)
	}
	if len(byGame.Keys) != 1 || byGame.Keys[0].Game != "FREE FIRE" {
		t.Fatalf("expected one FREE FIRE key, got %+v", byGame.Keys)
	}

	bySearch, err := svc.ListManaged(ctx, keydomain.ListRequest{
		Search: strings.ToLower(long[0].KeyString[:9]),
	})
	if err != nil {
		t.Fatalf("list by search: %v", err)
	}
	if len(bySearch.Keys) != 1 || bySearch.Keys[0].ID != long[0].ID {
		t.Fatalf("expected search match on key prefix, got %+v", bySearch.Keys)
	}

	all, err := svc.ListManaged(ctx, keydomain.ListRequest{
		Page: pagination.Params{Page: 1, Limit: 1},
	})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if all.PageInfo.Total != 2 || all.PageInfo.TotalPages != 2 || len(all.Keys) != 1 {
		t.Fatalf("unexpected page info %+v with %d keys", all.PageInfo, len(all.Keys))
	}
}

func TestCountActive(t *testing.T) {
	svc, env := setupKeyService(t)
	ctx := context.Background()

	responses, err := svc.Create(ctx, keydomain.CreateRequest{
		OwnerID:     keydomain.AdminOwnerID,
		Game:        "PUBG MOBILE",
		DeviceLimit: 1,
		Count:       3,
		Days:        5,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Revoke(ctx, responses[0].ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	count, err := svc.CountActive(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 active keys, got %d", count)
	}

	env.clock.Advance(6 * 24 * time.Hour)
	count, err = svc.CountActive(ctx)
	if err != nil {
		t.Fatalf("count after expiry: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 active keys after expiry, got %d", count)
	}
}

type keyServiceEnv struct {
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
	ledger *ledgerStub
}

func setupKeyService(t *testing.T) (keydomain.Service, *keyServiceEnv) {
	t.Helper()

	db := openTestDB(t)
	node := mustNode(t)
	env := &keyServiceEnv{
		db:     db,
		node:   node,
		clock:  clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		ledger: newLedgerStub(),
	}

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   env.clock,
		Games:   config.NewStaticGameCatalog(config.DefaultGames()),
		Repo:    repository.Provide(),
		Devices: devicerepository.Provide(),
		Credits: env.ledger,
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
	prepareKeySchema(t, db)
	return db
}

func prepareKeySchema(t *testing.T, db *gorm.DB) {
	t.Helper()
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
	if err := db.Exec(`CREATE UNIQUE INDEX ux_license_keys_key_string
		ON license_keys (key_string)`).Error; err != nil {
		t.Fatalf("create key index: %v", err)
	}
	if err := db.Exec(`CREATE TABLE devices (
		id BIGINT PRIMARY KEY,
		key_id BIGINT NOT NULL,
		device_id TEXT NOT NULL,
		first_connected DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create devices: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_devices_key_device
		ON devices (key_id, device_id)`).Error; err != nil {
		t.Fatalf("create device index: %v", err)
	}
}

func countKeys(t *testing.T, db *gorm.DB) int {
	t.Helper()
	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM license_keys`).Scan(&count).Error; err != nil {
		t.Fatalf("count keys: %v", err)
	}
	return count
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}
