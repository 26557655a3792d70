package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
	"gorm.io/gorm"
)

type adminRepo struct{}

func ProvideAdmins() authdomain.AdminRepository {
	return &adminRepo{}
}

func (r *adminRepo) Insert(ctx context.Context, db *gorm.DB, admin *authdomain.Admin) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO admins (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		admin.ID,
		admin.Username,
		admin.PasswordHash,
		admin.CreatedAt,
	).Error
}

func (r *adminRepo) FindByUsername(ctx context.Context, db *gorm.DB, username string) (*authdomain.Admin, error) {
	var admin authdomain.Admin
	err := db.WithContext(ctx).Raw(
		`SELECT id, username, password_hash, created_at FROM admins WHERE username = ?`,
		username,
	).Scan(&admin).Error
	if err != nil {
		return nil, err
	}
	if admin.ID == 0 {
		return nil, nil
	}
	return &admin, nil
}

func (r *adminRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*authdomain.Admin, error) {
	var admin authdomain.Admin
	err := db.WithContext(ctx).Raw(
		`SELECT id, username, password_hash, created_at FROM admins WHERE id = ?`,
		id,
	).Scan(&admin).Error
	if err != nil {
		return nil, err
	}
	if admin.ID == 0 {
		return nil, nil
	}
	return &admin, nil
}

func (r *adminRepo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM admins`).Scan(&count).Error
	return count, err
}

type sessionRepo struct{}

func ProvideSessions() authdomain.SessionRepository {
	return &sessionRepo{}
}

const sessionColumns = `id, role, account_id, session_token_hash, user_agent, ip_address, expires_at, revoked_at, created_at, last_seen_at`

func (r *sessionRepo) Insert(ctx context.Context, db *gorm.DB, session *authdomain.Session) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.Role,
		session.AccountID,
		session.SessionTokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.RevokedAt,
		session.CreatedAt,
		session.LastSeenAt,
	).Error
}

func (r *sessionRepo) FindByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*authdomain.Session, error) {
	var session authdomain.Session
	err := db.WithContext(ctx).Raw(
		`SELECT `+sessionColumns+` FROM sessions WHERE session_token_hash = ?`,
		tokenHash,
	).Scan(&session).Error
	if err != nil {
		return nil, err
	}
	if session.ID == 0 {
		return nil, nil
	}
	return &session, nil
}

func (r *sessionRepo) UpdateLastSeen(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE sessions SET last_seen_at = ? WHERE id = ?`,
		at,
		id,
	).Error
}

func (r *sessionRepo) Revoke(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		at,
		id,
	).Error
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM sessions WHERE expires_at <= ?`,
		now,
	)
	return result.RowsAffected, result.Error
}
