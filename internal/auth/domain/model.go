// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Admin is an operator account. Admins are provisioned by seeding or by
// other admins, never by public registration.
type Admin struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Username     string       `gorm:"uniqueIndex:ux_admins_username"`
	PasswordHash string
	CreatedAt    time.Time
}

func (Admin) TableName() string { return "admins" }

// Role names the two account tiers a session can belong to.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReseller Role = "reseller"
)

// Session is a persisted login. Only the SHA-256 hash of the cookie token is
// stored; the raw token exists nowhere but the client.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	Role             Role
	AccountID        snowflake.ID
	SessionTokenHash string `gorm:"uniqueIndex:ux_sessions_token_hash"`
	UserAgent        string
	IPAddress        string
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	CreatedAt        time.Time
	LastSeenAt       time.Time
}

func (Session) TableName() string { return "sessions" }
