// Package domain contains core types for the license key service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AdminOwnerID marks keys issued directly by an administrator rather than a
// reseller.
const AdminOwnerID snowflake.ID = 0

// Key is a license key granting access to one game for a limited set of
// devices until expiry or revocation. Rows are never deleted; revocation is a
// one-way flag so issued key strings stay auditable and can never be reused.
type Key struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	KeyString   string       `gorm:"column:key_string;type:text;not null;uniqueIndex:ux_license_keys_key_string"`
	Game        string       `gorm:"type:text;not null"`
	OwnerID     snowflake.ID `gorm:"column:owner_id;not null;index"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	ExpiresAt   time.Time    `gorm:"column:expires_at;not null"`
	DeviceLimit int          `gorm:"column:device_limit;not null"`
	IsRevoked   bool         `gorm:"column:is_revoked;not null;default:false"`
}

// TableName sets the database table name.
func (Key) TableName() string { return "license_keys" }

// Status is the derived lifecycle state of a key. It is computed at read
// time, never stored.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
	StatusRevoked Status = "REVOKED"
)

// StatusAt derives the key status at the given instant. Revocation wins over
// expiry.
func (k *Key) StatusAt(now time.Time) Status {
	if k.IsRevoked {
		return StatusRevoked
	}
	if !now.Before(k.ExpiresAt) {
		return StatusExpired
	}
	return StatusActive
}

// AdminIssued reports whether the key has no reseller owner.
func (k *Key) AdminIssued() bool { return k.OwnerID == AdminOwnerID }
