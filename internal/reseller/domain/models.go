package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Reseller is a credit-funded account that issues its own license keys.
// Credits never go below zero; the debit query enforces that, not the code
// around it.
type Reseller struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	Username         string            `gorm:"uniqueIndex:ux_resellers_username" json:"username"`
	PasswordHash     string            `json:"-"`
	Credits          int               `json:"credits"`
	RegistrationDate time.Time         `json:"registration_date"`
	IsActive         bool              `json:"is_active"`
	ReferralToken    string            `json:"referral_token"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
}

func (Reseller) TableName() string { return "resellers" }
