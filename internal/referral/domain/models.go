package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Token is a single-use registration voucher. Claiming is an atomic flip of
// is_used; whoever wins the update owns the token's credits.
type Token struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Token     string       `gorm:"uniqueIndex:ux_tokens_token" json:"token"`
	CreatedAt time.Time    `json:"created_at"`
	UsedBy    string       `json:"used_by,omitempty"`
	IsUsed    bool         `json:"is_used"`
	Credits   int          `json:"credits"`
}

func (Token) TableName() string { return "tokens" }
