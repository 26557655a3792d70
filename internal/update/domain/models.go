package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

// Update is an announcement shown inside the launcher. Games narrows the
// audience; an empty list targets every game.
type Update struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	Code       string         `gorm:"uniqueIndex:ux_online_updates_code" json:"code"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	ButtonText string         `json:"buttonText,omitempty"`
	LinkURL    string         `json:"linkUrl,omitempty"`
	Games      pq.StringArray `gorm:"type:text[]" json:"games"`
	IsActive   bool           `json:"isActive"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (Update) TableName() string { return "online_updates" }
