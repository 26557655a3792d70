package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	MaxTitleLen   = 100
	MaxMessageLen = 500
	MaxButtonLen  = 50
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Update, error)
	Modify(ctx context.Context, id snowflake.ID, req ModifyRequest) (*Update, error)
	Delete(ctx context.Context, id snowflake.ID) error
	GetByID(ctx context.Context, id snowflake.ID) (*Update, error)
	List(ctx context.Context) ([]Update, error)
	// ListActive is the public feed consumed by launchers.
	ListActive(ctx context.Context) ([]Update, error)
	CountByActive(ctx context.Context) (active, inactive int64, err error)
}

type CreateRequest struct {
	Title      string   `json:"title" binding:"required"`
	Message    string   `json:"message" binding:"required"`
	ButtonText string   `json:"buttonText"`
	LinkURL    string   `json:"linkUrl"`
	Games      []string `json:"games"`
	IsActive   *bool    `json:"isActive"`
}

// ModifyRequest carries partial updates; nil fields keep their value.
type ModifyRequest struct {
	Title      *string   `json:"title"`
	Message    *string   `json:"message"`
	ButtonText *string   `json:"buttonText"`
	LinkURL    *string   `json:"linkUrl"`
	Games      *[]string `json:"games"`
	IsActive   *bool     `json:"isActive"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, update *Update) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Update, error)
	List(ctx context.Context, db *gorm.DB) ([]Update, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Update, error)
	Save(ctx context.Context, db *gorm.DB, update *Update) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	CountByActive(ctx context.Context, db *gorm.DB) (active, inactive int64, err error)
}

var (
	ErrInvalidTitle   = errors.New("invalid_title")
	ErrInvalidMessage = errors.New("invalid_message")
	ErrInvalidButton  = errors.New("invalid_button")
	ErrInvalidGame    = errors.New("invalid_game")
	ErrNotFound       = errors.New("update_not_found")
)
