package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidAuthToken       = errors.New("invalid_auth_token")
	ErrInvalidReceiveCurrency = errors.New("invalid_receive_currency_choice")
	ErrInvalidTestMode        = errors.New("invalid_test_mode")
	ErrNotConfigured          = errors.New("gateway_not_configured")
)

// GatewayConfig is the persisted merchant configuration. The auth token is
// validated against the gateway before a row is ever written.
type GatewayConfig struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	AuthToken       string       `json:"-" gorm:"type:text;not null"`
	ReceiveCurrency int          `json:"receive_currency" gorm:"not null"`
	TestMode        string       `json:"test_mode" gorm:"type:text;not null"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null"`
}

func (GatewayConfig) TableName() string { return "gateway_configs" }

type Repository interface {
	Get(ctx context.Context, db *gorm.DB) (*GatewayConfig, error)
	Save(ctx context.Context, db *gorm.DB, cfg *GatewayConfig) error
}

type Service interface {
	Get(ctx context.Context) (*Summary, error)
	Upsert(ctx context.Context, req UpsertRequest) (*Summary, error)
	// Resolve returns the settings checkout and reconciliation run with:
	// the saved row when present, the gateway settings file otherwise.
	Resolve(ctx context.Context) (*Settings, error)
}

type UpsertRequest struct {
	AuthToken       string `json:"auth_token"`
	ReceiveCurrency int    `json:"receive_currency"`
	TestMode        string `json:"test_mode"`
}

// Summary is the API view of the configuration. The token never leaves the
// service.
type Summary struct {
	ReceiveCurrency int    `json:"receive_currency"`
	TestMode        string `json:"test_mode"`
	Configured      bool   `json:"configured"`
}

type Settings struct {
	AuthToken       string
	ReceiveCurrency int
	TestMode        string
}
