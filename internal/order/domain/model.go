package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("order_not_found")

// Order is the local order a checkout attempt pays for. The money value is
// the source of the invoice amount; kept as an exact decimal.
type Order struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	Number      string          `json:"number" gorm:"type:text;not null;uniqueIndex:ux_orders_number"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:numeric(20,8);not null"`
	Currency    string          `json:"currency" gorm:"type:text;not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
}
