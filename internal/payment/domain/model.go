package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coinflow/internal/coingate"
	"gorm.io/datatypes"
)

// State is the merchant-side payment lifecycle label.
type State string

const (
	StateOpen      State = "open"
	StateNew       State = "new"
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateVoided    State = "voided"
	StateExpired   State = "expired"
	StateCancelled State = "cancelled"
	StateRefunded  State = "refunded"
)

// Payment is the local record of one checkout attempt against the gateway.
// Created in StateOpen before the remote invoice exists; transitioned only by
// the callback reconciler; never deleted. An order accumulates one row per
// attempt, so a rejected checkout can simply be retried.
type Payment struct {
	ID           snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrderID      snowflake.ID    `json:"order_id" gorm:"not null;index:ix_payments_order"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:numeric(20,8);not null"`
	Currency     string          `json:"currency" gorm:"type:text;not null"`
	State        State           `json:"state" gorm:"type:text;not null"`
	RemoteID     *string         `json:"remote_id" gorm:"type:text"`
	RemoteState  *string         `json:"remote_state" gorm:"type:text"`
	RawPayload   datatypes.JSON  `json:"raw_payload" gorm:"type:jsonb"`
	Test         bool            `json:"test" gorm:"not null;default:false"`
	AuthorizedAt time.Time       `json:"authorized_at" gorm:"not null"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// StateForRemoteStatus maps the gateway's invoice status to the local payment
// state. The second return is false for statuses the mapping does not know;
// in that case the local state is left untouched.
func StateForRemoteStatus(status string) (State, bool) {
	switch status {
	case coingate.StatusPaid:
		return StateCompleted, true
	case coingate.StatusPending:
		return StatePending, true
	case coingate.StatusInvalid:
		return StateVoided, true
	case coingate.StatusExpired:
		return StateExpired, true
	case coingate.StatusCanceled:
		return StateCancelled, true
	case coingate.StatusRefunded:
		return StateRefunded, true
	case coingate.StatusNew:
		return StateNew, true
	case coingate.StatusConfirming:
		return StatePending, true
	default:
		return "", false
	}
}

// ReceiveCurrencyForChoice maps the configured ordinal choice to the
// gateway's receive currency code. Unknown ordinals are a configuration
// error, never a default.
func ReceiveCurrencyForChoice(choice int) (string, error) {
	switch choice {
	case 0:
		return "BTC", nil
	case 1:
		return "USDT", nil
	case 2:
		return "EUR", nil
	case 3:
		return "USD", nil
	case 4:
		return "DO_NOT_CONVERT", nil
	default:
		return "", ErrInvalidReceiveCurrency
	}
}
