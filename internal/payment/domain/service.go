package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrPaymentNotFound        = errors.New("payment_not_found")
	ErrInvalidPayment         = errors.New("invalid_payment")
	ErrPendingReconciliation  = errors.New("pending_reconciliation")
	ErrInvalidReceiveCurrency = errors.New("invalid_receive_currency")
	ErrInvalidNotify          = errors.New("invalid_notify_request")
	ErrPaymentBusy            = errors.New("payment_busy")
)

// CheckoutError is the merchant-facing failure of an invoice creation. It
// embeds the upstream gateway message verbatim.
type CheckoutError struct {
	Upstream string
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("Error: %s. Please contact the seller for further information.", e.Upstream)
}

// CheckoutService creates hosted invoices for local orders.
type CheckoutService interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*CreateInvoiceResponse, error)
}

type CreateInvoiceRequest struct {
	OrderID   snowflake.ID
	CancelURL string
	ReturnURL string
}

type CreateInvoiceResponse struct {
	PaymentID  snowflake.ID `json:"payment_id"`
	RemoteID   int64        `json:"remote_id"`
	PaymentURL string       `json:"payment_url"`
}

// ReconcileService handles the three gateway callbacks. OnNotify is the only
// entry point allowed to advance payment state from a remote status; the
// browser redirects never set state on their own.
type ReconcileService interface {
	OnReturn(ctx context.Context, orderID snowflake.ID) error
	OnCancel(ctx context.Context, orderID snowflake.ID) error
	OnNotify(ctx context.Context, req NotifyRequest) error
}

// NotifyRequest is the webhook payload. Only the identifiers are read; the
// authoritative status comes from a gateway round-trip.
type NotifyRequest struct {
	RemoteID  string `form:"id"`
	PaymentID string `form:"order_id"`
}
