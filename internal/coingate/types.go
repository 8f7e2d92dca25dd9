package coingate

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Environment selects the CoinGate API host.
type Environment string

const (
	EnvironmentSandbox Environment = "sandbox"
	EnvironmentLive    Environment = "live"

	sandboxBaseURL = "https://api-sandbox.coingate.com/v2"
	liveBaseURL    = "https://api.coingate.com/v2"
)

// ErrInvalidEnvironment is returned when the configured gateway mode is
// neither test nor live.
var ErrInvalidEnvironment = errors.New("invalid_gateway_environment")

// ErrGatewayUnavailable marks transport-level failures (timeout, refused
// connection). Callers may retry; the upstream was never reached.
var ErrGatewayUnavailable = errors.New("gateway_unavailable")

// EnvironmentForMode maps the stored gateway mode to an API environment.
func EnvironmentForMode(mode string) (Environment, error) {
	switch mode {
	case "test":
		return EnvironmentSandbox, nil
	case "live":
		return EnvironmentLive, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEnvironment, mode)
	}
}

func (e Environment) baseURL() string {
	if e == EnvironmentLive {
		return liveBaseURL
	}
	return sandboxBaseURL
}

// GatewayError is a non-2xx response from the CoinGate API. Message carries
// the upstream text verbatim so it can be surfaced to the merchant.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return e.Message
}

// CreateOrderRequest is the invoice creation payload. Immutable once sent.
type CreateOrderRequest struct {
	OrderID         string
	PriceAmount     decimal.Decimal
	PriceCurrency   string
	ReceiveCurrency string
	CancelURL       string
	CallbackURL     string
	SuccessURL      string
	Title           string
}

// Order is the remote invoice as reported by CoinGate.
type Order struct {
	ID              int64           `json:"id"`
	Status          string          `json:"status"`
	OrderID         string          `json:"order_id"`
	PriceAmount     decimal.Decimal `json:"price_amount"`
	PriceCurrency   string          `json:"price_currency"`
	ReceiveCurrency string          `json:"receive_currency"`
	ReceiveAmount   decimal.Decimal `json:"receive_amount"`
	PaymentURL      string          `json:"payment_url"`
	CreatedAt       string          `json:"created_at"`

	// Raw is the undecoded response body, cached on the payment record.
	Raw []byte `json:"-"`
}

// Remote invoice statuses.
const (
	StatusNew        = "new"
	StatusPending    = "pending"
	StatusConfirming = "confirming"
	StatusPaid       = "paid"
	StatusInvalid    = "invalid"
	StatusExpired    = "expired"
	StatusCanceled   = "canceled"
	StatusRefunded   = "refunded"
)
