package coingate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// API is the subset of the CoinGate merchant API this service depends on.
// TestConnection and FindOrder are read-only; CreateOrder is guarded by the
// locally persisted open payment row.
type API interface {
	TestConnection(ctx context.Context) error
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	FindOrder(ctx context.Context, remoteID string) (*Order, error)
}

// Factory builds an API client for the given merchant credentials. Services
// resolve credentials from configuration at call time, so they hold a Factory
// rather than a bound client.
type Factory func(authToken string, env Environment) API

type Client struct {
	baseURL   string
	authToken string
	client    *http.Client
}

type Option func(*Client)

// WithBaseURL overrides the environment base URL (tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func New(authToken string, env Environment, opts ...Option) *Client {
	c := &Client{
		baseURL:   env.baseURL(),
		authToken: strings.TrimSpace(authToken),
		client:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewAPI is the default Factory.
func NewAPI(authToken string, env Environment) API {
	return New(authToken, env)
}

// TestConnection verifies the credentials against the selected environment
// without touching order data.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/auth/test", nil)
	return err
}

// CreateOrder creates a hosted invoice and returns it, including the hosted
// checkout payment_url.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	values := url.Values{}
	values.Set("order_id", req.OrderID)
	values.Set("price_amount", req.PriceAmount.String())
	values.Set("price_currency", req.PriceCurrency)
	values.Set("receive_currency", req.ReceiveCurrency)
	values.Set("cancel_url", req.CancelURL)
	values.Set("callback_url", req.CallbackURL)
	values.Set("success_url", req.SuccessURL)
	values.Set("title", req.Title)

	body, err := c.do(ctx, http.MethodPost, "/orders", values)
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

// FindOrder fetches the authoritative invoice by its CoinGate id. Webhook
// handling must use this round-trip instead of trusting callback fields.
func (c *Client) FindOrder(ctx context.Context, remoteID string) (*Order, error) {
	if strings.TrimSpace(remoteID) == "" {
		return nil, &GatewayError{StatusCode: http.StatusNotFound, Message: "order id is empty"}
	}
	body, err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(remoteID), nil)
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

func (c *Client) do(ctx context.Context, method string, path string, values url.Values) ([]byte, error) {
	var bodyReader io.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.authToken)
	req.Header.Set("Accept", "application/json")
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &GatewayError{
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(body, resp.StatusCode),
		}
	}
	return body, nil
}

func decodeOrder(body []byte) (*Order, error) {
	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	order.Raw = body
	return &order, nil
}

// upstreamMessage extracts the error text CoinGate returned. The message is
// passed through verbatim, never rewritten.
func upstreamMessage(body []byte, statusCode int) string {
	var payload struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
		if reason := strings.TrimSpace(payload.Reason); reason != "" {
			return reason
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return strconv.Itoa(statusCode) + " " + http.StatusText(statusCode)
}
