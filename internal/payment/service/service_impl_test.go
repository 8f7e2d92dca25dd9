package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coinflow/internal/coingate"
	"github.com/smallbiznis/coinflow/internal/config"
	gatewayconfigdomain "github.com/smallbiznis/coinflow/internal/gatewayconfig/domain"
	orderdomain "github.com/smallbiznis/coinflow/internal/order/domain"
	orderrepo "github.com/smallbiznis/coinflow/internal/order/repository"
	paymentdomain "github.com/smallbiznis/coinflow/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/coinflow/internal/payment/repository"
	paymentservice "github.com/smallbiznis/coinflow/internal/payment/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubConfigService struct {
	settings gatewayconfigdomain.Settings
}

func (s *stubConfigService) Get(ctx context.Context) (*gatewayconfigdomain.Summary, error) {
	return &gatewayconfigdomain.Summary{Configured: true}, nil
}

func (s *stubConfigService) Upsert(ctx context.Context, req gatewayconfigdomain.UpsertRequest) (*gatewayconfigdomain.Summary, error) {
	return nil, errors.New("not implemented")
}

func (s *stubConfigService) Resolve(ctx context.Context) (*gatewayconfigdomain.Settings, error) {
	settings := s.settings
	return &settings, nil
}

type stubGateway struct {
	token string
	env   coingate.Environment

	createResp *coingate.Order
	createErr  error
	createReqs []coingate.CreateOrderRequest
}

func (g *stubGateway) factory() coingate.Factory {
	return func(token string, env coingate.Environment) coingate.API {
		g.token = token
		g.env = env
		return g
	}
}

func (g *stubGateway) TestConnection(ctx context.Context) error { return nil }

func (g *stubGateway) CreateOrder(ctx context.Context, req coingate.CreateOrderRequest) (*coingate.Order, error) {
	g.createReqs = append(g.createReqs, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.createResp, nil
}

func (g *stubGateway) FindOrder(ctx context.Context, remoteID string) (*coingate.Order, error) {
	return nil, errors.New("not implemented")
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&orderdomain.Order{}, &paymentdomain.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newCheckoutService(t *testing.T, db *gorm.DB, gateway *stubGateway, settings gatewayconfigdomain.Settings) (paymentdomain.CheckoutService, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(10)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	svc := paymentservice.NewService(paymentservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Cfg:       config.Config{PublicBaseURL: "https://shop.example.com"},
		Repo:      paymentrepo.Provide(),
		OrderRepo: orderrepo.Provide(),
		ConfigSvc: &stubConfigService{settings: settings},
		Gateway:   gateway.factory(),
	})
	return svc, node
}

func seedOrder(t *testing.T, db *gorm.DB, node *snowflake.Node, amount string, currency string) *orderdomain.Order {
	t.Helper()

	total, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	now := time.Now().UTC()
	order := &orderdomain.Order{
		ID:          node.Generate(),
		Number:      "42",
		TotalAmount: total,
		Currency:    currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := orderrepo.Provide().Insert(context.Background(), db, order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestCreateInvoice(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	gateway := &stubGateway{
		createResp: &coingate.Order{
			ID:         7294,
			Status:     coingate.StatusNew,
			PaymentURL: "https://sandbox.coingate.com/invoice/abc",
		},
	}
	svc, node := newCheckoutService(t, db, gateway, gatewayconfigdomain.Settings{
		AuthToken:       "token",
		ReceiveCurrency: 3,
		TestMode:        "test",
	})
	order := seedOrder(t, db, node, "100.00", "USD")

	resp, err := svc.CreateInvoice(ctx, paymentdomain.CreateInvoiceRequest{
		OrderID:   order.ID,
		CancelURL: "https://shop.example.com/cancel",
		ReturnURL: "https://shop.example.com/return",
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if resp.PaymentURL != "https://sandbox.coingate.com/invoice/abc" {
		t.Fatalf("unexpected payment url %s", resp.PaymentURL)
	}
	if resp.RemoteID != 7294 {
		t.Fatalf("expected remote id 7294, got %d", resp.RemoteID)
	}

	if len(gateway.createReqs) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(gateway.createReqs))
	}
	req := gateway.createReqs[0]
	if req.PriceCurrency != "USD" {
		t.Fatalf("expected price_currency USD, got %s", req.PriceCurrency)
	}
	if !req.PriceAmount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected price_amount 100.00, got %s", req.PriceAmount)
	}
	if req.ReceiveCurrency != "USD" {
		t.Fatalf("expected receive_currency USD, got %s", req.ReceiveCurrency)
	}
	if gateway.env != coingate.EnvironmentSandbox {
		t.Fatalf("expected sandbox environment, got %s", gateway.env)
	}
	if req.Title != fmt.Sprintf("Order Id: %s", order.ID) {
		t.Fatalf("unexpected title %q", req.Title)
	}
	if req.CallbackURL != "https://shop.example.com/payment/notify" {
		t.Fatalf("unexpected callback url %q", req.CallbackURL)
	}

	payment, err := paymentrepo.Provide().FindByID(ctx, db, resp.PaymentID)
	if err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.State != paymentdomain.StateOpen {
		t.Fatalf("expected open payment, got %s", payment.State)
	}
	if payment.OrderID != order.ID {
		t.Fatalf("payment bound to wrong order")
	}
	if !payment.Test {
		t.Fatalf("expected test flag on sandbox payment")
	}
	if payment.RemoteID != nil {
		t.Fatalf("remote id must stay unset until reconciliation")
	}
}

func TestCreateInvoiceReceiveCurrencyChoices(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	gateway := &stubGateway{
		createResp: &coingate.Order{ID: 1, PaymentURL: "https://sandbox.coingate.com/invoice/x"},
	}
	svc, node := newCheckoutService(t, db, gateway, gatewayconfigdomain.Settings{
		AuthToken:       "token",
		ReceiveCurrency: 2,
		TestMode:        "test",
	})
	order := seedOrder(t, db, node, "10.00", "EUR")

	if _, err := svc.CreateInvoice(ctx, paymentdomain.CreateInvoiceRequest{OrderID: order.ID}); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if got := gateway.createReqs[0].ReceiveCurrency; got != "EUR" {
		t.Fatalf("expected receive_currency EUR for choice 2, got %s", got)
	}
}

func TestCreateInvoiceUnknownReceiveCurrency(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	gateway := &stubGateway{}
	svc, node := newCheckoutService(t, db, gateway, gatewayconfigdomain.Settings{
		AuthToken:       "token",
		ReceiveCurrency: 5,
		TestMode:        "test",
	})
	order := seedOrder(t, db, node, "10.00", "EUR")

	_, err := svc.CreateInvoice(ctx, paymentdomain.CreateInvoiceRequest{OrderID: order.ID})
	if !errors.Is(err, paymentdomain.ErrInvalidReceiveCurrency) {
		t.Fatalf("expected ErrInvalidReceiveCurrency, got %v", err)
	}
	if len(gateway.createReqs) != 0 {
		t.Fatalf("gateway must not be called for an unknown currency choice")
	}
}

func TestCreateInvoiceGatewayFailureKeepsOpenPayment(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	gateway := &stubGateway{
		createErr: &coingate.GatewayError{StatusCode: 422, Message: "Price amount is invalid"},
	}
	svc, node := newCheckoutService(t, db, gateway, gatewayconfigdomain.Settings{
		AuthToken:       "token",
		ReceiveCurrency: 3,
		TestMode:        "test",
	})
	order := seedOrder(t, db, node, "10.00", "USD")

	_, err := svc.CreateInvoice(ctx, paymentdomain.CreateInvoiceRequest{OrderID: order.ID})
	var checkoutErr *paymentdomain.CheckoutError
	if !errors.As(err, &checkoutErr) {
		t.Fatalf("expected CheckoutError, got %v", err)
	}
	if checkoutErr.Error() != "Error: Price amount is invalid. Please contact the seller for further information." {
		t.Fatalf("unexpected merchant message %q", checkoutErr.Error())
	}

	// The open row is kept for manual recovery, not rolled back.
	payment, err := paymentrepo.Provide().FindByOrderID(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.State != paymentdomain.StateOpen {
		t.Fatalf("expected open payment after gateway failure, got %s", payment.State)
	}
}

func TestCreateInvoiceRetryAfterGatewayRejection(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	gateway := &stubGateway{
		createErr: &coingate.GatewayError{StatusCode: 422, Message: "Price amount is invalid"},
	}
	svc, node := newCheckoutService(t, db, gateway, gatewayconfigdomain.Settings{
		AuthToken:       "token",
		ReceiveCurrency: 3,
		TestMode:        "test",
	})
	order := seedOrder(t, db, node, "10.00", "USD")

	_, err := svc.CreateInvoice(ctx, paymentdomain.CreateInvoiceRequest{OrderID: order.ID})
	var checkoutErr *paymentdomain.CheckoutError
	if !errors.As(err, &checkoutErr) {
		t.Fatalf("expected CheckoutError on first attempt, got %v", err)
	}

	// The gateway recovers; the buyer retries checkout for the same order.
	gateway.createErr = nil
	gateway.createResp = &coingate.Order{
		ID:         8311,
		Status:     coingate.StatusNew,
		PaymentURL: "https://sandbox.coingate.com/invoice/retry",
	}

	resp, err := svc.CreateInvoice(ctx, paymentdomain.CreateInvoiceRequest{OrderID: order.ID})
	if err != nil {
		t.Fatalf("retry after gateway rejection: %v", err)
	}
	if resp.RemoteID != 8311 {
		t.Fatalf("expected remote id 8311, got %d", resp.RemoteID)
	}

	// Each attempt gets its own row; the abandoned one stays behind.
	var count int64
	if err := db.Model(&paymentdomain.Payment{}).Where("order_id = ?", order.ID).Count(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected one payment per attempt, got %d rows", count)
	}

	// Callbacks resolve to the newest attempt.
	latest, err := paymentrepo.Provide().FindByOrderID(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("load latest payment: %v", err)
	}
	if latest.ID != resp.PaymentID {
		t.Fatalf("expected newest attempt %s, got %s", resp.PaymentID, latest.ID)
	}
}

func TestCreateInvoiceGatewayUnavailable(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	gateway := &stubGateway{
		createErr: fmt.Errorf("%w: connection refused", coingate.ErrGatewayUnavailable),
	}
	svc, node := newCheckoutService(t, db, gateway, gatewayconfigdomain.Settings{
		AuthToken:       "token",
		ReceiveCurrency: 3,
		TestMode:        "live",
	})
	order := seedOrder(t, db, node, "10.00", "USD")

	_, err := svc.CreateInvoice(ctx, paymentdomain.CreateInvoiceRequest{OrderID: order.ID})
	if !errors.Is(err, coingate.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable to propagate, got %v", err)
	}
	if gateway.env != coingate.EnvironmentLive {
		t.Fatalf("expected live environment, got %s", gateway.env)
	}
}
