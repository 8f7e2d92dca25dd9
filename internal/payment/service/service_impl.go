package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coinflow/internal/coingate"
	"github.com/smallbiznis/coinflow/internal/config"
	gatewayconfigdomain "github.com/smallbiznis/coinflow/internal/gatewayconfig/domain"
	obsmetrics "github.com/smallbiznis/coinflow/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/coinflow/internal/order/domain"
	paymentdomain "github.com/smallbiznis/coinflow/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Repo       paymentdomain.Repository
	OrderRepo  orderdomain.Repository
	ConfigSvc  gatewayconfigdomain.Service
	Gateway    coingate.Factory
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service builds hosted invoices: it persists an open payment row first, then
// asks the gateway for a checkout URL.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	cfg        config.Config
	repo       paymentdomain.Repository
	orderRepo  orderdomain.Repository
	configSvc  gatewayconfigdomain.Service
	gateway    coingate.Factory
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.CheckoutService {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.checkout"),
		genID:      p.GenID,
		cfg:        p.Cfg,
		repo:       p.Repo,
		orderRepo:  p.OrderRepo,
		configSvc:  p.ConfigSvc,
		gateway:    p.Gateway,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateInvoice(ctx context.Context, req paymentdomain.CreateInvoiceRequest) (*paymentdomain.CreateInvoiceResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, s.db, req.OrderID)
	if err != nil {
		return nil, err
	}

	settings, err := s.configSvc.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	// Both lookups fail before any network call or local write.
	receiveCurrency, err := paymentdomain.ReceiveCurrencyForChoice(settings.ReceiveCurrency)
	if err != nil {
		return nil, err
	}
	env, err := coingate.EnvironmentForMode(settings.TestMode)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payment := &paymentdomain.Payment{
		ID:           s.genID.Generate(),
		OrderID:      order.ID,
		Amount:       order.TotalAmount,
		Currency:     order.Currency,
		State:        paymentdomain.StateOpen,
		Test:         env == coingate.EnvironmentSandbox,
		AuthorizedAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The open row is written before the gateway is contacted so a failed
	// remote call still leaves a recoverable local record. It is not rolled
	// back on failure.
	if err := s.repo.Insert(ctx, s.db, payment); err != nil {
		return nil, err
	}

	remote, err := s.gateway(settings.AuthToken, env).CreateOrder(ctx, coingate.CreateOrderRequest{
		OrderID:         payment.ID.String(),
		PriceAmount:     order.TotalAmount,
		PriceCurrency:   order.Currency,
		ReceiveCurrency: receiveCurrency,
		CancelURL:       req.CancelURL,
		CallbackURL:     s.cfg.PublicBaseURL + "/payment/notify",
		SuccessURL:      req.ReturnURL,
		Title:           fmt.Sprintf("Order Id: %s", order.ID),
	})
	if err != nil {
		s.record("failure")
		if errors.Is(err, coingate.ErrGatewayUnavailable) {
			return nil, err
		}
		s.log.Warn("invoice creation rejected by gateway",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		return nil, &paymentdomain.CheckoutError{Upstream: upstreamText(err)}
	}

	s.record("success")
	s.log.Info("invoice created",
		zap.String("payment_id", payment.ID.String()),
		zap.Int64("remote_id", remote.ID),
		zap.String("environment", string(env)),
	)
	return &paymentdomain.CreateInvoiceResponse{
		PaymentID:  payment.ID,
		RemoteID:   remote.ID,
		PaymentURL: remote.PaymentURL,
	}, nil
}

func (s *Service) record(outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordInvoiceCreated(outcome)
	}
}

func upstreamText(err error) string {
	var gwErr *coingate.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return err.Error()
}
