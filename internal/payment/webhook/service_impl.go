package webhook

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coinflow/internal/coingate"
	gatewayconfigdomain "github.com/smallbiznis/coinflow/internal/gatewayconfig/domain"
	obsmetrics "github.com/smallbiznis/coinflow/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/coinflow/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	lockTTL      = 30 * time.Second
	lockAttempts = 5
	lockBackoff  = 100 * time.Millisecond
)

// Locker serializes notify handling per payment key across instances. A nil
// Locker degrades to the database row lock alone.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       paymentdomain.Repository
	ConfigSvc  gatewayconfigdomain.Service
	Gateway    coingate.Factory
	Locker     Locker              `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service reconciles local payment state from the gateway's callbacks. Only
// the notify path advances state from a remote status; browser redirects are
// untrusted.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       paymentdomain.Repository
	configSvc  gatewayconfigdomain.Service
	gateway    coingate.Factory
	locker     Locker
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.ReconcileService {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		repo:       p.Repo,
		configSvc:  p.ConfigSvc,
		gateway:    p.Gateway,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
	}
}

// OnReturn handles the buyer's browser returning from the hosted checkout.
// The payment must already carry a remote state, meaning a notification has
// reconciled it; otherwise the caller is told to wait. Never writes.
func (s *Service) OnReturn(ctx context.Context, orderID snowflake.ID) error {
	payment, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if payment.RemoteState == nil {
		return paymentdomain.ErrPendingReconciliation
	}
	return nil
}

// OnCancel handles the buyer aborting on the hosted checkout page. The
// payment is marked cancelled unconditionally; repeating the call yields the
// same end state.
func (s *Service) OnCancel(ctx context.Context, orderID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindByOrderIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		remoteState := coingate.StatusCanceled
		payment.State = paymentdomain.StateCancelled
		payment.RemoteState = &remoteState
		payment.UpdatedAt = time.Now().UTC()
		return s.repo.Update(ctx, tx, payment)
	})
}

// OnNotify handles the authoritative server-to-server notification. The
// payload's own status and amount are never trusted; the invoice is
// re-fetched from the gateway on every delivery.
func (s *Service) OnNotify(ctx context.Context, req paymentdomain.NotifyRequest) error {
	remoteID := strings.TrimSpace(req.RemoteID)
	if remoteID == "" {
		return paymentdomain.ErrInvalidNotify
	}
	paymentID, err := snowflake.ParseString(strings.TrimSpace(req.PaymentID))
	if err != nil {
		return paymentdomain.ErrInvalidNotify
	}

	settings, err := s.configSvc.Resolve(ctx)
	if err != nil {
		return err
	}
	env, err := coingate.EnvironmentForMode(settings.TestMode)
	if err != nil {
		return err
	}

	remote, err := s.gateway(settings.AuthToken, env).FindOrder(ctx, remoteID)
	if err != nil {
		var gwErr *coingate.GatewayError
		if errors.As(err, &gwErr) && gwErr.StatusCode == http.StatusNotFound {
			return paymentdomain.ErrInvalidPayment
		}
		return err
	}
	if strings.TrimSpace(remote.Status) == "" {
		return paymentdomain.ErrInvalidPayment
	}

	release, err := s.acquire(ctx, paymentID)
	if err != nil {
		return err
	}
	defer release()

	var applied paymentdomain.State
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindByIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			return err
		}

		state, ok := paymentdomain.StateForRemoteStatus(remote.Status)
		if ok {
			payment.State = state
		} else {
			// An unknown remote status leaves local state untouched.
			// Logged so new gateway statuses get noticed.
			s.log.Warn("unmapped gateway status",
				zap.String("payment_id", paymentID.String()),
				zap.String("remote_status", remote.Status),
			)
			state = payment.State
		}

		// remote_id is written once, at first reconciliation, and never
		// reassigned afterwards.
		if payment.RemoteID == nil {
			rid := strconv.FormatInt(remote.ID, 10)
			payment.RemoteID = &rid
		}
		remoteState := remote.Status
		payment.RemoteState = &remoteState
		if len(remote.Raw) > 0 {
			payment.RawPayload = datatypes.JSON(remote.Raw)
		}
		payment.UpdatedAt = time.Now().UTC()

		applied = state
		return s.repo.Update(ctx, tx, payment)
	})
	if err != nil {
		return err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordNotification(string(applied))
	}
	s.log.Info("payment reconciled",
		zap.String("payment_id", paymentID.String()),
		zap.String("remote_status", remote.Status),
		zap.String("state", string(applied)),
	)
	return nil
}

// acquire serializes notify handling per payment across instances when redis
// is available. The database row lock inside the transaction remains the
// consistency backstop either way.
func (s *Service) acquire(ctx context.Context, paymentID snowflake.ID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	key := "coinflow:payment:" + paymentID.String()
	for attempt := 0; attempt < lockAttempts; attempt++ {
		token, ok, err := s.locker.TryLock(ctx, key, lockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				_ = s.locker.Release(context.WithoutCancel(ctx), key, token)
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	return nil, paymentdomain.ErrPaymentBusy
}
