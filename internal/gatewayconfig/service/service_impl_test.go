package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coinflow/internal/coingate"
	"github.com/smallbiznis/coinflow/internal/gatewayconfig/domain"
	"github.com/smallbiznis/coinflow/internal/gatewayconfig/repository"
	"github.com/smallbiznis/coinflow/internal/gatewayconfig/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubGateway struct {
	token   string
	env     coingate.Environment
	testErr error
	calls   int
}

func (g *stubGateway) factory() coingate.Factory {
	return func(token string, env coingate.Environment) coingate.API {
		g.token = token
		g.env = env
		return g
	}
}

func (g *stubGateway) TestConnection(ctx context.Context) error {
	g.calls++
	return g.testErr
}

func (g *stubGateway) CreateOrder(ctx context.Context, req coingate.CreateOrderRequest) (*coingate.Order, error) {
	return nil, errors.New("not implemented")
}

func (g *stubGateway) FindOrder(ctx context.Context, remoteID string) (*coingate.Order, error) {
	return nil, errors.New("not implemented")
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.GatewayConfig{}))
	return db
}

func newService(t *testing.T, db *gorm.DB, gateway *stubGateway) domain.Service {
	t.Helper()

	node, err := snowflake.NewNode(20)
	require.NoError(t, err)

	return service.NewService(service.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repository.Provide(),
		Gateway: gateway.factory(),
	})
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gateway := &stubGateway{}
	svc := newService(t, db, gateway)

	summary, err := svc.Upsert(ctx, domain.UpsertRequest{
		AuthToken:       "valid-token",
		ReceiveCurrency: 1,
		TestMode:        "live",
	})
	require.NoError(t, err)
	require.True(t, summary.Configured)
	require.Equal(t, 1, summary.ReceiveCurrency)
	require.Equal(t, "live", summary.TestMode)

	// The token is proven against the environment the merchant picked.
	require.Equal(t, 1, gateway.calls)
	require.Equal(t, "valid-token", gateway.token)
	require.Equal(t, coingate.EnvironmentLive, gateway.env)

	settings, err := svc.Resolve(ctx)
	require.NoError(t, err)
	require.Equal(t, "valid-token", settings.AuthToken)
	require.Equal(t, 1, settings.ReceiveCurrency)
}

func TestUpsertReplacesExistingRow(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gateway := &stubGateway{}
	svc := newService(t, db, gateway)

	_, err := svc.Upsert(ctx, domain.UpsertRequest{AuthToken: "first", ReceiveCurrency: 0, TestMode: "test"})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, domain.UpsertRequest{AuthToken: "second", ReceiveCurrency: 4, TestMode: "live"})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&domain.GatewayConfig{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	settings, err := svc.Resolve(ctx)
	require.NoError(t, err)
	require.Equal(t, "second", settings.AuthToken)
	require.Equal(t, 4, settings.ReceiveCurrency)
	require.Equal(t, "live", settings.TestMode)
}

func TestUpsertValidation(t *testing.T) {
	tests := []struct {
		name string
		req  domain.UpsertRequest
		want error
	}{
		{"empty token", domain.UpsertRequest{AuthToken: "  ", ReceiveCurrency: 0, TestMode: "test"}, domain.ErrInvalidAuthToken},
		{"ordinal too high", domain.UpsertRequest{AuthToken: "t", ReceiveCurrency: 5, TestMode: "test"}, domain.ErrInvalidReceiveCurrency},
		{"negative ordinal", domain.UpsertRequest{AuthToken: "t", ReceiveCurrency: -1, TestMode: "test"}, domain.ErrInvalidReceiveCurrency},
		{"bad mode", domain.UpsertRequest{AuthToken: "t", ReceiveCurrency: 0, TestMode: "sandbox"}, domain.ErrInvalidTestMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := setupTestDB(t)
			gateway := &stubGateway{}
			svc := newService(t, db, gateway)

			_, err := svc.Upsert(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
			require.Zero(t, gateway.calls, "validation failures must not hit the gateway")

			var count int64
			require.NoError(t, db.Model(&domain.GatewayConfig{}).Count(&count).Error)
			require.Zero(t, count, "nothing may be persisted")
		})
	}
}

func TestUpsertRejectedTokenNotPersisted(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	gateway := &stubGateway{
		testErr: &coingate.GatewayError{StatusCode: 401, Message: "Invalid authentication token"},
	}
	svc := newService(t, db, gateway)

	_, err := svc.Upsert(ctx, domain.UpsertRequest{AuthToken: "bad", ReceiveCurrency: 0, TestMode: "test"})
	var gwErr *coingate.GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, "Invalid authentication token", gwErr.Message)

	var count int64
	require.NoError(t, db.Model(&domain.GatewayConfig{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestGetUnconfigured(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newService(t, db, &stubGateway{})

	summary, err := svc.Get(ctx)
	require.NoError(t, err)
	require.False(t, summary.Configured)

	_, err = svc.Resolve(ctx)
	require.ErrorIs(t, err, domain.ErrNotConfigured)
}
