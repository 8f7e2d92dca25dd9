package payment

import (
	"github.com/smallbiznis/coinflow/internal/coingate"
	"github.com/smallbiznis/coinflow/internal/payment/repository"
	paymentservice "github.com/smallbiznis/coinflow/internal/payment/service"
	"github.com/smallbiznis/coinflow/internal/payment/webhook"
	"github.com/smallbiznis/coinflow/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(repository.Provide),
	fx.Provide(func() coingate.Factory { return coingate.NewAPI }),
	fx.Provide(func(l *ratelimit.Locker) webhook.Locker {
		// A typed nil must not reach the interface field.
		if l == nil {
			return nil
		}
		return l
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
