package migration

import (
	"github.com/smallbiznis/coinflow/internal/config"
	gatewayconfigdomain "github.com/smallbiznis/coinflow/internal/gatewayconfig/domain"
	orderdomain "github.com/smallbiznis/coinflow/internal/order/domain"
	paymentdomain "github.com/smallbiznis/coinflow/internal/payment/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// mysql/sqlite development setups use the model definitions directly.
		return conn.AutoMigrate(
			&orderdomain.Order{},
			&paymentdomain.Payment{},
			&gatewayconfigdomain.GatewayConfig{},
		)
	}),
)
