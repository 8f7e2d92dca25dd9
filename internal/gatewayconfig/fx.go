package gatewayconfig

import (
	"github.com/smallbiznis/coinflow/internal/gatewayconfig/repository"
	"github.com/smallbiznis/coinflow/internal/gatewayconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gatewayconfig",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
