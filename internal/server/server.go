package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/coinflow/internal/config"
	"github.com/smallbiznis/coinflow/internal/gatewayconfig"
	gatewayconfigdomain "github.com/smallbiznis/coinflow/internal/gatewayconfig/domain"
	obsmetrics "github.com/smallbiznis/coinflow/internal/observability/metrics"
	"github.com/smallbiznis/coinflow/internal/order"
	orderdomain "github.com/smallbiznis/coinflow/internal/order/domain"
	"github.com/smallbiznis/coinflow/internal/payment"
	paymentdomain "github.com/smallbiznis/coinflow/internal/payment/domain"
	"github.com/smallbiznis/coinflow/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	obsmetrics.Module,
	ratelimit.Module,
	order.Module,
	gatewayconfig.Module,
	payment.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	orderRepo    orderdomain.Repository
	checkoutSvc  paymentdomain.CheckoutService
	reconcileSvc paymentdomain.ReconcileService
	configSvc    gatewayconfigdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	OrderRepo    orderdomain.Repository
	CheckoutSvc  paymentdomain.CheckoutService
	ReconcileSvc paymentdomain.ReconcileService
	ConfigSvc    gatewayconfigdomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		log:          p.Log.Named("server"),
		genID:        p.GenID,
		orderRepo:    p.OrderRepo,
		checkoutSvc:  p.CheckoutSvc,
		reconcileSvc: p.ReconcileSvc,
		configSvc:    p.ConfigSvc,
	}
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api/v1")
	api.POST("/orders", s.CreateOrder)
	api.POST("/orders/:order_id/checkout", s.CreateCheckout)
	api.GET("/gateway/config", s.GetGatewayConfig)
	api.PUT("/gateway/config", s.UpsertGatewayConfig)

	// Gateway-facing callback endpoints.
	s.engine.GET("/payment/return/:order_id", s.HandleReturn)
	s.engine.GET("/payment/cancel/:order_id", s.HandleCancel)
	s.engine.POST("/payment/notify", s.HandleNotify)
}
