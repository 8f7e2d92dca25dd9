package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coinflow/internal/coingate"
	"github.com/smallbiznis/coinflow/internal/config"
	"github.com/smallbiznis/coinflow/internal/gatewayconfig/domain"
	paymentdomain "github.com/smallbiznis/coinflow/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Gateway coingate.Factory
	FileCfg *config.GatewayFileHolder `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	gateway coingate.Factory
	fileCfg *config.GatewayFileHolder
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("gatewayconfig.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		gateway: p.Gateway,
		fileCfg: p.FileCfg,
	}
}

func (s *Service) Get(ctx context.Context) (*domain.Summary, error) {
	cfg, err := s.repo.Get(ctx, s.db)
	if errors.Is(err, domain.ErrNotConfigured) {
		return &domain.Summary{Configured: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Summary{
		ReceiveCurrency: cfg.ReceiveCurrency,
		TestMode:        cfg.TestMode,
		Configured:      true,
	}, nil
}

// Upsert validates the submitted settings and proves the auth token against
// the selected environment before anything is persisted. A token that fails
// the connectivity test never reaches the database.
func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (*domain.Summary, error) {
	token := strings.TrimSpace(req.AuthToken)
	if token == "" {
		return nil, domain.ErrInvalidAuthToken
	}
	if _, err := paymentdomain.ReceiveCurrencyForChoice(req.ReceiveCurrency); err != nil {
		return nil, domain.ErrInvalidReceiveCurrency
	}
	env, err := coingate.EnvironmentForMode(req.TestMode)
	if err != nil {
		return nil, domain.ErrInvalidTestMode
	}

	if err := s.gateway(token, env).TestConnection(ctx); err != nil {
		s.log.Warn("gateway credential check failed", zap.Error(err))
		return nil, err
	}

	cfg, err := s.repo.Get(ctx, s.db)
	if errors.Is(err, domain.ErrNotConfigured) {
		cfg = &domain.GatewayConfig{ID: s.genID.Generate()}
	} else if err != nil {
		return nil, err
	}
	cfg.AuthToken = token
	cfg.ReceiveCurrency = req.ReceiveCurrency
	cfg.TestMode = req.TestMode

	if err := s.repo.Save(ctx, s.db, cfg); err != nil {
		return nil, err
	}

	s.log.Info("gateway configuration saved",
		zap.Int("receive_currency", cfg.ReceiveCurrency),
		zap.String("test_mode", cfg.TestMode),
	)
	return &domain.Summary{
		ReceiveCurrency: cfg.ReceiveCurrency,
		TestMode:        cfg.TestMode,
		Configured:      true,
	}, nil
}

func (s *Service) Resolve(ctx context.Context) (*domain.Settings, error) {
	cfg, err := s.repo.Get(ctx, s.db)
	if err == nil {
		return &domain.Settings{
			AuthToken:       cfg.AuthToken,
			ReceiveCurrency: cfg.ReceiveCurrency,
			TestMode:        cfg.TestMode,
		}, nil
	}
	if !errors.Is(err, domain.ErrNotConfigured) {
		return nil, err
	}

	if s.fileCfg != nil {
		file := s.fileCfg.Get()
		if strings.TrimSpace(file.AuthToken) != "" {
			return &domain.Settings{
				AuthToken:       file.AuthToken,
				ReceiveCurrency: file.ReceiveCurrency,
				TestMode:        file.TestMode,
			}, nil
		}
	}
	return nil, domain.ErrNotConfigured
}
