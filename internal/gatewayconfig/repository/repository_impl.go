package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/coinflow/internal/gatewayconfig/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Get(ctx context.Context, db *gorm.DB) (*domain.GatewayConfig, error) {
	var item domain.GatewayConfig
	err := db.WithContext(ctx).Order("id").First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotConfigured
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, cfg *domain.GatewayConfig) error {
	return db.WithContext(ctx).Save(cfg).Error
}
