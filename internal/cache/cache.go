package cache

import (
	"context"
	"time"

	"clinixpay/backend/internal/domain"
)

type RevenueCache interface {
	Get(ctx context.Context, key string) ([]domain.RevenuePoint, bool, error)
	Set(ctx context.Context, key string, points []domain.RevenuePoint, ttl time.Duration) error
}

type NoopRevenueCache struct{}

func (NoopRevenueCache) Get(_ context.Context, _ string) ([]domain.RevenuePoint, bool, error) {
	return nil, false, nil
}

func (NoopRevenueCache) Set(_ context.Context, _ string, _ []domain.RevenuePoint, _ time.Duration) error {
	return nil
}
