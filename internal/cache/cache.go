package cache

import (
	"context"
	"time"

	"storepos/backend/internal/domain"
)

// StatsCache holds the per-store dashboard snapshot between writes.
type StatsCache interface {
	Get(ctx context.Context, storeID int64) (*domain.DashboardStats, bool, error)
	Set(ctx context.Context, storeID int64, value *domain.DashboardStats, ttl time.Duration) error
	Delete(ctx context.Context, storeID int64) error
}

type NoopStatsCache struct{}

func (NoopStatsCache) Get(_ context.Context, _ int64) (*domain.DashboardStats, bool, error) {
	return nil, false, nil
}

func (NoopStatsCache) Set(_ context.Context, _ int64, _ *domain.DashboardStats, _ time.Duration) error {
	return nil
}

func (NoopStatsCache) Delete(_ context.Context, _ int64) error {
	return nil
}
