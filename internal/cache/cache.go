package cache

import (
	"context"
	"time"

	"veterinaria/backend/internal/domain"
)

// AlertsCache holds the per-company inventory alert report. Entries are
// invalidated whenever stock moves, so a miss is always recomputable.
type AlertsCache interface {
	Get(ctx context.Context, companyID string) (*domain.InventoryAlerts, bool, error)
	Set(ctx context.Context, companyID string, value *domain.InventoryAlerts, ttl time.Duration) error
	Invalidate(ctx context.Context, companyID string) error
}

type NoopAlertsCache struct{}

func (NoopAlertsCache) Get(_ context.Context, _ string) (*domain.InventoryAlerts, bool, error) {
	return nil, false, nil
}

func (NoopAlertsCache) Set(_ context.Context, _ string, _ *domain.InventoryAlerts, _ time.Duration) error {
	return nil
}

func (NoopAlertsCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
