package inventory

import (
	"context"
	"time"

	"veterinaria/backend/internal/cache"
	"veterinaria/backend/internal/domain"
)

// Advisor builds the restock report: products at or below their
// low-stock threshold and lots expiring inside the warning horizon.
// Reports are cached per company; the service invalidates on every
// stock mutation.
type Advisor struct {
	cache         cache.AlertsCache
	cacheTTL      time.Duration
	expiryHorizon int
}

func NewAdvisor(cacheStore cache.AlertsCache, cacheTTL time.Duration) *Advisor {
	if cacheStore == nil {
		cacheStore = cache.NoopAlertsCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Advisor{
		cache:         cacheStore,
		cacheTTL:      cacheTTL,
		expiryHorizon: 30,
	}
}

func (a *Advisor) Alerts(ctx context.Context, companyID string, products []domain.Product, now time.Time) domain.InventoryAlerts {
	if cached, ok, err := a.cache.Get(ctx, companyID); err == nil && ok {
		return *cached
	}

	alerts := a.build(companyID, products, now)
	_ = a.cache.Set(ctx, companyID, &alerts, a.cacheTTL)
	return alerts
}

func (a *Advisor) Invalidate(ctx context.Context, companyID string) {
	_ = a.cache.Invalidate(ctx, companyID)
}

func (a *Advisor) build(companyID string, products []domain.Product, now time.Time) domain.InventoryAlerts {
	alerts := domain.InventoryAlerts{
		CompanyID:    companyID,
		GeneratedAt:  now.UTC().Format(time.RFC3339),
		LowStock:     []domain.LowStockAlert{},
		ExpiringLots: []domain.ExpiringLotAlert{},
	}
	today := now.UTC().Truncate(24 * time.Hour)

	for _, product := range products {
		if product.Category == domain.CategoryService {
			continue
		}
		stock := product.TotalStock()
		if product.LowStockThreshold > 0 && stock <= product.LowStockThreshold {
			alerts.LowStock = append(alerts.LowStock, domain.LowStockAlert{
				ProductID:    product.ID,
				Name:         product.Name,
				Category:     product.Category,
				CurrentStock: stock,
				Threshold:    product.LowStockThreshold,
			})
		}
		for _, lot := range product.Lots {
			if lot.ExpirationDate == "" || lot.Quantity <= 0 {
				continue
			}
			expiry, err := time.Parse("2006-01-02", lot.ExpirationDate)
			if err != nil {
				continue
			}
			daysLeft := int(expiry.Sub(today).Hours() / 24)
			if daysLeft > a.expiryHorizon {
				continue
			}
			alerts.ExpiringLots = append(alerts.ExpiringLots, domain.ExpiringLotAlert{
				ProductID:      product.ID,
				ProductName:    product.Name,
				LotID:          lot.ID,
				LotNumber:      lot.LotNumber,
				Quantity:       lot.Quantity,
				ExpirationDate: lot.ExpirationDate,
				DaysLeft:       daysLeft,
			})
		}
	}
	return alerts
}
