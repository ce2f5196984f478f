package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"veterinaria/backend/internal/domain"
	"veterinaria/backend/internal/store"
)

func trackedProduct() domain.Product {
	return domain.Product{
		ID:              "prod_amox",
		Name:            "Amoxicillin 250mg",
		Category:        domain.CategoryMedicine,
		UsesLotTracking: true,
		Lots: []domain.ProductLot{
			{ID: "lot_1", LotNumber: "A-100", Quantity: 10, ExpirationDate: "2024-01-01"},
			{ID: "lot_2", LotNumber: "A-200", Quantity: 5, ExpirationDate: "2024-06-01"},
		},
	}
}

func bucketProduct() domain.Product {
	return domain.Product{
		ID:       "prod_food",
		Name:     "Puppy Food 2kg",
		Category: domain.CategoryFood,
		Lots: []domain.ProductLot{
			{ID: "lot_b", LotNumber: domain.BucketLotNumber, Quantity: 8},
		},
	}
}

func TestDeductFromSelectedLot(t *testing.T) {
	product := trackedProduct()
	lot, err := Deduct(&product, 3, "lot_1")
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if lot.LotNumber != "A-100" {
		t.Fatalf("expected snapshot of lot A-100, got %q", lot.LotNumber)
	}
	if product.Lots[0].Quantity != 7 {
		t.Fatalf("expected lot_1 quantity 7, got %v", product.Lots[0].Quantity)
	}
	if product.Lots[1].Quantity != 5 {
		t.Fatalf("expected lot_2 untouched at 5, got %v", product.Lots[1].Quantity)
	}
}

func TestDeductRequiresLotWhenTracked(t *testing.T) {
	product := trackedProduct()
	if _, err := Deduct(&product, 1, ""); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error without lot selection, got %v", err)
	}
}

func TestDeductInsufficientStockLeavesLotsUnchanged(t *testing.T) {
	product := trackedProduct()
	_, err := Deduct(&product, 11, "lot_1")
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if product.Lots[0].Quantity != 10 || product.Lots[1].Quantity != 5 {
		t.Fatalf("lots mutated on failure: %+v", product.Lots)
	}
}

func TestDeductMissingTrackedLotReportsInsufficientStock(t *testing.T) {
	product := trackedProduct()
	if _, err := Deduct(&product, 5, "lot_2"); err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	// lot_2 drained and got pruned; a sale still aimed at it competes for
	// stock that is gone, not for a product that does not exist.
	_, err := Deduct(&product, 1, "lot_2")
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock for a pruned lot, got %v", err)
	}
	if errors.Is(err, store.ErrNotFound) {
		t.Fatalf("pruned lot must not read as not found: %v", err)
	}
}

func TestDeductRestoreRoundTrip(t *testing.T) {
	product := trackedProduct()
	lot, err := Deduct(&product, 4, "lot_2")
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if err := Restore(&product, 4, lot.ID, lot.LotNumber, lot.ExpirationDate); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if product.Lots[1].Quantity != 5 {
		t.Fatalf("expected lot_2 back at 5, got %v", product.Lots[1].Quantity)
	}
}

func TestRestoreRecreatesPrunedLot(t *testing.T) {
	product := trackedProduct()
	lot, err := Deduct(&product, 5, "lot_2")
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if len(product.Lots) != 1 {
		t.Fatalf("expected drained lot to be pruned, have %d lots", len(product.Lots))
	}
	if err := Restore(&product, 5, lot.ID, lot.LotNumber, lot.ExpirationDate); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if len(product.Lots) != 2 {
		t.Fatalf("expected lot recreated, have %d lots", len(product.Lots))
	}
	recreated := product.Lots[1]
	if recreated.LotNumber != "A-200" || recreated.ExpirationDate != "2024-06-01" || recreated.Quantity != 5 {
		t.Fatalf("recreated lot lost its snapshot: %+v", recreated)
	}
}

func TestBucketDeductAndSurvivalAtZero(t *testing.T) {
	product := bucketProduct()
	if _, err := Deduct(&product, 8, ""); err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if len(product.Lots) != 1 || product.Lots[0].Quantity != 0 {
		t.Fatalf("expected bucket lot kept at zero, got %+v", product.Lots)
	}
	if _, err := Deduct(&product, 1, ""); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock on empty bucket, got %v", err)
	}
}

func TestEnsureBucketCreatesOnceAtIndexZero(t *testing.T) {
	product := domain.Product{ID: "prod_shampoo", Name: "Dog Shampoo", Category: domain.CategoryAccessory}
	idx := EnsureBucket(&product, "lot_new")
	if idx != 0 || len(product.Lots) != 1 || product.Lots[0].LotNumber != domain.BucketLotNumber {
		t.Fatalf("expected bucket created at index 0, got idx=%d lots=%+v", idx, product.Lots)
	}
	if again := EnsureBucket(&product, "lot_other"); again != 0 || len(product.Lots) != 1 {
		t.Fatalf("expected existing bucket reused, got idx=%d lots=%+v", again, product.Lots)
	}
}

func TestRestoreCreatesBucketWhenMissing(t *testing.T) {
	product := domain.Product{ID: "prod_litter", Name: "Cat Litter", Category: domain.CategorySupply}
	if err := Restore(&product, 3, "", "", ""); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if len(product.Lots) != 1 || product.Lots[0].LotNumber != domain.BucketLotNumber || product.Lots[0].Quantity != 3 {
		t.Fatalf("expected bucket lot holding 3, got %+v", product.Lots)
	}
}

func TestServiceProductIsExempt(t *testing.T) {
	product := domain.Product{ID: "prod_consult", Name: "Consultation", Category: domain.CategoryService}
	if _, err := Deduct(&product, 3, ""); err != nil {
		t.Fatalf("expected no-op for service product, got %v", err)
	}
	if len(product.Lots) != 0 {
		t.Fatalf("service product grew lots: %+v", product.Lots)
	}
}

func TestConsumeSharesDeductMechanics(t *testing.T) {
	product := trackedProduct()
	if _, err := Consume(&product, 2, "lot_1"); err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if product.Lots[0].Quantity != 8 {
		t.Fatalf("expected 8 after consume, got %v", product.Lots[0].Quantity)
	}
}

func TestSortFEFO(t *testing.T) {
	lots := []domain.ProductLot{
		{ID: "l3", LotNumber: "C", Quantity: 1},
		{ID: "l1", LotNumber: "A", Quantity: 1, ExpirationDate: "2024-06-01"},
		{ID: "l2", LotNumber: "B", Quantity: 1, ExpirationDate: "2024-01-01"},
	}
	SortFEFO(lots)
	if lots[0].ID != "l2" || lots[1].ID != "l1" || lots[2].ID != "l3" {
		t.Fatalf("expected soonest-expiring first and no-expiry last, got %+v", lots)
	}
}

func TestApplyMutationRoundTrip(t *testing.T) {
	product := trackedProduct()
	deduct := store.StockMutation{ProductID: product.ID, LotID: "lot_1", LotNumber: "A-100", ExpirationDate: "2024-01-01", Delta: -6}
	if err := ApplyMutation(&product, deduct); err != nil {
		t.Fatalf("apply deduct failed: %v", err)
	}
	restore := deduct
	restore.Delta = 6
	if err := ApplyMutation(&product, restore); err != nil {
		t.Fatalf("apply restore failed: %v", err)
	}
	if product.Lots[0].Quantity != 10 {
		t.Fatalf("expected lot_1 back at 10, got %v", product.Lots[0].Quantity)
	}
}

func TestAdvisorFlagsLowStockAndExpiringLots(t *testing.T) {
	advisor := NewAdvisor(nil, 0)
	now := time.Date(2023, 12, 20, 10, 0, 0, 0, time.UTC)
	products := []domain.Product{
		trackedProduct(),
		{
			ID:                "prod_gauze",
			Name:              "Gauze Roll",
			Category:          domain.CategorySupply,
			LowStockThreshold: 5,
			Lots:              []domain.ProductLot{{ID: "lot_g", LotNumber: domain.BucketLotNumber, Quantity: 2}},
		},
		{ID: "prod_consult", Name: "Consultation", Category: domain.CategoryService, LowStockThreshold: 1},
	}

	alerts := advisor.Alerts(context.Background(), "comp_1", products, now)
	if len(alerts.LowStock) != 1 || alerts.LowStock[0].ProductID != "prod_gauze" {
		t.Fatalf("expected one low-stock alert for gauze, got %+v", alerts.LowStock)
	}
	if len(alerts.ExpiringLots) != 1 || alerts.ExpiringLots[0].LotID != "lot_1" {
		t.Fatalf("expected lot_1 (expires 2024-01-01) within horizon, got %+v", alerts.ExpiringLots)
	}
}
