package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"veterinaria/backend/internal/domain"
	"veterinaria/backend/internal/store"
)

func TestApplyStockMutationsAtomicity(t *testing.T) {
	databaseURL := os.Getenv("VETERINARIA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set VETERINARIA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	companyID := fmt.Sprintf("comp-stock-it-%d", stamp)
	productID := fmt.Sprintf("prod-stock-it-%d", stamp)
	lotID := fmt.Sprintf("lot-stock-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM companies WHERE id = $1`, companyID)
	})

	if _, err := s.CreateCompany(ctx, domain.Company{ID: companyID, Name: "Stock IT Clinic", TaxRate: 0.12}); err != nil {
		t.Fatalf("create company: %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{
		ID:              productID,
		CompanyID:       companyID,
		Name:            "Amoxicillin IT",
		Category:        domain.CategoryMedicine,
		UsesLotTracking: true,
		SalePrice:       1.5,
		Lots: []domain.ProductLot{
			{ID: lotID, LotNumber: "AMX-IT-01", Quantity: 10, ExpirationDate: "2030-01-01"},
		},
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	if err := s.ApplyStockMutations(ctx, companyID, []store.StockMutation{
		{ProductID: productID, LotID: lotID, Delta: -3},
	}); err != nil {
		t.Fatalf("deduct: %v", err)
	}

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got := product.TotalStock(); got != 7 {
		t.Fatalf("expected stock 7 after deduction, got %v", got)
	}

	// One good mutation plus one that overdraws: nothing may commit.
	err = s.ApplyStockMutations(ctx, companyID, []store.StockMutation{
		{ProductID: productID, LotID: lotID, Delta: -2},
		{ProductID: productID, LotID: lotID, Delta: -100},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	product, err = s.GetProduct(ctx, productID)
	if err != nil {
		t.Fatalf("get product after failed batch: %v", err)
	}
	if got := product.TotalStock(); got != 7 {
		t.Fatalf("expected stock unchanged at 7 after failed batch, got %v", got)
	}
}

func TestCreateInvoiceAssignsSequentialNumbers(t *testing.T) {
	databaseURL := os.Getenv("VETERINARIA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set VETERINARIA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	companyID := fmt.Sprintf("comp-inv-it-%d", stamp)
	clientID := fmt.Sprintf("cli-inv-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM invoices WHERE company_id = $1`, companyID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, clientID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM companies WHERE id = $1`, companyID)
	})

	if _, err := s.CreateCompany(ctx, domain.Company{ID: companyID, Name: "Invoice IT Clinic", TaxRate: 0.12}); err != nil {
		t.Fatalf("create company: %v", err)
	}
	if _, err := s.CreateClient(ctx, domain.Client{ID: clientID, CompanyID: companyID, Name: "Invoice IT Client"}); err != nil {
		t.Fatalf("create client: %v", err)
	}

	for i, want := range []string{"1", "2", "3"} {
		invoice, err := s.CreateInvoice(ctx, domain.Invoice{
			CompanyID:  companyID,
			ClientID:   clientID,
			ClientName: "Invoice IT Client",
			Status:     domain.InvoiceStatusUnpaid,
			Items: []domain.InvoiceItem{
				{ProductID: "prod-x", Name: "Consultation", Quantity: 1, Price: 25},
			},
		})
		if err != nil {
			t.Fatalf("create invoice %d: %v", i+1, err)
		}
		if invoice.InvoiceNumber != want {
			t.Fatalf("expected invoice number %s, got %s", want, invoice.InvoiceNumber)
		}
	}
}
