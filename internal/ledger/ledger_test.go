package ledger

import (
	"math"
	"testing"

	"veterinaria/backend/internal/domain"
)

func almostEqual(a float64, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestComputeTotalsBasic(t *testing.T) {
	items := []domain.InvoiceItem{
		{ProductID: "p1", Name: "Consultation", Quantity: 1, Price: 30},
		{ProductID: "p2", Name: "Vaccine", Quantity: 2, Price: 12.5},
	}
	totals := ComputeTotals(items, 0.12)
	if !almostEqual(totals.Subtotal, 55) {
		t.Fatalf("expected subtotal 55, got %v", totals.Subtotal)
	}
	if !almostEqual(totals.TotalDiscount, 0) {
		t.Fatalf("expected no discount, got %v", totals.TotalDiscount)
	}
	if !almostEqual(totals.Tax, 6.6) {
		t.Fatalf("expected tax 6.6, got %v", totals.Tax)
	}
	if !almostEqual(totals.Total, 61.6) {
		t.Fatalf("expected total 61.6, got %v", totals.Total)
	}
}

func TestComputeTotalsPercentageDiscountScalesWithQuantity(t *testing.T) {
	items := []domain.InvoiceItem{
		{ProductID: "p1", Quantity: 4, Price: 10, DiscountPercentage: floatPtr(25)},
	}
	totals := ComputeTotals(items, 0)
	if !almostEqual(totals.TotalDiscount, 10) {
		t.Fatalf("expected discount 10 (25%% of 40), got %v", totals.TotalDiscount)
	}
	if !almostEqual(totals.Total, 30) {
		t.Fatalf("expected total 30, got %v", totals.Total)
	}
}

func TestComputeTotalsFlatDiscountAppliesOncePerLine(t *testing.T) {
	// The flat amount reduces the whole line, it is not multiplied by
	// the quantity.
	items := []domain.InvoiceItem{
		{ProductID: "p1", Quantity: 4, Price: 10, DiscountAmount: floatPtr(5)},
	}
	totals := ComputeTotals(items, 0)
	if !almostEqual(totals.TotalDiscount, 5) {
		t.Fatalf("expected flat discount 5, got %v", totals.TotalDiscount)
	}
	if !almostEqual(totals.Total, 35) {
		t.Fatalf("expected total 35, got %v", totals.Total)
	}
}

func TestComputeTotalsPercentageWinsOverFlat(t *testing.T) {
	items := []domain.InvoiceItem{
		{ProductID: "p1", Quantity: 2, Price: 100, DiscountPercentage: floatPtr(10), DiscountAmount: floatPtr(50)},
	}
	totals := ComputeTotals(items, 0)
	if !almostEqual(totals.TotalDiscount, 20) {
		t.Fatalf("expected percentage discount 20 to take precedence, got %v", totals.TotalDiscount)
	}
}

func TestComputeTotalsInvariant(t *testing.T) {
	items := []domain.InvoiceItem{
		{ProductID: "p1", Quantity: 3, Price: 19.99, DiscountPercentage: floatPtr(5)},
		{ProductID: "p2", Quantity: 1, Price: 45, DiscountAmount: floatPtr(3)},
		{ProductID: "p3", Quantity: 2.5, Price: 8.4},
	}
	for _, rate := range []float64{0, 0.08, 0.12, 0.21} {
		totals := ComputeTotals(items, rate)
		want := (totals.Subtotal - totals.TotalDiscount) * (1 + rate)
		if !almostEqual(totals.Total, want) {
			t.Fatalf("rate %v: total %v does not match (subtotal-discount)*(1+rate)=%v", rate, totals.Total, want)
		}
		if totals.Total < 0 {
			t.Fatalf("rate %v: negative total %v from non-negative inputs", rate, totals.Total)
		}
	}
}

func TestComputeTotalsIsPure(t *testing.T) {
	items := []domain.InvoiceItem{
		{ProductID: "p1", Quantity: 2, Price: 7.25, DiscountPercentage: floatPtr(10)},
	}
	first := ComputeTotals(items, 0.12)
	second := ComputeTotals(items, 0.12)
	if first != second {
		t.Fatalf("expected identical results, got %+v then %+v", first, second)
	}
}

func TestComputeTotalsEmptyItems(t *testing.T) {
	totals := ComputeTotals(nil, 0.12)
	if totals.Subtotal != 0 || totals.Total != 0 {
		t.Fatalf("expected zero totals for empty items, got %+v", totals)
	}
}
