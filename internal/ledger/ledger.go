// Package ledger holds the invoice arithmetic. Everything here is pure:
// the same function computes totals for a preview and for the persisted
// invoice, so the two can never drift apart.
package ledger

import "veterinaria/backend/internal/domain"

type Totals struct {
	Subtotal      float64 `json:"subtotal"`
	TotalDiscount float64 `json:"totalDiscount"`
	Tax           float64 `json:"tax"`
	Total         float64 `json:"total"`
}

// ComputeTotals prices a list of line items at the given tax rate
// (a fraction, e.g. 0.12 for 12%).
//
// A percentage discount applies to price x quantity. A flat
// DiscountAmount applies once to the whole line, not per unit; when both
// are set the percentage wins. Keep that asymmetry: invoices already
// issued were priced this way.
func ComputeTotals(items []domain.InvoiceItem, taxRate float64) Totals {
	var subtotal, totalDiscount float64
	for _, item := range items {
		lineTotal := item.Price * item.Quantity
		subtotal += lineTotal
		totalDiscount += lineDiscount(item, lineTotal)
	}
	taxable := subtotal - totalDiscount
	tax := taxable * taxRate
	return Totals{
		Subtotal:      subtotal,
		TotalDiscount: totalDiscount,
		Tax:           tax,
		Total:         taxable + tax,
	}
}

func lineDiscount(item domain.InvoiceItem, lineTotal float64) float64 {
	if item.DiscountPercentage != nil && *item.DiscountPercentage != 0 {
		return lineTotal * (*item.DiscountPercentage / 100)
	}
	if item.DiscountAmount != nil {
		return *item.DiscountAmount
	}
	return 0
}
