// Package inventory owns the lot-level stock rules: deduction, restoration
// and consumption against a product's lot collection. Functions here
// mutate the product value they are handed and never touch persistence;
// stores reuse ApplyMutation so the exact same rules run under their
// transaction locks.
package inventory

import (
	"fmt"
	"slices"
	"strings"

	"veterinaria/backend/internal/domain"
	"veterinaria/backend/internal/store"
)

// quantityEpsilon absorbs float noise on divisible products measured in
// fractional units.
const quantityEpsilon = 1e-9

// Deduct removes quantity from one of the product's lots and returns a
// snapshot of the lot as it was addressed, so callers can denormalize
// lot number and expiration onto the document line.
//
// Lot-tracked products require an explicit lotID. Non-tracked products
// deduct from the bucket lot (lot number "N/A"). Service products carry
// no stock and the call is a no-op.
func Deduct(product *domain.Product, quantity float64, lotID string) (domain.ProductLot, error) {
	if product.Category == domain.CategoryService {
		return domain.ProductLot{}, nil
	}
	if quantity <= 0 {
		return domain.ProductLot{}, fmt.Errorf("%w: quantity must be positive for %q", store.ErrValidation, product.Name)
	}
	if product.UsesLotTracking && lotID == "" {
		return domain.ProductLot{}, fmt.Errorf("%w: %q tracks lots, a lot must be selected", store.ErrValidation, product.Name)
	}

	idx := -1
	if product.UsesLotTracking {
		idx = slices.IndexFunc(product.Lots, func(l domain.ProductLot) bool { return l.ID == lotID })
		if idx < 0 {
			// A lot that hit zero was pruned; a sale still aimed at it is
			// out of stock, not a missing product.
			return domain.ProductLot{}, insufficientStock(product.Name, lotID, 0, quantity)
		}
	} else {
		idx = bucketIndex(product.Lots)
		if idx < 0 {
			return domain.ProductLot{}, insufficientStock(product.Name, domain.BucketLotNumber, 0, quantity)
		}
	}

	lot := product.Lots[idx]
	if lot.Quantity+quantityEpsilon < quantity {
		return domain.ProductLot{}, insufficientStock(product.Name, lot.LotNumber, lot.Quantity, quantity)
	}
	product.Lots[idx].Quantity -= quantity
	prune(product)
	return lot, nil
}

// Restore puts quantity back, recreating the lot from the snapshotted
// lot number and expiration date if it was pruned after hitting zero.
func Restore(product *domain.Product, quantity float64, lotID string, lotNumber string, expirationDate string) error {
	if product.Category == domain.CategoryService {
		return nil
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive for %q", store.ErrValidation, product.Name)
	}

	if !product.UsesLotTracking {
		idx := EnsureBucket(product, lotID)
		product.Lots[idx].Quantity += quantity
		return nil
	}

	if lotID != "" {
		if idx := slices.IndexFunc(product.Lots, func(l domain.ProductLot) bool { return l.ID == lotID }); idx >= 0 {
			product.Lots[idx].Quantity += quantity
			return nil
		}
	}
	product.Lots = append(product.Lots, domain.ProductLot{
		ID:             lotID,
		LotNumber:      lotNumber,
		Quantity:       quantity,
		ExpirationDate: expirationDate,
	})
	return nil
}

// Consume is stock removal outside a sale (internal use, waste,
// medication administration). Mechanics are identical to Deduct; the
// name marks the caller's intent in audit trails and call sites.
func Consume(product *domain.Product, quantity float64, lotID string) (domain.ProductLot, error) {
	return Deduct(product, quantity, lotID)
}

// EnsureBucket lazily creates the single bucket lot on a non-tracked
// product so purchases, restores and initial stock have a target. The
// bucket always sits at index 0.
func EnsureBucket(product *domain.Product, lotID string) int {
	if idx := bucketIndex(product.Lots); idx >= 0 {
		return idx
	}
	bucket := domain.ProductLot{ID: lotID, LotNumber: domain.BucketLotNumber}
	product.Lots = append([]domain.ProductLot{bucket}, product.Lots...)
	return 0
}

// ApplyMutation replays one persisted stock change against a product.
// Negative deltas deduct, positive deltas restore. Stores call this
// inside their locking boundary so validation happens against the
// authoritative lot state, not the caller's working copy.
func ApplyMutation(product *domain.Product, m store.StockMutation) error {
	if m.Delta < 0 {
		_, err := Deduct(product, -m.Delta, m.LotID)
		return err
	}
	return Restore(product, m.Delta, m.LotID, m.LotNumber, m.ExpirationDate)
}

// SortFEFO orders lots soonest-expiring first, lots without an
// expiration date last. This is advisory for pick lists; deduction
// always trusts the caller-selected lot.
func SortFEFO(lots []domain.ProductLot) {
	slices.SortFunc(lots, func(a domain.ProductLot, b domain.ProductLot) int {
		switch {
		case a.ExpirationDate == "" && b.ExpirationDate == "":
			return strings.Compare(a.ID, b.ID)
		case a.ExpirationDate == "":
			return 1
		case b.ExpirationDate == "":
			return -1
		}
		if c := strings.Compare(a.ExpirationDate, b.ExpirationDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// prune drops lots that hit zero. The bucket lot of a non-tracked
// product survives at zero: it stays the target for the next purchase.
func prune(product *domain.Product) {
	kept := product.Lots[:0]
	for _, lot := range product.Lots {
		if lot.Quantity > quantityEpsilon || (!product.UsesLotTracking && lot.LotNumber == domain.BucketLotNumber) {
			kept = append(kept, lot)
		}
	}
	product.Lots = kept
}

func bucketIndex(lots []domain.ProductLot) int {
	return slices.IndexFunc(lots, func(l domain.ProductLot) bool { return l.LotNumber == domain.BucketLotNumber })
}

func insufficientStock(productName string, lotNumber string, have float64, need float64) error {
	if lotNumber == "" || lotNumber == domain.BucketLotNumber {
		return fmt.Errorf("%w: %q has %.2f, need %.2f", store.ErrInsufficientStock, productName, have, need)
	}
	return fmt.Errorf("%w: %q lot %s has %.2f, need %.2f", store.ErrInsufficientStock, productName, lotNumber, have, need)
}
