package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"veterinaria/backend/internal/domain"
	"veterinaria/backend/internal/inventory"
	"veterinaria/backend/internal/ledger"
	"veterinaria/backend/internal/store"
	"veterinaria/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service holds the clinic's business rules. Persistence goes through
// the Repository; stock arithmetic through the inventory package, so
// validation here and validation inside the store's locking boundary
// run the exact same rules.
type Service struct {
	repo    store.Repository
	advisor *inventory.Advisor
}

func New(repo store.Repository, advisor *inventory.Advisor) *Service {
	if advisor == nil {
		advisor = inventory.NewAdvisor(nil, 0)
	}
	return &Service{repo: repo, advisor: advisor}
}

func (s *Service) logAudit(ctx context.Context, companyID string, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		CompanyID:  companyID,
		ActorEmail: actor.Email,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s entity=%s: %v", action, entityID, err)
	}
}

func (s *Service) actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.Name != "" {
		return actor.Name
	}
	return "system"
}

// --- stock planning ---

// workingCopies loads and clones every product the items reference.
// Item ids with no matching product are tolerated: ad hoc service lines
// carry generated ids that never hit inventory.
func (s *Service) workingCopies(ctx context.Context, items []domain.InvoiceItem) (map[string]*domain.Product, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	loaded, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	working := make(map[string]*domain.Product, len(loaded))
	for id, product := range loaded {
		clone := product
		working[id] = &clone
	}
	return working, nil
}

// planDeductions validates every line against the working copies and
// returns the items with their lot metadata snapshotted plus the
// mutation batch for the store. The store re-runs the same rules under
// its lock before committing.
func planDeductions(working map[string]*domain.Product, items []domain.InvoiceItem) ([]domain.InvoiceItem, []store.StockMutation, error) {
	planned := make([]domain.InvoiceItem, len(items))
	copy(planned, items)
	mutations := make([]store.StockMutation, 0, len(items))

	for i, item := range planned {
		if item.Quantity <= 0 {
			return nil, nil, fmt.Errorf("%w: quantity must be positive for %q", store.ErrValidation, item.Name)
		}
		product, ok := working[item.ProductID]
		if !ok || product.Category == domain.CategoryService {
			continue
		}
		lot, err := inventory.Deduct(product, item.Quantity, item.LotID)
		if err != nil {
			return nil, nil, err
		}
		mutation := store.StockMutation{
			ProductID:      product.ID,
			LotNumber:      lot.LotNumber,
			ExpirationDate: lot.ExpirationDate,
			Delta:          -item.Quantity,
		}
		if product.UsesLotTracking {
			mutation.LotID = lot.ID
			planned[i].LotID = lot.ID
			planned[i].LotNumber = lot.LotNumber
		}
		mutations = append(mutations, mutation)
	}
	return planned, mutations, nil
}

// planRestores is the reversal of planDeductions, driven by the lot
// snapshots on the stored document lines.
func planRestores(working map[string]*domain.Product, items []domain.InvoiceItem) ([]store.StockMutation, error) {
	mutations := make([]store.StockMutation, 0, len(items))
	for _, item := range items {
		product, ok := working[item.ProductID]
		if !ok || product.Category == domain.CategoryService {
			continue
		}
		if err := inventory.Restore(product, item.Quantity, item.LotID, item.LotNumber, ""); err != nil {
			return nil, err
		}
		mutations = append(mutations, store.StockMutation{
			ProductID: product.ID,
			LotID:     item.LotID,
			LotNumber: item.LotNumber,
			Delta:     item.Quantity,
		})
	}
	return mutations, nil
}

// compensateStock reapplies the inverse of an already-committed mutation
// batch after a later write failed, so stock does not stay moved for a
// document that never got persisted. Mutations carry the lot snapshots
// that Restore needs to recreate a pruned lot. If the compensation
// itself fails both writes are down and the mismatch is logged for
// manual reconciliation.
func (s *Service) compensateStock(ctx context.Context, companyID string, mutations []store.StockMutation) {
	if len(mutations) == 0 {
		return
	}
	inverse := make([]store.StockMutation, 0, len(mutations))
	for i := len(mutations) - 1; i >= 0; i-- {
		m := mutations[i]
		m.Delta = -m.Delta
		inverse = append(inverse, m)
	}
	if err := s.repo.ApplyStockMutations(ctx, companyID, inverse); err != nil {
		log.Printf("[service] WARN: stock compensation failed company=%s mutations=%d: %v", companyID, len(inverse), err)
		return
	}
	s.advisor.Invalidate(ctx, companyID)
}

// --- products & inventory ---

func (s *Service) ListProducts(ctx context.Context, companyID string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, companyID)
}

func (s *Service) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	inventory.SortFEFO(product.Lots)
	return product, nil
}

func (s *Service) CreateProduct(ctx context.Context, companyID string, req domain.ProductCreateRequest) (*domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Category == "" {
		return nil, fmt.Errorf("%w: product name and category are required", store.ErrValidation)
	}
	if req.SalePrice < 0 || req.InitialStock < 0 {
		return nil, fmt.Errorf("%w: price and stock must not be negative", store.ErrValidation)
	}

	product := domain.Product{
		CompanyID:          companyID,
		Name:               req.Name,
		Category:           req.Category,
		Description:        req.Description,
		UsesLotTracking:    req.UsesLotTracking,
		SalePrice:          req.SalePrice,
		DiscountPercentage: req.DiscountPercentage,
		LowStockThreshold:  req.LowStockThreshold,
		Taxable:            req.Taxable,
		IsDivisible:        req.IsDivisible,
		TotalVolume:        req.TotalVolume,
		VolumeUnit:         req.VolumeUnit,
		Suppliers:          req.Suppliers,
		Lots:               []domain.ProductLot{},
	}
	// Initial stock lands in the bucket lot. Lot-tracked products start
	// empty and receive stock through purchases, lot by lot.
	if req.InitialStock > 0 && !req.UsesLotTracking && req.Category != domain.CategoryService {
		idx := inventory.EnsureBucket(&product, xid.New("lot"))
		product.Lots[idx].Quantity = req.InitialStock
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, companyID, "product_create", "product", created.ID, fmt.Sprintf("name=%s,stock=%.2f", created.Name, req.InitialStock))
	s.advisor.Invalidate(ctx, companyID)
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, productID string, req domain.ProductCreateRequest) (*domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Category == "" {
		return nil, fmt.Errorf("%w: product name and category are required", store.ErrValidation)
	}

	updated := *existing
	updated.Name = req.Name
	updated.Category = req.Category
	updated.Description = req.Description
	updated.UsesLotTracking = req.UsesLotTracking
	updated.SalePrice = req.SalePrice
	updated.DiscountPercentage = req.DiscountPercentage
	updated.LowStockThreshold = req.LowStockThreshold
	updated.Taxable = req.Taxable
	updated.IsDivisible = req.IsDivisible
	updated.TotalVolume = req.TotalVolume
	updated.VolumeUnit = req.VolumeUnit
	updated.Suppliers = req.Suppliers

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, existing.CompanyID, "product_update", "product", saved.ID, "name="+saved.Name)
	s.advisor.Invalidate(ctx, existing.CompanyID)
	return saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	existing, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	s.logAudit(ctx, existing.CompanyID, "product_delete", "product", productID, "name="+existing.Name)
	s.advisor.Invalidate(ctx, existing.CompanyID)
	return nil
}

func (s *Service) InventoryAlerts(ctx context.Context, companyID string) (domain.InventoryAlerts, error) {
	products, err := s.repo.ListProducts(ctx, companyID)
	if err != nil {
		return domain.InventoryAlerts{}, err
	}
	return s.advisor.Alerts(ctx, companyID, products, time.Now()), nil
}

func (s *Service) RecordPurchase(ctx context.Context, companyID string, req domain.PurchaseRequest) (*domain.Purchase, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: purchase quantity must be positive", store.ErrValidation)
	}
	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product.CompanyID != companyID {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, req.ProductID)
	}
	if product.Category == domain.CategoryService {
		return nil, fmt.Errorf("%w: cannot purchase stock for a service", store.ErrValidation)
	}
	supplier, err := s.repo.GetSupplier(ctx, req.SupplierID)
	if err != nil {
		return nil, err
	}

	mutation := store.StockMutation{ProductID: product.ID, Delta: req.Quantity}
	if product.UsesLotTracking {
		if strings.TrimSpace(req.LotNumber) == "" {
			return nil, fmt.Errorf("%w: %q tracks lots, a lot number is required", store.ErrValidation, product.Name)
		}
		mutation.LotID = xid.New("lot")
		mutation.LotNumber = req.LotNumber
		mutation.ExpirationDate = req.ExpirationDate
	} else {
		mutation.LotNumber = domain.BucketLotNumber
	}
	if err := s.repo.ApplyStockMutations(ctx, companyID, []store.StockMutation{mutation}); err != nil {
		return nil, err
	}

	purchase := domain.Purchase{
		CompanyID:      companyID,
		ProductID:      product.ID,
		ProductName:    product.Name,
		SupplierID:     supplier.ID,
		SupplierName:   supplier.Name,
		Quantity:       req.Quantity,
		PurchasePrice:  req.PurchasePrice,
		Date:           time.Now().UTC(),
		LotNumber:      mutation.LotNumber,
		ExpirationDate: req.ExpirationDate,
	}
	created, err := s.repo.CreatePurchase(ctx, purchase)
	if err != nil {
		s.compensateStock(ctx, companyID, []store.StockMutation{mutation})
		return nil, err
	}
	s.logAudit(ctx, companyID, "purchase_record", "purchase", created.ID, fmt.Sprintf("product=%s,qty=%.2f", product.Name, req.Quantity))
	s.advisor.Invalidate(ctx, companyID)
	return created, nil
}

func (s *Service) ListPurchases(ctx context.Context, companyID string) ([]domain.Purchase, error) {
	return s.repo.ListPurchases(ctx, companyID)
}

func (s *Service) RecordInternalConsumption(ctx context.Context, companyID string, req domain.ConsumptionRequest) (*domain.InternalConsumption, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: a consumption reason is required", store.ErrValidation)
	}
	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product.CompanyID != companyID {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, req.ProductID)
	}
	if product.Category == domain.CategoryService {
		return nil, fmt.Errorf("%w: services carry no stock to consume", store.ErrValidation)
	}

	working := *product
	lot, err := inventory.Consume(&working, req.Quantity, req.LotID)
	if err != nil {
		return nil, err
	}
	mutation := store.StockMutation{
		ProductID:      product.ID,
		LotNumber:      lot.LotNumber,
		ExpirationDate: lot.ExpirationDate,
		Delta:          -req.Quantity,
	}
	if product.UsesLotTracking {
		mutation.LotID = lot.ID
	}
	if err := s.repo.ApplyStockMutations(ctx, companyID, []store.StockMutation{mutation}); err != nil {
		return nil, err
	}

	consumption := domain.InternalConsumption{
		CompanyID:     companyID,
		Date:          time.Now().UTC(),
		ProductID:     product.ID,
		ProductName:   product.Name,
		Quantity:      req.Quantity,
		Reason:        req.Reason,
		RecordedByVet: s.actorName(ctx),
	}
	if product.UsesLotTracking {
		consumption.LotID = lot.ID
		consumption.LotNumber = lot.LotNumber
	}
	created, err := s.repo.CreateInternalConsumption(ctx, consumption)
	if err != nil {
		s.compensateStock(ctx, companyID, []store.StockMutation{mutation})
		return nil, err
	}
	s.logAudit(ctx, companyID, "consumption_record", "internal_consumption", created.ID, fmt.Sprintf("product=%s,qty=%.2f,reason=%s", product.Name, req.Quantity, req.Reason))
	s.advisor.Invalidate(ctx, companyID)
	return created, nil
}

func (s *Service) ListInternalConsumptions(ctx context.Context, companyID string) ([]domain.InternalConsumption, error) {
	return s.repo.ListInternalConsumptions(ctx, companyID)
}

// --- invoice lifecycle ---

// PreviewTotals prices a cart without persisting anything, with the
// same arithmetic the persisted invoice will use.
func (s *Service) PreviewTotals(ctx context.Context, companyID string, items []domain.InvoiceItem) (ledger.Totals, error) {
	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return ledger.Totals{}, err
	}
	return ledger.ComputeTotals(items, company.TaxRate), nil
}

func (s *Service) CreateSale(ctx context.Context, companyID string, req domain.SaleRequest) (*domain.Invoice, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: a sale needs at least one item", store.ErrValidation)
	}
	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	client, err := s.repo.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if client.CompanyID != companyID {
		return nil, fmt.Errorf("%w: client %s", store.ErrNotFound, req.ClientID)
	}
	var pet *domain.Pet
	if req.PetID != "" {
		pet, err = s.repo.GetPet(ctx, req.PetID)
		if err != nil {
			return nil, err
		}
	}

	items := req.Items
	var mutations []store.StockMutation
	if !req.SkipStockDeduction {
		working, err := s.workingCopies(ctx, items)
		if err != nil {
			return nil, err
		}
		planned, batch, err := planDeductions(working, items)
		if err != nil {
			return nil, err
		}
		if err := s.repo.ApplyStockMutations(ctx, companyID, batch); err != nil {
			return nil, err
		}
		items = planned
		mutations = batch
		if len(mutations) > 0 {
			s.advisor.Invalidate(ctx, companyID)
		}
	} else {
		for _, item := range items {
			if item.Quantity <= 0 {
				return nil, fmt.Errorf("%w: quantity must be positive for %q", store.ErrValidation, item.Name)
			}
		}
	}

	totals := ledger.ComputeTotals(items, company.TaxRate)
	invoice := domain.Invoice{
		CompanyID:      companyID,
		ClientID:       client.ID,
		ClientName:     client.Name,
		Date:           time.Now().UTC(),
		Items:          items,
		Status:         domain.InvoiceStatusUnpaid,
		Subtotal:       totals.Subtotal,
		TotalDiscount:  totals.TotalDiscount,
		Tax:            totals.Tax,
		Total:          totals.Total,
		AmountPaid:     0,
		BalanceDue:     totals.Total,
		TaxRate:        company.TaxRate,
		PaymentHistory: []domain.Payment{},
	}
	if pet != nil {
		invoice.PetID = pet.ID
		invoice.PetName = pet.Name
	}

	created, err := s.repo.CreateInvoice(ctx, invoice)
	if err != nil {
		// The deduction already committed; put the stock back before
		// surfacing the failure.
		s.compensateStock(ctx, companyID, mutations)
		return nil, err
	}
	s.logAudit(ctx, companyID, "sale_create", "invoice", created.ID, fmt.Sprintf("number=%s,total=%.2f,client=%s", created.InvoiceNumber, created.Total, client.Name))
	return created, nil
}

// EditInvoiceItems replaces the line items of an unpaid invoice.
// Original stock is restored before the new items deduct, so lowering a
// quantity frees stock that another new line may need. Totals are
// recomputed with the rate the invoice was issued under, never the
// company's current rate.
func (s *Service) EditInvoiceItems(ctx context.Context, invoiceID string, newItems []domain.InvoiceItem) (*domain.Invoice, error) {
	if len(newItems) == 0 {
		return nil, fmt.Errorf("%w: an invoice needs at least one item", store.ErrValidation)
	}
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.AmountPaid > 0 {
		return nil, fmt.Errorf("%w: invoice %s has payments recorded and cannot be edited", store.ErrInvalidState, invoice.InvoiceNumber)
	}

	combined := make([]domain.InvoiceItem, 0, len(invoice.Items)+len(newItems))
	combined = append(combined, invoice.Items...)
	combined = append(combined, newItems...)
	working, err := s.workingCopies(ctx, combined)
	if err != nil {
		return nil, err
	}

	restores, err := planRestores(working, invoice.Items)
	if err != nil {
		return nil, err
	}
	planned, deductions, err := planDeductions(working, newItems)
	if err != nil {
		return nil, err
	}
	mutations := append(restores, deductions...)
	if err := s.repo.ApplyStockMutations(ctx, invoice.CompanyID, mutations); err != nil {
		return nil, err
	}
	if len(mutations) > 0 {
		s.advisor.Invalidate(ctx, invoice.CompanyID)
	}

	totals := ledger.ComputeTotals(planned, invoice.TaxRate)
	invoice.Items = planned
	invoice.Subtotal = totals.Subtotal
	invoice.TotalDiscount = totals.TotalDiscount
	invoice.Tax = totals.Tax
	invoice.Total = totals.Total
	invoice.BalanceDue = totals.Total - invoice.AmountPaid

	updated, err := s.repo.UpdateInvoice(ctx, *invoice)
	if err != nil {
		s.compensateStock(ctx, invoice.CompanyID, mutations)
		return nil, err
	}
	s.logAudit(ctx, invoice.CompanyID, "invoice_edit", "invoice", invoice.ID, fmt.Sprintf("number=%s,total=%.2f", invoice.InvoiceNumber, invoice.Total))
	return updated, nil
}

// RecordPayment applies a payment to an invoice. Overpayment is
// accepted: the balance goes negative and the invoice is Paid. A cash
// payment aimed at an open shift also lands in that shift's drawer
// tally.
func (s *Service) RecordPayment(ctx context.Context, invoiceID string, req domain.PaymentRequest) (*domain.Invoice, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", store.ErrValidation)
	}
	if req.Method == "" {
		return nil, fmt.Errorf("%w: payment method is required", store.ErrValidation)
	}
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	payment := domain.Payment{
		Date:           time.Now().UTC(),
		Amount:         req.Amount,
		Method:         req.Method,
		CashierShiftID: req.CashierShiftID,
		InvoiceID:      invoice.ID,
	}

	var shift *domain.CashierShift
	if req.Method == domain.PaymentMethodCash && req.CashierShiftID != "" {
		shift, err = s.repo.GetShift(ctx, req.CashierShiftID)
		if err != nil {
			return nil, err
		}
		if shift.Status != domain.ShiftStatusOpen {
			return nil, fmt.Errorf("%w: shift %s is closed", store.ErrInvalidState, shift.ID)
		}
	}

	original := *invoice
	invoice.PaymentHistory = append(invoice.PaymentHistory, payment)
	invoice.AmountPaid += req.Amount
	invoice.BalanceDue = invoice.Total - invoice.AmountPaid
	if invoice.BalanceDue <= 0 {
		invoice.Status = domain.InvoiceStatusPaid
	} else {
		invoice.Status = domain.InvoiceStatusUnpaid
	}

	updated, err := s.repo.UpdateInvoice(ctx, *invoice)
	if err != nil {
		return nil, err
	}

	if shift != nil {
		shift.Payments = append(shift.Payments, payment)
		shift.CalculatedCashTotal += req.Amount
		if _, err := s.repo.UpdateShift(ctx, *shift); err != nil {
			// Invoice and drawer tally move together; undo the payment
			// when the shift write fails.
			if _, revertErr := s.repo.UpdateInvoice(ctx, original); revertErr != nil {
				log.Printf("[service] WARN: failed to revert payment on invoice %s: %v", invoice.ID, revertErr)
			}
			return nil, fmt.Errorf("recording cash payment on shift %s: %w", shift.ID, err)
		}
	}

	s.logAudit(ctx, invoice.CompanyID, "payment_record", "invoice", invoice.ID, fmt.Sprintf("number=%s,amount=%.2f,method=%s", invoice.InvoiceNumber, req.Amount, req.Method))
	return updated, nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.repo.GetInvoice(ctx, invoiceID)
}

func (s *Service) ListInvoices(ctx context.Context, companyID string) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx, companyID)
}

// --- cashier shifts ---

func (s *Service) OpenShift(ctx context.Context, companyID string, req domain.ShiftOpenRequest) (*domain.CashierShift, error) {
	if req.OpeningBalance < 0 {
		return nil, fmt.Errorf("%w: opening balance must not be negative", store.ErrValidation)
	}
	pos, err := s.repo.GetPointOfSale(ctx, req.PointOfSaleID)
	if err != nil {
		return nil, err
	}
	if pos.CompanyID != companyID {
		return nil, fmt.Errorf("%w: point of sale %s", store.ErrNotFound, req.PointOfSaleID)
	}
	if !pos.IsActive {
		return nil, fmt.Errorf("%w: point of sale %s is inactive", store.ErrInvalidState, pos.Name)
	}
	open, err := s.repo.GetOpenShiftByPointOfSale(ctx, pos.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if open != nil {
		return nil, fmt.Errorf("%w: point of sale %s already has an open shift", store.ErrInvalidState, pos.Name)
	}

	shift := domain.CashierShift{
		CompanyID:           companyID,
		PointOfSaleID:       pos.ID,
		PointOfSaleName:     pos.Name,
		OpeningTime:         time.Now().UTC(),
		OpeningBalance:      req.OpeningBalance,
		CalculatedCashTotal: 0,
		Status:              domain.ShiftStatusOpen,
		OpenedBy:            s.actorName(ctx),
		Payments:            []domain.Payment{},
		Expenses:            []domain.Expense{},
	}
	created, err := s.repo.CreateShift(ctx, shift)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, companyID, "shift_open", "cashier_shift", created.ID, fmt.Sprintf("pos=%s,opening=%.2f", pos.Name, req.OpeningBalance))
	return created, nil
}

func (s *Service) CloseShift(ctx context.Context, shiftID string, req domain.ShiftCloseRequest) (*domain.CashierShift, error) {
	shift, err := s.repo.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status != domain.ShiftStatusOpen {
		return nil, fmt.Errorf("%w: shift %s is already closed", store.ErrInvalidState, shift.ID)
	}

	now := time.Now().UTC()
	expected := shift.OpeningBalance + shift.CalculatedCashTotal
	difference := req.ClosingBalance - expected

	shift.Status = domain.ShiftStatusClosed
	shift.ClosingTime = &now
	shift.ClosingBalance = &req.ClosingBalance
	shift.Difference = &difference
	shift.ClosedBy = s.actorName(ctx)
	if req.Notes != "" {
		shift.Notes = req.Notes
	}

	updated, err := s.repo.UpdateShift(ctx, *shift)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, shift.CompanyID, "shift_close", "cashier_shift", shift.ID, fmt.Sprintf("counted=%.2f,expected=%.2f,difference=%.2f", req.ClosingBalance, expected, difference))
	return updated, nil
}

func (s *Service) ListShifts(ctx context.Context, companyID string) ([]domain.CashierShift, error) {
	return s.repo.ListShifts(ctx, companyID)
}

func (s *Service) RecordExpense(ctx context.Context, companyID string, req domain.ExpenseRequest) (*domain.Expense, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: expense amount must be positive", store.ErrValidation)
	}
	category, err := s.repo.GetExpenseCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}

	var shift *domain.CashierShift
	if req.CashierShiftID != "" {
		shift, err = s.repo.GetShift(ctx, req.CashierShiftID)
		if err != nil {
			return nil, err
		}
		if shift.Status != domain.ShiftStatusOpen {
			return nil, fmt.Errorf("%w: shift %s is closed", store.ErrInvalidState, shift.ID)
		}
	}

	expense := domain.Expense{
		ID:             xid.New("exp"),
		CompanyID:      companyID,
		Date:           time.Now().UTC(),
		Amount:         req.Amount,
		Description:    req.Description,
		CategoryID:     category.ID,
		CategoryName:   category.Name,
		CashierShiftID: req.CashierShiftID,
		RecordedByVet:  s.actorName(ctx),
	}

	// Cash paid out of the drawer lowers the expected closing count. The
	// shift write goes first: a shift can be reverted, a stray expense
	// cannot be deleted.
	var originalShift *domain.CashierShift
	if shift != nil {
		snapshot := *shift
		originalShift = &snapshot
		shift.Expenses = append(shift.Expenses, expense)
		shift.CalculatedCashTotal -= req.Amount
		if _, err := s.repo.UpdateShift(ctx, *shift); err != nil {
			return nil, err
		}
	}

	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		if originalShift != nil {
			if _, revertErr := s.repo.UpdateShift(ctx, *originalShift); revertErr != nil {
				log.Printf("[service] WARN: failed to revert shift %s after expense write failed: %v", originalShift.ID, revertErr)
			}
		}
		return nil, err
	}

	s.logAudit(ctx, companyID, "expense_record", "expense", created.ID, fmt.Sprintf("amount=%.2f,category=%s", req.Amount, category.Name))
	return created, nil
}

func (s *Service) ListExpenses(ctx context.Context, companyID string) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, companyID)
}

func (s *Service) CreateExpenseCategory(ctx context.Context, companyID string, name string) (*domain.ExpenseCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", store.ErrValidation)
	}
	return s.repo.CreateExpenseCategory(ctx, domain.ExpenseCategory{CompanyID: companyID, Name: name})
}

func (s *Service) ListExpenseCategories(ctx context.Context, companyID string) ([]domain.ExpenseCategory, error) {
	return s.repo.ListExpenseCategories(ctx, companyID)
}

func (s *Service) CreatePointOfSale(ctx context.Context, companyID string, pos domain.PointOfSale) (*domain.PointOfSale, error) {
	if strings.TrimSpace(pos.Name) == "" {
		return nil, fmt.Errorf("%w: point of sale name is required", store.ErrValidation)
	}
	pos.CompanyID = companyID
	pos.IsActive = true
	return s.repo.CreatePointOfSale(ctx, pos)
}

func (s *Service) ListPointsOfSale(ctx context.Context, companyID string) ([]domain.PointOfSale, error) {
	return s.repo.ListPointsOfSale(ctx, companyID)
}

// --- hospitalization ---

func (s *Service) AdmitPatient(ctx context.Context, companyID string, req domain.AdmissionRequest) (*domain.Hospitalization, error) {
	pet, err := s.repo.GetPet(ctx, req.PetID)
	if err != nil {
		return nil, err
	}
	if pet.CompanyID != companyID {
		return nil, fmt.Errorf("%w: pet %s", store.ErrNotFound, req.PetID)
	}
	client, err := s.repo.GetClient(ctx, pet.OwnerID)
	if err != nil {
		return nil, err
	}

	hosp := domain.Hospitalization{
		CompanyID:        companyID,
		PetID:            pet.ID,
		ClientID:         client.ID,
		PetName:          pet.Name,
		ClientName:       client.Name,
		AdmissionDate:    time.Now().UTC(),
		Status:           domain.HospitalizationStatusActive,
		Reason:           req.Reason,
		InitialDiagnosis: req.InitialDiagnosis,
		VetInCharge:      req.VetInCharge,
		TreatmentPlan:    req.TreatmentPlan,
	}
	created, err := s.repo.CreateHospitalization(ctx, hosp)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, companyID, "hospitalization_admit", "hospitalization", created.ID, "pet="+pet.Name)
	return created, nil
}

func (s *Service) activeHospitalization(ctx context.Context, hospID string) (*domain.Hospitalization, error) {
	hosp, err := s.repo.GetHospitalization(ctx, hospID)
	if err != nil {
		return nil, err
	}
	if hosp.Status != domain.HospitalizationStatusActive {
		return nil, fmt.Errorf("%w: hospitalization %s is discharged", store.ErrInvalidState, hosp.ID)
	}
	return hosp, nil
}

func (s *Service) LogVitalSigns(ctx context.Context, hospID string, entry domain.VitalSignEntry) (*domain.Hospitalization, error) {
	hosp, err := s.activeHospitalization(ctx, hospID)
	if err != nil {
		return nil, err
	}
	entry.ID = xid.New("vital")
	entry.Timestamp = time.Now().UTC()
	if entry.RecordedBy == "" {
		entry.RecordedBy = s.actorName(ctx)
	}
	hosp.VitalSignsLog = append(hosp.VitalSignsLog, entry)
	return s.repo.UpdateHospitalization(ctx, *hosp)
}

func (s *Service) LogProgressNote(ctx context.Context, hospID string, note string) (*domain.Hospitalization, error) {
	if strings.TrimSpace(note) == "" {
		return nil, fmt.Errorf("%w: a progress note needs text", store.ErrValidation)
	}
	hosp, err := s.activeHospitalization(ctx, hospID)
	if err != nil {
		return nil, err
	}
	hosp.ProgressNotes = append(hosp.ProgressNotes, domain.ProgressNoteEntry{
		ID:        xid.New("note"),
		Timestamp: time.Now().UTC(),
		Author:    s.actorName(ctx),
		Note:      note,
	})
	return s.repo.UpdateHospitalization(ctx, *hosp)
}

func (s *Service) UpdateTreatmentPlan(ctx context.Context, hospID string, plan string) (*domain.Hospitalization, error) {
	hosp, err := s.activeHospitalization(ctx, hospID)
	if err != nil {
		return nil, err
	}
	hosp.TreatmentPlan = plan
	return s.repo.UpdateHospitalization(ctx, *hosp)
}

// LogMedication deducts stock the moment the dose is administered. The
// entry stays unbilled (no invoice id) until discharge picks it up.
func (s *Service) LogMedication(ctx context.Context, hospID string, entry domain.MedicationLogEntry) (*domain.Hospitalization, error) {
	hosp, err := s.activeHospitalization(ctx, hospID)
	if err != nil {
		return nil, err
	}
	product, err := s.repo.GetProduct(ctx, entry.ProductID)
	if err != nil {
		return nil, err
	}

	working := *product
	lot, err := inventory.Consume(&working, entry.Quantity, entry.LotID)
	if err != nil {
		return nil, err
	}
	var mutations []store.StockMutation
	if product.Category != domain.CategoryService {
		mutation := store.StockMutation{
			ProductID:      product.ID,
			LotNumber:      lot.LotNumber,
			ExpirationDate: lot.ExpirationDate,
			Delta:          -entry.Quantity,
		}
		if product.UsesLotTracking {
			mutation.LotID = lot.ID
		}
		mutations = []store.StockMutation{mutation}
		if err := s.repo.ApplyStockMutations(ctx, hosp.CompanyID, mutations); err != nil {
			return nil, err
		}
		s.advisor.Invalidate(ctx, hosp.CompanyID)
	}

	entry.ID = xid.New("med")
	entry.Timestamp = time.Now().UTC()
	entry.ProductName = product.Name
	if entry.AdministeredBy == "" {
		entry.AdministeredBy = s.actorName(ctx)
	}
	if product.UsesLotTracking {
		entry.LotID = lot.ID
		entry.LotNumber = lot.LotNumber
	}
	entry.InvoiceID = ""
	hosp.MedicationLog = append(hosp.MedicationLog, entry)

	updated, err := s.repo.UpdateHospitalization(ctx, *hosp)
	if err != nil {
		// The dose never made it onto the chart; put the stock back.
		s.compensateStock(ctx, hosp.CompanyID, mutations)
		return nil, err
	}
	s.logAudit(ctx, hosp.CompanyID, "medication_log", "hospitalization", hosp.ID, fmt.Sprintf("product=%s,qty=%.2f", product.Name, entry.Quantity))
	return updated, nil
}

// DischargePatient bills every medication entry that has not been
// invoiced yet, at the product's current price. Stock was already
// deducted when each dose was logged, so the discharge invoice skips
// deduction entirely.
func (s *Service) DischargePatient(ctx context.Context, hospID string, req domain.DischargeRequest) (*domain.DischargeResult, error) {
	hosp, err := s.activeHospitalization(ctx, hospID)
	if err != nil {
		return nil, err
	}

	unbilled := make([]int, 0, len(hosp.MedicationLog))
	for i, entry := range hosp.MedicationLog {
		if entry.InvoiceID == "" {
			unbilled = append(unbilled, i)
		}
	}

	// Snapshot for revert: stamping mutates the log entries in place.
	original := *hosp
	original.MedicationLog = slices.Clone(hosp.MedicationLog)

	var invoice *domain.Invoice
	if len(unbilled) > 0 {
		company, err := s.repo.GetCompany(ctx, hosp.CompanyID)
		if err != nil {
			return nil, err
		}
		items := make([]domain.InvoiceItem, 0, len(unbilled))
		for _, i := range unbilled {
			entry := hosp.MedicationLog[i]
			product, err := s.repo.GetProduct(ctx, entry.ProductID)
			if err != nil {
				return nil, err
			}
			item := domain.InvoiceItem{
				ProductID:   product.ID,
				Name:        product.Name,
				Description: fmt.Sprintf("Administered %s (%s)", entry.Dosage, entry.Route),
				Quantity:    entry.Quantity,
				Price:       product.SalePrice,
				LotID:       entry.LotID,
				LotNumber:   entry.LotNumber,
			}
			if product.DiscountPercentage > 0 {
				pct := product.DiscountPercentage
				item.DiscountPercentage = &pct
			}
			items = append(items, item)
		}

		// The invoice id is assigned up front so the log entries can be
		// stamped before anything is written. The hospitalization commits
		// first and gets reverted if the invoice write fails; the reverse
		// order would strand an invoice nothing references. Stock was
		// already deducted dose by dose, so no deduction happens here.
		totals := ledger.ComputeTotals(items, company.TaxRate)
		draft := domain.Invoice{
			ID:             xid.New("inv"),
			CompanyID:      hosp.CompanyID,
			ClientID:       hosp.ClientID,
			ClientName:     hosp.ClientName,
			PetID:          hosp.PetID,
			PetName:        hosp.PetName,
			Date:           time.Now().UTC(),
			Items:          items,
			Status:         domain.InvoiceStatusUnpaid,
			Subtotal:       totals.Subtotal,
			TotalDiscount:  totals.TotalDiscount,
			Tax:            totals.Tax,
			Total:          totals.Total,
			AmountPaid:     0,
			BalanceDue:     totals.Total,
			TaxRate:        company.TaxRate,
			PaymentHistory: []domain.Payment{},
		}
		for _, i := range unbilled {
			hosp.MedicationLog[i].InvoiceID = draft.ID
		}
		hosp.InvoiceID = draft.ID
		invoice = &draft
	}

	now := time.Now().UTC()
	hosp.Status = domain.HospitalizationStatusDischarged
	hosp.DischargeDate = &now
	hosp.DischargeOutcome = req.Outcome
	hosp.DischargeRecommendations = req.Recommendations

	updated, err := s.repo.UpdateHospitalization(ctx, *hosp)
	if err != nil {
		return nil, err
	}

	if invoice != nil {
		created, err := s.repo.CreateInvoice(ctx, *invoice)
		if err != nil {
			if _, revertErr := s.repo.UpdateHospitalization(ctx, original); revertErr != nil {
				log.Printf("[service] WARN: failed to revert discharge of hospitalization %s: %v", hosp.ID, revertErr)
			}
			return nil, err
		}
		invoice = created
		s.logAudit(ctx, hosp.CompanyID, "sale_create", "invoice", created.ID, fmt.Sprintf("number=%s,total=%.2f,client=%s", created.InvoiceNumber, created.Total, hosp.ClientName))
	}

	s.logAudit(ctx, hosp.CompanyID, "patient_discharge", "hospitalization", hosp.ID, fmt.Sprintf("outcome=%s,billedEntries=%d", req.Outcome, len(unbilled)))
	return &domain.DischargeResult{Hospitalization: *updated, Invoice: invoice}, nil
}

func (s *Service) GetHospitalization(ctx context.Context, hospID string) (*domain.Hospitalization, error) {
	return s.repo.GetHospitalization(ctx, hospID)
}

func (s *Service) ListHospitalizations(ctx context.Context, companyID string) ([]domain.Hospitalization, error) {
	return s.repo.ListHospitalizations(ctx, companyID)
}

// --- medical records ---

// AddMedicalRecord persists a visit record and runs its side effects:
// weight goes to the pet's weight history, a reminder is scheduled when
// asked for, and billable items become a normal invoice linked back to
// the record.
func (s *Service) AddMedicalRecord(ctx context.Context, petID string, req domain.MedicalRecordRequest) (*domain.MedicalRecord, error) {
	pet, err := s.repo.GetPet(ctx, petID)
	if err != nil {
		return nil, err
	}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format("2006-01-02")
	}

	record := domain.MedicalRecord{
		CompanyID:  pet.CompanyID,
		PetID:      pet.ID,
		Date:       req.Date,
		Vet:        req.Vet,
		Reason:     req.Reason,
		Category:   req.Category,
		Subjective: req.Subjective,
		Objective:  req.Objective,
		Assessment: req.Assessment,
		Plan:       req.Plan,
		Items:      req.InvoiceItems,
	}
	created, err := s.repo.CreateMedicalRecord(ctx, record)
	if err != nil {
		return nil, err
	}

	if req.Weight > 0 {
		pet.WeightHistory = append(pet.WeightHistory, domain.WeightEntry{Date: req.Date, Weight: req.Weight})
		if _, err := s.repo.UpdatePet(ctx, *pet); err != nil {
			log.Printf("[service] WARN: failed to append weight history pet=%s: %v", pet.ID, err)
		}
	}

	if req.ReminderDays > 0 {
		due, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			due = time.Now().UTC()
		}
		client, err := s.repo.GetClient(ctx, pet.OwnerID)
		clientName := ""
		if err == nil {
			clientName = client.Name
		}
		_, err = s.repo.CreateReminder(ctx, domain.Reminder{
			CompanyID:       pet.CompanyID,
			PetID:           pet.ID,
			ClientID:        pet.OwnerID,
			PetName:         pet.Name,
			ClientName:      clientName,
			DueDate:         due.AddDate(0, 0, req.ReminderDays).Format("2006-01-02"),
			Message:         fmt.Sprintf("%s follow-up for %s", req.Category, pet.Name),
			Status:          domain.ReminderStatusPending,
			Category:        req.Category,
			RelatedRecordID: created.ID,
		})
		if err != nil {
			log.Printf("[service] WARN: failed to create reminder record=%s: %v", created.ID, err)
		}
	}

	if req.Action == "bill" && len(req.InvoiceItems) > 0 {
		invoice, err := s.CreateSale(ctx, pet.CompanyID, domain.SaleRequest{
			ClientID: pet.OwnerID,
			PetID:    pet.ID,
			Items:    req.InvoiceItems,
		})
		if err != nil {
			return nil, err
		}
		created.InvoiceID = invoice.ID
		created.Items = invoice.Items
		if created, err = s.repo.UpdateMedicalRecord(ctx, *created); err != nil {
			return nil, err
		}
	}

	s.logAudit(ctx, pet.CompanyID, "medical_record_create", "medical_record", created.ID, fmt.Sprintf("pet=%s,category=%s", pet.Name, req.Category))
	return created, nil
}

func (s *Service) ListMedicalRecords(ctx context.Context, petID string) ([]domain.MedicalRecord, error) {
	return s.repo.ListMedicalRecords(ctx, petID)
}

func (s *Service) ListReminders(ctx context.Context, companyID string) ([]domain.Reminder, error) {
	return s.repo.ListReminders(ctx, companyID)
}

func (s *Service) UpdateReminderStatus(ctx context.Context, reminderID string, status string) (*domain.Reminder, error) {
	switch status {
	case domain.ReminderStatusPending, domain.ReminderStatusCompleted, domain.ReminderStatusDismissed:
	default:
		return nil, fmt.Errorf("%w: unknown reminder status %q", store.ErrValidation, status)
	}
	return s.repo.UpdateReminderStatus(ctx, reminderID, status)
}

// --- clients & pets ---

func (s *Service) ListClients(ctx context.Context, companyID string) ([]domain.Client, error) {
	return s.repo.ListClients(ctx, companyID)
}

func (s *Service) CreateClient(ctx context.Context, companyID string, client domain.Client) (*domain.Client, error) {
	client.Name = strings.TrimSpace(client.Name)
	if client.Name == "" {
		return nil, fmt.Errorf("%w: client name is required", store.ErrValidation)
	}
	client.CompanyID = companyID
	created, err := s.repo.CreateClient(ctx, client)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, companyID, "client_create", "client", created.ID, "name="+created.Name)
	return created, nil
}

func (s *Service) UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	existing, err := s.repo.GetClient(ctx, client.ID)
	if err != nil {
		return nil, err
	}
	client.CompanyID = existing.CompanyID
	return s.repo.UpdateClient(ctx, client)
}

func (s *Service) DeleteClient(ctx context.Context, clientID string) error {
	existing, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteClient(ctx, clientID); err != nil {
		return err
	}
	s.logAudit(ctx, existing.CompanyID, "client_delete", "client", clientID, "name="+existing.Name)
	return nil
}

func (s *Service) ListPets(ctx context.Context, companyID string) ([]domain.Pet, error) {
	return s.repo.ListPets(ctx, companyID)
}

func (s *Service) GetPet(ctx context.Context, petID string) (*domain.Pet, error) {
	return s.repo.GetPet(ctx, petID)
}

func (s *Service) CreatePet(ctx context.Context, companyID string, ownerID string, pet domain.Pet) (*domain.Pet, error) {
	pet.Name = strings.TrimSpace(pet.Name)
	if pet.Name == "" {
		return nil, fmt.Errorf("%w: pet name is required", store.ErrValidation)
	}
	owner, err := s.repo.GetClient(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner.CompanyID != companyID {
		return nil, fmt.Errorf("%w: client %s", store.ErrNotFound, ownerID)
	}
	pet.CompanyID = companyID
	pet.OwnerID = owner.ID
	return s.repo.CreatePet(ctx, pet)
}

func (s *Service) UpdatePet(ctx context.Context, pet domain.Pet) (*domain.Pet, error) {
	existing, err := s.repo.GetPet(ctx, pet.ID)
	if err != nil {
		return nil, err
	}
	pet.CompanyID = existing.CompanyID
	pet.OwnerID = existing.OwnerID
	return s.repo.UpdatePet(ctx, pet)
}

func (s *Service) DeletePet(ctx context.Context, petID string) error {
	return s.repo.DeletePet(ctx, petID)
}

// --- remaining clinic plumbing ---

func (s *Service) ListSuppliers(ctx context.Context, companyID string) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx, companyID)
}

func (s *Service) CreateSupplier(ctx context.Context, companyID string, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, fmt.Errorf("%w: supplier name is required", store.ErrValidation)
	}
	supplier.CompanyID = companyID
	return s.repo.CreateSupplier(ctx, supplier)
}

func (s *Service) ListAppointments(ctx context.Context, companyID string) ([]domain.Appointment, error) {
	return s.repo.ListAppointments(ctx, companyID)
}

func (s *Service) CreateAppointment(ctx context.Context, companyID string, appointment domain.Appointment) (*domain.Appointment, error) {
	if appointment.Date == "" || appointment.Time == "" {
		return nil, fmt.Errorf("%w: appointment date and time are required", store.ErrValidation)
	}
	pet, err := s.repo.GetPet(ctx, appointment.PetID)
	if err != nil {
		return nil, err
	}
	client, err := s.repo.GetClient(ctx, pet.OwnerID)
	if err != nil {
		return nil, err
	}
	appointment.CompanyID = companyID
	appointment.PetName = pet.Name
	appointment.ClientID = client.ID
	appointment.ClientName = client.Name
	if appointment.Status == "" {
		appointment.Status = "Confirmed"
	}
	return s.repo.CreateAppointment(ctx, appointment)
}

func (s *Service) UpdateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error) {
	return s.repo.UpdateAppointment(ctx, appointment)
}

func (s *Service) ListPrescriptions(ctx context.Context, companyID string) ([]domain.Prescription, error) {
	return s.repo.ListPrescriptions(ctx, companyID)
}

func (s *Service) CreatePrescription(ctx context.Context, companyID string, prescription domain.Prescription) (*domain.Prescription, error) {
	if prescription.PetID == "" || len(prescription.Items) == 0 {
		return nil, fmt.Errorf("%w: a prescription needs a pet and at least one item", store.ErrValidation)
	}
	prescription.CompanyID = companyID
	if prescription.Date == "" {
		prescription.Date = time.Now().UTC().Format("2006-01-02")
	}
	if prescription.Vet == "" {
		prescription.Vet = s.actorName(ctx)
	}
	return s.repo.CreatePrescription(ctx, prescription)
}

func (s *Service) ListVets(ctx context.Context, companyID string) ([]domain.Vet, error) {
	return s.repo.ListVets(ctx, companyID)
}

func (s *Service) GetCompany(ctx context.Context, companyID string) (*domain.Company, error) {
	return s.repo.GetCompany(ctx, companyID)
}

func (s *Service) UpdateCompany(ctx context.Context, company domain.Company) (*domain.Company, error) {
	if company.TaxRate < 0 || company.TaxRate > 1 {
		return nil, fmt.Errorf("%w: tax rate must be a fraction between 0 and 1", store.ErrValidation)
	}
	return s.repo.UpdateCompany(ctx, company)
}

func (s *Service) ListAuditLogs(ctx context.Context, companyID string, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, companyID, limit)
}
