package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"veterinaria/backend/internal/domain"
	"veterinaria/backend/internal/store"
	"veterinaria/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, context.Context) {
	t.Helper()
	repo := memory.NewSeeded()
	svc := New(repo, nil)
	ctx := WithActor(context.Background(), domain.Actor{
		Email: "admin@clinica.demo",
		Name:  "Ana Torres",
		Role:  domain.RoleAdmin,
	})
	return svc, repo, ctx
}

func productStock(t *testing.T, repo *memory.Store, productID string) float64 {
	t.Helper()
	product, err := repo.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product %s: %v", productID, err)
	}
	return product.TotalStock()
}

func lotQuantity(t *testing.T, repo *memory.Store, productID string, lotID string) float64 {
	t.Helper()
	product, err := repo.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product %s: %v", productID, err)
	}
	for _, lot := range product.Lots {
		if lot.ID == lotID {
			return lot.Quantity
		}
	}
	return 0
}

func TestCreateSaleWithLotTrackedProduct(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	invoice, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		PetID:    "pet_demo",
		Items: []domain.InvoiceItem{
			{ProductID: "prod_amox", Name: "Amoxicillin 250mg", Quantity: 3, Price: 1.5, LotID: "lot_amox_1"},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if got := lotQuantity(t, repo, "prod_amox", "lot_amox_1"); got != 37 {
		t.Fatalf("expected lot_amox_1 at 37, got %v", got)
	}
	if got := lotQuantity(t, repo, "prod_amox", "lot_amox_2"); got != 60 {
		t.Fatalf("expected lot_amox_2 untouched at 60, got %v", got)
	}
	if invoice.Items[0].LotNumber != "AMX-2301" {
		t.Fatalf("expected lot number snapshot AMX-2301, got %q", invoice.Items[0].LotNumber)
	}
	if invoice.Status != domain.InvoiceStatusUnpaid {
		t.Fatalf("expected new invoice Unpaid, got %s", invoice.Status)
	}
	if invoice.BalanceDue != invoice.Total {
		t.Fatalf("expected balance due %v to equal total %v", invoice.BalanceDue, invoice.Total)
	}
}

func TestCreateSaleServiceProductSkipsStock(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	before := productStock(t, repo, "prod_amox")
	_, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items: []domain.InvoiceItem{
			{ProductID: "prod_consult", Name: "General Consultation", Quantity: 1, Price: 25},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if productStock(t, repo, "prod_amox") != before {
		t.Fatalf("unrelated product stock changed")
	}
}

func TestCreateSaleInsufficientStockIsAtomic(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	_, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items: []domain.InvoiceItem{
			{ProductID: "prod_food", Name: "Adult Dog Food 2kg", Quantity: 10, Price: 18.5},
			{ProductID: "prod_amox", Name: "Amoxicillin 250mg", Quantity: 100, Price: 1.5, LotID: "lot_amox_1"},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := productStock(t, repo, "prod_food"); got != 30 {
		t.Fatalf("expected food stock untouched at 30 after aborted sale, got %v", got)
	}
	if got := lotQuantity(t, repo, "prod_amox", "lot_amox_1"); got != 40 {
		t.Fatalf("expected amox lot untouched at 40, got %v", got)
	}
	invoices, err := repo.ListInvoices(context.Background(), "comp_demo")
	if err != nil {
		t.Fatalf("list invoices: %v", err)
	}
	if len(invoices) != 0 {
		t.Fatalf("expected no invoice persisted, got %d", len(invoices))
	}
}

func TestCreateSaleRequiresLotSelectionWhenTracked(t *testing.T) {
	svc, _, ctx := newTestService(t)

	_, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items: []domain.InvoiceItem{
			{ProductID: "prod_amox", Name: "Amoxicillin 250mg", Quantity: 1, Price: 1.5},
		},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error without lot selection, got %v", err)
	}
}

func TestInvoiceNumberingPerCompany(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	companyB, err := repo.CreateCompany(context.Background(), domain.Company{Name: "Second Clinic", TaxRate: 0.08})
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	clientB, err := repo.CreateClient(context.Background(), domain.Client{CompanyID: companyB.ID, Name: "Carlos Vera"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	saleItems := []domain.InvoiceItem{{ProductID: "prod_consult", Name: "General Consultation", Quantity: 1, Price: 25}}
	var numbersA []string
	for i := 0; i < 3; i++ {
		invoice, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{ClientID: "cli_demo", Items: saleItems})
		if err != nil {
			t.Fatalf("sale %d for first company failed: %v", i, err)
		}
		numbersA = append(numbersA, invoice.InvoiceNumber)
	}
	var numbersB []string
	for i := 0; i < 2; i++ {
		invoice, err := svc.CreateSale(ctx, companyB.ID, domain.SaleRequest{ClientID: clientB.ID, Items: saleItems})
		if err != nil {
			t.Fatalf("sale %d for second company failed: %v", i, err)
		}
		numbersB = append(numbersB, invoice.InvoiceNumber)
	}

	for i, want := range []string{"1", "2", "3"} {
		if numbersA[i] != want {
			t.Fatalf("first company numbers %v, want 1,2,3", numbersA)
		}
	}
	for i, want := range []string{"1", "2"} {
		if numbersB[i] != want {
			t.Fatalf("second company numbers %v, want 1,2", numbersB)
		}
	}
}

func TestEditInvoiceItemsNetStockChange(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	invoice, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items: []domain.InvoiceItem{
			{ProductID: "prod_food", Name: "Adult Dog Food 2kg", Quantity: 2, Price: 18.5},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if got := productStock(t, repo, "prod_food"); got != 28 {
		t.Fatalf("expected stock 28 after sale, got %v", got)
	}

	edited, err := svc.EditInvoiceItems(ctx, invoice.ID, []domain.InvoiceItem{
		{ProductID: "prod_food", Name: "Adult Dog Food 2kg", Quantity: 5, Price: 18.5},
	})
	if err != nil {
		t.Fatalf("edit invoice failed: %v", err)
	}
	if got := productStock(t, repo, "prod_food"); got != 25 {
		t.Fatalf("expected net stock 25 after edit (restore 2, deduct 5), got %v", got)
	}
	if edited.BalanceDue != edited.Total {
		t.Fatalf("expected balance due to equal total on unpaid invoice")
	}
}

func TestEditInvoiceUsesStoredTaxRate(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	invoice, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items:    []domain.InvoiceItem{{ProductID: "prod_consult", Name: "General Consultation", Quantity: 1, Price: 100}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if invoice.TaxRate != 0.12 {
		t.Fatalf("expected snapshotted tax rate 0.12, got %v", invoice.TaxRate)
	}

	// The company raises its rate afterward; the historical invoice must
	// keep pricing at the rate it was issued under.
	company, err := repo.GetCompany(context.Background(), "comp_demo")
	if err != nil {
		t.Fatalf("get company: %v", err)
	}
	company.TaxRate = 0.20
	if _, err := repo.UpdateCompany(context.Background(), *company); err != nil {
		t.Fatalf("update company: %v", err)
	}

	edited, err := svc.EditInvoiceItems(ctx, invoice.ID, []domain.InvoiceItem{
		{ProductID: "prod_consult", Name: "General Consultation", Quantity: 2, Price: 100},
	})
	if err != nil {
		t.Fatalf("edit invoice failed: %v", err)
	}
	if edited.TaxRate != 0.12 {
		t.Fatalf("expected stored tax rate preserved, got %v", edited.TaxRate)
	}
	if edited.Tax != 24 {
		t.Fatalf("expected tax 24 (200 * 0.12), got %v", edited.Tax)
	}
}

func TestEditInvoiceRejectedAfterPayment(t *testing.T) {
	svc, _, ctx := newTestService(t)

	invoice, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items:    []domain.InvoiceItem{{ProductID: "prod_consult", Name: "General Consultation", Quantity: 1, Price: 25}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, invoice.ID, domain.PaymentRequest{Amount: 5, Method: domain.PaymentMethodCard}); err != nil {
		t.Fatalf("record payment failed: %v", err)
	}

	_, err = svc.EditInvoiceItems(ctx, invoice.ID, []domain.InvoiceItem{
		{ProductID: "prod_consult", Name: "General Consultation", Quantity: 2, Price: 25},
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state editing a paid invoice, got %v", err)
	}
}

func TestRecordPaymentLifecycle(t *testing.T) {
	svc, _, ctx := newTestService(t)

	invoice, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items:    []domain.InvoiceItem{{ProductID: "prod_consult", Name: "General Consultation", Quantity: 4, Price: 25}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	partial, err := svc.RecordPayment(ctx, invoice.ID, domain.PaymentRequest{Amount: 50, Method: domain.PaymentMethodCard})
	if err != nil {
		t.Fatalf("partial payment failed: %v", err)
	}
	if partial.Status != domain.InvoiceStatusUnpaid {
		t.Fatalf("expected invoice still Unpaid after partial payment, got %s", partial.Status)
	}
	if partial.BalanceDue != partial.Total-50 {
		t.Fatalf("expected balance %v, got %v", partial.Total-50, partial.BalanceDue)
	}

	// Overpayment is accepted: the balance goes negative and the invoice
	// flips to Paid.
	final, err := svc.RecordPayment(ctx, invoice.ID, domain.PaymentRequest{Amount: partial.BalanceDue + 10, Method: domain.PaymentMethodCash})
	if err != nil {
		t.Fatalf("final payment failed: %v", err)
	}
	if final.Status != domain.InvoiceStatusPaid {
		t.Fatalf("expected Paid after covering balance, got %s", final.Status)
	}
	if final.BalanceDue != -10 {
		t.Fatalf("expected balance -10 after overpayment, got %v", final.BalanceDue)
	}
	if len(final.PaymentHistory) != 2 {
		t.Fatalf("expected 2 payments in history, got %d", len(final.PaymentHistory))
	}
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	svc, _, ctx := newTestService(t)
	invoice, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items:    []domain.InvoiceItem{{ProductID: "prod_consult", Name: "General Consultation", Quantity: 1, Price: 25}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, invoice.ID, domain.PaymentRequest{Amount: 0, Method: domain.PaymentMethodCash}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
}

func TestCashierShiftReconciliation(t *testing.T) {
	svc, _, ctx := newTestService(t)

	shift, err := svc.OpenShift(ctx, "comp_demo", domain.ShiftOpenRequest{PointOfSaleID: "pos_front", OpeningBalance: 100})
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}

	invoice, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items:    []domain.InvoiceItem{{ProductID: "prod_consult", Name: "General Consultation", Quantity: 2, Price: 25}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, invoice.ID, domain.PaymentRequest{
		Amount: 50, Method: domain.PaymentMethodCash, CashierShiftID: shift.ID,
	}); err != nil {
		t.Fatalf("record cash payment failed: %v", err)
	}
	if _, err := svc.RecordExpense(ctx, "comp_demo", domain.ExpenseRequest{
		Amount: 20, Description: "Courier", CategoryID: "expcat_misc", CashierShiftID: shift.ID,
	}); err != nil {
		t.Fatalf("record expense failed: %v", err)
	}

	closed, err := svc.CloseShift(ctx, shift.ID, domain.ShiftCloseRequest{ClosingBalance: 130})
	if err != nil {
		t.Fatalf("close shift failed: %v", err)
	}
	if closed.CalculatedCashTotal != 30 {
		t.Fatalf("expected calculated cash total 30 (+50-20), got %v", closed.CalculatedCashTotal)
	}
	if closed.Difference == nil || *closed.Difference != 0 {
		t.Fatalf("expected difference 0, got %v", closed.Difference)
	}
	if len(closed.Payments) != 1 || len(closed.Expenses) != 1 {
		t.Fatalf("expected 1 payment and 1 expense on the shift, got %d/%d", len(closed.Payments), len(closed.Expenses))
	}
	if closed.Status != domain.ShiftStatusClosed {
		t.Fatalf("expected shift Closed, got %s", closed.Status)
	}
}

func TestCloseShiftTwiceFails(t *testing.T) {
	svc, _, ctx := newTestService(t)
	shift, err := svc.OpenShift(ctx, "comp_demo", domain.ShiftOpenRequest{PointOfSaleID: "pos_front", OpeningBalance: 50})
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}
	if _, err := svc.CloseShift(ctx, shift.ID, domain.ShiftCloseRequest{ClosingBalance: 50}); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if _, err := svc.CloseShift(ctx, shift.ID, domain.ShiftCloseRequest{ClosingBalance: 50}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state on second close, got %v", err)
	}
}

func TestOpenShiftRejectsSecondOpenOnSamePointOfSale(t *testing.T) {
	svc, _, ctx := newTestService(t)
	if _, err := svc.OpenShift(ctx, "comp_demo", domain.ShiftOpenRequest{PointOfSaleID: "pos_front", OpeningBalance: 10}); err != nil {
		t.Fatalf("open shift failed: %v", err)
	}
	_, err := svc.OpenShift(ctx, "comp_demo", domain.ShiftOpenRequest{PointOfSaleID: "pos_front", OpeningBalance: 10})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state opening a second shift on the same register, got %v", err)
	}
}

func TestPaymentIntoClosedShiftRejected(t *testing.T) {
	svc, _, ctx := newTestService(t)
	shift, err := svc.OpenShift(ctx, "comp_demo", domain.ShiftOpenRequest{PointOfSaleID: "pos_front", OpeningBalance: 10})
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}
	if _, err := svc.CloseShift(ctx, shift.ID, domain.ShiftCloseRequest{ClosingBalance: 10}); err != nil {
		t.Fatalf("close shift failed: %v", err)
	}
	invoice, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items:    []domain.InvoiceItem{{ProductID: "prod_consult", Name: "General Consultation", Quantity: 1, Price: 25}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	_, err = svc.RecordPayment(ctx, invoice.ID, domain.PaymentRequest{Amount: 10, Method: domain.PaymentMethodCash, CashierShiftID: shift.ID})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state paying into a closed shift, got %v", err)
	}
}

func TestHospitalizationMedicationAndDischargeBilling(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	hosp, err := svc.AdmitPatient(ctx, "comp_demo", domain.AdmissionRequest{
		PetID: "pet_demo", Reason: "Parvovirus", InitialDiagnosis: "Dehydration", VetInCharge: "Luis Mora",
	})
	if err != nil {
		t.Fatalf("admit failed: %v", err)
	}

	if _, err := svc.LogMedication(ctx, hosp.ID, domain.MedicationLogEntry{
		ProductID: "prod_amox", LotID: "lot_amox_1", Quantity: 2, Dosage: "250mg", Route: "PO",
	}); err != nil {
		t.Fatalf("first medication log failed: %v", err)
	}
	updated, err := svc.LogMedication(ctx, hosp.ID, domain.MedicationLogEntry{
		ProductID: "prod_amox", LotID: "lot_amox_1", Quantity: 1, Dosage: "250mg", Route: "PO",
	})
	if err != nil {
		t.Fatalf("second medication log failed: %v", err)
	}
	if got := lotQuantity(t, repo, "prod_amox", "lot_amox_1"); got != 37 {
		t.Fatalf("expected stock deducted at administration time (40-3=37), got %v", got)
	}

	// Mark the first entry as already billed, as if an interim invoice
	// had covered it.
	updated.MedicationLog[0].InvoiceID = "inv_earlier"
	if _, err := repo.UpdateHospitalization(context.Background(), *updated); err != nil {
		t.Fatalf("stamp entry: %v", err)
	}

	result, err := svc.DischargePatient(ctx, hosp.ID, domain.DischargeRequest{Outcome: "Improved"})
	if err != nil {
		t.Fatalf("discharge failed: %v", err)
	}
	if result.Invoice == nil {
		t.Fatalf("expected a discharge invoice")
	}
	if len(result.Invoice.Items) != 1 {
		t.Fatalf("expected exactly 1 line for the unbilled entry, got %d", len(result.Invoice.Items))
	}
	if result.Invoice.Items[0].Quantity != 1 {
		t.Fatalf("expected the unbilled entry's quantity 1, got %v", result.Invoice.Items[0].Quantity)
	}
	if got := lotQuantity(t, repo, "prod_amox", "lot_amox_1"); got != 37 {
		t.Fatalf("discharge must not deduct stock again, got %v", got)
	}
	if result.Hospitalization.Status != domain.HospitalizationStatusDischarged {
		t.Fatalf("expected Discharged, got %s", result.Hospitalization.Status)
	}
	for _, entry := range result.Hospitalization.MedicationLog {
		if entry.InvoiceID == "" {
			t.Fatalf("expected every entry billed after discharge")
		}
	}
	if result.Hospitalization.MedicationLog[0].InvoiceID != "inv_earlier" {
		t.Fatalf("already-billed entry must keep its original invoice id")
	}
}

func TestDischargeWithoutUnbilledEntriesCreatesNoInvoice(t *testing.T) {
	svc, _, ctx := newTestService(t)
	hosp, err := svc.AdmitPatient(ctx, "comp_demo", domain.AdmissionRequest{PetID: "pet_demo", Reason: "Observation"})
	if err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	result, err := svc.DischargePatient(ctx, hosp.ID, domain.DischargeRequest{Outcome: "Stable"})
	if err != nil {
		t.Fatalf("discharge failed: %v", err)
	}
	if result.Invoice != nil {
		t.Fatalf("expected no invoice without unbilled medication")
	}
}

func TestDischargeTwiceFails(t *testing.T) {
	svc, _, ctx := newTestService(t)
	hosp, err := svc.AdmitPatient(ctx, "comp_demo", domain.AdmissionRequest{PetID: "pet_demo", Reason: "Observation"})
	if err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	if _, err := svc.DischargePatient(ctx, hosp.ID, domain.DischargeRequest{Outcome: "Stable"}); err != nil {
		t.Fatalf("discharge failed: %v", err)
	}
	if _, err := svc.DischargePatient(ctx, hosp.ID, domain.DischargeRequest{Outcome: "Stable"}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("expected invalid state discharging twice, got %v", err)
	}
}

func TestAddMedicalRecordSideEffects(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	record, err := svc.AddMedicalRecord(ctx, "pet_demo", domain.MedicalRecordRequest{
		Date:         "2026-08-01",
		Vet:          "Luis Mora",
		Reason:       "Annual vaccination",
		Category:     "Vaccine",
		Weight:       13.1,
		ReminderDays: 365,
		Action:       "bill",
		InvoiceItems: []domain.InvoiceItem{
			{ProductID: "prod_amox", Name: "Amoxicillin 250mg", Quantity: 2, Price: 1.5, LotID: "lot_amox_2"},
		},
	})
	if err != nil {
		t.Fatalf("add medical record failed: %v", err)
	}
	if record.InvoiceID == "" {
		t.Fatalf("expected invoice linked back onto the record")
	}
	if got := lotQuantity(t, repo, "prod_amox", "lot_amox_2"); got != 58 {
		t.Fatalf("expected normal stock deduction for billed record (60-2=58), got %v", got)
	}

	pet, err := repo.GetPet(context.Background(), "pet_demo")
	if err != nil {
		t.Fatalf("get pet: %v", err)
	}
	last := pet.WeightHistory[len(pet.WeightHistory)-1]
	if last.Weight != 13.1 || last.Date != "2026-08-01" {
		t.Fatalf("expected weight history entry appended, got %+v", last)
	}

	reminders, err := repo.ListReminders(context.Background(), "comp_demo")
	if err != nil {
		t.Fatalf("list reminders: %v", err)
	}
	if len(reminders) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(reminders))
	}
	if reminders[0].DueDate != "2027-08-01" {
		t.Fatalf("expected reminder due 2027-08-01, got %s", reminders[0].DueDate)
	}
	if reminders[0].RelatedRecordID != record.ID {
		t.Fatalf("expected reminder linked to the record")
	}
}

func TestInternalConsumptionDeductsWithoutInvoice(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	created, err := svc.RecordInternalConsumption(ctx, "comp_demo", domain.ConsumptionRequest{
		ProductID: "prod_gauze", Quantity: 5, Reason: "Surgery prep",
	})
	if err != nil {
		t.Fatalf("consumption failed: %v", err)
	}
	if got := productStock(t, repo, "prod_gauze"); got != 45 {
		t.Fatalf("expected gauze stock 45, got %v", got)
	}
	if created.RecordedByVet != "Ana Torres" {
		t.Fatalf("expected actor name on consumption, got %q", created.RecordedByVet)
	}
	invoices, err := repo.ListInvoices(context.Background(), "comp_demo")
	if err != nil {
		t.Fatalf("list invoices: %v", err)
	}
	if len(invoices) != 0 {
		t.Fatalf("consumption must not create invoices")
	}
}

func TestRecordPurchaseTrackedAddsLot(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	supplier, err := repo.CreateSupplier(context.Background(), domain.Supplier{CompanyID: "comp_demo", Name: "VetPharma"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	_, err = svc.RecordPurchase(ctx, "comp_demo", domain.PurchaseRequest{
		ProductID: "prod_amox", SupplierID: supplier.ID, Quantity: 25,
		PurchasePrice: 0.8, LotNumber: "AMX-2401", ExpirationDate: "2028-01-01",
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	product, err := repo.GetProduct(context.Background(), "prod_amox")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if len(product.Lots) != 3 {
		t.Fatalf("expected a third lot after purchase, got %d", len(product.Lots))
	}
	if product.TotalStock() != 125 {
		t.Fatalf("expected total stock 125, got %v", product.TotalStock())
	}
}

func TestRecordPurchaseTrackedRequiresLotNumber(t *testing.T) {
	svc, repo, ctx := newTestService(t)
	supplier, err := repo.CreateSupplier(context.Background(), domain.Supplier{CompanyID: "comp_demo", Name: "VetPharma"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	_, err = svc.RecordPurchase(ctx, "comp_demo", domain.PurchaseRequest{
		ProductID: "prod_amox", SupplierID: supplier.ID, Quantity: 25, PurchasePrice: 0.8,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error without lot number, got %v", err)
	}
}

func TestRecordPurchaseBucketTopsUp(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	supplier, err := repo.CreateSupplier(context.Background(), domain.Supplier{CompanyID: "comp_demo", Name: "FoodCo"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	if _, err := svc.RecordPurchase(ctx, "comp_demo", domain.PurchaseRequest{
		ProductID: "prod_food", SupplierID: supplier.ID, Quantity: 12, PurchasePrice: 11,
	}); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	product, err := repo.GetProduct(context.Background(), "prod_food")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if len(product.Lots) != 1 || product.Lots[0].Quantity != 42 {
		t.Fatalf("expected bucket topped up to 42, got %+v", product.Lots)
	}
}

func TestConcurrentDeductionsSerializePerProduct(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	product, err := repo.CreateProduct(context.Background(), domain.Product{
		CompanyID:       "comp_demo",
		Name:            "Rabies Vaccine",
		Category:        domain.CategoryMedicine,
		UsesLotTracking: true,
		SalePrice:       12,
		Lots:            []domain.ProductLot{{ID: "lot_last", LotNumber: "RAB-01", Quantity: 1, ExpirationDate: "2027-01-01"}},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
				ClientID: "cli_demo",
				Items: []domain.InvoiceItem{
					{ProductID: product.ID, Name: product.Name, Quantity: 1, Price: 12, LotID: "lot_last"},
				},
			})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			if !errors.Is(err, store.ErrInsufficientStock) {
				t.Fatalf("expected insufficient stock on the losing sale, got %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one of two concurrent sales to fail, got %d failures", failures)
	}
	final, err := repo.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if final.TotalStock() != 0 {
		t.Fatalf("expected stock fully consumed exactly once, got %v", final.TotalStock())
	}
}

func TestCreateProductWithInitialStock(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	created, err := svc.CreateProduct(ctx, "comp_demo", domain.ProductCreateRequest{
		Name: "Flea Collar", Category: domain.CategoryAccessory, SalePrice: 9.5, InitialStock: 15,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	product, err := repo.GetProduct(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if len(product.Lots) != 1 || product.Lots[0].LotNumber != domain.BucketLotNumber || product.Lots[0].Quantity != 15 {
		t.Fatalf("expected initial stock in bucket lot, got %+v", product.Lots)
	}
}

func TestInventoryAlertsReflectStock(t *testing.T) {
	svc, _, ctx := newTestService(t)

	// Drain the gauze bucket below its threshold of 10.
	if _, err := svc.RecordInternalConsumption(ctx, "comp_demo", domain.ConsumptionRequest{
		ProductID: "prod_gauze", Quantity: 45, Reason: "Inventory correction",
	}); err != nil {
		t.Fatalf("consumption failed: %v", err)
	}
	alerts, err := svc.InventoryAlerts(ctx, "comp_demo")
	if err != nil {
		t.Fatalf("alerts failed: %v", err)
	}
	found := false
	for _, a := range alerts.LowStock {
		if a.ProductID == "prod_gauze" && a.CurrentStock == 5 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected low-stock alert for gauze, got %+v", alerts.LowStock)
	}
}

// faultyRepo wraps the seeded store and fails selected writes, so tests
// can check that a failed second write does not leave the first one
// behind.
type faultyRepo struct {
	store.Repository
	failCreateInvoice bool
	failUpdateInvoice bool
	failUpdateShift   bool
	failCreateExpense bool
	failUpdateHosp    bool
	openShiftErr      error
}

var errStoreDown = errors.New("store write failed")

func (r *faultyRepo) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if r.failCreateInvoice {
		return nil, errStoreDown
	}
	return r.Repository.CreateInvoice(ctx, invoice)
}

func (r *faultyRepo) UpdateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if r.failUpdateInvoice {
		return nil, errStoreDown
	}
	return r.Repository.UpdateInvoice(ctx, invoice)
}

func (r *faultyRepo) UpdateShift(ctx context.Context, shift domain.CashierShift) (*domain.CashierShift, error) {
	if r.failUpdateShift {
		return nil, errStoreDown
	}
	return r.Repository.UpdateShift(ctx, shift)
}

func (r *faultyRepo) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if r.failCreateExpense {
		return nil, errStoreDown
	}
	return r.Repository.CreateExpense(ctx, expense)
}

func (r *faultyRepo) UpdateHospitalization(ctx context.Context, hosp domain.Hospitalization) (*domain.Hospitalization, error) {
	if r.failUpdateHosp {
		return nil, errStoreDown
	}
	return r.Repository.UpdateHospitalization(ctx, hosp)
}

func (r *faultyRepo) GetOpenShiftByPointOfSale(ctx context.Context, posID string) (*domain.CashierShift, error) {
	if r.openShiftErr != nil {
		return nil, r.openShiftErr
	}
	return r.Repository.GetOpenShiftByPointOfSale(ctx, posID)
}

func newFaultyService(t *testing.T) (*Service, *faultyRepo, *memory.Store, context.Context) {
	t.Helper()
	repo := memory.NewSeeded()
	faulty := &faultyRepo{Repository: repo}
	svc := New(faulty, nil)
	ctx := WithActor(context.Background(), domain.Actor{
		Email: "admin@clinica.demo",
		Name:  "Ana Torres",
		Role:  domain.RoleAdmin,
	})
	return svc, faulty, repo, ctx
}

func TestCreateSaleRestoresStockWhenInvoiceWriteFails(t *testing.T) {
	svc, faulty, repo, ctx := newFaultyService(t)
	faulty.failCreateInvoice = true

	_, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items: []domain.InvoiceItem{
			{ProductID: "prod_food", Name: "Adult Dog Food 2kg", Quantity: 2, Price: 18.5},
		},
	})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected the invoice write failure, got %v", err)
	}
	if got := productStock(t, repo, "prod_food"); got != 30 {
		t.Fatalf("expected deduction rolled back to 30 after failed sale, got %v", got)
	}
}

func TestEditInvoiceRestoresStockWhenInvoiceWriteFails(t *testing.T) {
	svc, faulty, repo, ctx := newFaultyService(t)

	invoice, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items: []domain.InvoiceItem{
			{ProductID: "prod_food", Name: "Adult Dog Food 2kg", Quantity: 2, Price: 18.5},
		},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	faulty.failUpdateInvoice = true
	_, err = svc.EditInvoiceItems(ctx, invoice.ID, []domain.InvoiceItem{
		{ProductID: "prod_food", Name: "Adult Dog Food 2kg", Quantity: 5, Price: 18.5},
	})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected the invoice write failure, got %v", err)
	}
	if got := productStock(t, repo, "prod_food"); got != 28 {
		t.Fatalf("expected stock back at 28 (original sale only), got %v", got)
	}
}

func TestRecordPaymentRevertedWhenShiftWriteFails(t *testing.T) {
	svc, faulty, repo, ctx := newFaultyService(t)

	shift, err := svc.OpenShift(ctx, "comp_demo", domain.ShiftOpenRequest{PointOfSaleID: "pos_front", OpeningBalance: 100})
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}
	invoice, err := svc.CreateSale(ctx, "comp_demo", domain.SaleRequest{
		ClientID: "cli_demo",
		Items:    []domain.InvoiceItem{{ProductID: "prod_consult", Name: "General Consultation", Quantity: 2, Price: 25}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	faulty.failUpdateShift = true
	_, err = svc.RecordPayment(ctx, invoice.ID, domain.PaymentRequest{
		Amount: 50, Method: domain.PaymentMethodCash, CashierShiftID: shift.ID,
	})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected the shift write failure, got %v", err)
	}

	reloaded, err := repo.GetInvoice(context.Background(), invoice.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if reloaded.AmountPaid != 0 || reloaded.Status != domain.InvoiceStatusUnpaid || len(reloaded.PaymentHistory) != 0 {
		t.Fatalf("expected payment reverted off the invoice, got paid=%v status=%s history=%d",
			reloaded.AmountPaid, reloaded.Status, len(reloaded.PaymentHistory))
	}
}

func TestRecordExpenseRevertsShiftWhenExpenseWriteFails(t *testing.T) {
	svc, faulty, repo, ctx := newFaultyService(t)

	shift, err := svc.OpenShift(ctx, "comp_demo", domain.ShiftOpenRequest{PointOfSaleID: "pos_front", OpeningBalance: 100})
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}

	faulty.failCreateExpense = true
	_, err = svc.RecordExpense(ctx, "comp_demo", domain.ExpenseRequest{
		Amount: 20, Description: "Courier", CategoryID: "expcat_misc", CashierShiftID: shift.ID,
	})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected the expense write failure, got %v", err)
	}

	reloaded, err := repo.GetShift(context.Background(), shift.ID)
	if err != nil {
		t.Fatalf("get shift: %v", err)
	}
	if reloaded.CalculatedCashTotal != 0 || len(reloaded.Expenses) != 0 {
		t.Fatalf("expected drawer tally reverted, got total=%v expenses=%d", reloaded.CalculatedCashTotal, len(reloaded.Expenses))
	}
	expenses, err := repo.ListExpenses(context.Background(), "comp_demo")
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(expenses) != 0 {
		t.Fatalf("expected no expense persisted, got %d", len(expenses))
	}
}

func TestLogMedicationRestoresStockWhenChartWriteFails(t *testing.T) {
	svc, faulty, repo, ctx := newFaultyService(t)

	hosp, err := svc.AdmitPatient(ctx, "comp_demo", domain.AdmissionRequest{PetID: "pet_demo", Reason: "Observation"})
	if err != nil {
		t.Fatalf("admit failed: %v", err)
	}

	faulty.failUpdateHosp = true
	_, err = svc.LogMedication(ctx, hosp.ID, domain.MedicationLogEntry{
		ProductID: "prod_amox", LotID: "lot_amox_1", Quantity: 2, Dosage: "250mg", Route: "PO",
	})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected the chart write failure, got %v", err)
	}
	if got := lotQuantity(t, repo, "prod_amox", "lot_amox_1"); got != 40 {
		t.Fatalf("expected deduction rolled back to 40 after failed log, got %v", got)
	}
}

func TestDischargeRevertedWhenInvoiceWriteFails(t *testing.T) {
	svc, faulty, repo, ctx := newFaultyService(t)

	hosp, err := svc.AdmitPatient(ctx, "comp_demo", domain.AdmissionRequest{PetID: "pet_demo", Reason: "Parvovirus"})
	if err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	if _, err := svc.LogMedication(ctx, hosp.ID, domain.MedicationLogEntry{
		ProductID: "prod_amox", LotID: "lot_amox_1", Quantity: 2, Dosage: "250mg", Route: "PO",
	}); err != nil {
		t.Fatalf("medication log failed: %v", err)
	}

	faulty.failCreateInvoice = true
	if _, err := svc.DischargePatient(ctx, hosp.ID, domain.DischargeRequest{Outcome: "Improved"}); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected the invoice write failure, got %v", err)
	}

	reloaded, err := repo.GetHospitalization(context.Background(), hosp.ID)
	if err != nil {
		t.Fatalf("get hospitalization: %v", err)
	}
	if reloaded.Status != domain.HospitalizationStatusActive {
		t.Fatalf("expected hospitalization still Active after failed discharge, got %s", reloaded.Status)
	}
	if reloaded.InvoiceID != "" || reloaded.MedicationLog[0].InvoiceID != "" {
		t.Fatalf("expected entries left unbilled after failed discharge, got %+v", reloaded.MedicationLog)
	}

	// The retry goes through once the store recovers.
	faulty.failCreateInvoice = false
	result, err := svc.DischargePatient(ctx, hosp.ID, domain.DischargeRequest{Outcome: "Improved"})
	if err != nil {
		t.Fatalf("discharge retry failed: %v", err)
	}
	if result.Invoice == nil || len(result.Invoice.Items) != 1 {
		t.Fatalf("expected the retry to bill the pending entry, got %+v", result.Invoice)
	}
}

func TestOpenShiftPropagatesStoreError(t *testing.T) {
	svc, faulty, _, ctx := newFaultyService(t)
	faulty.openShiftErr = errStoreDown

	_, err := svc.OpenShift(ctx, "comp_demo", domain.ShiftOpenRequest{PointOfSaleID: "pos_front", OpeningBalance: 10})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error surfaced, got %v", err)
	}
	if errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("a failing lookup must not read as an already-open shift: %v", err)
	}
}

func TestDeleteClientCascades(t *testing.T) {
	svc, repo, ctx := newTestService(t)

	if _, err := svc.AddMedicalRecord(ctx, "pet_demo", domain.MedicalRecordRequest{
		Reason: "Checkup", Category: "General", ReminderDays: 30,
	}); err != nil {
		t.Fatalf("add medical record failed: %v", err)
	}

	if err := svc.DeleteClient(ctx, "cli_demo"); err != nil {
		t.Fatalf("delete client failed: %v", err)
	}
	if _, err := repo.GetPet(context.Background(), "pet_demo"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected pet removed with its owner, got %v", err)
	}
	records, err := repo.ListMedicalRecords(context.Background(), "pet_demo")
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected medical records removed with the pet, got %d", len(records))
	}
	reminders, err := repo.ListReminders(context.Background(), "comp_demo")
	if err != nil {
		t.Fatalf("list reminders: %v", err)
	}
	if len(reminders) != 0 {
		t.Fatalf("expected reminders removed with the pet, got %d", len(reminders))
	}
}
