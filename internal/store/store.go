package store

import (
	"context"
	"errors"

	"veterinaria/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
	ErrValidation        = errors.New("validation failed")
)

// StockMutation is one lot-level quantity change. A negative Delta deducts,
// a positive Delta restores. LotID empty means the product's bucket lot.
// LotNumber and ExpirationDate are the snapshot used to recreate a lot
// that was pruned after hitting zero.
type StockMutation struct {
	ProductID      string
	LotID          string
	LotNumber      string
	ExpirationDate string
	Delta          float64
}

// Repository is the persistence boundary. List and query methods are
// company-scoped; lookups by id resolve globally and return the owning
// company on the entity. Implementations must apply ApplyStockMutations
// and CreateInvoice atomically: concurrent stock mutations against the
// same product are serialized, and either every mutation in the batch is
// applied or none is.
type Repository interface {
	GetCompany(ctx context.Context, companyID string) (*domain.Company, error)
	ListCompanies(ctx context.Context) ([]domain.Company, error)
	CreateCompany(ctx context.Context, company domain.Company) (*domain.Company, error)
	UpdateCompany(ctx context.Context, company domain.Company) (*domain.Company, error)

	GetVetByEmail(ctx context.Context, email string) (*domain.Vet, error)
	ListVets(ctx context.Context, companyID string) ([]domain.Vet, error)
	CreateVet(ctx context.Context, vet domain.Vet) (*domain.Vet, error)
	UpdateVet(ctx context.Context, vet domain.Vet) (*domain.Vet, error)

	ListClients(ctx context.Context, companyID string) ([]domain.Client, error)
	GetClient(ctx context.Context, clientID string) (*domain.Client, error)
	CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	// DeleteClient cascades to the client's pets and their dependent
	// records (medical records, reminders, appointments, prescriptions).
	// Invoices are retained.
	DeleteClient(ctx context.Context, clientID string) error

	ListPets(ctx context.Context, companyID string) ([]domain.Pet, error)
	ListPetsByOwner(ctx context.Context, ownerID string) ([]domain.Pet, error)
	GetPet(ctx context.Context, petID string) (*domain.Pet, error)
	CreatePet(ctx context.Context, pet domain.Pet) (*domain.Pet, error)
	UpdatePet(ctx context.Context, pet domain.Pet) (*domain.Pet, error)
	DeletePet(ctx context.Context, petID string) error

	CreateMedicalRecord(ctx context.Context, record domain.MedicalRecord) (*domain.MedicalRecord, error)
	UpdateMedicalRecord(ctx context.Context, record domain.MedicalRecord) (*domain.MedicalRecord, error)
	ListMedicalRecords(ctx context.Context, petID string) ([]domain.MedicalRecord, error)

	CreateReminder(ctx context.Context, reminder domain.Reminder) (*domain.Reminder, error)
	ListReminders(ctx context.Context, companyID string) ([]domain.Reminder, error)
	UpdateReminderStatus(ctx context.Context, reminderID string, status string) (*domain.Reminder, error)

	ListProducts(ctx context.Context, companyID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	ApplyStockMutations(ctx context.Context, companyID string, mutations []StockMutation) error

	ListSuppliers(ctx context.Context, companyID string) ([]domain.Supplier, error)
	GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, companyID string) ([]domain.Purchase, error)

	CreateInternalConsumption(ctx context.Context, consumption domain.InternalConsumption) (*domain.InternalConsumption, error)
	ListInternalConsumptions(ctx context.Context, companyID string) ([]domain.InternalConsumption, error)

	// CreateInvoice assigns the per-company sequential invoice number
	// (max numeric number + 1, starting at 1) when InvoiceNumber is empty.
	CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, companyID string) ([]domain.Invoice, error)

	ListPointsOfSale(ctx context.Context, companyID string) ([]domain.PointOfSale, error)
	GetPointOfSale(ctx context.Context, posID string) (*domain.PointOfSale, error)
	CreatePointOfSale(ctx context.Context, pos domain.PointOfSale) (*domain.PointOfSale, error)

	CreateShift(ctx context.Context, shift domain.CashierShift) (*domain.CashierShift, error)
	GetShift(ctx context.Context, shiftID string) (*domain.CashierShift, error)
	UpdateShift(ctx context.Context, shift domain.CashierShift) (*domain.CashierShift, error)
	ListShifts(ctx context.Context, companyID string) ([]domain.CashierShift, error)
	GetOpenShiftByPointOfSale(ctx context.Context, posID string) (*domain.CashierShift, error)

	ListExpenseCategories(ctx context.Context, companyID string) ([]domain.ExpenseCategory, error)
	GetExpenseCategory(ctx context.Context, categoryID string) (*domain.ExpenseCategory, error)
	CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error)
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, companyID string) ([]domain.Expense, error)

	CreateHospitalization(ctx context.Context, hosp domain.Hospitalization) (*domain.Hospitalization, error)
	GetHospitalization(ctx context.Context, hospID string) (*domain.Hospitalization, error)
	UpdateHospitalization(ctx context.Context, hosp domain.Hospitalization) (*domain.Hospitalization, error)
	ListHospitalizations(ctx context.Context, companyID string) ([]domain.Hospitalization, error)

	CreateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error)
	ListAppointments(ctx context.Context, companyID string) ([]domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error)

	CreatePrescription(ctx context.Context, prescription domain.Prescription) (*domain.Prescription, error)
	ListPrescriptions(ctx context.Context, companyID string) ([]domain.Prescription, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, companyID string, limit int) ([]domain.AuditLog, error)
}
