package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"veterinaria/backend/internal/domain"
	"veterinaria/backend/internal/inventory"
	"veterinaria/backend/internal/store"
	"veterinaria/backend/internal/xid"
)

// Store is the in-memory Repository. It backs the test suite and the
// no-DATABASE_URL dev mode. The single mutex is the serialization
// boundary: every multi-step mutation happens entirely inside it.
type Store struct {
	mu                sync.RWMutex
	companies         map[string]domain.Company
	vetsByID          map[string]domain.Vet
	clients           map[string]domain.Client
	pets              map[string]domain.Pet
	medicalRecords    map[string]domain.MedicalRecord
	reminders         map[string]domain.Reminder
	products          map[string]domain.Product
	suppliers         map[string]domain.Supplier
	purchases         map[string]domain.Purchase
	consumptions      map[string]domain.InternalConsumption
	invoices          map[string]domain.Invoice
	pointsOfSale      map[string]domain.PointOfSale
	shifts            map[string]domain.CashierShift
	expenseCategories map[string]domain.ExpenseCategory
	expenses          map[string]domain.Expense
	hospitalizations  map[string]domain.Hospitalization
	appointments      map[string]domain.Appointment
	prescriptions     map[string]domain.Prescription
	auditLogs         []domain.AuditLog
}

func New() *Store {
	return &Store{
		companies:         make(map[string]domain.Company),
		vetsByID:          make(map[string]domain.Vet),
		clients:           make(map[string]domain.Client),
		pets:              make(map[string]domain.Pet),
		medicalRecords:    make(map[string]domain.MedicalRecord),
		reminders:         make(map[string]domain.Reminder),
		products:          make(map[string]domain.Product),
		suppliers:         make(map[string]domain.Supplier),
		purchases:         make(map[string]domain.Purchase),
		consumptions:      make(map[string]domain.InternalConsumption),
		invoices:          make(map[string]domain.Invoice),
		pointsOfSale:      make(map[string]domain.PointOfSale),
		shifts:            make(map[string]domain.CashierShift),
		expenseCategories: make(map[string]domain.ExpenseCategory),
		expenses:          make(map[string]domain.Expense),
		hospitalizations:  make(map[string]domain.Hospitalization),
		appointments:      make(map[string]domain.Appointment),
		prescriptions:     make(map[string]domain.Prescription),
		auditLogs:         make([]domain.AuditLog, 0, 128),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store loaded with a demo clinic. Seed credentials
// come from SEED_ADMIN_PASSWORD / SEED_VET_PASSWORD; hardcoded dev
// defaults are used with a warning when unset. Production runs against
// PostgreSQL and never sees this data.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	company := domain.Company{
		ID:      "comp_demo",
		Name:    "Clinica Veterinaria Demo",
		TaxRate: 0.12,
		Address: "Av. Principal 123",
		Phone:   "+593 2 555 0100",
	}
	s.companies[company.ID] = company

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	vetPwd := envOr("SEED_VET_PASSWORD", "vet12345")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_VET_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_VET_PASSWORD to override.")
	}
	for _, u := range []struct {
		id        string
		name      string
		email     string
		password  string
		role      string
		specialty string
	}{
		{"vet_admin", "Ana Torres", "admin@clinica.demo", adminPwd, domain.RoleAdmin, "Administration"},
		{"vet_demo", "Luis Mora", "vet@clinica.demo", vetPwd, domain.RoleVet, "General Practice"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.email, err)
		}
		s.vetsByID[u.id] = domain.Vet{
			ID:        u.id,
			Name:      u.name,
			Email:     u.email,
			Password:  string(hash),
			Specialty: u.specialty,
			Role:      u.role,
			CompanyID: company.ID,
			Active:    true,
			CreatedAt: now,
		}
	}

	client := domain.Client{
		ID:                   "cli_demo",
		CompanyID:            company.ID,
		Name:                 "Maria Lopez",
		Email:                "maria@example.com",
		Phone:                "+593 99 555 0101",
		Address:              "Calle 10 #4-21",
		IdentificationNumber: "1712345678",
		MemberSince:          now,
	}
	s.clients[client.ID] = client
	s.pets["pet_demo"] = domain.Pet{
		ID:            "pet_demo",
		CompanyID:     company.ID,
		OwnerID:       client.ID,
		Name:          "Rocky",
		Species:       "Dog",
		Breed:         "Beagle",
		Age:           4,
		Sex:           "Male",
		Color:         "Tricolor",
		MedicalAlerts: []string{},
		WeightHistory: []domain.WeightEntry{{Date: now.Format("2006-01-02"), Weight: 12.4}},
	}

	for _, p := range []domain.Product{
		{
			ID: "prod_consult", CompanyID: company.ID, Name: "General Consultation",
			Category: domain.CategoryService, SalePrice: 25, Taxable: true,
		},
		{
			ID: "prod_amox", CompanyID: company.ID, Name: "Amoxicillin 250mg",
			Category: domain.CategoryMedicine, UsesLotTracking: true, SalePrice: 1.5,
			LowStockThreshold: 20, Taxable: true,
			Lots: []domain.ProductLot{
				{ID: "lot_amox_1", LotNumber: "AMX-2301", Quantity: 40, ExpirationDate: "2027-03-01"},
				{ID: "lot_amox_2", LotNumber: "AMX-2302", Quantity: 60, ExpirationDate: "2027-09-01"},
			},
		},
		{
			ID: "prod_food", CompanyID: company.ID, Name: "Adult Dog Food 2kg",
			Category: domain.CategoryFood, SalePrice: 18.5, LowStockThreshold: 5, Taxable: true,
			Lots: []domain.ProductLot{{ID: "lot_food_b", LotNumber: domain.BucketLotNumber, Quantity: 30}},
		},
		{
			ID: "prod_gauze", CompanyID: company.ID, Name: "Sterile Gauze Roll",
			Category: domain.CategorySupply, SalePrice: 2.2, LowStockThreshold: 10, Taxable: false,
			Lots: []domain.ProductLot{{ID: "lot_gauze_b", LotNumber: domain.BucketLotNumber, Quantity: 50}},
		},
	} {
		s.products[p.ID] = p
	}

	s.pointsOfSale["pos_front"] = domain.PointOfSale{
		ID: "pos_front", CompanyID: company.ID, Name: "Front Desk", IsActive: true,
	}
	s.expenseCategories["expcat_misc"] = domain.ExpenseCategory{
		ID: "expcat_misc", CompanyID: company.ID, Name: "Miscellaneous",
	}
	return s
}

func cmpString(a string, b string) int {
	return strings.Compare(a, b)
}

func cloneProduct(p domain.Product) domain.Product {
	clone := p
	clone.Lots = slices.Clone(p.Lots)
	clone.Suppliers = slices.Clone(p.Suppliers)
	return clone
}

func clonePet(p domain.Pet) domain.Pet {
	clone := p
	clone.MedicalAlerts = slices.Clone(p.MedicalAlerts)
	clone.WeightHistory = slices.Clone(p.WeightHistory)
	return clone
}

func cloneInvoice(inv domain.Invoice) domain.Invoice {
	clone := inv
	clone.Items = slices.Clone(inv.Items)
	clone.PaymentHistory = slices.Clone(inv.PaymentHistory)
	return clone
}

func cloneShift(sh domain.CashierShift) domain.CashierShift {
	clone := sh
	clone.Payments = slices.Clone(sh.Payments)
	clone.Expenses = slices.Clone(sh.Expenses)
	if sh.ClosingBalance != nil {
		v := *sh.ClosingBalance
		clone.ClosingBalance = &v
	}
	if sh.Difference != nil {
		v := *sh.Difference
		clone.Difference = &v
	}
	if sh.ClosingTime != nil {
		v := *sh.ClosingTime
		clone.ClosingTime = &v
	}
	return clone
}

func cloneHospitalization(h domain.Hospitalization) domain.Hospitalization {
	clone := h
	clone.VitalSignsLog = slices.Clone(h.VitalSignsLog)
	clone.MedicationLog = slices.Clone(h.MedicationLog)
	clone.ProgressNotes = slices.Clone(h.ProgressNotes)
	if h.DischargeDate != nil {
		v := *h.DischargeDate
		clone.DischargeDate = &v
	}
	return clone
}

func cloneMedicalRecord(r domain.MedicalRecord) domain.MedicalRecord {
	clone := r
	clone.Items = slices.Clone(r.Items)
	return clone
}

func clonePrescription(p domain.Prescription) domain.Prescription {
	clone := p
	clone.Items = slices.Clone(p.Items)
	return clone
}

// --- companies ---

func (s *Store) GetCompany(_ context.Context, companyID string) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	company, ok := s.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("%w: company %s", store.ErrNotFound, companyID)
	}
	return &company, nil
}

func (s *Store) ListCompanies(_ context.Context) ([]domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Company, 0, len(s.companies))
	for _, c := range s.companies {
		result = append(result, c)
	}
	slices.SortFunc(result, func(a, b domain.Company) int { return cmpString(a.ID, b.ID) })
	return result, nil
}

func (s *Store) CreateCompany(_ context.Context, company domain.Company) (*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if company.ID == "" {
		company.ID = xid.New("comp")
	}
	s.companies[company.ID] = company
	return &company, nil
}

func (s *Store) UpdateCompany(_ context.Context, company domain.Company) (*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[company.ID]; !ok {
		return nil, fmt.Errorf("%w: company %s", store.ErrNotFound, company.ID)
	}
	s.companies[company.ID] = company
	return &company, nil
}

// --- vets ---

func (s *Store) GetVetByEmail(_ context.Context, email string) (*domain.Vet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, vet := range s.vetsByID {
		if strings.EqualFold(vet.Email, email) {
			clone := vet
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("%w: vet %s", store.ErrNotFound, email)
}

func (s *Store) ListVets(_ context.Context, companyID string) ([]domain.Vet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Vet, 0)
	for _, vet := range s.vetsByID {
		if vet.CompanyID == companyID {
			result = append(result, vet)
		}
	}
	slices.SortFunc(result, func(a, b domain.Vet) int { return cmpString(a.ID, b.ID) })
	return result, nil
}

func (s *Store) CreateVet(_ context.Context, vet domain.Vet) (*domain.Vet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vet.ID == "" {
		vet.ID = xid.New("vet")
	}
	if vet.CreatedAt.IsZero() {
		vet.CreatedAt = time.Now().UTC()
	}
	for _, existing := range s.vetsByID {
		if strings.EqualFold(existing.Email, vet.Email) {
			return nil, fmt.Errorf("%w: email %s already registered", store.ErrValidation, vet.Email)
		}
	}
	s.vetsByID[vet.ID] = vet
	return &vet, nil
}

func (s *Store) UpdateVet(_ context.Context, vet domain.Vet) (*domain.Vet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vetsByID[vet.ID]; !ok {
		return nil, fmt.Errorf("%w: vet %s", store.ErrNotFound, vet.ID)
	}
	s.vetsByID[vet.ID] = vet
	return &vet, nil
}

// --- clients & pets ---

func (s *Store) ListClients(_ context.Context, companyID string) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Client, 0)
	for _, c := range s.clients {
		if c.CompanyID == companyID {
			result = append(result, c)
		}
	}
	slices.SortFunc(result, func(a, b domain.Client) int { return cmpString(a.Name, b.Name) })
	return result, nil
}

func (s *Store) GetClient(_ context.Context, clientID string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: client %s", store.ErrNotFound, clientID)
	}
	return &client, nil
}

func (s *Store) CreateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	if client.MemberSince.IsZero() {
		client.MemberSince = time.Now().UTC()
	}
	s.clients[client.ID] = client
	return &client, nil
}

func (s *Store) UpdateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client.ID]; !ok {
		return nil, fmt.Errorf("%w: client %s", store.ErrNotFound, client.ID)
	}
	s.clients[client.ID] = client
	return &client, nil
}

func (s *Store) DeleteClient(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[clientID]; !ok {
		return fmt.Errorf("%w: client %s", store.ErrNotFound, clientID)
	}
	delete(s.clients, clientID)
	for petID, pet := range s.pets {
		if pet.OwnerID != clientID {
			continue
		}
		delete(s.pets, petID)
		s.deletePetDependentsLocked(petID)
	}
	for id, appt := range s.appointments {
		if appt.ClientID == clientID {
			delete(s.appointments, id)
		}
	}
	for id, rem := range s.reminders {
		if rem.ClientID == clientID {
			delete(s.reminders, id)
		}
	}
	return nil
}

func (s *Store) deletePetDependentsLocked(petID string) {
	for id, rec := range s.medicalRecords {
		if rec.PetID == petID {
			delete(s.medicalRecords, id)
		}
	}
	for id, rem := range s.reminders {
		if rem.PetID == petID {
			delete(s.reminders, id)
		}
	}
	for id, appt := range s.appointments {
		if appt.PetID == petID {
			delete(s.appointments, id)
		}
	}
	for id, presc := range s.prescriptions {
		if presc.PetID == petID {
			delete(s.prescriptions, id)
		}
	}
}

func (s *Store) ListPets(_ context.Context, companyID string) ([]domain.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Pet, 0)
	for _, p := range s.pets {
		if p.CompanyID == companyID {
			result = append(result, clonePet(p))
		}
	}
	slices.SortFunc(result, func(a, b domain.Pet) int { return cmpString(a.ID, b.ID) })
	return result, nil
}

func (s *Store) ListPetsByOwner(_ context.Context, ownerID string) ([]domain.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Pet, 0)
	for _, p := range s.pets {
		if p.OwnerID == ownerID {
			result = append(result, clonePet(p))
		}
	}
	slices.SortFunc(result, func(a, b domain.Pet) int { return cmpString(a.ID, b.ID) })
	return result, nil
}

func (s *Store) GetPet(_ context.Context, petID string) (*domain.Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pet, ok := s.pets[petID]
	if !ok {
		return nil, fmt.Errorf("%w: pet %s", store.ErrNotFound, petID)
	}
	clone := clonePet(pet)
	return &clone, nil
}

func (s *Store) CreatePet(_ context.Context, pet domain.Pet) (*domain.Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pet.ID == "" {
		pet.ID = xid.New("pet")
	}
	if pet.MedicalAlerts == nil {
		pet.MedicalAlerts = []string{}
	}
	if pet.WeightHistory == nil {
		pet.WeightHistory = []domain.WeightEntry{}
	}
	s.pets[pet.ID] = clonePet(pet)
	return &pet, nil
}

func (s *Store) UpdatePet(_ context.Context, pet domain.Pet) (*domain.Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pets[pet.ID]; !ok {
		return nil, fmt.Errorf("%w: pet %s", store.ErrNotFound, pet.ID)
	}
	s.pets[pet.ID] = clonePet(pet)
	return &pet, nil
}

func (s *Store) DeletePet(_ context.Context, petID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pets[petID]; !ok {
		return fmt.Errorf("%w: pet %s", store.ErrNotFound, petID)
	}
	delete(s.pets, petID)
	s.deletePetDependentsLocked(petID)
	return nil
}

// --- medical records & reminders ---

func (s *Store) CreateMedicalRecord(_ context.Context, record domain.MedicalRecord) (*domain.MedicalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = xid.New("rec")
	}
	s.medicalRecords[record.ID] = cloneMedicalRecord(record)
	return &record, nil
}

func (s *Store) UpdateMedicalRecord(_ context.Context, record domain.MedicalRecord) (*domain.MedicalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.medicalRecords[record.ID]; !ok {
		return nil, fmt.Errorf("%w: medical record %s", store.ErrNotFound, record.ID)
	}
	s.medicalRecords[record.ID] = cloneMedicalRecord(record)
	return &record, nil
}

func (s *Store) ListMedicalRecords(_ context.Context, petID string) ([]domain.MedicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.MedicalRecord, 0)
	for _, rec := range s.medicalRecords {
		if rec.PetID == petID {
			result = append(result, cloneMedicalRecord(rec))
		}
	}
	slices.SortFunc(result, func(a, b domain.MedicalRecord) int { return cmpString(b.Date, a.Date) })
	return result, nil
}

func (s *Store) CreateReminder(_ context.Context, reminder domain.Reminder) (*domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reminder.ID == "" {
		reminder.ID = xid.New("rem")
	}
	if reminder.Status == "" {
		reminder.Status = domain.ReminderStatusPending
	}
	s.reminders[reminder.ID] = reminder
	return &reminder, nil
}

func (s *Store) ListReminders(_ context.Context, companyID string) ([]domain.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Reminder, 0)
	for _, rem := range s.reminders {
		if rem.CompanyID == companyID {
			result = append(result, rem)
		}
	}
	slices.SortFunc(result, func(a, b domain.Reminder) int { return cmpString(a.DueDate, b.DueDate) })
	return result, nil
}

func (s *Store) UpdateReminderStatus(_ context.Context, reminderID string, status string) (*domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reminder, ok := s.reminders[reminderID]
	if !ok {
		return nil, fmt.Errorf("%w: reminder %s", store.ErrNotFound, reminderID)
	}
	reminder.Status = status
	s.reminders[reminderID] = reminder
	return &reminder, nil
}

// --- products & stock ---

func (s *Store) ListProducts(_ context.Context, companyID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Product, 0)
	for _, p := range s.products {
		if p.CompanyID == companyID {
			result = append(result, cloneProduct(p))
		}
	}
	slices.SortFunc(result, func(a, b domain.Product) int { return cmpString(a.Name, b.Name) })
	return result, nil
}

func (s *Store) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	clone := cloneProduct(product)
	return &clone, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, productIDs []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if p, ok := s.products[id]; ok {
			result[id] = cloneProduct(p)
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	s.products[product.ID] = cloneProduct(product)
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, product.ID)
	}
	s.products[product.ID] = cloneProduct(product)
	return &product, nil
}

func (s *Store) DeleteProduct(_ context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		return fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	delete(s.products, productID)
	return nil
}

// ApplyStockMutations validates and applies the whole batch under the
// write lock. Nothing is committed unless every mutation succeeds
// against the authoritative lot state.
func (s *Store) ApplyStockMutations(_ context.Context, companyID string, mutations []store.StockMutation) error {
	if len(mutations) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := make(map[string]*domain.Product)
	for _, m := range mutations {
		product, ok := working[m.ProductID]
		if !ok {
			stored, found := s.products[m.ProductID]
			if !found || stored.CompanyID != companyID {
				return fmt.Errorf("%w: product %s", store.ErrNotFound, m.ProductID)
			}
			clone := cloneProduct(stored)
			product = &clone
			working[m.ProductID] = product
		}
		if err := inventory.ApplyMutation(product, m); err != nil {
			return err
		}
	}
	for id, product := range working {
		s.products[id] = *product
	}
	return nil
}

// --- suppliers, purchases, consumption ---

func (s *Store) ListSuppliers(_ context.Context, companyID string) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Supplier, 0)
	for _, sup := range s.suppliers {
		if sup.CompanyID == companyID {
			result = append(result, sup)
		}
	}
	slices.SortFunc(result, func(a, b domain.Supplier) int { return cmpString(a.Name, b.Name) })
	return result, nil
}

func (s *Store) GetSupplier(_ context.Context, supplierID string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sup, ok := s.suppliers[supplierID]
	if !ok {
		return nil, fmt.Errorf("%w: supplier %s", store.ErrNotFound, supplierID)
	}
	return &sup, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	s.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.Date.IsZero() {
		purchase.Date = time.Now().UTC()
	}
	s.purchases[purchase.ID] = purchase
	return &purchase, nil
}

func (s *Store) ListPurchases(_ context.Context, companyID string) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Purchase, 0)
	for _, p := range s.purchases {
		if p.CompanyID == companyID {
			result = append(result, p)
		}
	}
	slices.SortFunc(result, func(a, b domain.Purchase) int { return b.Date.Compare(a.Date) })
	return result, nil
}

func (s *Store) CreateInternalConsumption(_ context.Context, consumption domain.InternalConsumption) (*domain.InternalConsumption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if consumption.ID == "" {
		consumption.ID = xid.New("cons")
	}
	if consumption.Date.IsZero() {
		consumption.Date = time.Now().UTC()
	}
	s.consumptions[consumption.ID] = consumption
	return &consumption, nil
}

func (s *Store) ListInternalConsumptions(_ context.Context, companyID string) ([]domain.InternalConsumption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.InternalConsumption, 0)
	for _, c := range s.consumptions {
		if c.CompanyID == companyID {
			result = append(result, c)
		}
	}
	slices.SortFunc(result, func(a, b domain.InternalConsumption) int { return b.Date.Compare(a.Date) })
	return result, nil
}

// --- invoices ---

func (s *Store) nextInvoiceNumberLocked(companyID string) string {
	max := 0
	for _, inv := range s.invoices {
		if inv.CompanyID != companyID {
			continue
		}
		n, err := strconv.Atoi(inv.InvoiceNumber)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

func (s *Store) CreateInvoice(_ context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if invoice.ID == "" {
		invoice.ID = xid.New("inv")
	}
	if invoice.InvoiceNumber == "" {
		invoice.InvoiceNumber = s.nextInvoiceNumberLocked(invoice.CompanyID)
	}
	if invoice.Date.IsZero() {
		invoice.Date = time.Now().UTC()
	}
	if invoice.PaymentHistory == nil {
		invoice.PaymentHistory = []domain.Payment{}
	}
	s.invoices[invoice.ID] = cloneInvoice(invoice)
	return &invoice, nil
}

func (s *Store) GetInvoice(_ context.Context, invoiceID string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invoice, ok := s.invoices[invoiceID]
	if !ok {
		return nil, fmt.Errorf("%w: invoice %s", store.ErrNotFound, invoiceID)
	}
	clone := cloneInvoice(invoice)
	return &clone, nil
}

func (s *Store) UpdateInvoice(_ context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[invoice.ID]; !ok {
		return nil, fmt.Errorf("%w: invoice %s", store.ErrNotFound, invoice.ID)
	}
	s.invoices[invoice.ID] = cloneInvoice(invoice)
	return &invoice, nil
}

func (s *Store) ListInvoices(_ context.Context, companyID string) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Invoice, 0)
	for _, inv := range s.invoices {
		if inv.CompanyID == companyID {
			result = append(result, cloneInvoice(inv))
		}
	}
	slices.SortFunc(result, func(a, b domain.Invoice) int { return b.Date.Compare(a.Date) })
	return result, nil
}

// --- points of sale & shifts ---

func (s *Store) ListPointsOfSale(_ context.Context, companyID string) ([]domain.PointOfSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.PointOfSale, 0)
	for _, pos := range s.pointsOfSale {
		if pos.CompanyID == companyID {
			result = append(result, pos)
		}
	}
	slices.SortFunc(result, func(a, b domain.PointOfSale) int { return cmpString(a.Name, b.Name) })
	return result, nil
}

func (s *Store) GetPointOfSale(_ context.Context, posID string) (*domain.PointOfSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.pointsOfSale[posID]
	if !ok {
		return nil, fmt.Errorf("%w: point of sale %s", store.ErrNotFound, posID)
	}
	return &pos, nil
}

func (s *Store) CreatePointOfSale(_ context.Context, pos domain.PointOfSale) (*domain.PointOfSale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos.ID == "" {
		pos.ID = xid.New("pos")
	}
	s.pointsOfSale[pos.ID] = pos
	return &pos, nil
}

func (s *Store) CreateShift(_ context.Context, shift domain.CashierShift) (*domain.CashierShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.OpeningTime.IsZero() {
		shift.OpeningTime = time.Now().UTC()
	}
	if shift.Payments == nil {
		shift.Payments = []domain.Payment{}
	}
	if shift.Expenses == nil {
		shift.Expenses = []domain.Expense{}
	}
	s.shifts[shift.ID] = cloneShift(shift)
	return &shift, nil
}

func (s *Store) GetShift(_ context.Context, shiftID string) (*domain.CashierShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shift, ok := s.shifts[shiftID]
	if !ok {
		return nil, fmt.Errorf("%w: shift %s", store.ErrNotFound, shiftID)
	}
	clone := cloneShift(shift)
	return &clone, nil
}

func (s *Store) UpdateShift(_ context.Context, shift domain.CashierShift) (*domain.CashierShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shifts[shift.ID]; !ok {
		return nil, fmt.Errorf("%w: shift %s", store.ErrNotFound, shift.ID)
	}
	s.shifts[shift.ID] = cloneShift(shift)
	return &shift, nil
}

func (s *Store) ListShifts(_ context.Context, companyID string) ([]domain.CashierShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.CashierShift, 0)
	for _, shift := range s.shifts {
		if shift.CompanyID == companyID {
			result = append(result, cloneShift(shift))
		}
	}
	slices.SortFunc(result, func(a, b domain.CashierShift) int { return b.OpeningTime.Compare(a.OpeningTime) })
	return result, nil
}

func (s *Store) GetOpenShiftByPointOfSale(_ context.Context, posID string) (*domain.CashierShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, shift := range s.shifts {
		if shift.PointOfSaleID == posID && shift.Status == domain.ShiftStatusOpen {
			clone := cloneShift(shift)
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("%w: open shift for point of sale %s", store.ErrNotFound, posID)
}

// --- expenses ---

func (s *Store) ListExpenseCategories(_ context.Context, companyID string) ([]domain.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.ExpenseCategory, 0)
	for _, cat := range s.expenseCategories {
		if cat.CompanyID == companyID {
			result = append(result, cat)
		}
	}
	slices.SortFunc(result, func(a, b domain.ExpenseCategory) int { return cmpString(a.Name, b.Name) })
	return result, nil
}

func (s *Store) GetExpenseCategory(_ context.Context, categoryID string) (*domain.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cat, ok := s.expenseCategories[categoryID]
	if !ok {
		return nil, fmt.Errorf("%w: expense category %s", store.ErrNotFound, categoryID)
	}
	return &cat, nil
}

func (s *Store) CreateExpenseCategory(_ context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if category.ID == "" {
		category.ID = xid.New("expcat")
	}
	s.expenseCategories[category.ID] = category
	return &category, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.Date.IsZero() {
		expense.Date = time.Now().UTC()
	}
	s.expenses[expense.ID] = expense
	return &expense, nil
}

func (s *Store) ListExpenses(_ context.Context, companyID string) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Expense, 0)
	for _, e := range s.expenses {
		if e.CompanyID == companyID {
			result = append(result, e)
		}
	}
	slices.SortFunc(result, func(a, b domain.Expense) int { return b.Date.Compare(a.Date) })
	return result, nil
}

// --- hospitalizations ---

func (s *Store) CreateHospitalization(_ context.Context, hosp domain.Hospitalization) (*domain.Hospitalization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hosp.ID == "" {
		hosp.ID = xid.New("hosp")
	}
	if hosp.AdmissionDate.IsZero() {
		hosp.AdmissionDate = time.Now().UTC()
	}
	if hosp.Status == "" {
		hosp.Status = domain.HospitalizationStatusActive
	}
	if hosp.VitalSignsLog == nil {
		hosp.VitalSignsLog = []domain.VitalSignEntry{}
	}
	if hosp.MedicationLog == nil {
		hosp.MedicationLog = []domain.MedicationLogEntry{}
	}
	if hosp.ProgressNotes == nil {
		hosp.ProgressNotes = []domain.ProgressNoteEntry{}
	}
	s.hospitalizations[hosp.ID] = cloneHospitalization(hosp)
	return &hosp, nil
}

func (s *Store) GetHospitalization(_ context.Context, hospID string) (*domain.Hospitalization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hosp, ok := s.hospitalizations[hospID]
	if !ok {
		return nil, fmt.Errorf("%w: hospitalization %s", store.ErrNotFound, hospID)
	}
	clone := cloneHospitalization(hosp)
	return &clone, nil
}

func (s *Store) UpdateHospitalization(_ context.Context, hosp domain.Hospitalization) (*domain.Hospitalization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hospitalizations[hosp.ID]; !ok {
		return nil, fmt.Errorf("%w: hospitalization %s", store.ErrNotFound, hosp.ID)
	}
	s.hospitalizations[hosp.ID] = cloneHospitalization(hosp)
	return &hosp, nil
}

func (s *Store) ListHospitalizations(_ context.Context, companyID string) ([]domain.Hospitalization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Hospitalization, 0)
	for _, h := range s.hospitalizations {
		if h.CompanyID == companyID {
			result = append(result, cloneHospitalization(h))
		}
	}
	slices.SortFunc(result, func(a, b domain.Hospitalization) int { return b.AdmissionDate.Compare(a.AdmissionDate) })
	return result, nil
}

// --- appointments & prescriptions ---

func (s *Store) CreateAppointment(_ context.Context, appointment domain.Appointment) (*domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appointment.ID == "" {
		appointment.ID = xid.New("appt")
	}
	s.appointments[appointment.ID] = appointment
	return &appointment, nil
}

func (s *Store) ListAppointments(_ context.Context, companyID string) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Appointment, 0)
	for _, a := range s.appointments {
		if a.CompanyID == companyID {
			result = append(result, a)
		}
	}
	slices.SortFunc(result, func(a, b domain.Appointment) int {
		if c := cmpString(a.Date, b.Date); c != 0 {
			return c
		}
		return cmpString(a.Time, b.Time)
	})
	return result, nil
}

func (s *Store) UpdateAppointment(_ context.Context, appointment domain.Appointment) (*domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[appointment.ID]; !ok {
		return nil, fmt.Errorf("%w: appointment %s", store.ErrNotFound, appointment.ID)
	}
	s.appointments[appointment.ID] = appointment
	return &appointment, nil
}

func (s *Store) CreatePrescription(_ context.Context, prescription domain.Prescription) (*domain.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prescription.ID == "" {
		prescription.ID = xid.New("rx")
	}
	s.prescriptions[prescription.ID] = clonePrescription(prescription)
	return &prescription, nil
}

func (s *Store) ListPrescriptions(_ context.Context, companyID string) ([]domain.Prescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Prescription, 0)
	for _, p := range s.prescriptions {
		if p.CompanyID == companyID {
			result = append(result, clonePrescription(p))
		}
	}
	slices.SortFunc(result, func(a, b domain.Prescription) int { return cmpString(b.Date, a.Date) })
	return result, nil
}

// --- audit ---

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, companyID string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.AuditLog, 0)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		if s.auditLogs[i].CompanyID != companyID {
			continue
		}
		result = append(result, s.auditLogs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}
