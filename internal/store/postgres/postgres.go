package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"veterinaria/backend/internal/domain"
	"veterinaria/backend/internal/inventory"
	"veterinaria/backend/internal/store"
	"veterinaria/backend/internal/xid"
)

// Store implements store.Repository on PostgreSQL. Nested collections
// (lots, invoice items, payment history, hospitalization logs) live in
// jsonb columns so a row round-trips the same aggregate the in-memory
// store holds.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// --- companies ---

func (s *Store) GetCompany(ctx context.Context, companyID string) (*domain.Company, error) {
	var c domain.Company
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, tax_rate, COALESCE(address,''), COALESCE(phone,''), COALESCE(logo_url,''), COALESCE(timezone,'')
		FROM companies
		WHERE id = $1
	`, companyID).Scan(&c.ID, &c.Name, &c.TaxRate, &c.Address, &c.Phone, &c.LogoURL, &c.Timezone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: company %s", store.ErrNotFound, companyID)
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, tax_rate, COALESCE(address,''), COALESCE(phone,''), COALESCE(logo_url,''), COALESCE(timezone,'')
		FROM companies
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := make([]domain.Company, 0, 16)
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.TaxRate, &c.Address, &c.Phone, &c.LogoURL, &c.Timezone); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return companies, nil
}

func (s *Store) CreateCompany(ctx context.Context, company domain.Company) (*domain.Company, error) {
	if company.ID == "" {
		company.ID = xid.New("comp")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (id, name, tax_rate, address, phone, logo_url, timezone)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, company.ID, company.Name, company.TaxRate, nullIfEmpty(company.Address),
		nullIfEmpty(company.Phone), nullIfEmpty(company.LogoURL), nullIfEmpty(company.Timezone))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: company %s already exists", store.ErrValidation, company.ID)
		}
		return nil, err
	}
	saved := company
	return &saved, nil
}

func (s *Store) UpdateCompany(ctx context.Context, company domain.Company) (*domain.Company, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE companies
		SET name = $2, tax_rate = $3, address = $4, phone = $5, logo_url = $6, timezone = $7
		WHERE id = $1
	`, company.ID, company.Name, company.TaxRate, nullIfEmpty(company.Address),
		nullIfEmpty(company.Phone), nullIfEmpty(company.LogoURL), nullIfEmpty(company.Timezone))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: company %s", store.ErrNotFound, company.ID)
	}
	saved := company
	return &saved, nil
}

// --- vets ---

const vetColumns = `id, company_id, name, email, password_hash, COALESCE(specialty,''), role, active, created_at`

func scanVet(sc rowScanner) (domain.Vet, error) {
	var v domain.Vet
	err := sc.Scan(&v.ID, &v.CompanyID, &v.Name, &v.Email, &v.Password, &v.Specialty, &v.Role, &v.Active, &v.CreatedAt)
	if err != nil {
		return domain.Vet{}, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return v, nil
}

func (s *Store) GetVetByEmail(ctx context.Context, email string) (*domain.Vet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+vetColumns+`
		FROM vets
		WHERE lower(email) = lower($1)
	`, email)
	vet, err := scanVet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: vet %s", store.ErrNotFound, email)
		}
		return nil, err
	}
	return &vet, nil
}

func (s *Store) ListVets(ctx context.Context, companyID string) ([]domain.Vet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+vetColumns+`
		FROM vets
		WHERE company_id = $1
		ORDER BY name
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vets := make([]domain.Vet, 0, 16)
	for rows.Next() {
		vet, err := scanVet(rows)
		if err != nil {
			return nil, err
		}
		vets = append(vets, vet)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vets, nil
}

func (s *Store) CreateVet(ctx context.Context, vet domain.Vet) (*domain.Vet, error) {
	if vet.ID == "" {
		vet.ID = xid.New("vet")
	}
	if vet.CreatedAt.IsZero() {
		vet.CreatedAt = time.Now().UTC()
	}
	vet.Email = strings.ToLower(strings.TrimSpace(vet.Email))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vets (id, company_id, name, email, password_hash, specialty, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, vet.ID, vet.CompanyID, vet.Name, vet.Email, vet.Password, nullIfEmpty(vet.Specialty), vet.Role, vet.Active, vet.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email %s already registered", store.ErrValidation, vet.Email)
		}
		return nil, err
	}
	saved := vet
	return &saved, nil
}

func (s *Store) UpdateVet(ctx context.Context, vet domain.Vet) (*domain.Vet, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE vets
		SET name = $2, password_hash = $3, specialty = $4, role = $5, active = $6
		WHERE id = $1
	`, vet.ID, vet.Name, vet.Password, nullIfEmpty(vet.Specialty), vet.Role, vet.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: vet %s", store.ErrNotFound, vet.ID)
	}
	saved := vet
	return &saved, nil
}

// --- clients ---

const clientColumns = `id, company_id, name, COALESCE(email,''), COALESCE(phone,''), COALESCE(address,''), COALESCE(identification_number,''), COALESCE(billing_address,''), member_since`

func scanClient(sc rowScanner) (domain.Client, error) {
	var c domain.Client
	err := sc.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.IdentificationNumber, &c.BillingAddress, &c.MemberSince)
	if err != nil {
		return domain.Client{}, err
	}
	c.MemberSince = c.MemberSince.UTC()
	return c, nil
}

func (s *Store) ListClients(ctx context.Context, companyID string) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE company_id = $1
		ORDER BY name
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, 64)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *Store) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, clientID)
	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: client %s", store.ErrNotFound, clientID)
		}
		return nil, err
	}
	return &client, nil
}

func (s *Store) CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	if client.MemberSince.IsZero() {
		client.MemberSince = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, company_id, name, email, phone, address, identification_number, billing_address, member_since)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, client.ID, client.CompanyID, client.Name, nullIfEmpty(client.Email), nullIfEmpty(client.Phone),
		nullIfEmpty(client.Address), nullIfEmpty(client.IdentificationNumber), nullIfEmpty(client.BillingAddress), client.MemberSince)
	if err != nil {
		return nil, err
	}
	saved := client
	return &saved, nil
}

func (s *Store) UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET name = $2, email = $3, phone = $4, address = $5, identification_number = $6, billing_address = $7
		WHERE id = $1
	`, client.ID, client.Name, nullIfEmpty(client.Email), nullIfEmpty(client.Phone),
		nullIfEmpty(client.Address), nullIfEmpty(client.IdentificationNumber), nullIfEmpty(client.BillingAddress))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: client %s", store.ErrNotFound, client.ID)
	}
	saved := client
	return &saved, nil
}

// DeleteClient removes the client together with their pets, medical
// records, reminders, appointments and prescriptions. Invoices are kept
// for bookkeeping.
func (s *Store) DeleteClient(ctx context.Context, clientID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM clients WHERE id = $1 FOR UPDATE`, clientID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: client %s", store.ErrNotFound, clientID)
		}
		return err
	}

	statements := []string{
		`DELETE FROM prescriptions WHERE pet_id IN (SELECT id FROM pets WHERE owner_id = $1)`,
		`DELETE FROM medical_records WHERE pet_id IN (SELECT id FROM pets WHERE owner_id = $1)`,
		`DELETE FROM reminders WHERE client_id = $1 OR pet_id IN (SELECT id FROM pets WHERE owner_id = $1)`,
		`DELETE FROM appointments WHERE client_id = $1`,
		`DELETE FROM pets WHERE owner_id = $1`,
		`DELETE FROM clients WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, clientID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// --- pets ---

const petColumns = `id, company_id, owner_id, name, species, COALESCE(breed,''), age, COALESCE(sex,''), COALESCE(color,''), COALESCE(photo_url,''), medical_alerts, weight_history`

func scanPet(sc rowScanner) (domain.Pet, error) {
	var p domain.Pet
	var alertsRaw []byte
	var weightsRaw []byte
	err := sc.Scan(&p.ID, &p.CompanyID, &p.OwnerID, &p.Name, &p.Species, &p.Breed, &p.Age, &p.Sex, &p.Color, &p.PhotoURL, &alertsRaw, &weightsRaw)
	if err != nil {
		return domain.Pet{}, err
	}
	if len(alertsRaw) > 0 {
		if err := json.Unmarshal(alertsRaw, &p.MedicalAlerts); err != nil {
			return domain.Pet{}, err
		}
	}
	if len(weightsRaw) > 0 {
		if err := json.Unmarshal(weightsRaw, &p.WeightHistory); err != nil {
			return domain.Pet{}, err
		}
	}
	return p, nil
}

func (s *Store) ListPets(ctx context.Context, companyID string) ([]domain.Pet, error) {
	return s.queryPets(ctx, `SELECT `+petColumns+` FROM pets WHERE company_id = $1 ORDER BY name`, companyID)
}

func (s *Store) ListPetsByOwner(ctx context.Context, ownerID string) ([]domain.Pet, error) {
	return s.queryPets(ctx, `SELECT `+petColumns+` FROM pets WHERE owner_id = $1 ORDER BY name`, ownerID)
}

func (s *Store) queryPets(ctx context.Context, query string, arg string) ([]domain.Pet, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pets := make([]domain.Pet, 0, 32)
	for rows.Next() {
		pet, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		pets = append(pets, pet)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pets, nil
}

func (s *Store) GetPet(ctx context.Context, petID string) (*domain.Pet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1`, petID)
	pet, err := scanPet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: pet %s", store.ErrNotFound, petID)
		}
		return nil, err
	}
	return &pet, nil
}

func (s *Store) CreatePet(ctx context.Context, pet domain.Pet) (*domain.Pet, error) {
	if pet.ID == "" {
		pet.ID = xid.New("pet")
	}
	alertsJSON, err := json.Marshal(pet.MedicalAlerts)
	if err != nil {
		return nil, err
	}
	weightsJSON, err := json.Marshal(pet.WeightHistory)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pets (id, company_id, owner_id, name, species, breed, age, sex, color, photo_url, medical_alerts, weight_history)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, pet.ID, pet.CompanyID, pet.OwnerID, pet.Name, pet.Species, nullIfEmpty(pet.Breed), pet.Age,
		nullIfEmpty(pet.Sex), nullIfEmpty(pet.Color), nullIfEmpty(pet.PhotoURL), alertsJSON, weightsJSON)
	if err != nil {
		return nil, err
	}
	saved := pet
	return &saved, nil
}

func (s *Store) UpdatePet(ctx context.Context, pet domain.Pet) (*domain.Pet, error) {
	alertsJSON, err := json.Marshal(pet.MedicalAlerts)
	if err != nil {
		return nil, err
	}
	weightsJSON, err := json.Marshal(pet.WeightHistory)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE pets
		SET owner_id = $2, name = $3, species = $4, breed = $5, age = $6, sex = $7, color = $8, photo_url = $9, medical_alerts = $10, weight_history = $11
		WHERE id = $1
	`, pet.ID, pet.OwnerID, pet.Name, pet.Species, nullIfEmpty(pet.Breed), pet.Age,
		nullIfEmpty(pet.Sex), nullIfEmpty(pet.Color), nullIfEmpty(pet.PhotoURL), alertsJSON, weightsJSON)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: pet %s", store.ErrNotFound, pet.ID)
	}
	saved := pet
	return &saved, nil
}

func (s *Store) DeletePet(ctx context.Context, petID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`DELETE FROM prescriptions WHERE pet_id = $1`,
		`DELETE FROM medical_records WHERE pet_id = $1`,
		`DELETE FROM reminders WHERE pet_id = $1`,
		`DELETE FROM appointments WHERE pet_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, petID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM pets WHERE id = $1`, petID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: pet %s", store.ErrNotFound, petID)
	}

	return tx.Commit()
}

// --- medical records ---

const recordColumns = `id, company_id, pet_id, date, vet, reason, COALESCE(category,''), COALESCE(subjective,''), COALESCE(objective,''), COALESCE(assessment,''), COALESCE(plan,''), COALESCE(invoice_id,''), items`

func scanMedicalRecord(sc rowScanner) (domain.MedicalRecord, error) {
	var r domain.MedicalRecord
	var itemsRaw []byte
	err := sc.Scan(&r.ID, &r.CompanyID, &r.PetID, &r.Date, &r.Vet, &r.Reason, &r.Category,
		&r.Subjective, &r.Objective, &r.Assessment, &r.Plan, &r.InvoiceID, &itemsRaw)
	if err != nil {
		return domain.MedicalRecord{}, err
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &r.Items); err != nil {
			return domain.MedicalRecord{}, err
		}
	}
	return r, nil
}

func (s *Store) CreateMedicalRecord(ctx context.Context, record domain.MedicalRecord) (*domain.MedicalRecord, error) {
	if record.ID == "" {
		record.ID = xid.New("rec")
	}
	itemsJSON, err := json.Marshal(record.Items)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO medical_records (id, company_id, pet_id, date, vet, reason, category, subjective, objective, assessment, plan, invoice_id, items)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, record.ID, record.CompanyID, record.PetID, record.Date, record.Vet, record.Reason,
		nullIfEmpty(record.Category), nullIfEmpty(record.Subjective), nullIfEmpty(record.Objective),
		nullIfEmpty(record.Assessment), nullIfEmpty(record.Plan), nullIfEmpty(record.InvoiceID), itemsJSON)
	if err != nil {
		return nil, err
	}
	saved := record
	return &saved, nil
}

func (s *Store) UpdateMedicalRecord(ctx context.Context, record domain.MedicalRecord) (*domain.MedicalRecord, error) {
	itemsJSON, err := json.Marshal(record.Items)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE medical_records
		SET date = $2, vet = $3, reason = $4, category = $5, subjective = $6, objective = $7,
			assessment = $8, plan = $9, invoice_id = $10, items = $11
		WHERE id = $1
	`, record.ID, record.Date, record.Vet, record.Reason, nullIfEmpty(record.Category),
		nullIfEmpty(record.Subjective), nullIfEmpty(record.Objective), nullIfEmpty(record.Assessment),
		nullIfEmpty(record.Plan), nullIfEmpty(record.InvoiceID), itemsJSON)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: medical record %s", store.ErrNotFound, record.ID)
	}
	saved := record
	return &saved, nil
}

func (s *Store) ListMedicalRecords(ctx context.Context, petID string) ([]domain.MedicalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM medical_records
		WHERE pet_id = $1
		ORDER BY date DESC, id DESC
	`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.MedicalRecord, 0, 32)
	for rows.Next() {
		record, err := scanMedicalRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// --- reminders ---

const reminderColumns = `id, company_id, pet_id, client_id, pet_name, client_name, due_date, message, status, COALESCE(category,''), COALESCE(related_record_id,'')`

func scanReminder(sc rowScanner) (domain.Reminder, error) {
	var r domain.Reminder
	err := sc.Scan(&r.ID, &r.CompanyID, &r.PetID, &r.ClientID, &r.PetName, &r.ClientName,
		&r.DueDate, &r.Message, &r.Status, &r.Category, &r.RelatedRecordID)
	if err != nil {
		return domain.Reminder{}, err
	}
	return r, nil
}

func (s *Store) CreateReminder(ctx context.Context, reminder domain.Reminder) (*domain.Reminder, error) {
	if reminder.ID == "" {
		reminder.ID = xid.New("rem")
	}
	if reminder.Status == "" {
		reminder.Status = domain.ReminderStatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, company_id, pet_id, client_id, pet_name, client_name, due_date, message, status, category, related_record_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, reminder.ID, reminder.CompanyID, reminder.PetID, reminder.ClientID, reminder.PetName,
		reminder.ClientName, reminder.DueDate, reminder.Message, reminder.Status,
		nullIfEmpty(reminder.Category), nullIfEmpty(reminder.RelatedRecordID))
	if err != nil {
		return nil, err
	}
	saved := reminder
	return &saved, nil
}

func (s *Store) ListReminders(ctx context.Context, companyID string) ([]domain.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE company_id = $1
		ORDER BY due_date ASC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reminders := make([]domain.Reminder, 0, 32)
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reminders, nil
}

func (s *Store) UpdateReminderStatus(ctx context.Context, reminderID string, status string) (*domain.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE reminders
		SET status = $2
		WHERE id = $1
		RETURNING `+reminderColumns+`
	`, reminderID, status)
	reminder, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: reminder %s", store.ErrNotFound, reminderID)
		}
		return nil, err
	}
	return &reminder, nil
}

// --- products ---

const productColumns = `id, company_id, name, category, COALESCE(description,''), lots, uses_lot_tracking, sale_price, discount_percentage, low_stock_threshold, taxable, is_divisible, total_volume, COALESCE(volume_unit,''), suppliers`

func scanProduct(sc rowScanner) (domain.Product, error) {
	var p domain.Product
	var lotsRaw []byte
	var suppliersRaw []byte
	err := sc.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Category, &p.Description, &lotsRaw,
		&p.UsesLotTracking, &p.SalePrice, &p.DiscountPercentage, &p.LowStockThreshold,
		&p.Taxable, &p.IsDivisible, &p.TotalVolume, &p.VolumeUnit, &suppliersRaw)
	if err != nil {
		return domain.Product{}, err
	}
	if len(lotsRaw) > 0 {
		if err := json.Unmarshal(lotsRaw, &p.Lots); err != nil {
			return domain.Product{}, err
		}
	}
	if len(suppliersRaw) > 0 {
		if err := json.Unmarshal(suppliersRaw, &p.Suppliers); err != nil {
			return domain.Product{}, err
		}
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, companyID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE company_id = $1
		ORDER BY category, name
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, 0, len(productIDs))
	args := make([]any, 0, len(productIDs))
	for i, id := range productIDs {
		placeholders = append(placeholders, "$"+strconv.Itoa(i+1))
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	lotsJSON, err := json.Marshal(product.Lots)
	if err != nil {
		return nil, err
	}
	suppliersJSON, err := json.Marshal(product.Suppliers)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (
			id, company_id, name, category, description, lots, uses_lot_tracking,
			sale_price, discount_percentage, low_stock_threshold, taxable,
			is_divisible, total_volume, volume_unit, suppliers
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, product.ID, product.CompanyID, product.Name, product.Category, nullIfEmpty(product.Description),
		lotsJSON, product.UsesLotTracking, product.SalePrice, product.DiscountPercentage,
		product.LowStockThreshold, product.Taxable, product.IsDivisible, product.TotalVolume,
		nullIfEmpty(product.VolumeUnit), suppliersJSON)
	if err != nil {
		return nil, err
	}
	saved := product
	return &saved, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	lotsJSON, err := json.Marshal(product.Lots)
	if err != nil {
		return nil, err
	}
	suppliersJSON, err := json.Marshal(product.Suppliers)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, description = $4, lots = $5, uses_lot_tracking = $6,
			sale_price = $7, discount_percentage = $8, low_stock_threshold = $9, taxable = $10,
			is_divisible = $11, total_volume = $12, volume_unit = $13, suppliers = $14
		WHERE id = $1
	`, product.ID, product.Name, product.Category, nullIfEmpty(product.Description), lotsJSON,
		product.UsesLotTracking, product.SalePrice, product.DiscountPercentage, product.LowStockThreshold,
		product.Taxable, product.IsDivisible, product.TotalVolume, nullIfEmpty(product.VolumeUnit), suppliersJSON)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, product.ID)
	}
	saved := product
	return &saved, nil
}

func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	return nil
}

// ApplyStockMutations applies the whole batch in one serializable
// transaction. Product rows are locked in ID order so concurrent batches
// touching the same products cannot deadlock, and any failed mutation
// rolls back every other one.
func (s *Store) ApplyStockMutations(ctx context.Context, companyID string, mutations []store.StockMutation) error {
	if len(mutations) == 0 {
		return nil
	}

	productIDs := make([]string, 0, len(mutations))
	seen := make(map[string]bool, len(mutations))
	for _, m := range mutations {
		if !seen[m.ProductID] {
			seen[m.ProductID] = true
			productIDs = append(productIDs, m.ProductID)
		}
	}
	sort.Strings(productIDs)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	products := make(map[string]*domain.Product, len(productIDs))
	for _, id := range productIDs {
		var p domain.Product
		var lotsRaw []byte
		err := tx.QueryRowContext(ctx, `
			SELECT id, company_id, name, category, uses_lot_tracking, lots
			FROM products
			WHERE id = $1 AND company_id = $2
			FOR UPDATE
		`, id, companyID).Scan(&p.ID, &p.CompanyID, &p.Name, &p.Category, &p.UsesLotTracking, &lotsRaw)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: product %s", store.ErrNotFound, id)
			}
			return err
		}
		if len(lotsRaw) > 0 {
			if err := json.Unmarshal(lotsRaw, &p.Lots); err != nil {
				return err
			}
		}
		products[id] = &p
	}

	for _, m := range mutations {
		product, ok := products[m.ProductID]
		if !ok {
			return fmt.Errorf("%w: product %s", store.ErrNotFound, m.ProductID)
		}
		if err := inventory.ApplyMutation(product, m); err != nil {
			return err
		}
	}

	for _, id := range productIDs {
		lotsJSON, err := json.Marshal(products[id].Lots)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE products SET lots = $2 WHERE id = $1`, id, lotsJSON); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// --- suppliers ---

const supplierColumns = `id, company_id, name, COALESCE(contact_person,''), COALESCE(phone,''), COALESCE(email,''), COALESCE(address,'')`

func scanSupplier(sc rowScanner) (domain.Supplier, error) {
	var sup domain.Supplier
	err := sc.Scan(&sup.ID, &sup.CompanyID, &sup.Name, &sup.ContactPerson, &sup.Phone, &sup.Email, &sup.Address)
	if err != nil {
		return domain.Supplier{}, err
	}
	return sup, nil
}

func (s *Store) ListSuppliers(ctx context.Context, companyID string) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE company_id = $1
		ORDER BY name
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		supplier, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) GetSupplier(ctx context.Context, supplierID string) (*domain.Supplier, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, supplierID)
	supplier, err := scanSupplier(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: supplier %s", store.ErrNotFound, supplierID)
		}
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, company_id, name, contact_person, phone, email, address)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, supplier.ID, supplier.CompanyID, supplier.Name, nullIfEmpty(supplier.ContactPerson),
		nullIfEmpty(supplier.Phone), nullIfEmpty(supplier.Email), nullIfEmpty(supplier.Address))
	if err != nil {
		return nil, err
	}
	saved := supplier
	return &saved, nil
}

// --- purchases ---

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.Date.IsZero() {
		purchase.Date = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, company_id, product_id, product_name, supplier_id, supplier_name, quantity, purchase_price, date, lot_number, expiration_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, purchase.ID, purchase.CompanyID, purchase.ProductID, purchase.ProductName, purchase.SupplierID,
		purchase.SupplierName, purchase.Quantity, purchase.PurchasePrice, purchase.Date,
		nullIfEmpty(purchase.LotNumber), nullIfEmpty(purchase.ExpirationDate))
	if err != nil {
		return nil, err
	}
	saved := purchase
	return &saved, nil
}

func (s *Store) ListPurchases(ctx context.Context, companyID string) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, product_id, product_name, supplier_id, supplier_name, quantity, purchase_price, date, COALESCE(lot_number,''), COALESCE(expiration_date,'')
		FROM purchases
		WHERE company_id = $1
		ORDER BY date DESC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 64)
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.ProductID, &p.ProductName, &p.SupplierID,
			&p.SupplierName, &p.Quantity, &p.PurchasePrice, &p.Date, &p.LotNumber, &p.ExpirationDate); err != nil {
			return nil, err
		}
		p.Date = p.Date.UTC()
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

// --- internal consumptions ---

func (s *Store) CreateInternalConsumption(ctx context.Context, consumption domain.InternalConsumption) (*domain.InternalConsumption, error) {
	if consumption.ID == "" {
		consumption.ID = xid.New("cons")
	}
	if consumption.Date.IsZero() {
		consumption.Date = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO internal_consumptions (id, company_id, date, product_id, product_name, lot_id, lot_number, quantity, reason, recorded_by_vet)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, consumption.ID, consumption.CompanyID, consumption.Date, consumption.ProductID, consumption.ProductName,
		nullIfEmpty(consumption.LotID), nullIfEmpty(consumption.LotNumber), consumption.Quantity,
		consumption.Reason, consumption.RecordedByVet)
	if err != nil {
		return nil, err
	}
	saved := consumption
	return &saved, nil
}

func (s *Store) ListInternalConsumptions(ctx context.Context, companyID string) ([]domain.InternalConsumption, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, date, product_id, product_name, COALESCE(lot_id,''), COALESCE(lot_number,''), quantity, reason, recorded_by_vet
		FROM internal_consumptions
		WHERE company_id = $1
		ORDER BY date DESC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	consumptions := make([]domain.InternalConsumption, 0, 64)
	for rows.Next() {
		var c domain.InternalConsumption
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Date, &c.ProductID, &c.ProductName,
			&c.LotID, &c.LotNumber, &c.Quantity, &c.Reason, &c.RecordedByVet); err != nil {
			return nil, err
		}
		c.Date = c.Date.UTC()
		consumptions = append(consumptions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return consumptions, nil
}

// --- invoices ---

const invoiceColumns = `id, invoice_number, company_id, client_id, client_name, COALESCE(pet_id,''), COALESCE(pet_name,''), date, items, status, subtotal, total_discount, tax, total, amount_paid, balance_due, tax_rate, payment_history`

func scanInvoice(sc rowScanner) (domain.Invoice, error) {
	var inv domain.Invoice
	var itemsRaw []byte
	var paymentsRaw []byte
	err := sc.Scan(&inv.ID, &inv.InvoiceNumber, &inv.CompanyID, &inv.ClientID, &inv.ClientName,
		&inv.PetID, &inv.PetName, &inv.Date, &itemsRaw, &inv.Status, &inv.Subtotal, &inv.TotalDiscount,
		&inv.Tax, &inv.Total, &inv.AmountPaid, &inv.BalanceDue, &inv.TaxRate, &paymentsRaw)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.Date = inv.Date.UTC()
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &inv.Items); err != nil {
			return domain.Invoice{}, err
		}
	}
	if len(paymentsRaw) > 0 {
		if err := json.Unmarshal(paymentsRaw, &inv.PaymentHistory); err != nil {
			return domain.Invoice{}, err
		}
	}
	return inv, nil
}

// CreateInvoice locks the company row while it assigns the next
// sequential invoice number, so two concurrent sales cannot claim the
// same number.
func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if invoice.ID == "" {
		invoice.ID = xid.New("inv")
	}
	if invoice.Date.IsZero() {
		invoice.Date = time.Now().UTC()
	}

	itemsJSON, err := json.Marshal(invoice.Items)
	if err != nil {
		return nil, err
	}
	paymentsJSON, err := json.Marshal(invoice.PaymentHistory)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var companyID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM companies WHERE id = $1 FOR UPDATE`, invoice.CompanyID).Scan(&companyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: company %s", store.ErrNotFound, invoice.CompanyID)
		}
		return nil, err
	}

	if invoice.InvoiceNumber == "" {
		var maxNumber sql.NullInt64
		err = tx.QueryRowContext(ctx, `
			SELECT MAX(invoice_number::bigint)
			FROM invoices
			WHERE company_id = $1 AND invoice_number ~ '^[0-9]+$'
		`, invoice.CompanyID).Scan(&maxNumber)
		if err != nil {
			return nil, err
		}
		invoice.InvoiceNumber = strconv.FormatInt(maxNumber.Int64+1, 10)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (
			id, invoice_number, company_id, client_id, client_name, pet_id, pet_name, date, items,
			status, subtotal, total_discount, tax, total, amount_paid, balance_due, tax_rate, payment_history
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`, invoice.ID, invoice.InvoiceNumber, invoice.CompanyID, invoice.ClientID, invoice.ClientName,
		nullIfEmpty(invoice.PetID), nullIfEmpty(invoice.PetName), invoice.Date, itemsJSON, invoice.Status,
		invoice.Subtotal, invoice.TotalDiscount, invoice.Tax, invoice.Total, invoice.AmountPaid,
		invoice.BalanceDue, invoice.TaxRate, paymentsJSON)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	saved := invoice
	return &saved, nil
}

func (s *Store) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, invoiceID)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %s", store.ErrNotFound, invoiceID)
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	itemsJSON, err := json.Marshal(invoice.Items)
	if err != nil {
		return nil, err
	}
	paymentsJSON, err := json.Marshal(invoice.PaymentHistory)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET items = $2, status = $3, subtotal = $4, total_discount = $5, tax = $6, total = $7,
			amount_paid = $8, balance_due = $9, tax_rate = $10, payment_history = $11
		WHERE id = $1
	`, invoice.ID, itemsJSON, invoice.Status, invoice.Subtotal, invoice.TotalDiscount, invoice.Tax,
		invoice.Total, invoice.AmountPaid, invoice.BalanceDue, invoice.TaxRate, paymentsJSON)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: invoice %s", store.ErrNotFound, invoice.ID)
	}
	saved := invoice
	return &saved, nil
}

func (s *Store) ListInvoices(ctx context.Context, companyID string) ([]domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE company_id = $1
		ORDER BY date DESC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, 128)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

// --- points of sale ---

func (s *Store) ListPointsOfSale(ctx context.Context, companyID string) ([]domain.PointOfSale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, name, COALESCE(description,''), is_active
		FROM points_of_sale
		WHERE company_id = $1
		ORDER BY name
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.PointOfSale, 0, 8)
	for rows.Next() {
		var p domain.PointOfSale
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Description, &p.IsActive); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Store) GetPointOfSale(ctx context.Context, posID string) (*domain.PointOfSale, error) {
	var p domain.PointOfSale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, name, COALESCE(description,''), is_active
		FROM points_of_sale
		WHERE id = $1
	`, posID).Scan(&p.ID, &p.CompanyID, &p.Name, &p.Description, &p.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: point of sale %s", store.ErrNotFound, posID)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePointOfSale(ctx context.Context, pos domain.PointOfSale) (*domain.PointOfSale, error) {
	if pos.ID == "" {
		pos.ID = xid.New("pos")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO points_of_sale (id, company_id, name, description, is_active)
		VALUES ($1,$2,$3,$4,$5)
	`, pos.ID, pos.CompanyID, pos.Name, nullIfEmpty(pos.Description), pos.IsActive)
	if err != nil {
		return nil, err
	}
	saved := pos
	return &saved, nil
}

// --- cashier shifts ---

const shiftColumns = `id, company_id, point_of_sale_id, point_of_sale_name, opening_time, closing_time, opening_balance, closing_balance, calculated_cash_total, difference, status, opened_by, COALESCE(closed_by,''), payments, expenses, COALESCE(notes,'')`

func scanShift(sc rowScanner) (domain.CashierShift, error) {
	var sh domain.CashierShift
	var closingTime sql.NullTime
	var closingBalance sql.NullFloat64
	var difference sql.NullFloat64
	var paymentsRaw []byte
	var expensesRaw []byte
	err := sc.Scan(&sh.ID, &sh.CompanyID, &sh.PointOfSaleID, &sh.PointOfSaleName, &sh.OpeningTime,
		&closingTime, &sh.OpeningBalance, &closingBalance, &sh.CalculatedCashTotal, &difference,
		&sh.Status, &sh.OpenedBy, &sh.ClosedBy, &paymentsRaw, &expensesRaw, &sh.Notes)
	if err != nil {
		return domain.CashierShift{}, err
	}
	sh.OpeningTime = sh.OpeningTime.UTC()
	if closingTime.Valid {
		t := closingTime.Time.UTC()
		sh.ClosingTime = &t
	}
	if closingBalance.Valid {
		v := closingBalance.Float64
		sh.ClosingBalance = &v
	}
	if difference.Valid {
		v := difference.Float64
		sh.Difference = &v
	}
	if len(paymentsRaw) > 0 {
		if err := json.Unmarshal(paymentsRaw, &sh.Payments); err != nil {
			return domain.CashierShift{}, err
		}
	}
	if len(expensesRaw) > 0 {
		if err := json.Unmarshal(expensesRaw, &sh.Expenses); err != nil {
			return domain.CashierShift{}, err
		}
	}
	return sh, nil
}

func (s *Store) CreateShift(ctx context.Context, shift domain.CashierShift) (*domain.CashierShift, error) {
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.OpeningTime.IsZero() {
		shift.OpeningTime = time.Now().UTC()
	}
	paymentsJSON, err := json.Marshal(shift.Payments)
	if err != nil {
		return nil, err
	}
	expensesJSON, err := json.Marshal(shift.Expenses)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cashier_shifts (
			id, company_id, point_of_sale_id, point_of_sale_name, opening_time, closing_time,
			opening_balance, closing_balance, calculated_cash_total, difference, status,
			opened_by, closed_by, payments, expenses, notes
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, shift.ID, shift.CompanyID, shift.PointOfSaleID, shift.PointOfSaleName, shift.OpeningTime,
		nullTime(shift.ClosingTime), shift.OpeningBalance, nullFloat(shift.ClosingBalance),
		shift.CalculatedCashTotal, nullFloat(shift.Difference), shift.Status, shift.OpenedBy,
		nullIfEmpty(shift.ClosedBy), paymentsJSON, expensesJSON, nullIfEmpty(shift.Notes))
	if err != nil {
		return nil, err
	}
	saved := shift
	return &saved, nil
}

func (s *Store) GetShift(ctx context.Context, shiftID string) (*domain.CashierShift, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM cashier_shifts WHERE id = $1`, shiftID)
	shift, err := scanShift(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: shift %s", store.ErrNotFound, shiftID)
		}
		return nil, err
	}
	return &shift, nil
}

func (s *Store) UpdateShift(ctx context.Context, shift domain.CashierShift) (*domain.CashierShift, error) {
	paymentsJSON, err := json.Marshal(shift.Payments)
	if err != nil {
		return nil, err
	}
	expensesJSON, err := json.Marshal(shift.Expenses)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE cashier_shifts
		SET closing_time = $2, closing_balance = $3, calculated_cash_total = $4, difference = $5,
			status = $6, closed_by = $7, payments = $8, expenses = $9, notes = $10
		WHERE id = $1
	`, shift.ID, nullTime(shift.ClosingTime), nullFloat(shift.ClosingBalance), shift.CalculatedCashTotal,
		nullFloat(shift.Difference), shift.Status, nullIfEmpty(shift.ClosedBy), paymentsJSON,
		expensesJSON, nullIfEmpty(shift.Notes))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: shift %s", store.ErrNotFound, shift.ID)
	}
	saved := shift
	return &saved, nil
}

func (s *Store) ListShifts(ctx context.Context, companyID string) ([]domain.CashierShift, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shiftColumns+`
		FROM cashier_shifts
		WHERE company_id = $1
		ORDER BY opening_time DESC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]domain.CashierShift, 0, 32)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return shifts, nil
}

func (s *Store) GetOpenShiftByPointOfSale(ctx context.Context, posID string) (*domain.CashierShift, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+shiftColumns+`
		FROM cashier_shifts
		WHERE point_of_sale_id = $1 AND status = $2
		ORDER BY opening_time DESC
		LIMIT 1
	`, posID, domain.ShiftStatusOpen)
	shift, err := scanShift(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no open shift for point of sale %s", store.ErrNotFound, posID)
		}
		return nil, err
	}
	return &shift, nil
}

// --- expenses ---

func (s *Store) ListExpenseCategories(ctx context.Context, companyID string) ([]domain.ExpenseCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, name
		FROM expense_categories
		WHERE company_id = $1
		ORDER BY name
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.ExpenseCategory, 0, 16)
	for rows.Next() {
		var c domain.ExpenseCategory
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) GetExpenseCategory(ctx context.Context, categoryID string) (*domain.ExpenseCategory, error) {
	var c domain.ExpenseCategory
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, name
		FROM expense_categories
		WHERE id = $1
	`, categoryID).Scan(&c.ID, &c.CompanyID, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: expense category %s", store.ErrNotFound, categoryID)
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	if category.ID == "" {
		category.ID = xid.New("expcat")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_categories (id, company_id, name)
		VALUES ($1,$2,$3)
	`, category.ID, category.CompanyID, category.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category %s already exists", store.ErrValidation, category.Name)
		}
		return nil, err
	}
	saved := category
	return &saved, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.Date.IsZero() {
		expense.Date = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, company_id, date, amount, description, category_id, category_name, cashier_shift_id, recorded_by_vet)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, expense.ID, expense.CompanyID, expense.Date, expense.Amount, expense.Description,
		expense.CategoryID, expense.CategoryName, nullIfEmpty(expense.CashierShiftID), expense.RecordedByVet)
	if err != nil {
		return nil, err
	}
	saved := expense
	return &saved, nil
}

func (s *Store) ListExpenses(ctx context.Context, companyID string) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, date, amount, description, category_id, category_name, COALESCE(cashier_shift_id,''), recorded_by_vet
		FROM expenses
		WHERE company_id = $1
		ORDER BY date DESC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Date, &e.Amount, &e.Description,
			&e.CategoryID, &e.CategoryName, &e.CashierShiftID, &e.RecordedByVet); err != nil {
			return nil, err
		}
		e.Date = e.Date.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

// --- hospitalizations ---

const hospColumns = `id, company_id, pet_id, client_id, pet_name, client_name, admission_date, discharge_date, status, reason, COALESCE(initial_diagnosis,''), vet_in_charge, COALESCE(treatment_plan,''), vital_signs_log, medication_log, progress_notes, COALESCE(invoice_id,''), COALESCE(discharge_outcome,''), COALESCE(discharge_recommendations,'')`

func scanHospitalization(sc rowScanner) (domain.Hospitalization, error) {
	var h domain.Hospitalization
	var dischargeDate sql.NullTime
	var vitalsRaw []byte
	var medsRaw []byte
	var notesRaw []byte
	err := sc.Scan(&h.ID, &h.CompanyID, &h.PetID, &h.ClientID, &h.PetName, &h.ClientName,
		&h.AdmissionDate, &dischargeDate, &h.Status, &h.Reason, &h.InitialDiagnosis, &h.VetInCharge,
		&h.TreatmentPlan, &vitalsRaw, &medsRaw, &notesRaw, &h.InvoiceID, &h.DischargeOutcome, &h.DischargeRecommendations)
	if err != nil {
		return domain.Hospitalization{}, err
	}
	h.AdmissionDate = h.AdmissionDate.UTC()
	if dischargeDate.Valid {
		t := dischargeDate.Time.UTC()
		h.DischargeDate = &t
	}
	if len(vitalsRaw) > 0 {
		if err := json.Unmarshal(vitalsRaw, &h.VitalSignsLog); err != nil {
			return domain.Hospitalization{}, err
		}
	}
	if len(medsRaw) > 0 {
		if err := json.Unmarshal(medsRaw, &h.MedicationLog); err != nil {
			return domain.Hospitalization{}, err
		}
	}
	if len(notesRaw) > 0 {
		if err := json.Unmarshal(notesRaw, &h.ProgressNotes); err != nil {
			return domain.Hospitalization{}, err
		}
	}
	return h, nil
}

func hospitalizationJSON(h domain.Hospitalization) (vitals, meds, notes []byte, err error) {
	vitals, err = json.Marshal(h.VitalSignsLog)
	if err != nil {
		return nil, nil, nil, err
	}
	meds, err = json.Marshal(h.MedicationLog)
	if err != nil {
		return nil, nil, nil, err
	}
	notes, err = json.Marshal(h.ProgressNotes)
	if err != nil {
		return nil, nil, nil, err
	}
	return vitals, meds, notes, nil
}

func (s *Store) CreateHospitalization(ctx context.Context, hosp domain.Hospitalization) (*domain.Hospitalization, error) {
	if hosp.ID == "" {
		hosp.ID = xid.New("hosp")
	}
	if hosp.AdmissionDate.IsZero() {
		hosp.AdmissionDate = time.Now().UTC()
	}
	vitalsJSON, medsJSON, notesJSON, err := hospitalizationJSON(hosp)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hospitalizations (
			id, company_id, pet_id, client_id, pet_name, client_name, admission_date, discharge_date,
			status, reason, initial_diagnosis, vet_in_charge, treatment_plan, vital_signs_log,
			medication_log, progress_notes, invoice_id, discharge_outcome, discharge_recommendations
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, hosp.ID, hosp.CompanyID, hosp.PetID, hosp.ClientID, hosp.PetName, hosp.ClientName,
		hosp.AdmissionDate, nullTime(hosp.DischargeDate), hosp.Status, hosp.Reason,
		nullIfEmpty(hosp.InitialDiagnosis), hosp.VetInCharge, nullIfEmpty(hosp.TreatmentPlan),
		vitalsJSON, medsJSON, notesJSON, nullIfEmpty(hosp.InvoiceID),
		nullIfEmpty(hosp.DischargeOutcome), nullIfEmpty(hosp.DischargeRecommendations))
	if err != nil {
		return nil, err
	}
	saved := hosp
	return &saved, nil
}

func (s *Store) GetHospitalization(ctx context.Context, hospID string) (*domain.Hospitalization, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+hospColumns+` FROM hospitalizations WHERE id = $1`, hospID)
	hosp, err := scanHospitalization(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: hospitalization %s", store.ErrNotFound, hospID)
		}
		return nil, err
	}
	return &hosp, nil
}

func (s *Store) UpdateHospitalization(ctx context.Context, hosp domain.Hospitalization) (*domain.Hospitalization, error) {
	vitalsJSON, medsJSON, notesJSON, err := hospitalizationJSON(hosp)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE hospitalizations
		SET discharge_date = $2, status = $3, reason = $4, initial_diagnosis = $5, vet_in_charge = $6,
			treatment_plan = $7, vital_signs_log = $8, medication_log = $9, progress_notes = $10,
			invoice_id = $11, discharge_outcome = $12, discharge_recommendations = $13
		WHERE id = $1
	`, hosp.ID, nullTime(hosp.DischargeDate), hosp.Status, hosp.Reason, nullIfEmpty(hosp.InitialDiagnosis),
		hosp.VetInCharge, nullIfEmpty(hosp.TreatmentPlan), vitalsJSON, medsJSON, notesJSON,
		nullIfEmpty(hosp.InvoiceID), nullIfEmpty(hosp.DischargeOutcome), nullIfEmpty(hosp.DischargeRecommendations))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: hospitalization %s", store.ErrNotFound, hosp.ID)
	}
	saved := hosp
	return &saved, nil
}

func (s *Store) ListHospitalizations(ctx context.Context, companyID string) ([]domain.Hospitalization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+hospColumns+`
		FROM hospitalizations
		WHERE company_id = $1
		ORDER BY admission_date DESC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hospitalizations := make([]domain.Hospitalization, 0, 16)
	for rows.Next() {
		hosp, err := scanHospitalization(rows)
		if err != nil {
			return nil, err
		}
		hospitalizations = append(hospitalizations, hosp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hospitalizations, nil
}

// --- appointments ---

func (s *Store) CreateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error) {
	if appointment.ID == "" {
		appointment.ID = xid.New("appt")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO appointments (id, company_id, client_id, client_name, pet_id, pet_name, date, time, reason, vet, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, appointment.ID, appointment.CompanyID, appointment.ClientID, appointment.ClientName,
		appointment.PetID, appointment.PetName, appointment.Date, appointment.Time,
		appointment.Reason, nullIfEmpty(appointment.Vet), appointment.Status)
	if err != nil {
		return nil, err
	}
	saved := appointment
	return &saved, nil
}

func (s *Store) ListAppointments(ctx context.Context, companyID string) ([]domain.Appointment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, client_id, client_name, pet_id, pet_name, date, time, reason, COALESCE(vet,''), status
		FROM appointments
		WHERE company_id = $1
		ORDER BY date DESC, time DESC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := make([]domain.Appointment, 0, 64)
	for rows.Next() {
		var a domain.Appointment
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.ClientID, &a.ClientName, &a.PetID,
			&a.PetName, &a.Date, &a.Time, &a.Reason, &a.Vet, &a.Status); err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return appointments, nil
}

func (s *Store) UpdateAppointment(ctx context.Context, appointment domain.Appointment) (*domain.Appointment, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE appointments
		SET date = $2, time = $3, reason = $4, vet = $5, status = $6
		WHERE id = $1
	`, appointment.ID, appointment.Date, appointment.Time, appointment.Reason,
		nullIfEmpty(appointment.Vet), appointment.Status)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: appointment %s", store.ErrNotFound, appointment.ID)
	}
	saved := appointment
	return &saved, nil
}

// --- prescriptions ---

func (s *Store) CreatePrescription(ctx context.Context, prescription domain.Prescription) (*domain.Prescription, error) {
	if prescription.ID == "" {
		prescription.ID = xid.New("rx")
	}
	itemsJSON, err := json.Marshal(prescription.Items)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prescriptions (id, company_id, pet_id, date, vet, items)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, prescription.ID, prescription.CompanyID, prescription.PetID, prescription.Date, prescription.Vet, itemsJSON)
	if err != nil {
		return nil, err
	}
	saved := prescription
	return &saved, nil
}

func (s *Store) ListPrescriptions(ctx context.Context, companyID string) ([]domain.Prescription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, pet_id, date, vet, items
		FROM prescriptions
		WHERE company_id = $1
		ORDER BY date DESC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prescriptions := make([]domain.Prescription, 0, 32)
	for rows.Next() {
		var p domain.Prescription
		var itemsRaw []byte
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.PetID, &p.Date, &p.Vet, &itemsRaw); err != nil {
			return nil, err
		}
		if len(itemsRaw) > 0 {
			if err := json.Unmarshal(itemsRaw, &p.Items); err != nil {
				return nil, err
			}
		}
		prescriptions = append(prescriptions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return prescriptions, nil
}

// --- audit log ---

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, company_id, actor_email, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.CompanyID, entry.ActorEmail, entry.ActorRole, entry.Action,
		entry.EntityType, nullIfEmpty(entry.EntityID), nullIfEmpty(entry.Detail), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, companyID string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, actor_email, actor_role, action, entity_type, COALESCE(entity_id,''), COALESCE(detail,''), created_at
		FROM audit_logs
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var e domain.AuditLog
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.ActorEmail, &e.ActorRole, &e.Action,
			&e.EntityType, &e.EntityID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// --- helpers ---

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
