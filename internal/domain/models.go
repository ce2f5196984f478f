package domain

import "time"

type Company struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	TaxRate  float64 `json:"taxRate"`
	Address  string  `json:"address"`
	Phone    string  `json:"phone"`
	LogoURL  string  `json:"logoUrl,omitempty"`
	Timezone string  `json:"timezone,omitempty"`
}

// Vet is a clinic user. Password holds a bcrypt hash.
type Vet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Specialty string    `json:"specialty"`
	Role      string    `json:"role"`
	CompanyID string    `json:"companyId"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type Client struct {
	ID                   string    `json:"id"`
	CompanyID            string    `json:"companyId"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	Phone                string    `json:"phone"`
	Address              string    `json:"address"`
	IdentificationNumber string    `json:"identificationNumber"`
	BillingAddress       string    `json:"billingAddress,omitempty"`
	MemberSince          time.Time `json:"memberSince"`
}

type WeightEntry struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

type Pet struct {
	ID            string        `json:"id"`
	CompanyID     string        `json:"companyId"`
	OwnerID       string        `json:"ownerId"`
	Name          string        `json:"name"`
	Species       string        `json:"species"`
	Breed         string        `json:"breed"`
	Age           int           `json:"age"`
	Sex           string        `json:"sex"`
	Color         string        `json:"color"`
	PhotoURL      string        `json:"photoUrl,omitempty"`
	MedicalAlerts []string      `json:"medicalAlerts"`
	WeightHistory []WeightEntry `json:"weightHistory"`
}

type MedicalRecord struct {
	ID         string        `json:"id"`
	CompanyID  string        `json:"companyId"`
	PetID      string        `json:"petId"`
	Date       string        `json:"date"`
	Vet        string        `json:"vet"`
	Reason     string        `json:"reason"`
	Category   string        `json:"category"`
	Subjective string        `json:"subjective"`
	Objective  string        `json:"objective"`
	Assessment string        `json:"assessment"`
	Plan       string        `json:"plan"`
	InvoiceID  string        `json:"invoiceId,omitempty"`
	Items      []InvoiceItem `json:"invoiceItems,omitempty"`
}

// MedicalRecordRequest carries the transient creation-time fields that are
// not stored on the record itself.
type MedicalRecordRequest struct {
	Date         string        `json:"date"`
	Vet          string        `json:"vet"`
	Reason       string        `json:"reason"`
	Category     string        `json:"category"`
	Subjective   string        `json:"subjective"`
	Objective    string        `json:"objective"`
	Assessment   string        `json:"assessment"`
	Plan         string        `json:"plan"`
	Weight       float64       `json:"weight,omitempty"`
	ReminderDays int           `json:"reminderDays,omitempty"`
	Action       string        `json:"action,omitempty"`
	InvoiceItems []InvoiceItem `json:"invoiceItems,omitempty"`
}

type Reminder struct {
	ID              string `json:"id"`
	CompanyID       string `json:"companyId"`
	PetID           string `json:"petId"`
	ClientID        string `json:"clientId"`
	PetName         string `json:"petName"`
	ClientName      string `json:"clientName"`
	DueDate         string `json:"dueDate"`
	Message         string `json:"message"`
	Status          string `json:"status"`
	Category        string `json:"category"`
	RelatedRecordID string `json:"relatedRecordId,omitempty"`
}

type ProductLot struct {
	ID             string  `json:"id"`
	LotNumber      string  `json:"lotNumber"`
	Quantity       float64 `json:"quantity"`
	ExpirationDate string  `json:"expirationDate,omitempty"`
}

type ProductSupplier struct {
	SupplierID    string  `json:"supplierId"`
	SupplierName  string  `json:"supplierName"`
	PurchasePrice float64 `json:"purchasePrice"`
}

type Product struct {
	ID                 string            `json:"id"`
	CompanyID          string            `json:"companyId"`
	Name               string            `json:"name"`
	Category           string            `json:"category"`
	Description        string            `json:"description"`
	Lots               []ProductLot      `json:"lots"`
	UsesLotTracking    bool              `json:"usesLotTracking"`
	SalePrice          float64           `json:"salePrice"`
	DiscountPercentage float64           `json:"discountPercentage,omitempty"`
	LowStockThreshold  float64           `json:"lowStockThreshold"`
	Taxable            bool              `json:"taxable"`
	IsDivisible        bool              `json:"isDivisible,omitempty"`
	TotalVolume        float64           `json:"totalVolume,omitempty"`
	VolumeUnit         string            `json:"volumeUnit,omitempty"`
	Suppliers          []ProductSupplier `json:"suppliers,omitempty"`
}

// TotalStock is the sum of the product's lot quantities.
func (p Product) TotalStock() float64 {
	var total float64
	for _, lot := range p.Lots {
		total += lot.Quantity
	}
	return total
}

type ProductCreateRequest struct {
	Name               string            `json:"name"`
	Category           string            `json:"category"`
	Description        string            `json:"description"`
	UsesLotTracking    bool              `json:"usesLotTracking"`
	SalePrice          float64           `json:"salePrice"`
	DiscountPercentage float64           `json:"discountPercentage,omitempty"`
	LowStockThreshold  float64           `json:"lowStockThreshold"`
	Taxable            bool              `json:"taxable"`
	IsDivisible        bool              `json:"isDivisible,omitempty"`
	TotalVolume        float64           `json:"totalVolume,omitempty"`
	VolumeUnit         string            `json:"volumeUnit,omitempty"`
	InitialStock       float64           `json:"initialStock,omitempty"`
	Suppliers          []ProductSupplier `json:"suppliers,omitempty"`
}

type Supplier struct {
	ID            string `json:"id"`
	CompanyID     string `json:"companyId"`
	Name          string `json:"name"`
	ContactPerson string `json:"contactPerson,omitempty"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Address       string `json:"address"`
}

type Purchase struct {
	ID             string    `json:"id"`
	CompanyID      string    `json:"companyId"`
	ProductID      string    `json:"productId"`
	ProductName    string    `json:"productName"`
	SupplierID     string    `json:"supplierId"`
	SupplierName   string    `json:"supplierName"`
	Quantity       float64   `json:"quantity"`
	PurchasePrice  float64   `json:"purchasePrice"`
	Date           time.Time `json:"date"`
	LotNumber      string    `json:"lotNumber,omitempty"`
	ExpirationDate string    `json:"expirationDate,omitempty"`
}

type InternalConsumption struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"companyId"`
	Date          time.Time `json:"date"`
	ProductID     string    `json:"productId"`
	ProductName   string    `json:"productName"`
	LotID         string    `json:"lotId,omitempty"`
	LotNumber     string    `json:"lotNumber,omitempty"`
	Quantity      float64   `json:"quantity"`
	Reason        string    `json:"reason"`
	RecordedByVet string    `json:"recordedByVet"`
}

// InvoiceItem is an immutable snapshot taken at transaction time; it is
// never re-resolved against the live product.
type InvoiceItem struct {
	ProductID          string   `json:"id"`
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	Quantity           float64  `json:"quantity"`
	Price              float64  `json:"price"`
	LotID              string   `json:"lotId,omitempty"`
	LotNumber          string   `json:"lotNumber,omitempty"`
	DiscountAmount     *float64 `json:"discountAmount,omitempty"`
	DiscountPercentage *float64 `json:"discountPercentage,omitempty"`
}

type Payment struct {
	Date           time.Time `json:"date"`
	Amount         float64   `json:"amount"`
	Method         string    `json:"method"`
	CashierShiftID string    `json:"cashierShiftId,omitempty"`
	InvoiceID      string    `json:"invoiceId,omitempty"`
}

type Invoice struct {
	ID             string        `json:"id"`
	InvoiceNumber  string        `json:"invoiceNumber"`
	CompanyID      string        `json:"companyId"`
	ClientID       string        `json:"clientId"`
	ClientName     string        `json:"clientName"`
	PetID          string        `json:"petId,omitempty"`
	PetName        string        `json:"petName,omitempty"`
	Date           time.Time     `json:"date"`
	Items          []InvoiceItem `json:"items"`
	Status         string        `json:"status"`
	Subtotal       float64       `json:"subtotal"`
	TotalDiscount  float64       `json:"totalDiscount"`
	Tax            float64       `json:"tax"`
	Total          float64       `json:"total"`
	AmountPaid     float64       `json:"amountPaid"`
	BalanceDue     float64       `json:"balanceDue"`
	TaxRate        float64       `json:"taxRate"`
	PaymentHistory []Payment     `json:"paymentHistory"`
}

type SaleRequest struct {
	ClientID           string        `json:"clientId"`
	PetID              string        `json:"petId,omitempty"`
	Items              []InvoiceItem `json:"items"`
	SkipStockDeduction bool          `json:"skipStockDeduction,omitempty"`
}

type PaymentRequest struct {
	Amount         float64 `json:"amount"`
	Method         string  `json:"method"`
	CashierShiftID string  `json:"cashierShiftId,omitempty"`
}

type PurchaseRequest struct {
	ProductID      string  `json:"productId"`
	SupplierID     string  `json:"supplierId"`
	Quantity       float64 `json:"quantity"`
	PurchasePrice  float64 `json:"purchasePrice"`
	LotNumber      string  `json:"lotNumber,omitempty"`
	ExpirationDate string  `json:"expirationDate,omitempty"`
}

type ConsumptionRequest struct {
	ProductID string  `json:"productId"`
	LotID     string  `json:"lotId,omitempty"`
	Quantity  float64 `json:"quantity"`
	Reason    string  `json:"reason"`
}

type ExpenseRequest struct {
	Amount         float64 `json:"amount"`
	Description    string  `json:"description"`
	CategoryID     string  `json:"categoryId"`
	CashierShiftID string  `json:"cashierShiftId,omitempty"`
}

type AdmissionRequest struct {
	PetID            string `json:"petId"`
	Reason           string `json:"reason"`
	InitialDiagnosis string `json:"initialDiagnosis"`
	VetInCharge      string `json:"vetInCharge"`
	TreatmentPlan    string `json:"treatmentPlan"`
}

type PointOfSale struct {
	ID          string `json:"id"`
	CompanyID   string `json:"companyId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"isActive"`
}

type CashierShift struct {
	ID                  string     `json:"id"`
	CompanyID           string     `json:"companyId"`
	PointOfSaleID       string     `json:"pointOfSaleId"`
	PointOfSaleName     string     `json:"pointOfSaleName"`
	OpeningTime         time.Time  `json:"openingTime"`
	ClosingTime         *time.Time `json:"closingTime,omitempty"`
	OpeningBalance      float64    `json:"openingBalance"`
	ClosingBalance      *float64   `json:"closingBalance,omitempty"`
	CalculatedCashTotal float64    `json:"calculatedCashTotal"`
	Difference          *float64   `json:"difference,omitempty"`
	Status              string     `json:"status"`
	OpenedBy            string     `json:"openedBy"`
	ClosedBy            string     `json:"closedBy,omitempty"`
	Payments            []Payment  `json:"payments"`
	Expenses            []Expense  `json:"expenses"`
	Notes               string     `json:"notes,omitempty"`
}

type ShiftOpenRequest struct {
	PointOfSaleID  string  `json:"pointOfSaleId"`
	OpeningBalance float64 `json:"openingBalance"`
}

type ShiftCloseRequest struct {
	ClosingBalance float64 `json:"closingBalance"`
	Notes          string  `json:"notes,omitempty"`
}

type ExpenseCategory struct {
	ID        string `json:"id"`
	CompanyID string `json:"companyId"`
	Name      string `json:"name"`
}

type Expense struct {
	ID             string    `json:"id"`
	CompanyID      string    `json:"companyId"`
	Date           time.Time `json:"date"`
	Amount         float64   `json:"amount"`
	Description    string    `json:"description"`
	CategoryID     string    `json:"categoryId"`
	CategoryName   string    `json:"categoryName"`
	CashierShiftID string    `json:"cashierShiftId,omitempty"`
	RecordedByVet  string    `json:"recordedByVet"`
}

type VitalSignEntry struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	RecordedBy      string    `json:"recordedBy"`
	Temperature     float64   `json:"temperature,omitempty"`
	HeartRate       int       `json:"heartRate,omitempty"`
	RespiratoryRate int       `json:"respiratoryRate,omitempty"`
	BloodPressure   string    `json:"bloodPressure,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

type MedicationLogEntry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	AdministeredBy string    `json:"administeredBy"`
	ProductID      string    `json:"productId"`
	ProductName    string    `json:"productName"`
	LotID          string    `json:"lotId,omitempty"`
	LotNumber      string    `json:"lotNumber,omitempty"`
	Quantity       float64   `json:"quantity"`
	Dosage         string    `json:"dosage"`
	Route          string    `json:"route"`
	Notes          string    `json:"notes,omitempty"`
	InvoiceID      string    `json:"invoiceId,omitempty"`
}

type ProgressNoteEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	Note      string    `json:"note"`
}

type Hospitalization struct {
	ID                       string               `json:"id"`
	CompanyID                string               `json:"companyId"`
	PetID                    string               `json:"petId"`
	ClientID                 string               `json:"clientId"`
	PetName                  string               `json:"petName"`
	ClientName               string               `json:"clientName"`
	AdmissionDate            time.Time            `json:"admissionDate"`
	DischargeDate            *time.Time           `json:"dischargeDate,omitempty"`
	Status                   string               `json:"status"`
	Reason                   string               `json:"reason"`
	InitialDiagnosis         string               `json:"initialDiagnosis"`
	VetInCharge              string               `json:"vetInCharge"`
	TreatmentPlan            string               `json:"treatmentPlan"`
	VitalSignsLog            []VitalSignEntry     `json:"vitalSignsLog"`
	MedicationLog            []MedicationLogEntry `json:"medicationLog"`
	ProgressNotes            []ProgressNoteEntry  `json:"progressNotes"`
	InvoiceID                string               `json:"invoiceId,omitempty"`
	DischargeOutcome         string               `json:"dischargeOutcome,omitempty"`
	DischargeRecommendations string               `json:"dischargeRecommendations,omitempty"`
}

type DischargeRequest struct {
	Outcome         string `json:"outcome"`
	Recommendations string `json:"recommendations,omitempty"`
}

type DischargeResult struct {
	Hospitalization Hospitalization `json:"hospitalization"`
	Invoice         *Invoice        `json:"invoice,omitempty"`
}

type Appointment struct {
	ID         string `json:"id"`
	CompanyID  string `json:"companyId"`
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
	PetID      string `json:"petId"`
	PetName    string `json:"petName"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Reason     string `json:"reason"`
	Vet        string `json:"vet"`
	Status     string `json:"status"`
}

type PrescriptionItem struct {
	Medication   string `json:"medication"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

type Prescription struct {
	ID        string             `json:"id"`
	CompanyID string             `json:"companyId"`
	PetID     string             `json:"petId"`
	Date      string             `json:"date"`
	Vet       string             `json:"vet"`
	Items     []PrescriptionItem `json:"items"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	CompanyID  string    `json:"companyId"`
	ActorEmail string    `json:"actorEmail"`
	ActorRole  string    `json:"actorRole"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"createdAt"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
	CompanyID   string `json:"companyId"`
	Name        string `json:"name"`
	ExpiresAt   string `json:"expiresAt"`
}

type Actor struct {
	Email     string
	Name      string
	Role      string
	CompanyID string
}

type LowStockAlert struct {
	ProductID    string  `json:"productId"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	CurrentStock float64 `json:"currentStock"`
	Threshold    float64 `json:"threshold"`
}

type ExpiringLotAlert struct {
	ProductID      string  `json:"productId"`
	ProductName    string  `json:"productName"`
	LotID          string  `json:"lotId"`
	LotNumber      string  `json:"lotNumber"`
	Quantity       float64 `json:"quantity"`
	ExpirationDate string  `json:"expirationDate"`
	DaysLeft       int     `json:"daysLeft"`
}

type InventoryAlerts struct {
	CompanyID    string             `json:"companyId"`
	GeneratedAt  string             `json:"generatedAt"`
	LowStock     []LowStockAlert    `json:"lowStock"`
	ExpiringLots []ExpiringLotAlert `json:"expiringLots"`
}

const (
	CategoryMedicine  = "Medicine"
	CategoryFood      = "Food"
	CategoryAccessory = "Accessory"
	CategorySupply    = "Supply"
	CategoryService   = "Service"
)

// BucketLotNumber names the implicit single lot used by products that do
// not track physical lots.
const BucketLotNumber = "N/A"

const (
	InvoiceStatusUnpaid  = "Unpaid"
	InvoiceStatusPaid    = "Paid"
	InvoiceStatusOverdue = "Overdue"
)

const (
	PaymentMethodCash     = "Cash"
	PaymentMethodCard     = "Card"
	PaymentMethodTransfer = "Transfer"
	PaymentMethodOther    = "Other"
)

const (
	ShiftStatusOpen   = "Open"
	ShiftStatusClosed = "Closed"
)

const (
	HospitalizationStatusActive     = "Active"
	HospitalizationStatusDischarged = "Discharged"
)

const (
	ReminderStatusPending   = "Pending"
	ReminderStatusCompleted = "Completed"
	ReminderStatusDismissed = "Dismissed"
)

const (
	RoleAdmin     = "admin"
	RoleVet       = "vet"
	RoleAssistant = "assistant"
)
