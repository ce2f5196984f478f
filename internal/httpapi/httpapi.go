package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"veterinaria/backend/internal/domain"
	"veterinaria/backend/internal/service"
	"veterinaria/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

const (
	roleAdmin     = domain.RoleAdmin
	roleVet       = domain.RoleVet
	roleAssistant = domain.RoleAssistant
)

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)

	all := []string{roleAdmin, roleVet, roleAssistant}
	clinical := []string{roleAdmin, roleVet}

	mux.HandleFunc("GET /api/v1/companies/{companyID}", a.requireAuth(a.handleCompanyGet, all...))
	mux.HandleFunc("PUT /api/v1/companies/{companyID}", a.requireAuth(a.handleCompanyUpdate, roleAdmin))

	mux.HandleFunc("GET /api/v1/companies/{companyID}/clients", a.requireAuth(a.handleClientList, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/clients", a.requireAuth(a.handleClientCreate, all...))
	mux.HandleFunc("PUT /api/v1/clients/{id}", a.requireAuth(a.handleClientUpdate, all...))
	mux.HandleFunc("DELETE /api/v1/clients/{id}", a.requireAuth(a.handleClientDelete, roleAdmin))
	mux.HandleFunc("POST /api/v1/clients/{id}/pets", a.requireAuth(a.handlePetCreate, all...))

	mux.HandleFunc("GET /api/v1/companies/{companyID}/pets", a.requireAuth(a.handlePetList, all...))
	mux.HandleFunc("GET /api/v1/pets/{id}", a.requireAuth(a.handlePetGet, all...))
	mux.HandleFunc("PUT /api/v1/pets/{id}", a.requireAuth(a.handlePetUpdate, all...))
	mux.HandleFunc("DELETE /api/v1/pets/{id}", a.requireAuth(a.handlePetDelete, roleAdmin))
	mux.HandleFunc("GET /api/v1/pets/{id}/medical-records", a.requireAuth(a.handleMedicalRecordList, all...))
	mux.HandleFunc("POST /api/v1/pets/{id}/medical-records", a.requireAuth(a.handleMedicalRecordCreate, clinical...))

	mux.HandleFunc("GET /api/v1/companies/{companyID}/reminders", a.requireAuth(a.handleReminderList, all...))
	mux.HandleFunc("PUT /api/v1/reminders/{id}/status", a.requireAuth(a.handleReminderStatus, all...))

	mux.HandleFunc("GET /api/v1/companies/{companyID}/products", a.requireAuth(a.handleProductList, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/products", a.requireAuth(a.handleProductCreate, roleAdmin))
	mux.HandleFunc("GET /api/v1/products/{id}", a.requireAuth(a.handleProductGet, all...))
	mux.HandleFunc("PUT /api/v1/products/{id}", a.requireAuth(a.handleProductUpdate, roleAdmin))
	mux.HandleFunc("DELETE /api/v1/products/{id}", a.requireAuth(a.handleProductDelete, roleAdmin))
	mux.HandleFunc("GET /api/v1/companies/{companyID}/inventory/alerts", a.requireAuth(a.handleInventoryAlerts, all...))

	mux.HandleFunc("GET /api/v1/companies/{companyID}/purchases", a.requireAuth(a.handlePurchaseList, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/purchases", a.requireAuth(a.handlePurchaseCreate, clinical...))
	mux.HandleFunc("GET /api/v1/companies/{companyID}/consumptions", a.requireAuth(a.handleConsumptionList, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/consumptions", a.requireAuth(a.handleConsumptionCreate, all...))
	mux.HandleFunc("GET /api/v1/companies/{companyID}/suppliers", a.requireAuth(a.handleSupplierList, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/suppliers", a.requireAuth(a.handleSupplierCreate, roleAdmin))

	mux.HandleFunc("POST /api/v1/companies/{companyID}/sales", a.requireAuth(a.handleSaleCreate, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/invoices/preview", a.requireAuth(a.handleInvoicePreview, all...))
	mux.HandleFunc("GET /api/v1/companies/{companyID}/invoices", a.requireAuth(a.handleInvoiceList, all...))
	mux.HandleFunc("GET /api/v1/invoices/{id}", a.requireAuth(a.handleInvoiceGet, all...))
	mux.HandleFunc("PUT /api/v1/invoices/{id}", a.requireAuth(a.handleInvoiceEdit, all...))
	mux.HandleFunc("POST /api/v1/invoices/{id}/payments", a.requireAuth(a.handlePaymentCreate, all...))

	mux.HandleFunc("GET /api/v1/companies/{companyID}/shifts", a.requireAuth(a.handleShiftList, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/shifts/open", a.requireAuth(a.handleShiftOpen, all...))
	mux.HandleFunc("POST /api/v1/shifts/{id}/close", a.requireAuth(a.handleShiftClose, all...))
	mux.HandleFunc("GET /api/v1/companies/{companyID}/points-of-sale", a.requireAuth(a.handlePointOfSaleList, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/points-of-sale", a.requireAuth(a.handlePointOfSaleCreate, roleAdmin))
	mux.HandleFunc("GET /api/v1/companies/{companyID}/expenses", a.requireAuth(a.handleExpenseList, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/expenses", a.requireAuth(a.handleExpenseCreate, all...))
	mux.HandleFunc("GET /api/v1/companies/{companyID}/expense-categories", a.requireAuth(a.handleExpenseCategoryList, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/expense-categories", a.requireAuth(a.handleExpenseCategoryCreate, roleAdmin))

	mux.HandleFunc("GET /api/v1/companies/{companyID}/hospitalizations", a.requireAuth(a.handleHospitalizationList, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/hospitalizations", a.requireAuth(a.handleAdmission, clinical...))
	mux.HandleFunc("GET /api/v1/hospitalizations/{id}", a.requireAuth(a.handleHospitalizationGet, all...))
	mux.HandleFunc("POST /api/v1/hospitalizations/{id}/vitals", a.requireAuth(a.handleVitalSigns, all...))
	mux.HandleFunc("POST /api/v1/hospitalizations/{id}/medications", a.requireAuth(a.handleMedication, clinical...))
	mux.HandleFunc("POST /api/v1/hospitalizations/{id}/notes", a.requireAuth(a.handleProgressNote, all...))
	mux.HandleFunc("PUT /api/v1/hospitalizations/{id}/treatment-plan", a.requireAuth(a.handleTreatmentPlan, clinical...))
	mux.HandleFunc("POST /api/v1/hospitalizations/{id}/discharge", a.requireAuth(a.handleDischarge, clinical...))

	mux.HandleFunc("GET /api/v1/companies/{companyID}/appointments", a.requireAuth(a.handleAppointmentList, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/appointments", a.requireAuth(a.handleAppointmentCreate, all...))
	mux.HandleFunc("PUT /api/v1/appointments/{id}", a.requireAuth(a.handleAppointmentUpdate, all...))

	mux.HandleFunc("GET /api/v1/companies/{companyID}/prescriptions", a.requireAuth(a.handlePrescriptionList, all...))
	mux.HandleFunc("POST /api/v1/companies/{companyID}/prescriptions", a.requireAuth(a.handlePrescriptionCreate, clinical...))

	mux.HandleFunc("GET /api/v1/companies/{companyID}/vets", a.requireAuth(a.handleVetList, roleAdmin))
	mux.HandleFunc("GET /api/v1/companies/{companyID}/audit-logs", a.requireAuth(a.handleAuditLogs, roleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// companyID resolves the {companyID} path segment and enforces that the
// caller's token belongs to that company.
func (a *API) companyID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("companyID")
	actor, ok := service.ActorFromContext(r.Context())
	if !ok || actor.CompanyID != id {
		writeError(w, http.StatusForbidden, errors.New("company access denied"))
		return "", false
	}
	return id, true
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths that are exempt from CSRF validation.
// Login is excluded because it is called without a prior CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods
// (POST/PUT/PATCH/DELETE). Returns false and writes an error response if
// validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

// --- company ---

func (a *API) handleCompanyGet(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	company, err := a.service.GetCompany(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"company": company})
}

func (a *API) handleCompanyUpdate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var company domain.Company
	if err := decodeJSON(r, &company); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	company.ID = companyID
	updated, err := a.service.UpdateCompany(r.Context(), company)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"company": updated})
}

// --- clients & pets ---

func (a *API) handleClientList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	clients, err := a.service.ListClients(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (a *API) handleClientCreate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var client domain.Client
	if err := decodeJSON(r, &client); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := a.service.CreateClient(r.Context(), companyID, client)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"client": created})
}

func (a *API) handleClientUpdate(w http.ResponseWriter, r *http.Request) {
	var client domain.Client
	if err := decodeJSON(r, &client); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	client.ID = r.PathValue("id")
	updated, err := a.service.UpdateClient(r.Context(), client)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"client": updated})
}

func (a *API) handleClientDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteClient(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handlePetCreate(w http.ResponseWriter, r *http.Request) {
	actor, _ := service.ActorFromContext(r.Context())
	var pet domain.Pet
	if err := decodeJSON(r, &pet); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := a.service.CreatePet(r.Context(), actor.CompanyID, r.PathValue("id"), pet)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"pet": created})
}

func (a *API) handlePetList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	pets, err := a.service.ListPets(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pets": pets})
}

func (a *API) handlePetGet(w http.ResponseWriter, r *http.Request) {
	pet, err := a.service.GetPet(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pet": pet})
}

func (a *API) handlePetUpdate(w http.ResponseWriter, r *http.Request) {
	var pet domain.Pet
	if err := decodeJSON(r, &pet); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pet.ID = r.PathValue("id")
	updated, err := a.service.UpdatePet(r.Context(), pet)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pet": updated})
}

func (a *API) handlePetDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeletePet(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- medical records & reminders ---

func (a *API) handleMedicalRecordList(w http.ResponseWriter, r *http.Request) {
	records, err := a.service.ListMedicalRecords(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (a *API) handleMedicalRecordCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.MedicalRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	record, err := a.service.AddMedicalRecord(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"record": record})
}

func (a *API) handleReminderList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	reminders, err := a.service.ListReminders(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": reminders})
}

func (a *API) handleReminderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	reminder, err := a.service.UpdateReminderStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminder": reminder})
}

// --- products & stock ---

func (a *API) handleProductList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	products, err := a.service.ListProducts(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), companyID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleProductGet(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleProductUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleProductDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleInventoryAlerts(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	alerts, err := a.service.InventoryAlerts(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (a *API) handlePurchaseList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	purchases, err := a.service.ListPurchases(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}

func (a *API) handlePurchaseCreate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var req domain.PurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	purchase, err := a.service.RecordPurchase(r.Context(), companyID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"purchase": purchase})
}

func (a *API) handleConsumptionList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	consumptions, err := a.service.ListInternalConsumptions(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consumptions": consumptions})
}

func (a *API) handleConsumptionCreate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var req domain.ConsumptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	consumption, err := a.service.RecordInternalConsumption(r.Context(), companyID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"consumption": consumption})
}

func (a *API) handleSupplierList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	suppliers, err := a.service.ListSuppliers(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
}

func (a *API) handleSupplierCreate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var supplier domain.Supplier
	if err := decodeJSON(r, &supplier); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := a.service.CreateSupplier(r.Context(), companyID, supplier)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"supplier": created})
}

// --- invoicing ---

func (a *API) handleSaleCreate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var req domain.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	invoice, err := a.service.CreateSale(r.Context(), companyID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": invoice})
}

func (a *API) handleInvoicePreview(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var req struct {
		Items []domain.InvoiceItem `json:"items"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	totals, err := a.service.PreviewTotals(r.Context(), companyID, req.Items)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (a *API) handleInvoiceList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	invoices, err := a.service.ListInvoices(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (a *API) handleInvoiceGet(w http.ResponseWriter, r *http.Request) {
	invoice, err := a.service.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
}

func (a *API) handleInvoiceEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []domain.InvoiceItem `json:"items"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	invoice, err := a.service.EditInvoiceItems(r.Context(), r.PathValue("id"), req.Items)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
}

func (a *API) handlePaymentCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	invoice, err := a.service.RecordPayment(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
}

// --- cashier shifts & expenses ---

func (a *API) handleShiftList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	shifts, err := a.service.ListShifts(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shifts": shifts})
}

func (a *API) handleShiftOpen(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var req domain.ShiftOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	shift, err := a.service.OpenShift(r.Context(), companyID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"shift": shift})
}

func (a *API) handleShiftClose(w http.ResponseWriter, r *http.Request) {
	var req domain.ShiftCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	shift, err := a.service.CloseShift(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shift": shift})
}

func (a *API) handlePointOfSaleList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	points, err := a.service.ListPointsOfSale(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pointsOfSale": points})
}

func (a *API) handlePointOfSaleCreate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var pos domain.PointOfSale
	if err := decodeJSON(r, &pos); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := a.service.CreatePointOfSale(r.Context(), companyID, pos)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"pointOfSale": created})
}

func (a *API) handleExpenseList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	expenses, err := a.service.ListExpenses(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (a *API) handleExpenseCreate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var req domain.ExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	expense, err := a.service.RecordExpense(r.Context(), companyID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"expense": expense})
}

func (a *API) handleExpenseCategoryList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	categories, err := a.service.ListExpenseCategories(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (a *API) handleExpenseCategoryCreate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	category, err := a.service.CreateExpenseCategory(r.Context(), companyID, req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"category": category})
}

// --- hospitalization ---

func (a *API) handleHospitalizationList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	hospitalizations, err := a.service.ListHospitalizations(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hospitalizations": hospitalizations})
}

func (a *API) handleAdmission(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var req domain.AdmissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hosp, err := a.service.AdmitPatient(r.Context(), companyID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"hospitalization": hosp})
}

func (a *API) handleHospitalizationGet(w http.ResponseWriter, r *http.Request) {
	hosp, err := a.service.GetHospitalization(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hospitalization": hosp})
}

func (a *API) handleVitalSigns(w http.ResponseWriter, r *http.Request) {
	var entry domain.VitalSignEntry
	if err := decodeJSON(r, &entry); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hosp, err := a.service.LogVitalSigns(r.Context(), r.PathValue("id"), entry)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hospitalization": hosp})
}

func (a *API) handleMedication(w http.ResponseWriter, r *http.Request) {
	var entry domain.MedicationLogEntry
	if err := decodeJSON(r, &entry); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hosp, err := a.service.LogMedication(r.Context(), r.PathValue("id"), entry)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hospitalization": hosp})
}

func (a *API) handleProgressNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hosp, err := a.service.LogProgressNote(r.Context(), r.PathValue("id"), req.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hospitalization": hosp})
}

func (a *API) handleTreatmentPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plan string `json:"plan"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hosp, err := a.service.UpdateTreatmentPlan(r.Context(), r.PathValue("id"), req.Plan)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hospitalization": hosp})
}

func (a *API) handleDischarge(w http.ResponseWriter, r *http.Request) {
	var req domain.DischargeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := a.service.DischargePatient(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- appointments & prescriptions ---

func (a *API) handleAppointmentList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	appointments, err := a.service.ListAppointments(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appointments})
}

func (a *API) handleAppointmentCreate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var appointment domain.Appointment
	if err := decodeJSON(r, &appointment); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := a.service.CreateAppointment(r.Context(), companyID, appointment)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"appointment": created})
}

func (a *API) handleAppointmentUpdate(w http.ResponseWriter, r *http.Request) {
	var appointment domain.Appointment
	if err := decodeJSON(r, &appointment); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	appointment.ID = r.PathValue("id")
	updated, err := a.service.UpdateAppointment(r.Context(), appointment)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment": updated})
}

func (a *API) handlePrescriptionList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	prescriptions, err := a.service.ListPrescriptions(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prescriptions": prescriptions})
}

func (a *API) handlePrescriptionCreate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	var prescription domain.Prescription
	if err := decodeJSON(r, &prescription); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := a.service.CreatePrescription(r.Context(), companyID, prescription)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"prescription": created})
}

// --- staff & audit ---

func (a *API) handleVetList(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	vets, err := a.service.ListVets(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vets": vets})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	companyID, ok := a.companyID(w, r)
	if !ok {
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), companyID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// writeServiceError maps the store's sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrInvalidState):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
