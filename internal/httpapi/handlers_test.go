package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"veterinaria/backend/internal/domain"
	"veterinaria/backend/internal/service"
	"veterinaria/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func login(t *testing.T, api *API, email string, password string) domain.LoginResponse {
	t.Helper()
	payload, _ := json.Marshal(domain.LoginRequest{Email: email, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed, status %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp
}

// authedJSON issues an authenticated JSON request carrying a CSRF token.
func authedJSON(t *testing.T, api *API, token string, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, api))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLoginSuccess(t *testing.T) {
	api := newTestAPI(t)
	resp := login(t, api, "admin@clinica.demo", "admin123")
	if resp.AccessToken == "" {
		t.Fatalf("expected access token in response")
	}
	if resp.CompanyID != "comp_demo" {
		t.Fatalf("expected companyId comp_demo, got %q", resp.CompanyID)
	}
	if resp.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %q", resp.Role)
	}
}

func TestHandleLoginInvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	payload, _ := json.Marshal(domain.LoginRequest{Email: "admin@clinica.demo", Password: "wrongpassword"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies/comp_demo/products", nil)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestCompanyScopeEnforced(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin@clinica.demo", "admin123").AccessToken

	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies/another_company/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign company, got %d", rec.Code)
	}
}

func TestRoleForbiddenForNonAdmin(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "vet@clinica.demo", "vet12345").AccessToken

	rec := authedJSON(t, api, token, http.MethodDelete, "/api/v1/clients/cli_demo", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for vet deleting a client, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCounterSaleAndPaymentFlow(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin@clinica.demo", "admin123").AccessToken

	saleBody := domain.SaleRequest{
		ClientID: "cli_demo",
		PetID:    "pet_demo",
		Items: []domain.InvoiceItem{
			{ProductID: "prod_consult", Name: "General Consultation", Quantity: 1, Price: 25},
		},
	}
	rec := authedJSON(t, api, token, http.MethodPost, "/api/v1/companies/comp_demo/sales", saleBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for sale, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Invoice domain.Invoice `json:"invoice"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale response: %v", err)
	}
	if created.Invoice.InvoiceNumber != "1" {
		t.Fatalf("expected invoice number 1, got %q", created.Invoice.InvoiceNumber)
	}
	if created.Invoice.Status != domain.InvoiceStatusUnpaid {
		t.Fatalf("expected Unpaid invoice, got %s", created.Invoice.Status)
	}

	payBody := domain.PaymentRequest{Amount: created.Invoice.Total, Method: domain.PaymentMethodCard}
	rec = authedJSON(t, api, token, http.MethodPost, "/api/v1/invoices/"+created.Invoice.ID+"/payments", payBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for payment, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var paid struct {
		Invoice domain.Invoice `json:"invoice"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&paid); err != nil {
		t.Fatalf("decode payment response: %v", err)
	}
	if paid.Invoice.Status != domain.InvoiceStatusPaid {
		t.Fatalf("expected Paid invoice, got %s", paid.Invoice.Status)
	}
	if paid.Invoice.BalanceDue != 0 {
		t.Fatalf("expected zero balance, got %v", paid.Invoice.BalanceDue)
	}
}

func TestSaleValidationErrorsMapTo422(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin@clinica.demo", "admin123").AccessToken

	rec := authedJSON(t, api, token, http.MethodPost, "/api/v1/companies/comp_demo/sales", domain.SaleRequest{
		ClientID: "cli_demo",
		Items:    []domain.InvoiceItem{},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty cart, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestInsufficientStockMapsTo409(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin@clinica.demo", "admin123").AccessToken

	rec := authedJSON(t, api, token, http.MethodPost, "/api/v1/companies/comp_demo/sales", domain.SaleRequest{
		ClientID: "cli_demo",
		Items: []domain.InvoiceItem{
			{ProductID: "prod_amox", Name: "Amoxicillin 250mg", Quantity: 5000, Price: 1.5, LotID: "lot_amox_1"},
		},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestUnknownInvoiceMapsTo404(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin@clinica.demo", "admin123").AccessToken

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/inv_missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown invoice, got %d", rec.Code)
	}
}
