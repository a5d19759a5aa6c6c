package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinixpay/backend/internal/cache"
	"clinixpay/backend/internal/domain"
	"clinixpay/backend/internal/payments"
	"clinixpay/backend/internal/service"
	"clinixpay/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopRevenueCache{}, time.Minute)
	auth := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, repo)
	gateway := payments.NewClient("", "", "")

	return New(svc, auth, gateway, "*")
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func login(t *testing.T, handler http.Handler, email string, password string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("expected token in login response, got %v", body)
	}
	return token
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("expected success:true, got %v", body)
	}
}

func TestRegisterLoginAndDuplicateEmail(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	register := map[string]string{
		"fullName":   "Nikhil Shah",
		"storeName":  "Shah Pharma",
		"location":   "Surat",
		"contactNo":  "9898989898",
		"email":      "nikhil@shahpharma.in",
		"gstNo":      "24ABCDE1234F1Z2",
		"storeLicNo": "GJ-SRT-554",
		"licenseKey": "LIC-TEST-001",
		"password":   "secret99",
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", "", register)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", "", register)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate email, got %d", rec.Code)
	}

	token := login(t, handler, "nikhil@shahpharma.in", "secret99")
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customer/profile", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 profile, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	customer, _ := body["customer"].(map[string]any)
	if customer["storeName"] != "Shah Pharma" {
		t.Fatalf("unexpected profile: %v", body)
	}
	if _, leaked := customer["password"]; leaked {
		t.Fatalf("password must never appear in responses")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "demo@clinixpay.dev",
		"password": "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "nobody@clinixpay.dev",
		"password": "whatever",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email, got %d", rec.Code)
	}
}

func TestBillLifecycleEndToEnd(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "demo@clinixpay.dev", "store123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bills", token, map[string]any{
		"patientName": "Ravi Kumar",
		"items": []map[string]any{
			{"name": "Paracetamol 500mg", "qty": 2, "price": 50},
		},
		"discount": 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	bill, _ := body["bill"].(map[string]any)
	if bill["subTotal"] != float64(100) || bill["grandTotal"] != float64(90) {
		t.Fatalf("unexpected totals: %v", bill)
	}
	if bill["status"] != domain.BillStatusDraft {
		t.Fatalf("expected DRAFT, got %v", bill["status"])
	}
	billID, _ := bill["id"].(string)

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/bills/%s/finalize", billID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/bills/%s/finalize", billID), token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second finalize: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, fmt.Sprintf("/api/v1/bills/%s", billID), token, map[string]any{
		"items": []map[string]any{{"name": "Paracetamol 500mg", "qty": 1, "price": 50}},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("update after finalize: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/bills/today", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("today: expected 200, got %d", rec.Code)
	}
	body = decodeBody(t, rec)
	bills, _ := body["bills"].([]any)
	if len(bills) != 1 {
		t.Fatalf("expected one bill today, got %d", len(bills))
	}
}

func TestAgencyBillCreditFlow(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "demo@clinixpay.dev", "store123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/agency-bills", token, map[string]any{
		"agencyName":  "Sun Distributors",
		"agencyGstin": "27AAAAA0000A1Z5",
		"paymentMode": "credit",
		"creditTerms": 30,
		"items": []map[string]any{
			{"name": "Azithromycin 250mg", "qty": 10, "price": 13.8},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	bill, _ := body["bill"].(map[string]any)
	if bill["paymentMode"] != domain.PaymentModeCredit {
		t.Fatalf("expected Credit mode, got %v", bill["paymentMode"])
	}
	billID, _ := bill["id"].(string)

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/agency-bills/%s/finalize", billID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize: expected 200, got %d", rec.Code)
	}
	body = decodeBody(t, rec)
	bill, _ = body["bill"].(map[string]any)
	if bill["dueDate"] == nil {
		t.Fatalf("expected dueDate on finalized credit bill, got %v", bill)
	}
}

func TestInventoryPatchEndpoint(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "demo@clinixpay.dev", "store123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/inventory", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list inventory: expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	items, _ := body["items"].([]any)
	if len(items) == 0 {
		t.Fatalf("expected seeded inventory")
	}
	first, _ := items[0].(map[string]any)
	itemID, _ := first["id"].(string)

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/inventory/"+itemID, token, map[string]any{
		"qty": 42,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body = decodeBody(t, rec)
	item, _ := body["item"].(map[string]any)
	if item["qty"] != float64(42) {
		t.Fatalf("expected qty 42, got %v", item["qty"])
	}

	// Unknown fields are rejected.
	rec = doJSON(t, handler, http.MethodPut, "/api/v1/inventory/"+itemID, token, map[string]any{
		"productName": "renamed",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestPurchaseEndpointOutcomes(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "demo@clinixpay.dev", "store123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/purchases", token, map[string]any{
		"supplier": map[string]any{"name": "Sun Distributors", "gstin": "27AAAAA0000A1Z5"},
		"items": []map[string]any{
			{"productName": "Amoxicillin 500mg", "batch": "AMX-2501", "qty": 40, "mrp": 9.5, "rate": 6.2, "gstPercent": 12},
			{"productName": "", "batch": "XXX-0000", "qty": 10, "mrp": 1, "rate": 1, "gstPercent": 0},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	outcomes, _ := body["itemOutcomes"].([]any)
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	second, _ := outcomes[1].(map[string]any)
	if second["status"] != domain.PurchaseItemSkipped {
		t.Fatalf("expected skipped outcome, got %v", second)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/purchases", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list purchases: expected 200, got %d", rec.Code)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "demo@clinixpay.dev", "store123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/bills", token, map[string]any{
		"patientName": "Ravi Kumar",
		"items":       []map[string]any{{"name": "Paracetamol 500mg", "qty": 1, "price": 100}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	bill, _ := decodeBody(t, rec)["bill"].(map[string]any)
	billID, _ := bill["id"].(string)
	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/bills/%s/finalize", billID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/last-7-days", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	revenue, _ := body["revenue"].([]any)
	if len(revenue) != 1 {
		t.Fatalf("expected one weekday bucket, got %v", body)
	}
	point, _ := revenue[0].(map[string]any)
	if point["totalAmount"] != float64(100) {
		t.Fatalf("expected totalAmount 100, got %v", point)
	}
}

func TestAdminPaymentsPassthrough(t *testing.T) {
	gatewayServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments" {
			http.NotFound(w, r)
			return
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "rzp_test_key" || pass != "rzp_test_secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count": 2,
			"items": []map[string]any{
				{"id": "pay_1", "amount": 10000, "currency": "INR", "status": "captured"},
				{"id": "pay_2", "amount": 2500, "currency": "INR", "status": "captured"},
			},
		})
	}))
	defer gatewayServer.Close()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopRevenueCache{}, time.Minute)
	auth := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, repo)
	gateway := payments.NewClient(gatewayServer.URL, "rzp_test_key", "rzp_test_secret")
	handler := New(svc, auth, gateway, "*").Handler()

	customerToken := login(t, handler, "demo@clinixpay.dev", "store123")
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/admin/payments", customerToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer role, got %d", rec.Code)
	}

	adminToken := login(t, handler, "admin@clinixpay.dev", "admin123")
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/admin/payments?count=2", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["total"] != float64(2) {
		t.Fatalf("expected total 2, got %v", body["total"])
	}
	if body["amountinrupees"] != float64(125) {
		t.Fatalf("expected amountinrupees 125, got %v", body["amountinrupees"])
	}
}
