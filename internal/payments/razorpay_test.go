package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListPaymentsParsesPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments" {
			http.NotFound(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("count") != "2" || r.URL.Query().Get("skip") != "5" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count": 2,
			"items": []map[string]any{
				{"id": "pay_1", "amount": 10000, "currency": "INR", "status": "captured", "method": "upi"},
				{"id": "pay_2", "amount": 2500, "currency": "INR", "status": "failed", "method": "card"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", "secret")
	items, err := client.ListPayments(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(items))
	}
	if items[0].ID != "pay_1" || items[0].Amount != 10000 {
		t.Fatalf("unexpected first payment: %+v", items[0])
	}
}

func TestListPaymentsDefaultsCountAndSkip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("count") != "20" || r.URL.Query().Get("skip") != "0" {
			t.Errorf("expected defaults, got query %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"count": 0, "items": []any{}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", "secret")
	if _, err := client.ListPayments(context.Background(), 0, -3); err != nil {
		t.Fatalf("list payments failed: %v", err)
	}
}

func TestListPaymentsGatewayErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key", "secret")
	_, err := client.ListPayments(context.Background(), 10, 0)
	if !errors.Is(err, ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}

	unconfigured := NewClient(server.URL, "", "")
	if _, err := unconfigured.ListPayments(context.Background(), 10, 0); !errors.Is(err, ErrGateway) {
		t.Fatalf("expected ErrGateway without credentials, got %v", err)
	}
}
