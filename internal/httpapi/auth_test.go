package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinixpay/backend/internal/domain"
	"clinixpay/backend/internal/store"
	"clinixpay/backend/internal/store/memory"
)

func newTestAuth(t *testing.T) (*AuthManager, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	return NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, repo), repo
}

func TestTokenRoundTrip(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	resp, err := auth.Login(ctx, domain.LoginRequest{Email: "demo@clinixpay.dev", Password: "store123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	principal, err := auth.ParseToken(resp.Token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if principal.CustomerID != "cust-demo" {
		t.Fatalf("expected cust-demo, got %q", principal.CustomerID)
	}
	if principal.Role != domain.RoleCustomer {
		t.Fatalf("expected customer role, got %q", principal.Role)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	auth, _ := newTestAuth(t)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Email: "demo@clinixpay.dev", Password: "store123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	tampered := resp.Token[:len(resp.Token)-2] + "xx"
	if _, err := auth.ParseToken(tampered); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}

	other := NewAuthManager("another-secret-key-fedcba9876543210", time.Hour, nil)
	if _, err := other.ParseToken(resp.Token); err == nil {
		t.Fatalf("expected token signed with a different secret to be rejected")
	}
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	base := domain.RegisterRequest{
		FullName:   "Nikhil Shah",
		StoreName:  "Shah Pharma",
		Email:      "nikhil@shahpharma.in",
		LicenseKey: "LIC-TEST-001",
		Password:   "secret99",
	}

	cases := []struct {
		name   string
		mutate func(r *domain.RegisterRequest)
	}{
		{"missing full name", func(r *domain.RegisterRequest) { r.FullName = "" }},
		{"missing store name", func(r *domain.RegisterRequest) { r.StoreName = "" }},
		{"bad email", func(r *domain.RegisterRequest) { r.Email = "not-an-email" }},
		{"missing license key", func(r *domain.RegisterRequest) { r.LicenseKey = "" }},
		{"short password", func(r *domain.RegisterRequest) { r.Password = "abc" }},
	}
	for _, tc := range cases {
		req := base
		tc.mutate(&req)
		if _, err := auth.Register(ctx, req); !errors.Is(err, store.ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", tc.name, err)
		}
	}

	customer, err := auth.Register(ctx, base)
	if err != nil {
		t.Fatalf("valid register failed: %v", err)
	}
	if customer.Role != domain.RoleCustomer || !customer.Active {
		t.Fatalf("unexpected account defaults: %+v", customer)
	}
	if customer.Password == "secret99" || !isPasswordHash(customer.Password) {
		t.Fatalf("password must be stored hashed")
	}

	if _, err := auth.Register(ctx, base); !errors.Is(err, store.ErrExists) {
		t.Fatalf("expected ErrExists on duplicate email, got %v", err)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	auth, repo := newTestAuth(t)
	ctx := context.Background()

	hash, err := hashPassword("dormant1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	_, err = repo.CreateCustomer(ctx, domain.Customer{
		FullName:  "Dormant Owner",
		StoreName: "Closed Medicals",
		Email:     "closed@clinixpay.dev",
		Password:  hash,
		Role:      domain.RoleCustomer,
		Active:    false,
	})
	if err != nil {
		t.Fatalf("seed inactive account: %v", err)
	}

	_, err = auth.Login(ctx, domain.LoginRequest{Email: "closed@clinixpay.dev", Password: "dormant1"})
	if !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
}
