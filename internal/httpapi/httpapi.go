// Package httpapi exposes the REST surface: store-account auth, billing,
// inventory, purchases, the dashboard rollup and the admin gateway view.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"clinixpay/backend/internal/domain"
	"clinixpay/backend/internal/payments"
	"clinixpay/backend/internal/service"
	"clinixpay/backend/internal/store"
)

type API struct {
	svc           *service.Service
	auth          *AuthManager
	gateway       *payments.Client
	loginLimiter  *attemptLimiter
	allowedOrigin string
}

func New(svc *service.Service, auth *AuthManager, gateway *payments.Client, allowedOrigin string) *API {
	return &API{
		svc:           svc,
		auth:          auth,
		gateway:       gateway,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		allowedOrigin: allowedOrigin,
	}
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

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{a.allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", a.handleRegister)
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Get("/customer/profile", a.handleGetProfile)
			r.Put("/customer/profile", a.handleUpdateProfile)

			r.Route("/bills", func(r chi.Router) {
				r.Post("/", a.handleCreateBill)
				r.Get("/", a.handleListBills)
				r.Get("/today", a.handleTodayBills)
				r.Get("/{billID}", a.handleGetBill)
				r.Put("/{billID}", a.handleUpdateBill)
				r.Post("/{billID}/finalize", a.handleFinalizeBill)
			})

			r.Route("/agency-bills", func(r chi.Router) {
				r.Post("/", a.handleCreateAgencyBill)
				r.Get("/", a.handleListAgencyBills)
				r.Get("/{billID}", a.handleGetAgencyBill)
				r.Put("/{billID}", a.handleUpdateAgencyBill)
				r.Post("/{billID}/finalize", a.handleFinalizeAgencyBill)
			})

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", a.handleListInventory)
				r.Put("/{itemID}", a.handleUpdateInventory)
				r.Delete("/{itemID}", a.handleDeleteInventory)
			})

			r.Route("/purchases", func(r chi.Router) {
				r.Post("/", a.handleCreatePurchase)
				r.Get("/", a.handleListPurchases)
				r.Get("/{purchaseID}", a.handleGetPurchase)
			})

			r.Get("/dashboard/last-7-days", a.handleLast7Days)

			r.Group(func(r chi.Router) {
				r.Use(a.requireAdmin)
				r.Get("/admin/payments", a.handleAdminPayments)
			})
		})
	})

	return r
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		principal, err := a.auth.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		ctx := service.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := service.PrincipalFromContext(r.Context())
		if !ok || principal.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, errors.New("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "customer": customer})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts, try again shortly"))
		return
	}
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"token":     resp.Token,
		"expiresAt": resp.ExpiresAt,
	})
}

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	customer, err := a.svc.Profile(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "customer": customer})
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.ProfileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.svc.UpdateProfile(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "customer": customer})
}

func (a *API) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req domain.EndUserBillCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bill, err := a.svc.CreateEndUserDraft(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "bill": bill})
}

func (a *API) handleListBills(w http.ResponseWriter, r *http.Request) {
	query := domain.BillListQuery{
		Page:   parsePositiveInt(r.URL.Query().Get("page"), 1),
		Limit:  parsePositiveInt(r.URL.Query().Get("limit"), 20),
		SortBy: r.URL.Query().Get("sortBy"),
		Order:  r.URL.Query().Get("order"),
		Search: r.URL.Query().Get("search"),
	}
	bills, meta, err := a.svc.ListEndUserBills(r.Context(), query)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bills": bills, "meta": meta})
}

func (a *API) handleTodayBills(w http.ResponseWriter, r *http.Request) {
	bills, err := a.svc.TodayEndUserBills(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bills": bills})
}

func (a *API) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := a.svc.GetEndUserBill(r.Context(), chi.URLParam(r, "billID"))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bill": bill})
}

func (a *API) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	var req domain.EndUserBillUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bill, err := a.svc.UpdateEndUserDraft(r.Context(), chi.URLParam(r, "billID"), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bill": bill})
}

func (a *API) handleFinalizeBill(w http.ResponseWriter, r *http.Request) {
	bill, err := a.svc.FinalizeEndUserBill(r.Context(), chi.URLParam(r, "billID"))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bill": bill})
}

func (a *API) handleCreateAgencyBill(w http.ResponseWriter, r *http.Request) {
	var req domain.AgencyBillCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bill, err := a.svc.CreateAgencyDraft(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "bill": bill})
}

func (a *API) handleListAgencyBills(w http.ResponseWriter, r *http.Request) {
	bills, err := a.svc.ListAgencyBills(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bills": bills})
}

func (a *API) handleGetAgencyBill(w http.ResponseWriter, r *http.Request) {
	bill, err := a.svc.GetAgencyBill(r.Context(), chi.URLParam(r, "billID"))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bill": bill})
}

func (a *API) handleUpdateAgencyBill(w http.ResponseWriter, r *http.Request) {
	var req domain.AgencyBillUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bill, err := a.svc.UpdateAgencyDraft(r.Context(), chi.URLParam(r, "billID"), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bill": bill})
}

func (a *API) handleFinalizeAgencyBill(w http.ResponseWriter, r *http.Request) {
	bill, err := a.svc.FinalizeAgencyBill(r.Context(), chi.URLParam(r, "billID"))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bill": bill})
}

func (a *API) handleListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.ListInventory(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": items})
}

func (a *API) handleUpdateInventory(w http.ResponseWriter, r *http.Request) {
	var req domain.InventoryUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := a.svc.UpdateInventoryItem(r.Context(), chi.URLParam(r, "itemID"), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "item": item})
}

func (a *API) handleDeleteInventory(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteInventoryItem(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.svc.CreatePurchase(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":      true,
		"purchase":     resp.Purchase,
		"itemOutcomes": resp.ItemOutcomes,
	})
}

func (a *API) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := a.svc.ListPurchases(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "purchases": purchases})
}

func (a *API) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	purchase, err := a.svc.GetPurchase(r.Context(), chi.URLParam(r, "purchaseID"))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "purchase": purchase})
}

func (a *API) handleLast7Days(w http.ResponseWriter, r *http.Request) {
	points, err := a.svc.Last7DaysRevenue(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "revenue": points})
}

func (a *API) handleAdminPayments(w http.ResponseWriter, r *http.Request) {
	count := parsePositiveInt(r.URL.Query().Get("count"), 20)
	skip := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("skip")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			skip = parsed
		}
	}

	items, err := a.gateway.ListPayments(r.Context(), count, skip)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	var totalPaise int64
	for _, p := range items {
		totalPaise += p.Amount
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"total":          len(items),
		"payments":       items,
		"amountinrupees": float64(totalPaise) / 100,
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInactiveAccount):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrExists), errors.Is(err, store.ErrAlreadyFinal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parsePositiveInt(raw string, fallback int) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
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
		"success": false,
		"message": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
