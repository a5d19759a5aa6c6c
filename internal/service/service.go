// Package service holds the business rules: bill totals, draft lifecycle,
// purchase intake with inventory fan-out and the dashboard rollup.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"clinixpay/backend/internal/cache"
	"clinixpay/backend/internal/domain"
	"clinixpay/backend/internal/store"
)

type principalContextKey struct{}

func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(domain.Principal)
	return principal, ok
}

type Service struct {
	repo            store.Repository
	revenueCache    cache.RevenueCache
	revenueCacheTTL time.Duration
	agencyBillLimit int
	purchaseListMax int
}

func New(repo store.Repository, revenueCache cache.RevenueCache, revenueCacheTTL time.Duration) *Service {
	if revenueCache == nil {
		revenueCache = cache.NoopRevenueCache{}
	}
	if revenueCacheTTL <= 0 {
		revenueCacheTTL = 5 * time.Minute
	}

	return &Service{
		repo:            repo,
		revenueCache:    revenueCache,
		revenueCacheTTL: revenueCacheTTL,
		agencyBillLimit: 100,
		purchaseListMax: 100,
	}
}

func (s *Service) principal(ctx context.Context) (domain.Principal, error) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok || principal.CustomerID == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing authenticated customer", store.ErrInvalid)
	}
	return principal, nil
}

// Profile returns the authenticated store account.
func (s *Service) Profile(ctx context.Context) (*domain.Customer, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetCustomerByID(ctx, principal.CustomerID)
}

// UpdateProfile applies the provided fields to the store account. Email, role
// and credentials are not editable here.
func (s *Service) UpdateProfile(ctx context.Context, req domain.ProfileUpdateRequest) (*domain.Customer, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetCustomerByID(ctx, principal.CustomerID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		existing.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.StoreName != nil {
		existing.StoreName = strings.TrimSpace(*req.StoreName)
	}
	if req.Location != nil {
		existing.Location = strings.TrimSpace(*req.Location)
	}
	if req.ContactNo != nil {
		existing.ContactNo = strings.TrimSpace(*req.ContactNo)
	}
	if req.GSTNo != nil {
		existing.GSTNo = strings.TrimSpace(*req.GSTNo)
	}
	if existing.FullName == "" || existing.StoreName == "" {
		return nil, fmt.Errorf("%w: fullName and storeName are required", store.ErrInvalid)
	}

	return s.repo.UpdateCustomer(ctx, *existing)
}

// computeTotals derives per-line and bill totals. Line total is qty x price;
// the discount is subtracted as-is, so a negative discount raises the total.
func computeTotals(items []domain.BillItem, discount float64) ([]domain.BillItem, float64, float64) {
	out := make([]domain.BillItem, len(items))
	var subTotal float64
	for i, item := range items {
		item.Total = float64(item.Qty) * item.Price
		subTotal += item.Total
		out[i] = item
	}
	return out, subTotal, subTotal - discount
}

// computeAgencyTotals mirrors computeTotals for wholesale lines: per-line
// total is qty x price less the line discount plus line GST, bill grand total
// is subTotal minus the bill discount plus bill GST.
func computeAgencyTotals(items []domain.AgencyBillItem, discount float64, gst float64) ([]domain.AgencyBillItem, float64, float64) {
	out := make([]domain.AgencyBillItem, len(items))
	var subTotal float64
	for i, item := range items {
		item.Total = float64(item.Qty)*item.Price - item.Discount + item.GST
		subTotal += item.Total
		out[i] = item
	}
	return out, subTotal, subTotal - discount + gst
}

// normalizePaymentMode folds free-form input onto the canonical modes.
// Credit is only meaningful on agency bills; elsewhere it falls back to Cash.
func normalizePaymentMode(mode string, agency bool) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "upi", "online":
		return domain.PaymentModeUPI
	case "card":
		return domain.PaymentModeCard
	case "credit":
		if agency {
			return domain.PaymentModeCredit
		}
		return domain.PaymentModeCash
	default:
		return domain.PaymentModeCash
	}
}

func validateBillItems(items []domain.BillItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: items are required", store.ErrInvalid)
	}
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item name is required", store.ErrInvalid)
		}
		if item.Qty <= 0 {
			return fmt.Errorf("%w: item qty must be positive", store.ErrInvalid)
		}
		if item.Price < 0 {
			return fmt.Errorf("%w: item price must not be negative", store.ErrInvalid)
		}
	}
	return nil
}

func validateAgencyBillItems(items []domain.AgencyBillItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: items are required", store.ErrInvalid)
	}
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item name is required", store.ErrInvalid)
		}
		if item.Qty <= 0 {
			return fmt.Errorf("%w: item qty must be positive", store.ErrInvalid)
		}
		if item.Price < 0 {
			return fmt.Errorf("%w: item price must not be negative", store.ErrInvalid)
		}
	}
	return nil
}

func (s *Service) CreateEndUserDraft(ctx context.Context, req domain.EndUserBillCreateRequest) (*domain.EndUserBill, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	req.PatientName = strings.TrimSpace(req.PatientName)
	if req.PatientName == "" {
		return nil, fmt.Errorf("%w: patientName is required", store.ErrInvalid)
	}
	if err := validateBillItems(req.Items); err != nil {
		return nil, err
	}

	items, subTotal, grandTotal := computeTotals(req.Items, req.Discount)
	bill := domain.EndUserBill{
		CustomerID:    principal.CustomerID,
		PatientName:   req.PatientName,
		PatientMobile: strings.TrimSpace(req.PatientMobile),
		DoctorName:    strings.TrimSpace(req.DoctorName),
		Items:         items,
		SubTotal:      subTotal,
		Discount:      req.Discount,
		GrandTotal:    grandTotal,
		PaymentMode:   normalizePaymentMode(req.PaymentMode, false),
		Status:        domain.BillStatusDraft,
	}
	return s.repo.CreateEndUserBill(ctx, bill)
}

func (s *Service) UpdateEndUserDraft(ctx context.Context, billID string, req domain.EndUserBillUpdateRequest) (*domain.EndUserBill, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateBillItems(req.Items); err != nil {
		return nil, err
	}

	items, subTotal, grandTotal := computeTotals(req.Items, req.Discount)
	bill := domain.EndUserBill{
		ID:          billID,
		CustomerID:  principal.CustomerID,
		Items:       items,
		SubTotal:    subTotal,
		Discount:    req.Discount,
		GrandTotal:  grandTotal,
		PaymentMode: normalizePaymentMode(req.PaymentMode, false),
	}
	return s.repo.UpdateDraftEndUserBill(ctx, bill)
}

func (s *Service) FinalizeEndUserBill(ctx context.Context, billID string) (*domain.EndUserBill, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.FinalizeEndUserBill(ctx, principal.CustomerID, billID, time.Now().UTC())
}

func (s *Service) GetEndUserBill(ctx context.Context, billID string) (*domain.EndUserBill, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetEndUserBill(ctx, principal.CustomerID, billID)
}

// TodayEndUserBills returns the bills dated today, drafts included.
func (s *Service) TodayEndUserBills(ctx context.Context) ([]domain.EndUserBill, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	from, to := dayBounds(time.Now().UTC())
	return s.repo.ListEndUserBillsByDate(ctx, principal.CustomerID, from, to)
}

func (s *Service) ListEndUserBills(ctx context.Context, query domain.BillListQuery) ([]domain.EndUserBill, domain.ListMeta, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, domain.ListMeta{}, err
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 || query.Limit > 100 {
		query.Limit = 20
	}
	if query.SortBy == "" {
		query.SortBy = "createdAt"
	}
	if query.Order != "asc" {
		query.Order = "desc"
	}

	bills, total, err := s.repo.ListEndUserBills(ctx, principal.CustomerID, query)
	if err != nil {
		return nil, domain.ListMeta{}, err
	}
	meta := domain.ListMeta{
		TotalCount: total,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: (total + query.Limit - 1) / query.Limit,
	}
	return bills, meta, nil
}

func (s *Service) CreateAgencyDraft(ctx context.Context, req domain.AgencyBillCreateRequest) (*domain.AgencyBill, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	req.AgencyName = strings.TrimSpace(req.AgencyName)
	if req.AgencyName == "" {
		return nil, fmt.Errorf("%w: agencyName is required", store.ErrInvalid)
	}
	if err := validateAgencyBillItems(req.Items); err != nil {
		return nil, err
	}
	if req.CreditTerms < 0 {
		return nil, fmt.Errorf("%w: creditTerms must not be negative", store.ErrInvalid)
	}

	items, subTotal, grandTotal := computeAgencyTotals(req.Items, req.Discount, req.GST)
	bill := domain.AgencyBill{
		CustomerID:    principal.CustomerID,
		AgencyName:    req.AgencyName,
		AgencyContact: strings.TrimSpace(req.AgencyContact),
		AgencyEmail:   strings.TrimSpace(req.AgencyEmail),
		AgencyGSTIN:   strings.TrimSpace(req.AgencyGSTIN),
		AgencyAddress: strings.TrimSpace(req.AgencyAddress),
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		CreditTerms:   req.CreditTerms,
		Items:         items,
		SubTotal:      subTotal,
		Discount:      req.Discount,
		GST:           req.GST,
		GrandTotal:    grandTotal,
		PaymentMode:   normalizePaymentMode(req.PaymentMode, true),
		PaidAmount:    req.PaidAmount,
		DueAmount:     grandTotal - req.PaidAmount,
		Status:        domain.BillStatusDraft,
	}
	return s.repo.CreateAgencyBill(ctx, bill)
}

func (s *Service) UpdateAgencyDraft(ctx context.Context, billID string, req domain.AgencyBillUpdateRequest) (*domain.AgencyBill, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateAgencyBillItems(req.Items); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetAgencyBill(ctx, principal.CustomerID, billID)
	if err != nil {
		return nil, err
	}
	creditTerms := existing.CreditTerms
	if req.CreditTerms != nil {
		if *req.CreditTerms < 0 {
			return nil, fmt.Errorf("%w: creditTerms must not be negative", store.ErrInvalid)
		}
		creditTerms = *req.CreditTerms
	}

	items, subTotal, grandTotal := computeAgencyTotals(req.Items, req.Discount, req.GST)
	bill := domain.AgencyBill{
		ID:          billID,
		CustomerID:  principal.CustomerID,
		Items:       items,
		SubTotal:    subTotal,
		Discount:    req.Discount,
		GST:         req.GST,
		GrandTotal:  grandTotal,
		PaymentMode: normalizePaymentMode(req.PaymentMode, true),
		PaidAmount:  req.PaidAmount,
		DueAmount:   grandTotal - req.PaidAmount,
		CreditTerms: creditTerms,
	}
	return s.repo.UpdateDraftAgencyBill(ctx, bill)
}

func (s *Service) FinalizeAgencyBill(ctx context.Context, billID string) (*domain.AgencyBill, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.FinalizeAgencyBill(ctx, principal.CustomerID, billID, time.Now().UTC())
}

func (s *Service) GetAgencyBill(ctx context.Context, billID string) (*domain.AgencyBill, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetAgencyBill(ctx, principal.CustomerID, billID)
}

func (s *Service) ListAgencyBills(ctx context.Context) ([]domain.AgencyBill, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAgencyBills(ctx, principal.CustomerID, s.agencyBillLimit)
}

func (s *Service) ListInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInventory(ctx, principal.CustomerID)
}

func (s *Service) UpdateInventoryItem(ctx context.Context, itemID string, patch domain.InventoryUpdateRequest) (*domain.InventoryItem, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if patch.Qty == nil && patch.MRP == nil && patch.Exp == nil && patch.LowStockAlert == nil {
		return nil, fmt.Errorf("%w: no fields to update", store.ErrInvalid)
	}
	return s.repo.UpdateInventoryItem(ctx, principal.CustomerID, itemID, patch, principal.CustomerID)
}

func (s *Service) DeleteInventoryItem(ctx context.Context, itemID string) error {
	principal, err := s.principal(ctx)
	if err != nil {
		return err
	}
	return s.repo.DeleteInventoryItem(ctx, principal.CustomerID, itemID)
}

// CreatePurchase records a supplier invoice and fans its lines out into the
// inventory ledger. The purchase itself persists even when individual lines
// are skipped or fail; per-line outcomes report what happened.
func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (*domain.PurchaseCreateResponse, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	req.Supplier.Name = strings.TrimSpace(req.Supplier.Name)
	req.Supplier.GSTIN = strings.TrimSpace(req.Supplier.GSTIN)
	if req.Supplier.Name == "" || req.Supplier.GSTIN == "" {
		return nil, fmt.Errorf("%w: supplier name and gstin are required", store.ErrInvalid)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items are required", store.ErrInvalid)
	}

	customer, err := s.repo.GetCustomerByID(ctx, principal.CustomerID)
	if err != nil {
		return nil, err
	}

	purchase := domain.Purchase{
		CustomerID: principal.CustomerID,
		StoreName:  customer.StoreName,
		Supplier:   req.Supplier,
		Invoice:    req.Invoice,
		Items:      req.Items,
		Summary:    req.Summary,
		GSTBreakup: req.GSTBreakup,
		CreatedBy:  principal.CustomerID,
	}
	created, err := s.repo.CreatePurchase(ctx, purchase)
	if err != nil {
		return nil, err
	}

	outcomes := make([]domain.PurchaseItemOutcome, 0, len(req.Items))
	for _, item := range req.Items {
		name := strings.TrimSpace(item.ProductName)
		batch := strings.TrimSpace(item.Batch)
		if name == "" || batch == "" {
			outcomes = append(outcomes, domain.PurchaseItemOutcome{
				ProductName: name,
				Batch:       batch,
				Status:      domain.PurchaseItemSkipped,
				Reason:      "productName and batch are required",
			})
			continue
		}

		_, upsertErr := s.repo.UpsertInventoryFromPurchase(ctx, principal.CustomerID, domain.InventoryUpsert{
			ProductName:  name,
			Batch:        batch,
			DeltaQty:     item.Qty,
			HSN:          item.HSN,
			Exp:          item.Exp,
			MRP:          item.MRP,
			PurchaseRate: item.Rate,
			GSTPercent:   item.GSTPercent,
			SupplierName: req.Supplier.Name,
			UpdatedBy:    principal.CustomerID,
		})
		if upsertErr != nil {
			log.Printf("[service] WARN: inventory upsert failed purchase=%s product=%s batch=%s: %v",
				created.ID, name, batch, upsertErr)
			outcomes = append(outcomes, domain.PurchaseItemOutcome{
				ProductName: name,
				Batch:       batch,
				Status:      domain.PurchaseItemFailed,
				Reason:      "inventory update failed",
			})
			continue
		}
		outcomes = append(outcomes, domain.PurchaseItemOutcome{
			ProductName: name,
			Batch:       batch,
			Status:      domain.PurchaseItemApplied,
		})
	}

	return &domain.PurchaseCreateResponse{Purchase: *created, ItemOutcomes: outcomes}, nil
}

func (s *Service) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPurchases(ctx, principal.CustomerID, s.purchaseListMax)
}

func (s *Service) GetPurchase(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetPurchaseByID(ctx, principal.CustomerID, purchaseID)
}

var dayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Last7DaysRevenue aggregates FINAL end-user bills over the trailing seven
// calendar days into weekday buckets. Results are served from the revenue
// cache when fresh; a cache failure only costs a repo query.
func (s *Service) Last7DaysRevenue(ctx context.Context) ([]domain.RevenuePoint, error) {
	principal, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}

	cacheKey := "dashboard:last7:" + principal.CustomerID
	if points, ok, cacheErr := s.revenueCache.Get(ctx, cacheKey); cacheErr != nil {
		log.Printf("[service] WARN: revenue cache read failed customer=%s: %v", principal.CustomerID, cacheErr)
	} else if ok {
		return points, nil
	}

	now := time.Now().UTC()
	from, _ := dayBounds(now.AddDate(0, 0, -6))
	_, to := dayBounds(now)

	points, err := s.repo.RevenueByDay(ctx, principal.CustomerID, from, to)
	if err != nil {
		return nil, err
	}
	for i := range points {
		if points[i].DayNumber >= 1 && points[i].DayNumber <= 7 {
			points[i].DayName = dayNames[points[i].DayNumber-1]
		}
	}

	if cacheErr := s.revenueCache.Set(ctx, cacheKey, points, s.revenueCacheTTL); cacheErr != nil {
		log.Printf("[service] WARN: revenue cache write failed customer=%s: %v", principal.CustomerID, cacheErr)
	}
	return points, nil
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := start.Add(24*time.Hour - time.Millisecond)
	return start, end
}
