package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"clinixpay/backend/internal/domain"
	"clinixpay/backend/internal/store"
	"clinixpay/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	customersByID    map[string]domain.Customer
	customerIDByMail map[string]string
	endUserBills     map[string]domain.EndUserBill
	agencyBills      map[string]domain.AgencyBill
	inventoryByID    map[string]domain.InventoryItem
	inventoryKeyIdx  map[string]map[string]string
	purchasesByID    map[string]domain.Purchase
}

func New() *Store {
	return &Store{
		customersByID:    make(map[string]domain.Customer),
		customerIDByMail: make(map[string]string),
		endUserBills:     make(map[string]domain.EndUserBill),
		agencyBills:      make(map[string]domain.AgencyBill),
		inventoryByID:    make(map[string]domain.InventoryItem),
		inventoryKeyIdx:  make(map[string]map[string]string),
		purchasesByID:    make(map[string]domain.Purchase),
	}
}

// NewSeeded builds a store with a demo pharmacy account, an admin account and
// a small opening stock, for dev mode without PostgreSQL. Seed credentials
// come from SEED_STORE_PASSWORD / SEED_ADMIN_PASSWORD with dev defaults.
func NewSeeded() *Store {
	s := New()

	storePwd := envOr("SEED_STORE_PASSWORD", "store123")
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	if os.Getenv("SEED_STORE_PASSWORD") == "" || os.Getenv("SEED_ADMIN_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_STORE_PASSWORD and SEED_ADMIN_PASSWORD to override.")
	}

	now := time.Now().UTC()
	demo := domain.Customer{
		ID:         "cust-demo",
		FullName:   "Asha Verma",
		StoreName:  "Verma Medicals",
		Location:   "Pune",
		ContactNo:  "9800011122",
		Email:      "demo@clinixpay.dev",
		GSTNo:      "27ABCDE1234F1Z5",
		StoreLicNo: "MH-PNE-20231",
		LicenseKey: "DEMO-LIC-KEY",
		Password:   mustHash(storePwd),
		Role:       domain.RoleCustomer,
		Active:     true,
		CreatedAt:  now,
	}
	admin := domain.Customer{
		ID:        "cust-admin",
		FullName:  "ClinixPay Admin",
		StoreName: "ClinixPay",
		Email:     "admin@clinixpay.dev",
		Password:  mustHash(adminPwd),
		Role:      domain.RoleAdmin,
		Active:    true,
		CreatedAt: now,
	}
	s.customersByID[demo.ID] = demo
	s.customerIDByMail[demo.Email] = demo.ID
	s.customersByID[admin.ID] = admin
	s.customerIDByMail[admin.Email] = admin.ID

	seedStock := []domain.InventoryItem{
		{ProductName: "Paracetamol 500mg", HSN: "3004", Batch: "PCM-2401", Exp: "2027-03", Qty: 240, MRP: 2.5, PurchaseRate: 1.6, GSTPercent: 12, SupplierName: "Sun Distributors", LowStockAlert: 30},
		{ProductName: "Azithromycin 250mg", HSN: "3004", Batch: "AZT-2402", Exp: "2026-11", Qty: 90, MRP: 19.5, PurchaseRate: 13.8, GSTPercent: 12, SupplierName: "Sun Distributors", LowStockAlert: 20},
		{ProductName: "Cetirizine 10mg", HSN: "3004", Batch: "CTZ-2406", Exp: "2027-01", Qty: 150, MRP: 3.2, PurchaseRate: 2.1, GSTPercent: 12, SupplierName: "MedLink Agencies", LowStockAlert: 25},
		{ProductName: "ORS Sachet", HSN: "3004", Batch: "ORS-2404", Exp: "2026-08", Qty: 60, MRP: 21, PurchaseRate: 16.4, GSTPercent: 5, SupplierName: "MedLink Agencies", LowStockAlert: 10},
	}
	for _, item := range seedStock {
		item.ID = xid.New("inv")
		item.CustomerID = demo.ID
		item.LastUpdatedBy = demo.ID
		item.CreatedAt = now
		item.UpdatedAt = now
		s.inventoryByID[item.ID] = item
		s.indexInventory(item)
	}

	return s
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password: %v", err)
	}
	return string(hash)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) indexInventory(item domain.InventoryItem) {
	byKey, ok := s.inventoryKeyIdx[item.CustomerID]
	if !ok {
		byKey = make(map[string]string)
		s.inventoryKeyIdx[item.CustomerID] = byKey
	}
	byKey[inventoryKey(item.ProductName, item.Batch)] = item.ID
}

func inventoryKey(productName string, batch string) string {
	return productName + "\x00" + batch
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.Email == "" || customer.Password == "" {
		return nil, store.ErrInvalid
	}
	if _, exists := s.customerIDByMail[customer.Email]; exists {
		return nil, store.ErrExists
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	s.customersByID[customer.ID] = customer
	s.customerIDByMail[customer.Email] = customer.ID

	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByEmail(_ context.Context, email string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.customerIDByMail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	customer := s.customersByID[id]
	return &customer, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customersByID[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	// Email, role and credentials are not editable through profile updates.
	customer.Email = existing.Email
	customer.Role = existing.Role
	customer.Password = existing.Password
	customer.CreatedAt = existing.CreatedAt
	s.customersByID[customer.ID] = customer

	updated := customer
	return &updated, nil
}

func (s *Store) CreateEndUserBill(_ context.Context, bill domain.EndUserBill) (*domain.EndUserBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bill.CustomerID == "" || bill.PatientName == "" || len(bill.Items) == 0 {
		return nil, store.ErrInvalid
	}
	if bill.ID == "" {
		bill.ID = xid.New("bill")
	}
	now := time.Now().UTC()
	if bill.BillDate.IsZero() {
		bill.BillDate = now
	}
	bill.CreatedAt = now
	bill.UpdatedAt = now
	bill.Items = slices.Clone(bill.Items)
	s.endUserBills[bill.ID] = bill

	created := bill
	return &created, nil
}

func (s *Store) GetEndUserBill(_ context.Context, customerID string, billID string) (*domain.EndUserBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, ok := s.endUserBills[billID]
	if !ok || bill.CustomerID != customerID {
		return nil, store.ErrNotFound
	}
	bill.Items = slices.Clone(bill.Items)
	return &bill, nil
}

func (s *Store) UpdateDraftEndUserBill(_ context.Context, bill domain.EndUserBill) (*domain.EndUserBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.endUserBills[bill.ID]
	if !ok || existing.CustomerID != bill.CustomerID || existing.Status != domain.BillStatusDraft {
		return nil, store.ErrNotFound
	}

	existing.Items = slices.Clone(bill.Items)
	existing.SubTotal = bill.SubTotal
	existing.Discount = bill.Discount
	existing.GrandTotal = bill.GrandTotal
	existing.PaymentMode = bill.PaymentMode
	existing.UpdatedAt = time.Now().UTC()
	s.endUserBills[bill.ID] = existing

	updated := existing
	return &updated, nil
}

func (s *Store) FinalizeEndUserBill(_ context.Context, customerID string, billID string, at time.Time) (*domain.EndUserBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.endUserBills[billID]
	if !ok || bill.CustomerID != customerID {
		return nil, store.ErrNotFound
	}
	if bill.Status == domain.BillStatusFinal {
		return nil, store.ErrAlreadyFinal
	}

	bill.Status = domain.BillStatusFinal
	bill.UpdatedAt = at.UTC()
	s.endUserBills[billID] = bill

	final := bill
	final.Items = slices.Clone(final.Items)
	return &final, nil
}

func (s *Store) ListEndUserBills(_ context.Context, customerID string, query domain.BillListQuery) ([]domain.EndUserBill, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(query.Search))
	matched := make([]domain.EndUserBill, 0, 64)
	for _, bill := range s.endUserBills {
		if bill.CustomerID != customerID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(bill.ID), search) &&
			!strings.Contains(strings.ToLower(bill.PatientName), search) &&
			!strings.Contains(strings.ToLower(bill.PatientMobile), search) {
			continue
		}
		bill.Items = slices.Clone(bill.Items)
		matched = append(matched, bill)
	}

	asc := query.Order == "asc"
	slices.SortFunc(matched, func(a, b domain.EndUserBill) int {
		var cmp int
		switch query.SortBy {
		case "billDate":
			cmp = a.BillDate.Compare(b.BillDate)
		case "grandTotal":
			cmp = cmpFloat(a.GrandTotal, b.GrandTotal)
		default:
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		}
		if cmp == 0 {
			cmp = strings.Compare(a.ID, b.ID)
		}
		if asc {
			return cmp
		}
		return -cmp
	})

	total := len(matched)
	start := (query.Page - 1) * query.Limit
	if start >= total {
		return []domain.EndUserBill{}, total, nil
	}
	end := start + query.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) ListEndUserBillsByDate(_ context.Context, customerID string, from time.Time, to time.Time) ([]domain.EndUserBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]domain.EndUserBill, 0, 32)
	for _, bill := range s.endUserBills {
		if bill.CustomerID != customerID {
			continue
		}
		if bill.BillDate.Before(from) || bill.BillDate.After(to) {
			continue
		}
		bill.Items = slices.Clone(bill.Items)
		bills = append(bills, bill)
	}
	slices.SortFunc(bills, func(a, b domain.EndUserBill) int {
		return b.BillDate.Compare(a.BillDate)
	})
	return bills, nil
}

func (s *Store) CreateAgencyBill(_ context.Context, bill domain.AgencyBill) (*domain.AgencyBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bill.CustomerID == "" || bill.AgencyName == "" || len(bill.Items) == 0 {
		return nil, store.ErrInvalid
	}
	if bill.ID == "" {
		bill.ID = xid.New("abill")
	}
	now := time.Now().UTC()
	if bill.BillDate.IsZero() {
		bill.BillDate = now
	}
	bill.CreatedAt = now
	bill.UpdatedAt = now
	bill.Items = slices.Clone(bill.Items)
	s.agencyBills[bill.ID] = bill

	created := bill
	return &created, nil
}

func (s *Store) GetAgencyBill(_ context.Context, customerID string, billID string) (*domain.AgencyBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, ok := s.agencyBills[billID]
	if !ok || bill.CustomerID != customerID {
		return nil, store.ErrNotFound
	}
	bill.Items = slices.Clone(bill.Items)
	return &bill, nil
}

func (s *Store) UpdateDraftAgencyBill(_ context.Context, bill domain.AgencyBill) (*domain.AgencyBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.agencyBills[bill.ID]
	if !ok || existing.CustomerID != bill.CustomerID || existing.Status != domain.BillStatusDraft {
		return nil, store.ErrNotFound
	}

	existing.Items = slices.Clone(bill.Items)
	existing.SubTotal = bill.SubTotal
	existing.Discount = bill.Discount
	existing.GST = bill.GST
	existing.GrandTotal = bill.GrandTotal
	existing.PaymentMode = bill.PaymentMode
	existing.PaidAmount = bill.PaidAmount
	existing.DueAmount = bill.DueAmount
	existing.CreditTerms = bill.CreditTerms
	existing.UpdatedAt = time.Now().UTC()
	s.agencyBills[bill.ID] = existing

	updated := existing
	return &updated, nil
}

func (s *Store) FinalizeAgencyBill(_ context.Context, customerID string, billID string, at time.Time) (*domain.AgencyBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.agencyBills[billID]
	if !ok || bill.CustomerID != customerID {
		return nil, store.ErrNotFound
	}
	if bill.Status == domain.BillStatusFinal {
		return nil, store.ErrAlreadyFinal
	}

	if bill.PaymentMode == domain.PaymentModeCredit && bill.CreditTerms > 0 {
		due := at.UTC().Add(time.Duration(bill.CreditTerms) * 24 * time.Hour)
		bill.DueDate = &due
	}
	bill.Status = domain.BillStatusFinal
	bill.UpdatedAt = at.UTC()
	s.agencyBills[billID] = bill

	final := bill
	final.Items = slices.Clone(final.Items)
	return &final, nil
}

func (s *Store) ListAgencyBills(_ context.Context, customerID string, limit int) ([]domain.AgencyBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]domain.AgencyBill, 0, 32)
	for _, bill := range s.agencyBills {
		if bill.CustomerID != customerID {
			continue
		}
		bill.Items = slices.Clone(bill.Items)
		bills = append(bills, bill)
	}
	slices.SortFunc(bills, func(a, b domain.AgencyBill) int {
		if cmp := b.CreatedAt.Compare(a.CreatedAt); cmp != 0 {
			return cmp
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(bills) > limit {
		bills = bills[:limit]
	}
	return bills, nil
}

func (s *Store) ListInventory(_ context.Context, customerID string) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, 64)
	for _, item := range s.inventoryByID {
		if item.CustomerID != customerID {
			continue
		}
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		if cmp := strings.Compare(a.ProductName, b.ProductName); cmp != 0 {
			return cmp
		}
		return strings.Compare(a.Exp, b.Exp)
	})
	return items, nil
}

func (s *Store) GetInventoryItem(_ context.Context, customerID string, itemID string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.inventoryByID[itemID]
	if !ok || item.CustomerID != customerID {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) UpdateInventoryItem(_ context.Context, customerID string, itemID string, patch domain.InventoryUpdateRequest, updatedBy string) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.inventoryByID[itemID]
	if !ok || item.CustomerID != customerID {
		return nil, store.ErrNotFound
	}

	if patch.Qty != nil {
		item.Qty = *patch.Qty
	}
	if patch.MRP != nil {
		item.MRP = *patch.MRP
	}
	if patch.Exp != nil {
		item.Exp = *patch.Exp
	}
	if patch.LowStockAlert != nil {
		item.LowStockAlert = *patch.LowStockAlert
	}
	item.LastUpdatedBy = updatedBy
	item.UpdatedAt = time.Now().UTC()
	s.inventoryByID[itemID] = item

	updated := item
	return &updated, nil
}

func (s *Store) DeleteInventoryItem(_ context.Context, customerID string, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.inventoryByID[itemID]
	if !ok || item.CustomerID != customerID {
		return store.ErrNotFound
	}
	delete(s.inventoryByID, itemID)
	if byKey, ok := s.inventoryKeyIdx[customerID]; ok {
		delete(byKey, inventoryKey(item.ProductName, item.Batch))
	}
	return nil
}

func (s *Store) UpsertInventoryFromPurchase(_ context.Context, customerID string, upsert domain.InventoryUpsert) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customerID == "" || upsert.ProductName == "" || upsert.Batch == "" {
		return nil, store.ErrInvalid
	}

	now := time.Now().UTC()
	key := inventoryKey(upsert.ProductName, upsert.Batch)
	if id, ok := s.inventoryKeyIdx[customerID][key]; ok {
		item := s.inventoryByID[id]
		item.Qty += upsert.DeltaQty
		item.HSN = upsert.HSN
		item.Exp = upsert.Exp
		item.MRP = upsert.MRP
		item.PurchaseRate = upsert.PurchaseRate
		item.GSTPercent = upsert.GSTPercent
		item.SupplierName = upsert.SupplierName
		item.LastUpdatedBy = upsert.UpdatedBy
		item.UpdatedAt = now
		s.inventoryByID[id] = item

		updated := item
		return &updated, nil
	}

	item := domain.InventoryItem{
		ID:            xid.New("inv"),
		CustomerID:    customerID,
		ProductName:   upsert.ProductName,
		HSN:           upsert.HSN,
		Batch:         upsert.Batch,
		Exp:           upsert.Exp,
		Qty:           upsert.DeltaQty,
		MRP:           upsert.MRP,
		PurchaseRate:  upsert.PurchaseRate,
		GSTPercent:    upsert.GSTPercent,
		SupplierName:  upsert.SupplierName,
		LastUpdatedBy: upsert.UpdatedBy,
		LowStockAlert: 5,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.inventoryByID[item.ID] = item
	s.indexInventory(item)

	created := item
	return &created, nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if purchase.CustomerID == "" || purchase.Supplier.Name == "" || len(purchase.Items) == 0 {
		return nil, store.ErrInvalid
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	purchase.Items = slices.Clone(purchase.Items)
	s.purchasesByID[purchase.ID] = purchase

	created := purchase
	return &created, nil
}

func (s *Store) ListPurchases(_ context.Context, customerID string, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.Purchase, 0, 32)
	for _, purchase := range s.purchasesByID {
		if purchase.CustomerID != customerID {
			continue
		}
		purchase.Items = slices.Clone(purchase.Items)
		purchases = append(purchases, purchase)
	}
	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		if cmp := b.CreatedAt.Compare(a.CreatedAt); cmp != 0 {
			return cmp
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(purchases) > limit {
		purchases = purchases[:limit]
	}
	return purchases, nil
}

func (s *Store) GetPurchaseByID(_ context.Context, customerID string, purchaseID string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, ok := s.purchasesByID[purchaseID]
	if !ok || purchase.CustomerID != customerID {
		return nil, store.ErrNotFound
	}
	purchase.Items = slices.Clone(purchase.Items)
	return &purchase, nil
}

func (s *Store) RevenueByDay(_ context.Context, customerID string, from time.Time, to time.Time) ([]domain.RevenuePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[int]*domain.RevenuePoint, 7)
	for _, bill := range s.endUserBills {
		if bill.CustomerID != customerID || bill.Status != domain.BillStatusFinal {
			continue
		}
		if bill.BillDate.Before(from) || bill.BillDate.After(to) {
			continue
		}
		day := int(bill.BillDate.Weekday()) + 1
		point, ok := byDay[day]
		if !ok {
			point = &domain.RevenuePoint{DayNumber: day}
			byDay[day] = point
		}
		point.TotalAmount += bill.GrandTotal
		point.TotalBills++
	}

	points := make([]domain.RevenuePoint, 0, len(byDay))
	for _, point := range byDay {
		points = append(points, *point)
	}
	slices.SortFunc(points, func(a, b domain.RevenuePoint) int {
		return a.DayNumber - b.DayNumber
	})
	return points, nil
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
