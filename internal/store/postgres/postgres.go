// Package postgres implements the repository on PostgreSQL via sqlx. Nested
// bill and purchase documents are stored as JSONB; inventory is relational
// with a per-tenant (product_name, batch) uniqueness constraint.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"clinixpay/backend/internal/domain"
	"clinixpay/backend/internal/store"
	"clinixpay/backend/internal/xid"
)

type Store struct {
	db *sqlx.DB
}

// Connect opens and pings a PostgreSQL connection.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Email == "" || customer.Password == "" {
		return nil, store.ErrInvalid
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers
			(id, full_name, store_name, location, contact_no, email, gst_no, store_lic_no, license_key, password, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		customer.ID, customer.FullName, customer.StoreName, customer.Location,
		customer.ContactNo, customer.Email, nullIfEmpty(customer.GSTNo),
		nullIfEmpty(customer.StoreLicNo), customer.LicenseKey, customer.Password,
		customer.Role, customer.Active, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrExists
		}
		return nil, fmt.Errorf("insert customer: %w", err)
	}

	created := customer
	return &created, nil
}

const customerColumns = `id, full_name, store_name, location, contact_no, email,
	COALESCE(gst_no, '') AS gst_no, COALESCE(store_lic_no, '') AS store_lic_no,
	license_key, password, role, active, created_at`

func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.GetContext(ctx, &customer,
		`SELECT `+customerColumns+` FROM customers WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select customer by email: %w", err)
	}
	return &customer, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.GetContext(ctx, &customer,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select customer: %w", err)
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET full_name = $2, store_name = $3, location = $4, contact_no = $5, gst_no = $6
		WHERE id = $1`,
		customer.ID, customer.FullName, customer.StoreName, customer.Location,
		customer.ContactNo, nullIfEmpty(customer.GSTNo))
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCustomerByID(ctx, customer.ID)
}

type endUserBillRow struct {
	ID            string    `db:"id"`
	CustomerID    string    `db:"customer_id"`
	PatientName   string    `db:"patient_name"`
	PatientMobile string    `db:"patient_mobile"`
	DoctorName    string    `db:"doctor_name"`
	Items         []byte    `db:"items"`
	SubTotal      float64   `db:"sub_total"`
	Discount      float64   `db:"discount"`
	GrandTotal    float64   `db:"grand_total"`
	PaymentMode   string    `db:"payment_mode"`
	Status        string    `db:"status"`
	BillDate      time.Time `db:"bill_date"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r endUserBillRow) toDomain() (domain.EndUserBill, error) {
	bill := domain.EndUserBill{
		ID: r.ID, CustomerID: r.CustomerID, PatientName: r.PatientName,
		PatientMobile: r.PatientMobile, DoctorName: r.DoctorName,
		SubTotal: r.SubTotal, Discount: r.Discount, GrandTotal: r.GrandTotal,
		PaymentMode: r.PaymentMode, Status: r.Status, BillDate: r.BillDate,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Items, &bill.Items); err != nil {
		return bill, fmt.Errorf("decode bill items: %w", err)
	}
	return bill, nil
}

const endUserBillColumns = `id, customer_id, patient_name, COALESCE(patient_mobile, '') AS patient_mobile,
	COALESCE(doctor_name, '') AS doctor_name, items, sub_total, discount, grand_total,
	payment_mode, status, bill_date, created_at, updated_at`

func (s *Store) CreateEndUserBill(ctx context.Context, bill domain.EndUserBill) (*domain.EndUserBill, error) {
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

	items, err := json.Marshal(bill.Items)
	if err != nil {
		return nil, fmt.Errorf("encode bill items: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO end_user_bills
			(id, customer_id, patient_name, patient_mobile, doctor_name, items,
			 sub_total, discount, grand_total, payment_mode, status, bill_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		bill.ID, bill.CustomerID, bill.PatientName, nullIfEmpty(bill.PatientMobile),
		nullIfEmpty(bill.DoctorName), items, bill.SubTotal, bill.Discount,
		bill.GrandTotal, bill.PaymentMode, bill.Status, bill.BillDate,
		bill.CreatedAt, bill.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert end-user bill: %w", err)
	}

	created := bill
	return &created, nil
}

func (s *Store) GetEndUserBill(ctx context.Context, customerID string, billID string) (*domain.EndUserBill, error) {
	var row endUserBillRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+endUserBillColumns+` FROM end_user_bills
		WHERE id = $1 AND customer_id = $2`, billID, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select end-user bill: %w", err)
	}
	bill, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

func (s *Store) UpdateDraftEndUserBill(ctx context.Context, bill domain.EndUserBill) (*domain.EndUserBill, error) {
	items, err := json.Marshal(bill.Items)
	if err != nil {
		return nil, fmt.Errorf("encode bill items: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE end_user_bills
		SET items = $3, sub_total = $4, discount = $5, grand_total = $6,
		    payment_mode = $7, updated_at = now()
		WHERE id = $1 AND customer_id = $2 AND status = 'DRAFT'`,
		bill.ID, bill.CustomerID, items, bill.SubTotal, bill.Discount,
		bill.GrandTotal, bill.PaymentMode)
	if err != nil {
		return nil, fmt.Errorf("update end-user bill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetEndUserBill(ctx, bill.CustomerID, bill.ID)
}

func (s *Store) FinalizeEndUserBill(ctx context.Context, customerID string, billID string, at time.Time) (*domain.EndUserBill, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE end_user_bills
		SET status = 'FINAL', updated_at = $3
		WHERE id = $1 AND customer_id = $2 AND status = 'DRAFT'`,
		billID, customerID, at.UTC())
	if err != nil {
		return nil, fmt.Errorf("finalize end-user bill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// No draft row won the update: either the bill is already final or
		// it does not exist for this tenant.
		existing, getErr := s.GetEndUserBill(ctx, customerID, billID)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Status == domain.BillStatusFinal {
			return nil, store.ErrAlreadyFinal
		}
		return nil, store.ErrNotFound
	}
	return s.GetEndUserBill(ctx, customerID, billID)
}

var billSortColumns = map[string]string{
	"createdAt":  "created_at",
	"billDate":   "bill_date",
	"grandTotal": "grand_total",
}

func (s *Store) ListEndUserBills(ctx context.Context, customerID string, query domain.BillListQuery) ([]domain.EndUserBill, int, error) {
	sortCol, ok := billSortColumns[query.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	dir := "DESC"
	if query.Order == "asc" {
		dir = "ASC"
	}

	where := "customer_id = $1"
	args := []any{customerID}
	if search := strings.TrimSpace(query.Search); search != "" {
		where += " AND (id ILIKE $2 OR patient_name ILIKE $2 OR COALESCE(patient_mobile, '') ILIKE $2)"
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT count(*) FROM end_user_bills WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count end-user bills: %w", err)
	}

	offset := (query.Page - 1) * query.Limit
	listArgs := append(args, query.Limit, offset)
	q := fmt.Sprintf(`SELECT `+endUserBillColumns+` FROM end_user_bills
		WHERE %s ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d`,
		where, sortCol, dir, len(args)+1, len(args)+2)

	var rows []endUserBillRow
	if err := s.db.SelectContext(ctx, &rows, q, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("select end-user bills: %w", err)
	}

	bills := make([]domain.EndUserBill, 0, len(rows))
	for _, row := range rows {
		bill, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		bills = append(bills, bill)
	}
	return bills, total, nil
}

func (s *Store) ListEndUserBillsByDate(ctx context.Context, customerID string, from time.Time, to time.Time) ([]domain.EndUserBill, error) {
	var rows []endUserBillRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+endUserBillColumns+` FROM end_user_bills
		WHERE customer_id = $1 AND bill_date BETWEEN $2 AND $3
		ORDER BY bill_date DESC`, customerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("select end-user bills by date: %w", err)
	}
	bills := make([]domain.EndUserBill, 0, len(rows))
	for _, row := range rows {
		bill, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, nil
}

type agencyBillRow struct {
	ID            string       `db:"id"`
	CustomerID    string       `db:"customer_id"`
	AgencyName    string       `db:"agency_name"`
	AgencyContact string       `db:"agency_contact"`
	AgencyEmail   string       `db:"agency_email"`
	AgencyGSTIN   string       `db:"agency_gstin"`
	AgencyAddress string       `db:"agency_address"`
	ContactPerson string       `db:"contact_person"`
	CreditTerms   int          `db:"credit_terms"`
	Items         []byte       `db:"items"`
	SubTotal      float64      `db:"sub_total"`
	Discount      float64      `db:"discount"`
	GST           float64      `db:"gst"`
	GrandTotal    float64      `db:"grand_total"`
	PaymentMode   string       `db:"payment_mode"`
	PaidAmount    float64      `db:"paid_amount"`
	DueAmount     float64      `db:"due_amount"`
	DueDate       sql.NullTime `db:"due_date"`
	Status        string       `db:"status"`
	BillDate      time.Time    `db:"bill_date"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

func (r agencyBillRow) toDomain() (domain.AgencyBill, error) {
	bill := domain.AgencyBill{
		ID: r.ID, CustomerID: r.CustomerID, AgencyName: r.AgencyName,
		AgencyContact: r.AgencyContact, AgencyEmail: r.AgencyEmail,
		AgencyGSTIN: r.AgencyGSTIN, AgencyAddress: r.AgencyAddress,
		ContactPerson: r.ContactPerson, CreditTerms: r.CreditTerms,
		SubTotal: r.SubTotal, Discount: r.Discount, GST: r.GST,
		GrandTotal: r.GrandTotal, PaymentMode: r.PaymentMode,
		PaidAmount: r.PaidAmount, DueAmount: r.DueAmount,
		Status: r.Status, BillDate: r.BillDate,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if r.DueDate.Valid {
		due := r.DueDate.Time
		bill.DueDate = &due
	}
	if err := json.Unmarshal(r.Items, &bill.Items); err != nil {
		return bill, fmt.Errorf("decode agency bill items: %w", err)
	}
	return bill, nil
}

const agencyBillColumns = `id, customer_id, agency_name, COALESCE(agency_contact, '') AS agency_contact,
	COALESCE(agency_email, '') AS agency_email, COALESCE(agency_gstin, '') AS agency_gstin,
	COALESCE(agency_address, '') AS agency_address, COALESCE(contact_person, '') AS contact_person,
	credit_terms, items, sub_total, discount, gst, grand_total, payment_mode,
	paid_amount, due_amount, due_date, status, bill_date, created_at, updated_at`

func (s *Store) CreateAgencyBill(ctx context.Context, bill domain.AgencyBill) (*domain.AgencyBill, error) {
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

	items, err := json.Marshal(bill.Items)
	if err != nil {
		return nil, fmt.Errorf("encode agency bill items: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agency_bills
			(id, customer_id, agency_name, agency_contact, agency_email, agency_gstin,
			 agency_address, contact_person, credit_terms, items, sub_total, discount,
			 gst, grand_total, payment_mode, paid_amount, due_amount, due_date, status,
			 bill_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		bill.ID, bill.CustomerID, bill.AgencyName, nullIfEmpty(bill.AgencyContact),
		nullIfEmpty(bill.AgencyEmail), nullIfEmpty(bill.AgencyGSTIN),
		nullIfEmpty(bill.AgencyAddress), nullIfEmpty(bill.ContactPerson),
		bill.CreditTerms, items, bill.SubTotal, bill.Discount, bill.GST,
		bill.GrandTotal, bill.PaymentMode, bill.PaidAmount, bill.DueAmount,
		bill.DueDate, bill.Status, bill.BillDate, bill.CreatedAt, bill.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert agency bill: %w", err)
	}

	created := bill
	return &created, nil
}

func (s *Store) GetAgencyBill(ctx context.Context, customerID string, billID string) (*domain.AgencyBill, error) {
	var row agencyBillRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+agencyBillColumns+` FROM agency_bills
		WHERE id = $1 AND customer_id = $2`, billID, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select agency bill: %w", err)
	}
	bill, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

func (s *Store) UpdateDraftAgencyBill(ctx context.Context, bill domain.AgencyBill) (*domain.AgencyBill, error) {
	items, err := json.Marshal(bill.Items)
	if err != nil {
		return nil, fmt.Errorf("encode agency bill items: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE agency_bills
		SET items = $3, sub_total = $4, discount = $5, gst = $6, grand_total = $7,
		    payment_mode = $8, paid_amount = $9, due_amount = $10, credit_terms = $11,
		    updated_at = now()
		WHERE id = $1 AND customer_id = $2 AND status = 'DRAFT'`,
		bill.ID, bill.CustomerID, items, bill.SubTotal, bill.Discount, bill.GST,
		bill.GrandTotal, bill.PaymentMode, bill.PaidAmount, bill.DueAmount,
		bill.CreditTerms)
	if err != nil {
		return nil, fmt.Errorf("update agency bill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetAgencyBill(ctx, bill.CustomerID, bill.ID)
}

func (s *Store) FinalizeAgencyBill(ctx context.Context, customerID string, billID string, at time.Time) (*domain.AgencyBill, error) {
	// Credit bills with terms pick up a due date in the same filtered update,
	// so exactly one finalize can ever win.
	res, err := s.db.ExecContext(ctx, `
		UPDATE agency_bills
		SET status = 'FINAL',
		    updated_at = $3,
		    due_date = CASE
		        WHEN payment_mode = 'Credit' AND credit_terms > 0
		        THEN $3::timestamptz + make_interval(days => credit_terms)
		        ELSE due_date
		    END
		WHERE id = $1 AND customer_id = $2 AND status = 'DRAFT'`,
		billID, customerID, at.UTC())
	if err != nil {
		return nil, fmt.Errorf("finalize agency bill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		existing, getErr := s.GetAgencyBill(ctx, customerID, billID)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Status == domain.BillStatusFinal {
			return nil, store.ErrAlreadyFinal
		}
		return nil, store.ErrNotFound
	}
	return s.GetAgencyBill(ctx, customerID, billID)
}

func (s *Store) ListAgencyBills(ctx context.Context, customerID string, limit int) ([]domain.AgencyBill, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []agencyBillRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+agencyBillColumns+` FROM agency_bills
		WHERE customer_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select agency bills: %w", err)
	}
	bills := make([]domain.AgencyBill, 0, len(rows))
	for _, row := range rows {
		bill, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, nil
}

const inventoryColumns = `id, customer_id, product_name, COALESCE(hsn, '') AS hsn, batch,
	COALESCE(exp, '') AS exp, qty, mrp, purchase_rate, gst_percent,
	COALESCE(supplier_name, '') AS supplier_name, COALESCE(last_updated_by, '') AS last_updated_by,
	low_stock_alert, created_at, updated_at`

func (s *Store) ListInventory(ctx context.Context, customerID string) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+inventoryColumns+` FROM inventory
		WHERE customer_id = $1
		ORDER BY product_name ASC, exp ASC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("select inventory: %w", err)
	}
	if items == nil {
		items = []domain.InventoryItem{}
	}
	return items, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, customerID string, itemID string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.db.GetContext(ctx, &item, `
		SELECT `+inventoryColumns+` FROM inventory
		WHERE id = $1 AND customer_id = $2`, itemID, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select inventory item: %w", err)
	}
	return &item, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, customerID string, itemID string, patch domain.InventoryUpdateRequest, updatedBy string) (*domain.InventoryItem, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory
		SET qty             = COALESCE($3, qty),
		    mrp             = COALESCE($4, mrp),
		    exp             = COALESCE($5, exp),
		    low_stock_alert = COALESCE($6, low_stock_alert),
		    last_updated_by = $7,
		    updated_at      = now()
		WHERE id = $1 AND customer_id = $2`,
		itemID, customerID, patch.Qty, patch.MRP, patch.Exp, patch.LowStockAlert, updatedBy)
	if err != nil {
		return nil, fmt.Errorf("update inventory item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetInventoryItem(ctx, customerID, itemID)
}

func (s *Store) DeleteInventoryItem(ctx context.Context, customerID string, itemID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM inventory WHERE id = $1 AND customer_id = $2`, itemID, customerID)
	if err != nil {
		return fmt.Errorf("delete inventory item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertInventoryFromPurchase(ctx context.Context, customerID string, upsert domain.InventoryUpsert) (*domain.InventoryItem, error) {
	if customerID == "" || upsert.ProductName == "" || upsert.Batch == "" {
		return nil, store.ErrInvalid
	}
	var item domain.InventoryItem
	err := s.db.GetContext(ctx, &item, `
		INSERT INTO inventory
			(id, customer_id, product_name, hsn, batch, exp, qty, mrp, purchase_rate,
			 gst_percent, supplier_name, last_updated_by, low_stock_alert, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 5, now(), now())
		ON CONFLICT (customer_id, product_name, batch) DO UPDATE SET
			qty             = inventory.qty + EXCLUDED.qty,
			hsn             = EXCLUDED.hsn,
			exp             = EXCLUDED.exp,
			mrp             = EXCLUDED.mrp,
			purchase_rate   = EXCLUDED.purchase_rate,
			gst_percent     = EXCLUDED.gst_percent,
			supplier_name   = EXCLUDED.supplier_name,
			last_updated_by = EXCLUDED.last_updated_by,
			updated_at      = now()
		RETURNING `+inventoryColumns,
		xid.New("inv"), customerID, upsert.ProductName, nullIfEmpty(upsert.HSN),
		upsert.Batch, nullIfEmpty(upsert.Exp), upsert.DeltaQty, upsert.MRP,
		upsert.PurchaseRate, upsert.GSTPercent, nullIfEmpty(upsert.SupplierName),
		upsert.UpdatedBy)
	if err != nil {
		return nil, fmt.Errorf("upsert inventory: %w", err)
	}
	return &item, nil
}

type purchaseRow struct {
	ID         string    `db:"id"`
	CustomerID string    `db:"customer_id"`
	StoreName  string    `db:"store_name"`
	Supplier   []byte    `db:"supplier"`
	Invoice    []byte    `db:"invoice"`
	Items      []byte    `db:"items"`
	Summary    []byte    `db:"summary"`
	GSTBreakup []byte    `db:"gst_breakup"`
	CreatedBy  string    `db:"created_by"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r purchaseRow) toDomain() (domain.Purchase, error) {
	purchase := domain.Purchase{
		ID: r.ID, CustomerID: r.CustomerID, StoreName: r.StoreName,
		CreatedBy: r.CreatedBy, CreatedAt: r.CreatedAt,
	}
	if err := json.Unmarshal(r.Supplier, &purchase.Supplier); err != nil {
		return purchase, fmt.Errorf("decode purchase supplier: %w", err)
	}
	if err := json.Unmarshal(r.Invoice, &purchase.Invoice); err != nil {
		return purchase, fmt.Errorf("decode purchase invoice: %w", err)
	}
	if err := json.Unmarshal(r.Items, &purchase.Items); err != nil {
		return purchase, fmt.Errorf("decode purchase items: %w", err)
	}
	if err := json.Unmarshal(r.Summary, &purchase.Summary); err != nil {
		return purchase, fmt.Errorf("decode purchase summary: %w", err)
	}
	if len(r.GSTBreakup) > 0 && string(r.GSTBreakup) != "null" {
		purchase.GSTBreakup = json.RawMessage(r.GSTBreakup)
	}
	return purchase, nil
}

const purchaseColumns = `id, customer_id, store_name, supplier, invoice, items, summary,
	COALESCE(gst_breakup, 'null'::jsonb) AS gst_breakup, created_by, created_at`

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.CustomerID == "" || purchase.Supplier.Name == "" || len(purchase.Items) == 0 {
		return nil, store.ErrInvalid
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}

	supplier, err := json.Marshal(purchase.Supplier)
	if err != nil {
		return nil, fmt.Errorf("encode purchase supplier: %w", err)
	}
	invoice, err := json.Marshal(purchase.Invoice)
	if err != nil {
		return nil, fmt.Errorf("encode purchase invoice: %w", err)
	}
	items, err := json.Marshal(purchase.Items)
	if err != nil {
		return nil, fmt.Errorf("encode purchase items: %w", err)
	}
	summary, err := json.Marshal(purchase.Summary)
	if err != nil {
		return nil, fmt.Errorf("encode purchase summary: %w", err)
	}
	var gstBreakup any
	if len(purchase.GSTBreakup) > 0 {
		gstBreakup = []byte(purchase.GSTBreakup)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO purchases
			(id, customer_id, store_name, supplier, invoice, items, summary, gst_breakup, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		purchase.ID, purchase.CustomerID, purchase.StoreName, supplier, invoice,
		items, summary, gstBreakup, purchase.CreatedBy, purchase.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}

	created := purchase
	return &created, nil
}

func (s *Store) ListPurchases(ctx context.Context, customerID string, limit int) ([]domain.Purchase, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []purchaseRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE customer_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select purchases: %w", err)
	}
	purchases := make([]domain.Purchase, 0, len(rows))
	for _, row := range rows {
		purchase, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, purchase)
	}
	return purchases, nil
}

func (s *Store) GetPurchaseByID(ctx context.Context, customerID string, purchaseID string) (*domain.Purchase, error) {
	var row purchaseRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+purchaseColumns+` FROM purchases
		WHERE id = $1 AND customer_id = $2`, purchaseID, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select purchase: %w", err)
	}
	purchase, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// RevenueByDay buckets FINAL end-user bills by weekday, Sunday=1 .. Saturday=7.
func (s *Store) RevenueByDay(ctx context.Context, customerID string, from time.Time, to time.Time) ([]domain.RevenuePoint, error) {
	type revenueRow struct {
		DayNumber   int     `db:"day_number"`
		TotalAmount float64 `db:"total_amount"`
		TotalBills  int     `db:"total_bills"`
	}
	var rows []revenueRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT EXTRACT(DOW FROM bill_date)::int + 1 AS day_number,
		       COALESCE(SUM(grand_total), 0)        AS total_amount,
		       COUNT(*)                             AS total_bills
		FROM end_user_bills
		WHERE customer_id = $1 AND status = 'FINAL' AND bill_date BETWEEN $2 AND $3
		GROUP BY 1
		ORDER BY 1 ASC`, customerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregate revenue: %w", err)
	}
	points := make([]domain.RevenuePoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, domain.RevenuePoint{
			DayNumber:   row.DayNumber,
			TotalAmount: row.TotalAmount,
			TotalBills:  row.TotalBills,
		})
	}
	return points, nil
}
