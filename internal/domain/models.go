package domain

import (
	"encoding/json"
	"time"
)

const (
	BillStatusDraft = "DRAFT"
	BillStatusFinal = "FINAL"
)

const (
	PaymentModeCash   = "Cash"
	PaymentModeUPI    = "UPI"
	PaymentModeCard   = "Card"
	PaymentModeCredit = "Credit"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Principal identifies the authenticated store account on a request context.
type Principal struct {
	CustomerID string
	Email      string
	Role       string
}

// Customer is a registered pharmacy store account (the tenant).
type Customer struct {
	ID         string    `json:"id" db:"id"`
	FullName   string    `json:"fullName" db:"full_name"`
	StoreName  string    `json:"storeName" db:"store_name"`
	Location   string    `json:"location" db:"location"`
	ContactNo  string    `json:"contactNo" db:"contact_no"`
	Email      string    `json:"email" db:"email"`
	GSTNo      string    `json:"gstNo" db:"gst_no"`
	StoreLicNo string    `json:"storeLicNo" db:"store_lic_no"`
	LicenseKey string    `json:"-" db:"license_key"`
	Password   string    `json:"-" db:"password"`
	Role       string    `json:"role" db:"role"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

type RegisterRequest struct {
	FullName   string `json:"fullName"`
	StoreName  string `json:"storeName"`
	Location   string `json:"location"`
	ContactNo  string `json:"contactNo"`
	Email      string `json:"email"`
	GSTNo      string `json:"gstNo"`
	StoreLicNo string `json:"storeLicNo"`
	LicenseKey string `json:"licenseKey"`
	Password   string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

type ProfileUpdateRequest struct {
	FullName  *string `json:"fullName,omitempty"`
	StoreName *string `json:"storeName,omitempty"`
	Location  *string `json:"location,omitempty"`
	ContactNo *string `json:"contactNo,omitempty"`
	GSTNo     *string `json:"gstNo,omitempty"`
}

// BillItem is one medicine or service line on an end-user bill.
type BillItem struct {
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
	Total float64 `json:"total"`
}

// EndUserBill is a day-to-day patient bill created by a store.
type EndUserBill struct {
	ID            string     `json:"id" db:"id"`
	CustomerID    string     `json:"customerId" db:"customer_id"`
	PatientName   string     `json:"patientName" db:"patient_name"`
	PatientMobile string     `json:"patientMobile" db:"patient_mobile"`
	DoctorName    string     `json:"doctorName" db:"doctor_name"`
	Items         []BillItem `json:"items"`
	SubTotal      float64    `json:"subTotal" db:"sub_total"`
	Discount      float64    `json:"discount" db:"discount"`
	GrandTotal    float64    `json:"grandTotal" db:"grand_total"`
	PaymentMode   string     `json:"paymentMode" db:"payment_mode"`
	Status        string     `json:"status" db:"status"`
	BillDate      time.Time  `json:"billDate" db:"bill_date"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}

type EndUserBillCreateRequest struct {
	PatientName   string     `json:"patientName"`
	PatientMobile string     `json:"patientMobile"`
	DoctorName    string     `json:"doctorName"`
	Items         []BillItem `json:"items"`
	Discount      float64    `json:"discount"`
	PaymentMode   string     `json:"paymentMode"`
}

type EndUserBillUpdateRequest struct {
	Items       []BillItem `json:"items"`
	Discount    float64    `json:"discount"`
	PaymentMode string     `json:"paymentMode"`
}

// AgencyBillItem carries the per-line discount and GST an agency invoice shows.
type AgencyBillItem struct {
	Name     string  `json:"name"`
	Qty      int     `json:"qty"`
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
	GST      float64 `json:"gst"`
	Total    float64 `json:"total"`
}

// AgencyBill is a wholesale bill against a distributor agency. Agency details
// are a snapshot taken at billing time, not a reference.
type AgencyBill struct {
	ID            string           `json:"id" db:"id"`
	CustomerID    string           `json:"customerId" db:"customer_id"`
	AgencyName    string           `json:"agencyName" db:"agency_name"`
	AgencyContact string           `json:"agencyContact" db:"agency_contact"`
	AgencyEmail   string           `json:"agencyEmail" db:"agency_email"`
	AgencyGSTIN   string           `json:"agencyGstin" db:"agency_gstin"`
	AgencyAddress string           `json:"agencyAddress" db:"agency_address"`
	ContactPerson string           `json:"contactPerson" db:"contact_person"`
	CreditTerms   int              `json:"creditTerms" db:"credit_terms"`
	Items         []AgencyBillItem `json:"items"`
	SubTotal      float64          `json:"subTotal" db:"sub_total"`
	Discount      float64          `json:"discount" db:"discount"`
	GST           float64          `json:"gst" db:"gst"`
	GrandTotal    float64          `json:"grandTotal" db:"grand_total"`
	PaymentMode   string           `json:"paymentMode" db:"payment_mode"`
	PaidAmount    float64          `json:"paidAmount" db:"paid_amount"`
	DueAmount     float64          `json:"dueAmount" db:"due_amount"`
	DueDate       *time.Time       `json:"dueDate,omitempty" db:"due_date"`
	Status        string           `json:"status" db:"status"`
	BillDate      time.Time        `json:"billDate" db:"bill_date"`
	CreatedAt     time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time        `json:"updatedAt" db:"updated_at"`
}

type AgencyBillCreateRequest struct {
	AgencyName    string           `json:"agencyName"`
	AgencyContact string           `json:"agencyContact"`
	AgencyEmail   string           `json:"agencyEmail"`
	AgencyGSTIN   string           `json:"agencyGstin"`
	AgencyAddress string           `json:"agencyAddress"`
	ContactPerson string           `json:"contactPerson"`
	CreditTerms   int              `json:"creditTerms"`
	Items         []AgencyBillItem `json:"items"`
	Discount      float64          `json:"discount"`
	GST           float64          `json:"gst"`
	PaymentMode   string           `json:"paymentMode"`
	PaidAmount    float64          `json:"paidAmount"`
}

type AgencyBillUpdateRequest struct {
	Items       []AgencyBillItem `json:"items"`
	Discount    float64          `json:"discount"`
	GST         float64          `json:"gst"`
	PaymentMode string           `json:"paymentMode"`
	PaidAmount  float64          `json:"paidAmount"`
	CreditTerms *int             `json:"creditTerms,omitempty"`
}

// BillListQuery drives list pagination, sorting and search for bill listings.
type BillListQuery struct {
	Page   int
	Limit  int
	SortBy string
	Order  string
	Search string
}

type ListMeta struct {
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// InventoryItem is one stocked product batch. Uniqueness is per
// (customer, productName, batch).
type InventoryItem struct {
	ID            string    `json:"id" db:"id"`
	CustomerID    string    `json:"customerId" db:"customer_id"`
	ProductName   string    `json:"productName" db:"product_name"`
	HSN           string    `json:"hsn" db:"hsn"`
	Batch         string    `json:"batch" db:"batch"`
	Exp           string    `json:"exp" db:"exp"`
	Qty           int       `json:"qty" db:"qty"`
	MRP           float64   `json:"mrp" db:"mrp"`
	PurchaseRate  float64   `json:"purchaseRate" db:"purchase_rate"`
	GSTPercent    float64   `json:"gstPercent" db:"gst_percent"`
	SupplierName  string    `json:"supplierName" db:"supplier_name"`
	LastUpdatedBy string    `json:"lastUpdatedBy" db:"last_updated_by"`
	LowStockAlert int       `json:"lowStockAlert" db:"low_stock_alert"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

type InventoryUpdateRequest struct {
	Qty           *int     `json:"qty,omitempty"`
	MRP           *float64 `json:"mrp,omitempty"`
	Exp           *string  `json:"exp,omitempty"`
	LowStockAlert *int     `json:"lowStockAlert,omitempty"`
}

// InventoryUpsert is the purchase-driven stock mutation: qty is incremented
// by DeltaQty, descriptive fields are overwritten last-write-wins.
type InventoryUpsert struct {
	ProductName  string
	Batch        string
	DeltaQty     int
	HSN          string
	Exp          string
	MRP          float64
	PurchaseRate float64
	GSTPercent   float64
	SupplierName string
	UpdatedBy    string
}

type PurchaseSupplier struct {
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	Contact   string `json:"contact,omitempty"`
	StateCode string `json:"stateCode,omitempty"`
	GSTIN     string `json:"gstin"`
	PAN       string `json:"pan,omitempty"`
	DLNo      string `json:"dlNo,omitempty"`
}

type PurchaseInvoice struct {
	Type        string     `json:"type,omitempty"`
	CreditInvNo string     `json:"creditInvNo,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Salesman    string     `json:"salesman,omitempty"`
}

type PurchaseItem struct {
	HSN         string  `json:"hsn,omitempty"`
	ProductName string  `json:"productName"`
	Mfg         string  `json:"mfg,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	Qty         int     `json:"qty"`
	Sch         string  `json:"sch,omitempty"`
	Batch       string  `json:"batch,omitempty"`
	Exp         string  `json:"exp,omitempty"`
	MRP         float64 `json:"mrp"`
	Rate        float64 `json:"rate"`
	Disc        float64 `json:"disc"`
	GSTPercent  float64 `json:"gstPercent"`
}

type PurchaseSummary struct {
	Gross         float64 `json:"gross"`
	TotalDiscount float64 `json:"totalDiscount"`
	LessAmount    float64 `json:"lessAmount"`
	AddAmount     float64 `json:"addAmount"`
	TotalGST      float64 `json:"totalGST"`
	Net           float64 `json:"net"`
	AmountInWords string  `json:"amountInWords,omitempty"`
}

// Purchase is a supplier invoice recorded by a store.
type Purchase struct {
	ID         string           `json:"id" db:"id"`
	CustomerID string           `json:"customerId" db:"customer_id"`
	StoreName  string           `json:"storeName" db:"store_name"`
	Supplier   PurchaseSupplier `json:"supplier"`
	Invoice    PurchaseInvoice  `json:"invoice"`
	Items      []PurchaseItem   `json:"items"`
	Summary    PurchaseSummary  `json:"summary"`
	GSTBreakup json.RawMessage  `json:"gstBreakup,omitempty"`
	CreatedBy  string           `json:"createdBy" db:"created_by"`
	CreatedAt  time.Time        `json:"createdAt" db:"created_at"`
}

type PurchaseCreateRequest struct {
	Supplier   PurchaseSupplier `json:"supplier"`
	Invoice    PurchaseInvoice  `json:"invoice"`
	Items      []PurchaseItem   `json:"items"`
	Summary    PurchaseSummary  `json:"summary"`
	GSTBreakup json.RawMessage  `json:"gstBreakup,omitempty"`
}

const (
	PurchaseItemApplied = "applied"
	PurchaseItemSkipped = "skipped"
	PurchaseItemFailed  = "failed"
)

// PurchaseItemOutcome reports what happened to one purchase line during the
// inventory fan-out.
type PurchaseItemOutcome struct {
	ProductName string `json:"productName"`
	Batch       string `json:"batch"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

type PurchaseCreateResponse struct {
	Purchase     Purchase              `json:"purchase"`
	ItemOutcomes []PurchaseItemOutcome `json:"itemOutcomes"`
}

// RevenuePoint is one weekday bucket of the last-7-days dashboard rollup.
// DayNumber runs Sunday=1 through Saturday=7.
type RevenuePoint struct {
	DayNumber   int     `json:"dayNumber"`
	DayName     string  `json:"dayName"`
	TotalAmount float64 `json:"totalAmount"`
	TotalBills  int     `json:"totalBills"`
}

// GatewayPayment is a single payment record from the payment gateway.
type GatewayPayment struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Method    string `json:"method"`
	Email     string `json:"email"`
	Contact   string `json:"contact"`
	CreatedAt int64  `json:"created_at"`
}
