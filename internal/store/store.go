package store

import (
	"context"
	"errors"
	"time"

	"clinixpay/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid request")
	ErrExists       = errors.New("already exists")
	ErrAlreadyFinal = errors.New("bill already finalized")
)

type Repository interface {
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	CreateEndUserBill(ctx context.Context, bill domain.EndUserBill) (*domain.EndUserBill, error)
	GetEndUserBill(ctx context.Context, customerID string, billID string) (*domain.EndUserBill, error)
	UpdateDraftEndUserBill(ctx context.Context, bill domain.EndUserBill) (*domain.EndUserBill, error)
	FinalizeEndUserBill(ctx context.Context, customerID string, billID string, at time.Time) (*domain.EndUserBill, error)
	ListEndUserBills(ctx context.Context, customerID string, query domain.BillListQuery) ([]domain.EndUserBill, int, error)
	ListEndUserBillsByDate(ctx context.Context, customerID string, from time.Time, to time.Time) ([]domain.EndUserBill, error)

	CreateAgencyBill(ctx context.Context, bill domain.AgencyBill) (*domain.AgencyBill, error)
	GetAgencyBill(ctx context.Context, customerID string, billID string) (*domain.AgencyBill, error)
	UpdateDraftAgencyBill(ctx context.Context, bill domain.AgencyBill) (*domain.AgencyBill, error)
	FinalizeAgencyBill(ctx context.Context, customerID string, billID string, at time.Time) (*domain.AgencyBill, error)
	ListAgencyBills(ctx context.Context, customerID string, limit int) ([]domain.AgencyBill, error)

	ListInventory(ctx context.Context, customerID string) ([]domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, customerID string, itemID string) (*domain.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, customerID string, itemID string, patch domain.InventoryUpdateRequest, updatedBy string) (*domain.InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, customerID string, itemID string) error
	UpsertInventoryFromPurchase(ctx context.Context, customerID string, upsert domain.InventoryUpsert) (*domain.InventoryItem, error)

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, customerID string, limit int) ([]domain.Purchase, error)
	GetPurchaseByID(ctx context.Context, customerID string, purchaseID string) (*domain.Purchase, error)

	// RevenueByDay aggregates FINAL end-user bills in [from, to] into
	// day-of-week buckets (Sunday=1 .. Saturday=7).
	RevenueByDay(ctx context.Context, customerID string, from time.Time, to time.Time) ([]domain.RevenuePoint, error)
}
