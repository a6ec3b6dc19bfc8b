package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"storepos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicate         = errors.New("duplicate")
	ErrConflict          = errors.New("conflict")
	ErrInvalid           = errors.New("invalid")
	ErrStoreCodeTaken    = errors.New("store code taken")
)

type Repository interface {
	IdentityStore
	CatalogStore
	SaleStore
	ExpenseStore
	AuditStore
	Ping(ctx context.Context) error
}

type IdentityStore interface {
	// CreateStoreWithManager creates the store and its first manager, already
	// assigned to it. ErrStoreCodeTaken when the code collides.
	CreateStoreWithManager(ctx context.Context, st domain.Store, manager domain.Manager) (*domain.Store, *domain.Manager, error)
	CreateManagerWithJoinRequest(ctx context.Context, manager domain.Manager, storeID int64, at time.Time) (*domain.Manager, *domain.JoinRequest, error)
	CreateCashierWithJoinRequest(ctx context.Context, cashier domain.CashierAccount, storeID int64, at time.Time) (*domain.CashierAccount, *domain.JoinRequest, error)
	GetStoreByID(ctx context.Context, storeID int64) (*domain.Store, error)
	GetStoreByCode(ctx context.Context, code string) (*domain.Store, error)
	GetManagerByID(ctx context.Context, id uuid.UUID) (*domain.Manager, error)
	GetManagerByEmail(ctx context.Context, email string) (*domain.Manager, error)
	GetManagerByPhone(ctx context.Context, phone string) (*domain.Manager, error)
	FindManagerByNameOrPhone(ctx context.Context, identifier string) (*domain.Manager, error)
	GetCashierByID(ctx context.Context, id int64) (*domain.CashierAccount, error)
	GetCashierByPhone(ctx context.Context, phone string) (*domain.CashierAccount, error)
	ListJoinRequests(ctx context.Context, storeID int64, status string) ([]domain.JoinRequest, error)
	// ReviewJoinRequest moves a pending request to approved or rejected and, on
	// approval, attaches the requesting account to the store. ErrConflict when
	// the request is no longer pending.
	ReviewJoinRequest(ctx context.Context, storeID int64, requestID int64, status string, reviewer uuid.UUID, at time.Time) (*domain.JoinRequest, error)
	ListStoreUsers(ctx context.Context, storeID int64) ([]domain.StoreUser, error)
	// ResolveActorNames maps each actor to its display name. Unknown actors are
	// absent from the result.
	ResolveActorNames(ctx context.Context, actors []domain.ActorID) (map[domain.ActorID]string, error)
}

type CatalogStore interface {
	// ListProducts returns every product of the store with all of its batches.
	ListProducts(ctx context.Context, storeID int64) ([]domain.ProductDetail, error)
	GetProduct(ctx context.Context, storeID int64, productID int64) (*domain.ProductDetail, error)
	CreateProduct(ctx context.Context, product domain.Product, initial *domain.InventoryBatch) (*domain.ProductDetail, error)
	// UpdateProduct writes the product row and, when latest is non-nil, that batch.
	UpdateProduct(ctx context.Context, product domain.Product, latest *domain.InventoryBatch) (*domain.ProductDetail, error)
	SetProductActive(ctx context.Context, storeID int64, productID int64, active bool) error
	// CreateBatch records a restock and reactivates the product.
	CreateBatch(ctx context.Context, batch domain.InventoryBatch) (*domain.InventoryBatch, error)
	ListSKUs(ctx context.Context, storeID int64, prefix string) ([]string, error)
	ListCategories(ctx context.Context, storeID int64) ([]string, error)
}

type SaleStore interface {
	// WithinSaleTx runs fn in one unit of work. Any error returned by fn, or a
	// failed commit, discards every write fn made.
	WithinSaleTx(ctx context.Context, fn func(tx SaleTx) error) error
	GetSale(ctx context.Context, storeID int64, saleID int64) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	ListPartialCustomers(ctx context.Context, storeID int64, search string) ([]domain.PartialPaymentCustomer, error)
}

// SaleTx is the write surface of one sale. Batches returned by
// LoadProductForSale stay locked until the unit of work ends.
type SaleTx interface {
	LoadProductForSale(ctx context.Context, storeID int64, productID int64) (*domain.ProductForSale, error)
	InsertSale(ctx context.Context, sale domain.Sale) (int64, error)
	InsertPayment(ctx context.Context, payment domain.Payment) (int64, error)
	InsertPartialCustomer(ctx context.Context, customer domain.PartialPaymentCustomer) (int64, error)
	InsertSaleItem(ctx context.Context, item domain.SaleItem) (int64, error)
	// DeductBatch decrements quantity_remaining by qty only if at least qty
	// remains. It reports false when the batch could not cover qty.
	DeductBatch(ctx context.Context, batchID int64, qty int) (bool, error)
}

type ExpenseStore interface {
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, storeID int64, from *time.Time, to *time.Time) ([]domain.Expense, error)
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID int64, limit int) ([]domain.AuditLog, error)
}
