package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storepos/backend/internal/apperr"
	"storepos/backend/internal/domain"
	"storepos/backend/internal/store"
	"storepos/backend/internal/store/memory"
)

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	repo    *memory.Store
	cache   *recordingCache
	ctx     context.Context
	store   *domain.Store
	manager *domain.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, memory.New(), nil)
}

// newFixtureWithRepo builds the service over wrap(repo) when wrap is given.
func newFixtureWithRepo(t *testing.T, repo *memory.Store, wrap func(*memory.Store) store.Repository) *fixture {
	t.Helper()
	st, manager, err := repo.CreateStoreWithManager(context.Background(),
		domain.Store{StoreCode: "CRN001", StoreName: "Corner Shop"},
		domain.Manager{Email: "owner@example.com", FullName: "Olivia Owner", PhoneNumber: "03001112222"},
	)
	require.NoError(t, err)

	var r store.Repository = repo
	if wrap != nil {
		r = wrap(repo)
	}
	rc := &recordingCache{}
	svc := New(r, Options{
		StatsCache: rc,
		Now:        func() time.Time { return fixedNow },
	})
	ctx := WithActor(context.Background(), domain.Principal{
		ID:        domain.ManagerActor(manager.ID),
		Name:      manager.FullName,
		StoreID:   st.ID,
		StoreName: st.StoreName,
	})
	return &fixture{svc: svc, repo: repo, cache: rc, ctx: ctx, store: st, manager: manager}
}

type batchSpec struct {
	qty   int
	price string
	cost  string
	at    time.Time
}

func (f *fixture) product(t *testing.T, name string, batches ...batchSpec) *domain.ProductDetail {
	t.Helper()
	ctx := context.Background()
	created, err := f.repo.CreateProduct(ctx, domain.Product{
		StoreID:  f.store.ID,
		SKU:      "SKU-" + name,
		Name:     name,
		Category: "general",
		IsActive: true,
	}, nil)
	require.NoError(t, err)
	for _, b := range batches {
		cost := b.cost
		if cost == "" {
			cost = "0"
		}
		_, err := f.repo.CreateBatch(ctx, domain.InventoryBatch{
			ProductID:         created.ID,
			StoreID:           f.store.ID,
			SellingPrice:      decimal.RequireFromString(b.price),
			CostPrice:         decimal.RequireFromString(cost),
			QuantityAdded:     b.qty,
			QuantityRemaining: b.qty,
			LowStockThreshold: domain.DefaultLowStockThreshold,
			RestockDate:       b.at,
		})
		require.NoError(t, err)
	}
	detail, err := f.repo.GetProduct(ctx, f.store.ID, created.ID)
	require.NoError(t, err)
	return detail
}

func (f *fixture) stock(t *testing.T, productID int64) int {
	t.Helper()
	detail, err := f.repo.GetProduct(context.Background(), f.store.ID, productID)
	require.NoError(t, err)
	total := 0
	for _, b := range detail.Batches {
		total += b.QuantityRemaining
	}
	return total
}

func (f *fixture) saleCount(t *testing.T) int {
	t.Helper()
	sales, err := f.repo.ListSales(context.Background(), domain.SaleFilter{StoreID: f.store.ID})
	require.NoError(t, err)
	return len(sales)
}

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func requireCode(t *testing.T, err error, code apperr.Code) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	appErr := apperr.As(err)
	require.NotNil(t, appErr, "expected coded error, got %v", err)
	require.Equal(t, code, appErr.Code(), appErr.Error())
	return appErr
}

type recordingCache struct {
	mu      sync.Mutex
	entries map[int64]*domain.DashboardStats
	deletes []int64
}

func (c *recordingCache) Get(_ context.Context, storeID int64) (*domain.DashboardStats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[storeID]
	return v, ok, nil
}

func (c *recordingCache) Set(_ context.Context, storeID int64, v *domain.DashboardStats, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[int64]*domain.DashboardStats)
	}
	c.entries[storeID] = v
	return nil
}

func (c *recordingCache) Delete(_ context.Context, storeID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, storeID)
	c.deletes = append(c.deletes, storeID)
	return nil
}

func TestUnauthenticatedCallsAreRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListProducts(context.Background(), domain.ProductFilter{})
	requireCode(t, err, apperr.CodeUnauthorized)

	_, err = f.svc.CreateSale(context.Background(), domain.SaleRequest{
		Items:         []domain.SaleLine{{ProductID: 1, Quantity: 1}},
		PaymentMethod: domain.PaymentCash,
	})
	requireCode(t, err, apperr.CodeUnauthorized)
}

func TestCashierCannotUseManagerOperations(t *testing.T) {
	f := newFixture(t)
	cashierCtx := WithActor(context.Background(), domain.Principal{
		ID:      domain.CashierActor(42),
		Name:    "Casey",
		StoreID: f.store.ID,
	})

	_, err := f.svc.DashboardStats(cashierCtx)
	requireCode(t, err, apperr.CodeForbidden)

	_, err = f.svc.CreateProduct(cashierCtx, domain.ProductCreateRequest{Name: "Milk"})
	requireCode(t, err, apperr.CodeForbidden)

	_, err = f.svc.ListAuditLogs(cashierCtx, 10)
	requireCode(t, err, apperr.CodeForbidden)
}

func TestAuditLogRecordsMutations(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{Name: "Milk", Price: money("3.50"), StockQuantity: 4})
	require.NoError(t, err)

	logs, err := f.svc.ListAuditLogs(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "product_create", logs[0].Action)
	require.Equal(t, domain.ManagerActor(f.manager.ID).String(), logs[0].Actor)
}
