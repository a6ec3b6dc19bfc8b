package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepos/backend/internal/apperr"
	"storepos/backend/internal/domain"
	"storepos/backend/internal/service"
	"storepos/backend/internal/store"
	"storepos/backend/internal/xid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("POS_TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	repo, err := New(ctx, dsn, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, Migrate(ctx, repo.DB()))
	return repo
}

func seedStoreAndProduct(t *testing.T, repo *Store, quantities ...int) (*domain.Store, *domain.Manager, *domain.ProductDetail) {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	st, manager, err := repo.CreateStoreWithManager(ctx, domain.Store{
		StoreCode: xid.StoreCode(),
		StoreName: "Integration " + suffix,
	}, domain.Manager{
		ID:           uuid.New(),
		Email:        "it-" + suffix + "@example.test",
		FullName:     "Integration Manager",
		PhoneNumber:  "0399" + suffix,
		PasswordHash: "x",
	})
	require.NoError(t, err)

	product, err := repo.CreateProduct(ctx, domain.Product{
		StoreID:  st.ID,
		SKU:      "INT-" + suffix,
		Name:     "Integration Item",
		IsActive: true,
	}, nil)
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Duration(len(quantities)) * time.Hour)
	for i, qty := range quantities {
		_, err := repo.CreateBatch(ctx, domain.InventoryBatch{
			ProductID:         product.ID,
			StoreID:           st.ID,
			CostPrice:         decimal.RequireFromString("6.00"),
			SellingPrice:      decimal.RequireFromString("10.00"),
			QuantityAdded:     qty,
			QuantityRemaining: qty,
			LowStockThreshold: domain.DefaultLowStockThreshold,
			BatchNumber:       xid.BatchNumber(base),
			RestockDate:       base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	return st, manager, product
}

func TestSaleTxDepletesOldestBatchFirst(t *testing.T) {
	repo := openTestStore(t)
	ctx := context.Background()
	st, manager, product := seedStoreAndProduct(t, repo, 3, 5)

	var saleID int64
	err := repo.WithinSaleTx(ctx, func(tx store.SaleTx) error {
		loaded, err := tx.LoadProductForSale(ctx, st.ID, product.ID)
		if err != nil {
			return err
		}
		require.Len(t, loaded.Batches, 2)
		require.Equal(t, 3, loaded.Batches[0].QuantityRemaining)

		saleID, err = tx.InsertSale(ctx, domain.Sale{
			SaleNumber:    xid.SaleNumber(),
			StoreID:       st.ID,
			Cashier:       domain.ManagerActor(manager.ID),
			TotalAmount:   decimal.RequireFromString("40.00"),
			DiscountType:  domain.DiscountNone,
			PaymentMethod: domain.PaymentCash,
			PaymentStatus: domain.StatusPaid,
			AmountPaid:    decimal.RequireFromString("40.00"),
			SaleDate:      time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if _, err := tx.InsertSaleItem(ctx, domain.SaleItem{
			SaleID:      saleID,
			ProductID:   product.ID,
			ProductSKU:  product.SKU,
			ProductName: product.Name,
			Quantity:    4,
			UnitPrice:   decimal.RequireFromString("10.00"),
			Subtotal:    decimal.RequireFromString("40.00"),
		}); err != nil {
			return err
		}

		ok, err := tx.DeductBatch(ctx, loaded.Batches[0].ID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = tx.DeductBatch(ctx, loaded.Batches[1].ID, 1)
		require.NoError(t, err)
		require.True(t, ok)
		return nil
	})
	require.NoError(t, err)

	sale, err := repo.GetSale(ctx, st.ID, saleID)
	require.NoError(t, err)
	require.True(t, sale.Cashier.IsManager())
	require.Len(t, sale.Items, 1)

	detail, err := repo.GetProduct(ctx, st.ID, product.ID)
	require.NoError(t, err)
	remaining := 0
	for _, b := range detail.Batches {
		remaining += b.QuantityRemaining
	}
	require.Equal(t, 4, remaining)
}

func TestSaleTxRollsBackOnError(t *testing.T) {
	repo := openTestStore(t)
	ctx := context.Background()
	st, manager, product := seedStoreAndProduct(t, repo, 2)

	err := repo.WithinSaleTx(ctx, func(tx store.SaleTx) error {
		loaded, err := tx.LoadProductForSale(ctx, st.ID, product.ID)
		if err != nil {
			return err
		}
		if _, err := tx.InsertSale(ctx, domain.Sale{
			SaleNumber:    xid.SaleNumber(),
			StoreID:       st.ID,
			Cashier:       domain.ManagerActor(manager.ID),
			DiscountType:  domain.DiscountNone,
			PaymentMethod: domain.PaymentCash,
			PaymentStatus: domain.StatusPending,
			SaleDate:      time.Now().UTC(),
		}); err != nil {
			return err
		}
		ok, err := tx.DeductBatch(ctx, loaded.Batches[0].ID, 3)
		require.NoError(t, err)
		require.False(t, ok)
		return store.ErrInsufficientStock
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	sales, err := repo.ListSales(ctx, domain.SaleFilter{StoreID: st.ID})
	require.NoError(t, err)
	require.Empty(t, sales)
}

func managerContext(st *domain.Store, manager *domain.Manager) context.Context {
	return service.WithActor(context.Background(), domain.Principal{
		ID:        domain.ManagerActor(manager.ID),
		Name:      manager.FullName,
		StoreID:   st.ID,
		StoreName: st.StoreName,
	})
}

func stockOf(t *testing.T, repo *Store, storeID int64, productID int64) int {
	t.Helper()
	detail, err := repo.GetProduct(context.Background(), storeID, productID)
	require.NoError(t, err)
	total := 0
	for _, b := range detail.Batches {
		require.GreaterOrEqual(t, b.QuantityRemaining, 0)
		total += b.QuantityRemaining
	}
	return total
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	repo := openTestStore(t)
	st, manager, product := seedStoreAndProduct(t, repo, 4, 6)
	svc := service.New(repo, service.Options{})
	ctx := managerContext(st, manager)

	const (
		buyers  = 20
		perSale = 3
	)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateSale(ctx, domain.SaleRequest{
				Items:         []domain.SaleLine{{ProductID: product.ID, Quantity: perSale}},
				PaymentMethod: domain.PaymentCash,
				AmountPaid:    decimal.RequireFromString("30.00"),
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			succeeded++
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 10-succeeded*perSale, stockOf(t, repo, st.ID, product.ID))
	for _, err := range failures {
		assert.Equal(t, apperr.CodeInsufficientStock, apperr.CodeOf(err), err.Error())
	}

	sales, err := repo.ListSales(context.Background(), domain.SaleFilter{StoreID: st.ID})
	require.NoError(t, err)
	assert.Len(t, sales, succeeded)
}

func TestConcurrentCartsInOppositeOrderDoNotDeadlock(t *testing.T) {
	repo := openTestStore(t)
	st, manager, first := seedStoreAndProduct(t, repo, 50)
	ctx := context.Background()

	second, err := repo.CreateProduct(ctx, domain.Product{
		StoreID:  st.ID,
		SKU:      first.SKU + "-B",
		Name:     "Integration Item B",
		IsActive: true,
	}, nil)
	require.NoError(t, err)
	_, err = repo.CreateBatch(ctx, domain.InventoryBatch{
		ProductID:         second.ID,
		StoreID:           st.ID,
		SellingPrice:      decimal.RequireFromString("10.00"),
		QuantityAdded:     50,
		QuantityRemaining: 50,
		LowStockThreshold: domain.DefaultLowStockThreshold,
		BatchNumber:       xid.BatchNumber(time.Now()),
		RestockDate:       time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)

	svc := service.New(repo, service.Options{})
	saleCtx := managerContext(st, manager)

	const rounds = 10
	errs := make(chan error, rounds*2)
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		for _, cart := range [][]int64{{first.ID, second.ID}, {second.ID, first.ID}} {
			wg.Add(1)
			go func(cart []int64) {
				defer wg.Done()
				_, err := svc.CreateSale(saleCtx, domain.SaleRequest{
					Items: []domain.SaleLine{
						{ProductID: cart[0], Quantity: 1},
						{ProductID: cart[1], Quantity: 1},
					},
					PaymentMethod: domain.PaymentCash,
					AmountPaid:    decimal.RequireFromString("20.00"),
				})
				errs <- err
			}(cart)
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 50-rounds*2, stockOf(t, repo, st.ID, first.ID))
	assert.Equal(t, 50-rounds*2, stockOf(t, repo, st.ID, second.ID))
}
