package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepos/backend/internal/apperr"
	"storepos/backend/internal/domain"
)

func TestSKUPrefix(t *testing.T) {
	cases := map[string]string{
		"Corner Shop": "COR",
		"a1 store":    "AXX",
		"Zé":          "ZXX",
		"":            "XXX",
		"Go":          "GOX",
	}
	for name, want := range cases {
		assert.Equal(t, want, skuPrefix(name), name)
	}
}

func TestNextSKUIncrementsPastHighestSequence(t *testing.T) {
	f := newFixture(t)

	next, err := f.svc.NextSKU(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "COR-0001", next.SKU)
	assert.Equal(t, 1, next.Sequence)

	created, err := f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{Name: "Bread", Price: money("2.50"), StockQuantity: 3})
	require.NoError(t, err)
	assert.Equal(t, "COR-0001", created.SKU)

	_, err = f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{Name: "Jam", SKU: "cor-0041"})
	require.NoError(t, err)

	next, err = f.svc.NextSKU(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "COR-0042", next.SKU)
}

func TestCreateProductWithInitialStock(t *testing.T) {
	f := newFixture(t)
	threshold := 2

	created, err := f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{
		Name:              " Tea ",
		SKU:               "tea-1",
		Category:          "Drinks",
		Price:             money("4.00"),
		CostPrice:         money("2.75"),
		StockQuantity:     12,
		LowStockThreshold: &threshold,
	})
	require.NoError(t, err)
	assert.Equal(t, "Tea", created.Name)
	assert.Equal(t, "TEA-1", created.SKU)
	assert.Equal(t, 12, created.Stock)
	assert.True(t, created.Price.Equal(money("4.00")))
	assert.Equal(t, 2, created.LowStockThreshold)
	assert.False(t, created.IsLowStock)
	require.Len(t, created.Batches, 1)
	assert.Equal(t, "Initial stock", created.Batches[0].Notes)

	_, err = f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{Name: "Tea again", SKU: "TEA-1"})
	requireCode(t, err, apperr.CodeDuplicateSKU)

	bare, err := f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{Name: "Placeholder"})
	require.NoError(t, err)
	assert.Empty(t, bare.Batches)
	assert.True(t, bare.IsLowStock)

	categories, err := f.svc.ListCategories(f.ctx)
	require.NoError(t, err)
	assert.Contains(t, categories, "Drinks")
}

func TestUpdateProductPatchesLatestBatch(t *testing.T) {
	f := newFixture(t)
	product := f.product(t, "Soap",
		batchSpec{qty: 5, price: "3.00", at: fixedNow.Add(-48 * time.Hour)},
		batchSpec{qty: 8, price: "3.50", at: fixedNow.Add(-time.Hour)},
	)

	price := money("3.75")
	stock := 6
	name := "Soap Bar"
	updated, err := f.svc.UpdateProduct(f.ctx, product.ID, domain.ProductUpdateRequest{
		Name:          &name,
		Price:         &price,
		StockQuantity: &stock,
	})
	require.NoError(t, err)
	assert.Equal(t, "Soap Bar", updated.Name)
	assert.True(t, updated.Price.Equal(price))
	assert.Equal(t, 11, updated.Stock)
	require.Len(t, updated.Batches, 2)
	assert.Equal(t, 6, updated.Batches[0].QuantityRemaining)
	assert.Equal(t, 6, updated.Batches[0].QuantityAdded)
	assert.Equal(t, 5, updated.Batches[1].QuantityRemaining)

	negative := -1
	_, err = f.svc.UpdateProduct(f.ctx, product.ID, domain.ProductUpdateRequest{StockQuantity: &negative})
	requireCode(t, err, apperr.CodeValidation)

	_, err = f.svc.UpdateProduct(f.ctx, 9999, domain.ProductUpdateRequest{Name: &name})
	requireCode(t, err, apperr.CodeNotFound)
}

func TestUpdateProductCreatesFirstBatchWhenNoneExist(t *testing.T) {
	f := newFixture(t)
	product := f.product(t, "Empty")

	stock := 4
	price := money("1.25")
	updated, err := f.svc.UpdateProduct(f.ctx, product.ID, domain.ProductUpdateRequest{StockQuantity: &stock, Price: &price})
	require.NoError(t, err)
	require.Len(t, updated.Batches, 1)
	assert.Equal(t, 4, updated.Stock)
	assert.True(t, updated.Price.Equal(price))
}

func TestRestockMakesNewBatchTheSellingPrice(t *testing.T) {
	f := newFixture(t)
	product := f.product(t, "Rice", batchSpec{qty: 2, price: "9.00", at: fixedNow.Add(-time.Hour)})

	batch, err := f.svc.RestockProduct(f.ctx, product.ID, domain.RestockRequest{
		CostPrice:     money("8.00"),
		SellingPrice:  money("11.00"),
		QuantityAdded: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 20, batch.QuantityRemaining)
	assert.NotEmpty(t, batch.BatchNumber)

	detail, err := f.svc.GetProduct(f.ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 22, detail.Stock)
	assert.True(t, detail.Price.Equal(money("11.00")))

	history, err := f.svc.RestockHistory(f.ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = f.svc.RestockProduct(f.ctx, product.ID, domain.RestockRequest{QuantityAdded: 0})
	requireCode(t, err, apperr.CodeValidation)
}

func TestListProductsFilters(t *testing.T) {
	f := newFixture(t)
	f.product(t, "Apple", batchSpec{qty: 3, price: "1.00", at: fixedNow.Add(-time.Hour)})
	f.product(t, "Banana", batchSpec{qty: 40, price: "0.50", at: fixedNow.Add(-time.Hour)})
	gone := f.product(t, "Cherry", batchSpec{qty: 1, price: "5.00", at: fixedNow.Add(-time.Hour)})
	require.NoError(t, f.svc.DeleteProduct(f.ctx, gone.ID))

	low, err := f.svc.ListProducts(f.ctx, domain.ProductFilter{LowStock: true})
	require.NoError(t, err)
	names := make([]string, 0, len(low))
	for _, p := range low {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"Apple", "Cherry"}, names)

	found, err := f.svc.ListProducts(f.ctx, domain.ProductFilter{Search: "sku-ban"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Banana", found[0].Name)

	none, err := f.svc.ListProducts(f.ctx, domain.ProductFilter{Category: "frozen"})
	require.NoError(t, err)
	assert.Empty(t, none)

	detail, err := f.svc.GetProduct(f.ctx, gone.ID)
	require.NoError(t, err)
	assert.False(t, detail.IsActive)
}
