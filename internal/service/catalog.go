package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"storepos/backend/internal/apperr"
	"storepos/backend/internal/domain"
	"storepos/backend/internal/store"
	"storepos/backend/internal/xid"
)

var skuSequencePattern = regexp.MustCompile(`-(\d+)$`)

// withAggregates fills the derived stock figures of d. Batches must be sorted
// newest restock first, which is how both repositories return them.
func withAggregates(d domain.ProductDetail) domain.ProductDetail {
	d.Stock = 0
	for _, b := range d.Batches {
		d.Stock += b.QuantityRemaining
	}
	d.Price = decimal.Zero
	d.CostPrice = decimal.Zero
	d.LowStockThreshold = domain.DefaultLowStockThreshold
	if len(d.Batches) > 0 {
		latest := d.Batches[0]
		d.Price = latest.SellingPrice
		d.CostPrice = latest.CostPrice
		if latest.LowStockThreshold > 0 {
			d.LowStockThreshold = latest.LowStockThreshold
		}
	}
	d.IsLowStock = d.Stock <= d.LowStockThreshold
	if d.Batches == nil {
		d.Batches = []domain.InventoryBatch{}
	}
	return d
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.ProductDetail, error) {
	p, err := storePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, p.StoreID)
	if err != nil {
		return nil, translate(err, "products")
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	category := strings.TrimSpace(filter.Category)
	result := make([]domain.ProductDetail, 0, len(products))
	for _, product := range products {
		detail := withAggregates(product)
		if search != "" &&
			!strings.Contains(strings.ToLower(detail.Name), search) &&
			!strings.Contains(strings.ToLower(detail.SKU), search) {
			continue
		}
		if category != "" && !strings.EqualFold(detail.Category, category) {
			continue
		}
		if filter.LowStock && !detail.IsLowStock {
			continue
		}
		result = append(result, detail)
	}
	return result, nil
}

func (s *Service) GetProduct(ctx context.Context, productID int64) (*domain.ProductDetail, error) {
	p, err := storePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	detail, err := s.repo.GetProduct(ctx, p.StoreID, productID)
	if err != nil {
		return nil, translate(err, "product")
	}
	out := withAggregates(*detail)
	return &out, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.ProductDetail, error) {
	p, err := managerPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if req.Name == "" {
		return nil, apperr.New(apperr.CodeValidation, "Product name is required")
	}
	if req.Price.IsNegative() || req.CostPrice.IsNegative() {
		return nil, apperr.New(apperr.CodeValidation, "Price must be positive")
	}
	if req.StockQuantity < 0 {
		return nil, apperr.New(apperr.CodeValidation, "Stock quantity cannot be negative")
	}
	if req.SKU == "" {
		next, err := s.NextSKU(ctx)
		if err != nil {
			return nil, err
		}
		req.SKU = next.SKU
	}

	threshold := domain.DefaultLowStockThreshold
	if req.LowStockThreshold != nil && *req.LowStockThreshold > 0 {
		threshold = *req.LowStockThreshold
	}

	var initial *domain.InventoryBatch
	if req.StockQuantity > 0 || req.Price.IsPositive() || req.CostPrice.IsPositive() {
		now := s.now().UTC()
		initial = &domain.InventoryBatch{
			StoreID:           p.StoreID,
			CostPrice:         req.CostPrice,
			SellingPrice:      req.Price,
			QuantityAdded:     req.StockQuantity,
			QuantityRemaining: req.StockQuantity,
			LowStockThreshold: threshold,
			BatchNumber:       xid.BatchNumber(now),
			RestockDate:       now,
			Notes:             "Initial stock",
		}
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		StoreID:     p.StoreID,
		SKU:         req.SKU,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		IsActive:    true,
	}, initial)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.New(apperr.CodeDuplicateSKU, "SKU already exists").WithDetail("sku", req.SKU)
		}
		return nil, translate(err, "product")
	}

	out := withAggregates(*created)
	s.logAudit(ctx, p.StoreID, "product_create", "product", strconv.FormatInt(out.ID, 10),
		fmt.Sprintf("sku=%s,name=%s,price=%s,stock=%d", out.SKU, out.Name, out.Price.StringFixed(2), out.Stock))
	s.invalidateStats(ctx, p.StoreID)
	return &out, nil
}

func (s *Service) UpdateProduct(ctx context.Context, productID int64, req domain.ProductUpdateRequest) (*domain.ProductDetail, error) {
	p, err := managerPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetProduct(ctx, p.StoreID, productID)
	if err != nil {
		return nil, translate(err, "product")
	}

	updated := existing.Product
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.New(apperr.CodeValidation, "Product name is required")
		}
		updated.Name = name
	}
	if req.SKU != nil {
		sku := strings.ToUpper(strings.TrimSpace(*req.SKU))
		if sku == "" {
			return nil, apperr.New(apperr.CodeValidation, "SKU cannot be empty")
		}
		updated.SKU = sku
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	if (req.Price != nil && req.Price.IsNegative()) || (req.CostPrice != nil && req.CostPrice.IsNegative()) {
		return nil, apperr.New(apperr.CodeValidation, "Price must be positive")
	}
	if req.StockQuantity != nil && *req.StockQuantity < 0 {
		return nil, apperr.New(apperr.CodeValidation, "Stock quantity cannot be negative")
	}

	touchesBatch := req.Price != nil || req.CostPrice != nil || req.LowStockThreshold != nil || req.StockQuantity != nil
	var latest *domain.InventoryBatch
	if touchesBatch && len(existing.Batches) > 0 {
		b := existing.Batches[0]
		patchBatch(&b, req)
		latest = &b
	}

	detail, err := s.repo.UpdateProduct(ctx, updated, latest)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.New(apperr.CodeDuplicateSKU, "SKU already exists").WithDetail("sku", updated.SKU)
		}
		return nil, translate(err, "product")
	}

	// A product without batches gets its first one from the patch.
	if touchesBatch && len(existing.Batches) == 0 {
		now := s.now().UTC()
		b := domain.InventoryBatch{
			ProductID:         productID,
			StoreID:           p.StoreID,
			LowStockThreshold: domain.DefaultLowStockThreshold,
			BatchNumber:       xid.BatchNumber(now),
			RestockDate:       now,
		}
		patchBatch(&b, req)
		if b.QuantityAdded > 0 {
			if _, err := s.repo.CreateBatch(ctx, b); err != nil {
				return nil, translate(err, "inventory batch")
			}
			if detail, err = s.repo.GetProduct(ctx, p.StoreID, productID); err != nil {
				return nil, translate(err, "product")
			}
		}
	}

	out := withAggregates(*detail)
	s.logAudit(ctx, p.StoreID, "product_update", "product", strconv.FormatInt(out.ID, 10),
		fmt.Sprintf("sku=%s,price=%s,stock=%d,active=%t", out.SKU, out.Price.StringFixed(2), out.Stock, out.IsActive))
	s.invalidateStats(ctx, p.StoreID)
	return &out, nil
}

// patchBatch applies the batch-level fields of req to b. A new stock quantity
// replaces quantity_remaining and moves quantity_added by the same delta.
func patchBatch(b *domain.InventoryBatch, req domain.ProductUpdateRequest) {
	if req.Price != nil {
		b.SellingPrice = *req.Price
	}
	if req.CostPrice != nil {
		b.CostPrice = *req.CostPrice
	}
	if req.LowStockThreshold != nil {
		b.LowStockThreshold = *req.LowStockThreshold
	}
	if req.StockQuantity != nil {
		b.QuantityAdded += *req.StockQuantity - b.QuantityRemaining
		b.QuantityRemaining = *req.StockQuantity
	}
}

func (s *Service) DeleteProduct(ctx context.Context, productID int64) error {
	p, err := managerPrincipal(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.SetProductActive(ctx, p.StoreID, productID, false); err != nil {
		return translate(err, "product")
	}
	s.logAudit(ctx, p.StoreID, "product_deactivate", "product", strconv.FormatInt(productID, 10), "is_active=false")
	s.invalidateStats(ctx, p.StoreID)
	return nil
}

func (s *Service) RestockProduct(ctx context.Context, productID int64, req domain.RestockRequest) (*domain.InventoryBatch, error) {
	p, err := managerPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if req.QuantityAdded <= 0 {
		return nil, apperr.New(apperr.CodeValidation, "Quantity must be greater than 0")
	}
	if req.CostPrice.IsNegative() || req.SellingPrice.IsNegative() {
		return nil, apperr.New(apperr.CodeValidation, "Price must be positive")
	}

	now := s.now().UTC()
	threshold := domain.DefaultLowStockThreshold
	if req.LowStockThreshold != nil && *req.LowStockThreshold > 0 {
		threshold = *req.LowStockThreshold
	}
	batchNumber := strings.TrimSpace(req.BatchNumber)
	if batchNumber == "" {
		batchNumber = xid.BatchNumber(now)
	}

	batch, err := s.repo.CreateBatch(ctx, domain.InventoryBatch{
		ProductID:         productID,
		StoreID:           p.StoreID,
		CostPrice:         req.CostPrice,
		SellingPrice:      req.SellingPrice,
		QuantityAdded:     req.QuantityAdded,
		QuantityRemaining: req.QuantityAdded,
		LowStockThreshold: threshold,
		BatchNumber:       batchNumber,
		RestockDate:       now,
		Notes:             strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return nil, translate(err, "product")
	}

	s.logAudit(ctx, p.StoreID, "product_restock", "product", strconv.FormatInt(productID, 10),
		fmt.Sprintf("batch=%s,qty=%d,price=%s", batch.BatchNumber, batch.QuantityAdded, batch.SellingPrice.StringFixed(2)))
	s.invalidateStats(ctx, p.StoreID)
	return batch, nil
}

func (s *Service) RestockHistory(ctx context.Context, productID int64) ([]domain.InventoryBatch, error) {
	detail, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return detail.Batches, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	p, err := storePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.repo.ListCategories(ctx, p.StoreID)
	if err != nil {
		return nil, translate(err, "categories")
	}
	return categories, nil
}

func (s *Service) NextSKU(ctx context.Context) (domain.NextSKUResponse, error) {
	p, err := storePrincipal(ctx)
	if err != nil {
		return domain.NextSKUResponse{}, err
	}
	st, err := s.repo.GetStoreByID(ctx, p.StoreID)
	if err != nil {
		return domain.NextSKUResponse{}, translate(err, "store")
	}

	prefix := skuPrefix(st.StoreName)
	skus, err := s.repo.ListSKUs(ctx, p.StoreID, prefix+"-")
	if err != nil {
		return domain.NextSKUResponse{}, translate(err, "products")
	}

	next := 1
	for _, sku := range skus {
		m := skuSequencePattern.FindStringSubmatch(sku)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n+1 > next {
			next = n + 1
		}
	}

	return domain.NextSKUResponse{
		SKU:       fmt.Sprintf("%s-%04d", prefix, next),
		StoreCode: prefix,
		Sequence:  next,
	}, nil
}

// skuPrefix is the first three characters of the store name, upper-cased,
// with anything outside A-Z replaced by X.
func skuPrefix(storeName string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(storeName) {
		if b.Len() == 3 {
			break
		}
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		} else {
			b.WriteByte('X')
		}
	}
	for utf8.RuneCountInString(b.String()) < 3 {
		b.WriteByte('X')
	}
	return b.String()
}
