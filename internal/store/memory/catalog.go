package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"storepos/backend/internal/domain"
	"storepos/backend/internal/store"
)

func (s *Store) ListProducts(_ context.Context, storeID int64) ([]domain.ProductDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ProductDetail, 0)
	for _, p := range s.products {
		if p.StoreID != storeID {
			continue
		}
		result = append(result, s.detailLocked(p))
	}
	slices.SortFunc(result, func(a, b domain.ProductDetail) int {
		return newestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return result, nil
}

func (s *Store) GetProduct(_ context.Context, storeID int64, productID int64) (*domain.ProductDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok || p.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	detail := s.detailLocked(p)
	return &detail, nil
}

// detailLocked attaches every batch of p, newest restock first.
func (s *Store) detailLocked(p domain.Product) domain.ProductDetail {
	batches := make([]domain.InventoryBatch, 0, 4)
	for _, b := range s.batches {
		if b.ProductID == p.ID {
			batches = append(batches, b)
		}
	}
	slices.SortFunc(batches, func(a, b domain.InventoryBatch) int {
		return newestFirst(a.RestockDate, a.ID, b.RestockDate, b.ID)
	})
	return domain.ProductDetail{Product: p, Batches: batches}
}

func (s *Store) skuTakenLocked(storeID int64, sku string, exceptID int64) bool {
	for _, p := range s.products {
		if p.StoreID == storeID && p.ID != exceptID && strings.EqualFold(p.SKU, sku) {
			return true
		}
	}
	return false
}

func validBatch(b domain.InventoryBatch) bool {
	return b.QuantityRemaining >= 0 &&
		b.QuantityRemaining <= b.QuantityAdded &&
		!b.CostPrice.IsNegative() &&
		!b.SellingPrice.IsNegative()
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product, initial *domain.InventoryBatch) (*domain.ProductDetail, error) {
	if strings.TrimSpace(product.Name) == "" || strings.TrimSpace(product.SKU) == "" {
		return nil, store.ErrInvalid
	}
	if initial != nil && !validBatch(*initial) {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[product.StoreID]; !ok {
		return nil, store.ErrNotFound
	}
	if s.skuTakenLocked(product.StoreID, product.SKU, 0) {
		return nil, store.ErrDuplicate
	}

	now := time.Now().UTC()
	product.ID = s.nextID("products")
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	s.products[product.ID] = product

	if initial != nil {
		batch := *initial
		batch.ID = s.nextID("batches")
		batch.ProductID = product.ID
		batch.StoreID = product.StoreID
		if batch.RestockDate.IsZero() {
			batch.RestockDate = now
		}
		s.batches[batch.ID] = batch
	}

	detail := s.detailLocked(product)
	return &detail, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product, latest *domain.InventoryBatch) (*domain.ProductDetail, error) {
	if strings.TrimSpace(product.Name) == "" || strings.TrimSpace(product.SKU) == "" {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok || existing.StoreID != product.StoreID {
		return nil, store.ErrNotFound
	}
	if s.skuTakenLocked(product.StoreID, product.SKU, product.ID) {
		return nil, store.ErrDuplicate
	}
	if latest != nil {
		current, ok := s.batches[latest.ID]
		if !ok || current.ProductID != product.ID || !validBatch(*latest) {
			return nil, store.ErrInvalid
		}
	}

	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	if latest != nil {
		s.batches[latest.ID] = *latest
	}

	detail := s.detailLocked(product)
	return &detail, nil
}

func (s *Store) SetProductActive(_ context.Context, storeID int64, productID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok || p.StoreID != storeID {
		return store.ErrNotFound
	}
	p.IsActive = active
	s.products[productID] = p
	return nil
}

func (s *Store) CreateBatch(_ context.Context, batch domain.InventoryBatch) (*domain.InventoryBatch, error) {
	if batch.QuantityAdded < 1 || !validBatch(batch) {
		return nil, store.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[batch.ProductID]
	if !ok || p.StoreID != batch.StoreID {
		return nil, store.ErrNotFound
	}

	batch.ID = s.nextID("batches")
	if batch.RestockDate.IsZero() {
		batch.RestockDate = time.Now().UTC()
	}
	s.batches[batch.ID] = batch

	if !p.IsActive {
		p.IsActive = true
		s.products[p.ID] = p
	}
	created := batch
	return &created, nil
}

func (s *Store) ListSKUs(_ context.Context, storeID int64, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix = strings.ToUpper(prefix)
	skus := make([]string, 0)
	for _, p := range s.products {
		if p.StoreID == storeID && strings.HasPrefix(strings.ToUpper(p.SKU), prefix) {
			skus = append(skus, p.SKU)
		}
	}
	slices.Sort(skus)
	return skus, nil
}

func (s *Store) ListCategories(_ context.Context, storeID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, p := range s.products {
		category := strings.TrimSpace(p.Category)
		if p.StoreID != storeID || category == "" {
			continue
		}
		if _, ok := seen[category]; ok {
			continue
		}
		seen[category] = struct{}{}
		categories = append(categories, category)
	}
	slices.Sort(categories)
	return categories, nil
}
