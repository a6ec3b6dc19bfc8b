package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"storepos/backend/internal/domain"
	"storepos/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

// saleTx records an undo step for every write so a failed unit of work leaves
// the tables exactly as it found them.
type saleTx struct {
	s    *Store
	undo []func()
}

func (s *Store) WithinSaleTx(ctx context.Context, fn func(tx store.SaleTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &saleTx{s: s}
	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (tx *saleTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *saleTx) LoadProductForSale(_ context.Context, storeID int64, productID int64) (*domain.ProductForSale, error) {
	p, ok := tx.s.products[productID]
	if !ok || p.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	batches := make([]domain.InventoryBatch, 0, 4)
	for _, b := range tx.s.batches {
		if b.ProductID == productID && b.QuantityRemaining > 0 {
			batches = append(batches, b)
		}
	}
	slices.SortFunc(batches, func(a, b domain.InventoryBatch) int {
		return -newestFirst(a.RestockDate, a.ID, b.RestockDate, b.ID)
	})
	return &domain.ProductForSale{Product: p, Batches: batches}, nil
}

func (tx *saleTx) InsertSale(_ context.Context, sale domain.Sale) (int64, error) {
	if _, ok := tx.s.stores[sale.StoreID]; !ok {
		return 0, store.ErrNotFound
	}
	if !sale.Cashier.Valid() {
		return 0, store.ErrInvalid
	}
	sale.ID = tx.s.nextID("sales")
	sale.Items = nil
	sale.Payments = nil
	sale.PartialPaymentCustomer = nil
	tx.s.sales[sale.ID] = sale
	id := sale.ID
	tx.undo = append(tx.undo, func() { delete(tx.s.sales, id) })
	return id, nil
}

func (tx *saleTx) InsertPayment(_ context.Context, payment domain.Payment) (int64, error) {
	if _, ok := tx.s.sales[payment.SaleID]; !ok {
		return 0, store.ErrNotFound
	}
	if !payment.RecordedBy.Valid() {
		return 0, store.ErrInvalid
	}
	payment.ID = tx.s.nextID("payments")
	tx.s.payments[payment.ID] = payment
	id := payment.ID
	tx.undo = append(tx.undo, func() { delete(tx.s.payments, id) })
	return id, nil
}

func (tx *saleTx) InsertPartialCustomer(_ context.Context, customer domain.PartialPaymentCustomer) (int64, error) {
	if _, ok := tx.s.sales[customer.SaleID]; !ok {
		return 0, store.ErrNotFound
	}
	for _, existing := range tx.s.partials {
		if existing.SaleID == customer.SaleID {
			return 0, store.ErrDuplicate
		}
	}
	customer.ID = tx.s.nextID("partial_customers")
	tx.s.partials[customer.ID] = customer
	id := customer.ID
	tx.undo = append(tx.undo, func() { delete(tx.s.partials, id) })
	return id, nil
}

func (tx *saleTx) InsertSaleItem(_ context.Context, item domain.SaleItem) (int64, error) {
	if _, ok := tx.s.sales[item.SaleID]; !ok {
		return 0, store.ErrNotFound
	}
	if item.Quantity < 1 {
		return 0, store.ErrInvalid
	}
	item.ID = tx.s.nextID("sale_items")
	tx.s.saleItems[item.ID] = item
	id := item.ID
	tx.undo = append(tx.undo, func() { delete(tx.s.saleItems, id) })
	return id, nil
}

func (tx *saleTx) DeductBatch(_ context.Context, batchID int64, qty int) (bool, error) {
	if qty < 1 {
		return false, store.ErrInvalid
	}
	b, ok := tx.s.batches[batchID]
	if !ok {
		return false, store.ErrNotFound
	}
	if b.QuantityRemaining < qty {
		return false, nil
	}
	previous := b
	b.QuantityRemaining -= qty
	tx.s.batches[batchID] = b
	tx.undo = append(tx.undo, func() { tx.s.batches[batchID] = previous })
	return true, nil
}

func (s *Store) GetSale(_ context.Context, storeID int64, saleID int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[saleID]
	if !ok || sale.StoreID != storeID {
		return nil, store.ErrNotFound
	}
	assembled := s.assembleSaleLocked(sale)
	return &assembled, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0)
	for _, sale := range s.sales {
		if sale.StoreID != filter.StoreID {
			continue
		}
		if filter.StartDate != nil && sale.SaleDate.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && sale.SaleDate.After(*filter.EndDate) {
			continue
		}
		if filter.Cashier != nil && sale.Cashier != *filter.Cashier {
			continue
		}
		result = append(result, sale)
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		return newestFirst(a.SaleDate, a.ID, b.SaleDate, b.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	for i := range result {
		result[i] = s.assembleSaleLocked(result[i])
	}
	return result, nil
}

func (s *Store) assembleSaleLocked(sale domain.Sale) domain.Sale {
	sale.Items = make([]domain.SaleItem, 0, 4)
	for _, item := range s.saleItems {
		if item.SaleID == sale.ID {
			sale.Items = append(sale.Items, item)
		}
	}
	slices.SortFunc(sale.Items, func(a, b domain.SaleItem) int { return cmp.Compare(a.ID, b.ID) })

	sale.Payments = make([]domain.Payment, 0, 1)
	for _, p := range s.payments {
		if p.SaleID == sale.ID {
			sale.Payments = append(sale.Payments, p)
		}
	}
	slices.SortFunc(sale.Payments, func(a, b domain.Payment) int { return cmp.Compare(a.ID, b.ID) })

	sale.PartialPaymentCustomer = nil
	for _, c := range s.partials {
		if c.SaleID == sale.ID {
			customer := c
			sale.PartialPaymentCustomer = &customer
			break
		}
	}
	return sale
}

func (s *Store) ListPartialCustomers(_ context.Context, storeID int64, search string) ([]domain.PartialPaymentCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.TrimSpace(search)
	result := make([]domain.PartialPaymentCustomer, 0)
	for _, c := range s.partials {
		if c.StoreID != storeID {
			continue
		}
		if search != "" && !containsFold(c.CustomerName, search) && !containsFold(c.CustomerPhone, search) && !containsFold(c.CustomerCNIC, search) {
			continue
		}
		result = append(result, c)
	}
	slices.SortFunc(result, func(a, b domain.PartialPaymentCustomer) int {
		return newestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return result, nil
}
