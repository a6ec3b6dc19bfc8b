package postgres

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"storepos/backend/internal/domain"
	"storepos/backend/internal/store"
)

const productColumns = `id, store_id, sku, name, description, category, is_active, created_at`
const batchColumns = `id, product_id, store_id, cost_price, selling_price, quantity_added, quantity_remaining, low_stock_threshold, batch_number, restock_date, notes`

func (s *Store) ListProducts(ctx context.Context, storeID int64) ([]domain.ProductDetail, error) {
	products := make([]domain.Product, 0, 64)
	if err := s.db.SelectContext(ctx, &products, `
		SELECT `+productColumns+`
		FROM products
		WHERE store_id = $1
		ORDER BY created_at DESC, id DESC
	`, storeID); err != nil {
		return nil, err
	}

	batches := make([]domain.InventoryBatch, 0, 128)
	if err := s.db.SelectContext(ctx, &batches, `
		SELECT `+batchColumns+`
		FROM inventory_batches
		WHERE store_id = $1
		ORDER BY restock_date DESC, id DESC
	`, storeID); err != nil {
		return nil, err
	}

	byProduct := make(map[int64][]domain.InventoryBatch, len(products))
	for _, b := range batches {
		byProduct[b.ProductID] = append(byProduct[b.ProductID], b)
	}

	details := make([]domain.ProductDetail, 0, len(products))
	for _, p := range products {
		productBatches := byProduct[p.ID]
		if productBatches == nil {
			productBatches = []domain.InventoryBatch{}
		}
		details = append(details, domain.ProductDetail{Product: p, Batches: productBatches})
	}
	return details, nil
}

func (s *Store) GetProduct(ctx context.Context, storeID int64, productID int64) (*domain.ProductDetail, error) {
	return getProduct(ctx, s.db, storeID, productID)
}

func getProduct(ctx context.Context, q sqlx.QueryerContext, storeID int64, productID int64) (*domain.ProductDetail, error) {
	var p domain.Product
	if err := sqlx.GetContext(ctx, q, &p, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND store_id = $2
	`, productID, storeID); err != nil {
		return nil, notFound(err)
	}

	batches := make([]domain.InventoryBatch, 0, 8)
	if err := sqlx.SelectContext(ctx, q, &batches, `
		SELECT `+batchColumns+`
		FROM inventory_batches
		WHERE product_id = $1
		ORDER BY restock_date DESC, id DESC
	`, productID); err != nil {
		return nil, err
	}
	return &domain.ProductDetail{Product: p, Batches: batches}, nil
}

func insertBatch(ctx context.Context, tx *sqlx.Tx, b domain.InventoryBatch) (*domain.InventoryBatch, error) {
	var created domain.InventoryBatch
	err := tx.GetContext(ctx, &created, `
		INSERT INTO inventory_batches (
			product_id, store_id, cost_price, selling_price, quantity_added, quantity_remaining,
			low_stock_threshold, batch_number, restock_date, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), $10)
		RETURNING `+batchColumns,
		b.ProductID, b.StoreID, b.CostPrice, b.SellingPrice, b.QuantityAdded, b.QuantityRemaining,
		b.LowStockThreshold, b.BatchNumber, nullTime(zeroAsNil(b.RestockDate)), b.Notes)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product, initial *domain.InventoryBatch) (*domain.ProductDetail, error) {
	if strings.TrimSpace(product.Name) == "" || strings.TrimSpace(product.SKU) == "" {
		return nil, store.ErrInvalid
	}

	var detail *domain.ProductDetail
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var created domain.Product
		err := tx.GetContext(ctx, &created, `
			INSERT INTO products (store_id, sku, name, description, category, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			RETURNING `+productColumns,
			product.StoreID, product.SKU, product.Name, product.Description, product.Category, product.IsActive)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicate
			}
			return err
		}

		if initial != nil {
			b := *initial
			b.ProductID = created.ID
			b.StoreID = created.StoreID
			if _, err := insertBatch(ctx, tx, b); err != nil {
				return err
			}
		}

		detail, err = getProduct(ctx, tx, created.StoreID, created.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product, latest *domain.InventoryBatch) (*domain.ProductDetail, error) {
	if strings.TrimSpace(product.Name) == "" || strings.TrimSpace(product.SKU) == "" {
		return nil, store.ErrInvalid
	}

	var detail *domain.ProductDetail
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET sku = $3, name = $4, description = $5, category = $6, is_active = $7
			WHERE id = $1 AND store_id = $2
		`, product.ID, product.StoreID, product.SKU, product.Name, product.Description, product.Category, product.IsActive)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicate
			}
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return store.ErrNotFound
		}

		if latest != nil {
			res, err := tx.ExecContext(ctx, `
				UPDATE inventory_batches
				SET cost_price = $3, selling_price = $4, quantity_added = $5,
				    quantity_remaining = $6, low_stock_threshold = $7
				WHERE id = $1 AND product_id = $2
			`, latest.ID, product.ID, latest.CostPrice, latest.SellingPrice, latest.QuantityAdded,
				latest.QuantityRemaining, latest.LowStockThreshold)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return store.ErrInvalid
			}
		}

		detail, err = getProduct(ctx, tx, product.StoreID, product.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Store) SetProductActive(ctx context.Context, storeID int64, productID int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET is_active = $3 WHERE id = $1 AND store_id = $2
	`, productID, storeID, active)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateBatch(ctx context.Context, batch domain.InventoryBatch) (*domain.InventoryBatch, error) {
	if batch.QuantityAdded < 1 || batch.QuantityRemaining < 0 || batch.QuantityRemaining > batch.QuantityAdded {
		return nil, store.ErrInvalid
	}

	var created *domain.InventoryBatch
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE products SET is_active = true WHERE id = $1 AND store_id = $2
		`, batch.ProductID, batch.StoreID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return store.ErrNotFound
		}

		created, err = insertBatch(ctx, tx, batch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) ListSKUs(ctx context.Context, storeID int64, prefix string) ([]string, error) {
	skus := make([]string, 0)
	err := s.db.SelectContext(ctx, &skus, `
		SELECT sku FROM products
		WHERE store_id = $1 AND upper(sku) LIKE upper($2) || '%'
		ORDER BY sku
	`, storeID, prefix)
	if err != nil {
		return nil, err
	}
	return skus, nil
}

func (s *Store) ListCategories(ctx context.Context, storeID int64) ([]string, error) {
	categories := make([]string, 0)
	err := s.db.SelectContext(ctx, &categories, `
		SELECT DISTINCT trim(category) AS category
		FROM products
		WHERE store_id = $1 AND trim(category) <> ''
		ORDER BY category
	`, storeID)
	if err != nil {
		return nil, err
	}
	return categories, nil
}
