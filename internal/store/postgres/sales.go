package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"storepos/backend/internal/domain"
	"storepos/backend/internal/store"
)

const saleColumns = `id, sale_number, store_id, manager_id, cashier_id, sale_description, notes, total_amount,
	discount_type, discount_value, discount_amount, payment_method, payment_status, amount_paid, amount_due, sale_date`
const saleItemColumns = `id, sale_id, product_id, product_sku, product_name, quantity, unit_price, cost_price_snapshot, subtotal`
const paymentColumns = `id, sale_id, store_id, amount, payment_method, payment_date, manager_id, cashier_id`
const partialColumns = `id, sale_id, store_id, customer_name, customer_cnic, customer_phone, total_amount, amount_paid, amount_remaining, created_at`

type saleRow struct {
	domain.Sale
	ManagerID uuid.NullUUID `db:"manager_id"`
	CashierID sql.NullInt64 `db:"cashier_id"`
}

type paymentRow struct {
	domain.Payment
	ManagerID uuid.NullUUID `db:"manager_id"`
	CashierID sql.NullInt64 `db:"cashier_id"`
}

type saleTx struct {
	tx *sqlx.Tx
}

func (s *Store) WithinSaleTx(ctx context.Context, fn func(tx store.SaleTx) error) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&saleTx{tx: tx})
	})
}

func (t *saleTx) LoadProductForSale(ctx context.Context, storeID int64, productID int64) (*domain.ProductForSale, error) {
	var p domain.Product
	if err := t.tx.GetContext(ctx, &p, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND store_id = $2
	`, productID, storeID); err != nil {
		return nil, notFound(err)
	}

	batches := make([]domain.InventoryBatch, 0, 4)
	if err := t.tx.SelectContext(ctx, &batches, `
		SELECT `+batchColumns+`
		FROM inventory_batches
		WHERE product_id = $1 AND quantity_remaining > 0
		ORDER BY restock_date ASC, id ASC
		FOR UPDATE
	`, productID); err != nil {
		return nil, err
	}
	return &domain.ProductForSale{Product: p, Batches: batches}, nil
}

func (t *saleTx) InsertSale(ctx context.Context, sale domain.Sale) (int64, error) {
	managerID, cashierID := actorColumns(&sale.Cashier)
	var id int64
	err := t.tx.GetContext(ctx, &id, `
		INSERT INTO sales (
			sale_number, store_id, manager_id, cashier_id, sale_description, notes, total_amount,
			discount_type, discount_value, discount_amount, payment_method, payment_status,
			amount_paid, amount_due, sale_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`, sale.SaleNumber, sale.StoreID, managerID, cashierID, sale.SaleDescription, sale.Notes, sale.TotalAmount,
		sale.DiscountType, sale.DiscountValue, sale.DiscountAmount, sale.PaymentMethod, sale.PaymentStatus,
		sale.AmountPaid, sale.AmountDue, sale.SaleDate)
	return id, err
}

func (t *saleTx) InsertPayment(ctx context.Context, payment domain.Payment) (int64, error) {
	managerID, cashierID := actorColumns(&payment.RecordedBy)
	var id int64
	err := t.tx.GetContext(ctx, &id, `
		INSERT INTO payments (sale_id, store_id, amount, payment_method, payment_date, manager_id, cashier_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, payment.SaleID, payment.StoreID, payment.Amount, payment.PaymentMethod, payment.PaymentDate, managerID, cashierID)
	return id, err
}

func (t *saleTx) InsertPartialCustomer(ctx context.Context, c domain.PartialPaymentCustomer) (int64, error) {
	var id int64
	err := t.tx.GetContext(ctx, &id, `
		INSERT INTO partial_payment_customers (
			sale_id, store_id, customer_name, customer_cnic, customer_phone,
			total_amount, amount_paid, amount_remaining, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, c.SaleID, c.StoreID, c.CustomerName, c.CustomerCNIC, c.CustomerPhone,
		c.TotalAmount, c.AmountPaid, c.AmountRemaining, c.CreatedAt)
	if isUniqueViolation(err) {
		return 0, store.ErrDuplicate
	}
	return id, err
}

func (t *saleTx) InsertSaleItem(ctx context.Context, item domain.SaleItem) (int64, error) {
	var id int64
	err := t.tx.GetContext(ctx, &id, `
		INSERT INTO sale_items (
			sale_id, product_id, product_sku, product_name, quantity, unit_price, cost_price_snapshot, subtotal
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, item.SaleID, item.ProductID, item.ProductSKU, item.ProductName, item.Quantity,
		item.UnitPrice, item.CostPriceSnapshot, item.Subtotal)
	return id, err
}

func (t *saleTx) DeductBatch(ctx context.Context, batchID int64, qty int) (bool, error) {
	if qty < 1 {
		return false, store.ErrInvalid
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE inventory_batches
		SET quantity_remaining = quantity_remaining - $2
		WHERE id = $1 AND quantity_remaining >= $2
	`, batchID, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) GetSale(ctx context.Context, storeID int64, saleID int64) (*domain.Sale, error) {
	var row saleRow
	if err := s.db.GetContext(ctx, &row, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1 AND store_id = $2
	`, saleID, storeID); err != nil {
		return nil, notFound(err)
	}
	sales, err := s.attachSaleChildren(ctx, []saleRow{row})
	if err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	args := []any{filter.StoreID}
	clauses := []string{"store_id = $1"}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		clauses = append(clauses, fmt.Sprintf("sale_date >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		clauses = append(clauses, fmt.Sprintf("sale_date <= $%d", len(args)))
	}
	if filter.Cashier != nil {
		switch filter.Cashier.Kind {
		case domain.ActorManager:
			args = append(args, filter.Cashier.ManagerID)
			clauses = append(clauses, fmt.Sprintf("manager_id = $%d", len(args)))
		case domain.ActorCashier:
			args = append(args, filter.Cashier.CashierID)
			clauses = append(clauses, fmt.Sprintf("cashier_id = $%d", len(args)))
		}
	}

	query := `SELECT ` + saleColumns + ` FROM sales WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY sale_date DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows := make([]saleRow, 0, 32)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return s.attachSaleChildren(ctx, rows)
}

// attachSaleChildren loads items, payments and partial customers for rows in
// three queries.
func (s *Store) attachSaleChildren(ctx context.Context, rows []saleRow) ([]domain.Sale, error) {
	sales := make([]domain.Sale, len(rows))
	if len(rows) == 0 {
		return sales, nil
	}
	ids := make([]int64, len(rows))
	index := make(map[int64]int, len(rows))
	for i, row := range rows {
		sale := row.Sale
		sale.Cashier, _ = actorFromColumns(row.ManagerID, row.CashierID)
		sale.Items = []domain.SaleItem{}
		sale.Payments = []domain.Payment{}
		sales[i] = sale
		ids[i] = sale.ID
		index[sale.ID] = i
	}

	itemsQuery, itemsArgs, err := sqlx.In(`SELECT `+saleItemColumns+` FROM sale_items WHERE sale_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	items := make([]domain.SaleItem, 0, len(ids)*2)
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(itemsQuery), itemsArgs...); err != nil {
		return nil, err
	}
	for _, item := range items {
		i := index[item.SaleID]
		sales[i].Items = append(sales[i].Items, item)
	}

	paymentsQuery, paymentsArgs, err := sqlx.In(`SELECT `+paymentColumns+` FROM payments WHERE sale_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	payments := make([]paymentRow, 0, len(ids))
	if err := s.db.SelectContext(ctx, &payments, s.db.Rebind(paymentsQuery), paymentsArgs...); err != nil {
		return nil, err
	}
	for _, row := range payments {
		payment := row.Payment
		payment.RecordedBy, _ = actorFromColumns(row.ManagerID, row.CashierID)
		i := index[payment.SaleID]
		sales[i].Payments = append(sales[i].Payments, payment)
	}

	partialQuery, partialArgs, err := sqlx.In(`SELECT `+partialColumns+` FROM partial_payment_customers WHERE sale_id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	partials := make([]domain.PartialPaymentCustomer, 0)
	if err := s.db.SelectContext(ctx, &partials, s.db.Rebind(partialQuery), partialArgs...); err != nil {
		return nil, err
	}
	for _, c := range partials {
		customer := c
		sales[index[c.SaleID]].PartialPaymentCustomer = &customer
	}
	return sales, nil
}

func (s *Store) ListPartialCustomers(ctx context.Context, storeID int64, search string) ([]domain.PartialPaymentCustomer, error) {
	customers := make([]domain.PartialPaymentCustomer, 0)
	search = strings.TrimSpace(search)
	err := s.db.SelectContext(ctx, &customers, `
		SELECT `+partialColumns+`
		FROM partial_payment_customers
		WHERE store_id = $1
		  AND ($2 = '' OR customer_name ILIKE '%' || $2 || '%' OR customer_phone ILIKE '%' || $2 || '%' OR customer_cnic ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC, id DESC
		LIMIT 500
	`, storeID, search)
	if err != nil {
		return nil, err
	}
	return customers, nil
}
