package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storepos/backend/internal/apperr"
	"storepos/backend/internal/domain"
	"storepos/backend/internal/store"
	"storepos/backend/internal/xid"
)

const (
	maxPartialCustomers = 20
	// maxLineQuantity is the largest quantity a sale_items row can hold.
	maxLineQuantity = math.MaxInt32
)

var (
	hundred = decimal.NewFromInt(100)
	// maxMoney is the largest value of a NUMERIC(12,2) money column.
	maxMoney = decimal.RequireFromString("9999999999.99")
)

// saleTotals is the priced outcome of a cart before anything is written.
type saleTotals struct {
	Gross          decimal.Decimal
	DiscountType   string
	DiscountValue  decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	Paid           decimal.Decimal
	Due            decimal.Decimal
	Status         string
}

type pricedLine struct {
	line    domain.SaleLine
	product domain.Product
	// batches are the open batches, oldest restock first.
	batches  []domain.InventoryBatch
	price    decimal.Decimal
	cost     decimal.Decimal
	subtotal decimal.Decimal
}

// CreateSale validates the cart, prices it from the newest batch of every
// product, persists the sale with its payment, partial customer and items, and
// depletes stock oldest batch first. Everything runs in one unit of work.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error) {
	started := time.Now()
	sale, err := s.createSale(ctx, req)
	s.metrics.ObserveDuration(time.Since(started))
	if err != nil {
		code := apperr.CodeOf(err)
		s.metrics.IncFailure(string(code))
		if !apperr.IsClientError(err) {
			s.log.Error(ctx, "sale.create_failed", err)
		}
		return nil, err
	}
	s.metrics.IncCreated(sale.PaymentStatus)
	return sale, nil
}

func (s *Service) createSale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	req.StoreID = p.StoreID
	if err := validateSaleRequest(req); err != nil {
		return nil, err
	}

	lines := mergeLines(req.Items)
	now := s.now().UTC()
	ctx = s.log.WithStoreID(ctx, req.StoreID)

	var saleID int64
	var totals saleTotals
	err = s.repo.WithinSaleTx(ctx, func(tx store.SaleTx) error {
		products, err := lockProducts(ctx, tx, req.StoreID, lines)
		if err != nil {
			return err
		}
		priced := make([]pricedLine, 0, len(lines))
		gross := decimal.Zero
		for _, line := range lines {
			pl, err := priceLine(products[line.ProductID], line)
			if err != nil {
				return err
			}
			gross = gross.Add(pl.subtotal)
			priced = append(priced, pl)
		}
		if gross.GreaterThan(maxMoney) {
			return apperr.Newf(apperr.CodeValidation, "Sale total cannot exceed %s", maxMoney.StringFixed(2))
		}

		totals = computeTotals(gross, req.Discount, req.AmountPaid)
		if totals.Status == domain.StatusPartial && !customerComplete(req.PartialPaymentCustomer) {
			return apperr.New(apperr.CodeValidation, "Customer name, CNIC, and phone are required for partial payment")
		}

		saleID, err = tx.InsertSale(ctx, domain.Sale{
			SaleNumber:      xid.SaleNumber(),
			StoreID:         req.StoreID,
			Cashier:         p.ID,
			SaleDescription: strings.TrimSpace(req.SaleDescription),
			Notes:           strings.TrimSpace(req.Notes),
			TotalAmount:     totals.Total,
			DiscountType:    totals.DiscountType,
			DiscountValue:   totals.DiscountValue,
			DiscountAmount:  totals.DiscountAmount,
			PaymentMethod:   req.PaymentMethod,
			PaymentStatus:   totals.Status,
			AmountPaid:      totals.Paid,
			AmountDue:       totals.Due,
			SaleDate:        now,
		})
		if err != nil {
			return stepError("insert_sale", err)
		}

		if totals.Paid.IsPositive() {
			if _, err := tx.InsertPayment(ctx, domain.Payment{
				SaleID:        saleID,
				StoreID:       req.StoreID,
				Amount:        totals.Paid,
				PaymentMethod: req.PaymentMethod,
				PaymentDate:   now,
				RecordedBy:    p.ID,
			}); err != nil {
				return stepError("insert_payment", err)
			}
		}

		if totals.Status == domain.StatusPartial {
			customer := req.PartialPaymentCustomer
			if _, err := tx.InsertPartialCustomer(ctx, domain.PartialPaymentCustomer{
				SaleID:          saleID,
				StoreID:         req.StoreID,
				CustomerName:    strings.TrimSpace(customer.CustomerName),
				CustomerCNIC:    strings.TrimSpace(customer.CustomerCNIC),
				CustomerPhone:   strings.TrimSpace(customer.CustomerPhone),
				TotalAmount:     totals.Total,
				AmountPaid:      totals.Paid,
				AmountRemaining: totals.Total.Sub(totals.Paid),
				CreatedAt:       now,
			}); err != nil {
				return stepError("insert_partial_customer", err)
			}
		}

		for _, pl := range priced {
			if _, err := tx.InsertSaleItem(ctx, domain.SaleItem{
				SaleID:            saleID,
				ProductID:         pl.product.ID,
				ProductSKU:        pl.product.SKU,
				ProductName:       pl.product.Name,
				Quantity:          pl.line.Quantity,
				UnitPrice:         pl.price,
				CostPriceSnapshot: pl.cost,
				Subtotal:          pl.subtotal,
			}); err != nil {
				return stepError("insert_sale_item", err)
			}
			if err := depleteFIFO(ctx, tx, pl); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if appErr := apperr.As(err); appErr != nil {
			return nil, appErr
		}
		return nil, stepError("commit", err)
	}

	sale, err := s.repo.GetSale(ctx, req.StoreID, saleID)
	if err != nil {
		return nil, stepError("read_back", err)
	}
	s.enrichSales(ctx, []*domain.Sale{sale})

	s.logAudit(ctx, req.StoreID, "sale_create", "sale", strconv.FormatInt(sale.ID, 10),
		fmt.Sprintf("number=%s,total=%s,status=%s,items=%d", sale.SaleNumber, sale.TotalAmount.StringFixed(2), sale.PaymentStatus, len(sale.Items)))
	s.invalidateStats(ctx, req.StoreID)
	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"sale_number":    sale.SaleNumber,
		"payment_status": sale.PaymentStatus,
		"total":          sale.TotalAmount.StringFixed(2),
	}), "sale.created")

	return sale, nil
}

func validateSaleRequest(req domain.SaleRequest) error {
	if len(req.Items) == 0 {
		return apperr.New(apperr.CodeEmptyCart, "Cart is empty")
	}
	if req.StoreID <= 0 {
		return apperr.New(apperr.CodeValidation, "Store ID is required")
	}
	if !domain.ValidPaymentMethod(req.PaymentMethod) {
		return apperr.Newf(apperr.CodeInvalidPaymentMethod, "Invalid payment method %q", req.PaymentMethod)
	}
	for i, item := range req.Items {
		if item.ProductID <= 0 {
			return apperr.Newf(apperr.CodeValidation, "items[%d]: product_id is required", i)
		}
		if item.Quantity < 1 {
			return apperr.Newf(apperr.CodeValidation, "items[%d]: quantity must be at least 1", i)
		}
		if item.Quantity > maxLineQuantity {
			return apperr.Newf(apperr.CodeValidation, "items[%d]: quantity cannot exceed %d", i, maxLineQuantity)
		}
	}
	// Each line is already bounded, so the int64 sums cannot wrap.
	merged := make(map[int64]int64, len(req.Items))
	for _, item := range req.Items {
		merged[item.ProductID] += int64(item.Quantity)
		if merged[item.ProductID] > maxLineQuantity {
			return apperr.Newf(apperr.CodeValidation, "product %d: total quantity cannot exceed %d", item.ProductID, maxLineQuantity).
				WithDetail("product_id", item.ProductID)
		}
	}
	if req.AmountPaid.IsNegative() {
		return apperr.New(apperr.CodeValidation, "amount_paid cannot be negative")
	}
	if req.AmountPaid.GreaterThan(maxMoney) {
		return apperr.Newf(apperr.CodeValidation, "amount_paid cannot exceed %s", maxMoney.StringFixed(2))
	}
	if d := req.Discount; d != nil {
		switch d.Type {
		case "", domain.DiscountNone, domain.DiscountPercentage, domain.DiscountAmount:
		default:
			return apperr.Newf(apperr.CodeValidation, "unknown discount type %q", d.Type)
		}
		if d.Value.IsNegative() {
			return apperr.New(apperr.CodeValidation, "discount value cannot be negative")
		}
		if d.Type == domain.DiscountPercentage && d.Value.GreaterThan(hundred) {
			return apperr.New(apperr.CodeValidation, "percentage discount cannot exceed 100")
		}
		if d.Value.GreaterThan(maxMoney) {
			return apperr.Newf(apperr.CodeValidation, "discount value cannot exceed %s", maxMoney.StringFixed(2))
		}
	}
	return nil
}

// mergeLines folds repeated products into one line; the first occurrence
// keeps its position.
func mergeLines(items []domain.SaleLine) []domain.SaleLine {
	merged := make([]domain.SaleLine, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// lockProducts loads every product of the cart in ascending id order, so two
// carts naming the same products always take their row locks in the same
// order. Unknown products map to nil and are reported in cart order by
// priceLine.
func lockProducts(ctx context.Context, tx store.SaleTx, storeID int64, lines []domain.SaleLine) (map[int64]*domain.ProductForSale, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)

	products := make(map[int64]*domain.ProductForSale, len(ids))
	for _, id := range ids {
		product, err := tx.LoadProductForSale(ctx, storeID, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				products[id] = nil
				continue
			}
			return nil, stepError("load_product", err)
		}
		products[id] = product
	}
	return products, nil
}

func priceLine(product *domain.ProductForSale, line domain.SaleLine) (pricedLine, error) {
	if product == nil || !product.Product.IsActive {
		return pricedLine{}, productNotFound(line.ProductID)
	}

	available := 0
	for _, b := range product.Batches {
		available += b.QuantityRemaining
	}
	if available < line.Quantity {
		return pricedLine{}, insufficientStock(product.Product, available, line.Quantity)
	}

	newest := newestBatch(product.Batches)
	qty := decimal.NewFromInt(int64(line.Quantity))
	return pricedLine{
		line:     line,
		product:  product.Product,
		batches:  product.Batches,
		price:    newest.SellingPrice,
		cost:     newest.CostPrice,
		subtotal: newest.SellingPrice.Mul(qty),
	}, nil
}

// newestBatch is the batch prices are taken from: latest restock, ties broken
// by the highest id. batches must not be empty.
func newestBatch(batches []domain.InventoryBatch) domain.InventoryBatch {
	newest := batches[0]
	for _, b := range batches[1:] {
		if b.RestockDate.After(newest.RestockDate) || (b.RestockDate.Equal(newest.RestockDate) && b.ID > newest.ID) {
			newest = b
		}
	}
	return newest
}

// depleteFIFO takes the line quantity from the oldest batches first. A batch
// whose conditional decrement is refused is skipped.
func depleteFIFO(ctx context.Context, tx store.SaleTx, pl pricedLine) error {
	remaining := pl.line.Quantity
	for _, b := range pl.batches {
		if remaining == 0 {
			break
		}
		take := min(b.QuantityRemaining, remaining)
		if take <= 0 {
			continue
		}
		ok, err := tx.DeductBatch(ctx, b.ID, take)
		if err != nil {
			return stepError("deplete_batch", err)
		}
		if !ok {
			continue
		}
		remaining -= take
	}
	if remaining > 0 {
		return insufficientStock(pl.product, pl.line.Quantity-remaining, pl.line.Quantity)
	}
	return nil
}

func computeTotals(gross decimal.Decimal, discount *domain.DiscountSpec, paid decimal.Decimal) saleTotals {
	t := saleTotals{
		Gross:          gross,
		DiscountType:   domain.DiscountNone,
		DiscountValue:  decimal.Zero,
		DiscountAmount: decimal.Zero,
		Paid:           paid.Round(2),
	}

	if discount != nil && discount.Value.IsPositive() {
		switch discount.Type {
		case domain.DiscountPercentage:
			t.DiscountType = domain.DiscountPercentage
			t.DiscountValue = discount.Value
			t.DiscountAmount = gross.Mul(discount.Value).Div(hundred).Round(2)
		case domain.DiscountAmount:
			t.DiscountType = domain.DiscountAmount
			t.DiscountValue = discount.Value
			t.DiscountAmount = decimal.Min(discount.Value, gross).Round(2)
		}
	}

	t.Total = gross.Sub(t.DiscountAmount)
	due := t.Total.Sub(t.Paid)
	switch {
	case !due.IsPositive():
		t.Status = domain.StatusPaid
		t.Due = decimal.Zero
	case t.Paid.IsPositive():
		t.Status = domain.StatusPartial
		t.Due = due
	default:
		t.Status = domain.StatusPending
		t.Due = due
	}
	return t
}

func customerComplete(c *domain.PartialCustomerInput) bool {
	return c != nil &&
		strings.TrimSpace(c.CustomerName) != "" &&
		strings.TrimSpace(c.CustomerCNIC) != "" &&
		strings.TrimSpace(c.CustomerPhone) != ""
}

func productNotFound(productID int64) error {
	return apperr.Newf(apperr.CodeProductNotFound, "Product %d not found", productID).
		WithDetail("product_id", productID)
}

func insufficientStock(product domain.Product, available int, requested int) error {
	return apperr.Newf(apperr.CodeInsufficientStock, "Insufficient stock for %s. Available: %d", product.Name, available).
		WithDetails(map[string]any{
			"product_id": product.ID,
			"available":  available,
			"requested":  requested,
		})
}

func stepError(step string, err error) error {
	return apperr.Wrap(apperr.CodeCreateSale, err, "Failed to create sale at step "+step).
		WithDetail("step", step)
}

func (s *Service) GetSale(ctx context.Context, saleID int64) (*domain.Sale, error) {
	p, err := storePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	sale, err := s.repo.GetSale(ctx, p.StoreID, saleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "Sale not found")
		}
		return nil, apperr.Wrap(apperr.CodeFetchSales, err, "Failed to fetch sale")
	}
	s.enrichSales(ctx, []*domain.Sale{sale})
	return sale, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	p, err := storePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	filter.StoreID = p.StoreID
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, apperr.New(apperr.CodeValidation, "end_date must not be before start_date")
	}

	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeFetchSales, err, "Failed to fetch sales")
	}
	refs := make([]*domain.Sale, len(sales))
	for i := range sales {
		refs[i] = &sales[i]
	}
	s.enrichSales(ctx, refs)
	return sales, nil
}

// enrichSales fills cashier_name and recorded_by_name in place.
func (s *Service) enrichSales(ctx context.Context, sales []*domain.Sale) {
	seen := make(map[domain.ActorID]struct{})
	actors := make([]domain.ActorID, 0, len(sales))
	add := func(actor domain.ActorID) {
		if !actor.Valid() {
			return
		}
		if _, ok := seen[actor]; ok {
			return
		}
		seen[actor] = struct{}{}
		actors = append(actors, actor)
	}
	for _, sale := range sales {
		add(sale.Cashier)
		for _, payment := range sale.Payments {
			add(payment.RecordedBy)
		}
	}

	names := s.resolveNames(ctx, actors)
	for _, sale := range sales {
		sale.CashierName = nameOrUnknown(names, sale.Cashier)
		for i := range sale.Payments {
			sale.Payments[i].RecordedByName = nameOrUnknown(names, sale.Payments[i].RecordedBy)
		}
	}
}

// ListPartialCustomers returns the most recent partial-payment customers of
// the store, one entry per name.
func (s *Service) ListPartialCustomers(ctx context.Context, search string) ([]domain.PartialPaymentCustomer, error) {
	p, err := storePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := s.repo.ListPartialCustomers(ctx, p.StoreID, strings.TrimSpace(search))
	if err != nil {
		return nil, translate(err, "partial payment customers")
	}

	seen := make(map[string]struct{}, len(customers))
	result := make([]domain.PartialPaymentCustomer, 0, maxPartialCustomers)
	for _, c := range customers {
		key := strings.ToLower(strings.TrimSpace(c.CustomerName))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, c)
		if len(result) == maxPartialCustomers {
			break
		}
	}
	return result, nil
}
