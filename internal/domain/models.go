package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	PaymentCash    = "Cash"
	PaymentDigital = "Digital"

	StatusPaid    = "Paid"
	StatusPartial = "Partial"
	StatusPending = "Pending"

	DiscountNone       = "none"
	DiscountPercentage = "percentage"
	DiscountAmount     = "amount"

	JoinPending  = "pending"
	JoinApproved = "approved"
	JoinRejected = "rejected"

	DefaultLowStockThreshold = 10
)

func ValidPaymentMethod(method string) bool {
	return method == PaymentCash || method == PaymentDigital
}

type Store struct {
	ID        int64     `json:"id" db:"id"`
	StoreCode string    `json:"store_code" db:"store_code"`
	StoreName string    `json:"store_name" db:"store_name"`
	CreatedBy uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Manager struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	FullName     string    `json:"full_name" db:"full_name"`
	PhoneNumber  string    `json:"phone_number" db:"phone_number"`
	PasswordHash string    `json:"-" db:"password_hash"`
	StoreID      *int64    `json:"store_id,omitempty" db:"store_id"`
	StoreName    string    `json:"store_name,omitempty" db:"store_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type CashierAccount struct {
	ID           int64     `json:"id" db:"id"`
	FullName     string    `json:"full_name" db:"full_name"`
	PhoneNumber  string    `json:"phone_number" db:"phone_number"`
	PasswordHash string    `json:"-" db:"password_hash"`
	StoreID      *int64    `json:"store_id,omitempty" db:"store_id"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type JoinRequest struct {
	ID          int64      `json:"id" db:"id"`
	StoreID     int64      `json:"store_id" db:"store_id"`
	UserKind    ActorKind  `json:"user_kind" db:"user_kind"`
	UserID      string     `json:"user_id" db:"user_id"`
	UserName    string     `json:"user_name" db:"user_name"`
	UserPhone   string     `json:"user_phone" db:"user_phone"`
	UserEmail   string     `json:"user_email,omitempty" db:"user_email"`
	Status      string     `json:"status" db:"status"`
	RequestedAt time.Time  `json:"requested_at" db:"requested_at"`
	ReviewedBy  *uuid.UUID `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
}

// StoreUser is one row of the store's staff list.
type StoreUser struct {
	Actor       ActorID `json:"actor"`
	FullName    string  `json:"full_name"`
	PhoneNumber string  `json:"phone_number"`
	Email       string  `json:"email,omitempty"`
	Role        string  `json:"role"`
}

type Product struct {
	ID          int64     `json:"id" db:"id"`
	StoreID     int64     `json:"store_id" db:"store_id"`
	SKU         string    `json:"sku" db:"sku"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type InventoryBatch struct {
	ID                int64           `json:"id" db:"id"`
	ProductID         int64           `json:"product_id" db:"product_id"`
	StoreID           int64           `json:"store_id" db:"store_id"`
	CostPrice         decimal.Decimal `json:"cost_price" db:"cost_price"`
	SellingPrice      decimal.Decimal `json:"selling_price" db:"selling_price"`
	QuantityAdded     int             `json:"quantity_added" db:"quantity_added"`
	QuantityRemaining int             `json:"quantity_remaining" db:"quantity_remaining"`
	LowStockThreshold int             `json:"low_stock_threshold" db:"low_stock_threshold"`
	BatchNumber       string          `json:"batch_number" db:"batch_number"`
	RestockDate       time.Time       `json:"restock_date" db:"restock_date"`
	Notes             string          `json:"notes" db:"notes"`
}

// ProductDetail is a product with its batches and the figures derived from them.
// Price, cost and threshold come from the most recently restocked batch.
type ProductDetail struct {
	Product
	Stock             int              `json:"stock"`
	Price             decimal.Decimal  `json:"price"`
	CostPrice         decimal.Decimal  `json:"cost_price"`
	LowStockThreshold int              `json:"low_stock_threshold"`
	IsLowStock        bool             `json:"is_low_stock"`
	Batches           []InventoryBatch `json:"batches,omitempty"`
}

// ProductForSale is what the sale processor reads under lock: the product and
// its open batches (quantity_remaining > 0) ordered oldest restock first.
type ProductForSale struct {
	Product Product
	Batches []InventoryBatch
}

type Sale struct {
	ID                     int64                   `json:"id" db:"id"`
	SaleNumber             string                  `json:"sale_number" db:"sale_number"`
	StoreID                int64                   `json:"store_id" db:"store_id"`
	Cashier                ActorID                 `json:"cashier" db:"-"`
	CashierName            string                  `json:"cashier_name" db:"-"`
	SaleDescription        string                  `json:"sale_description" db:"sale_description"`
	Notes                  string                  `json:"notes" db:"notes"`
	TotalAmount            decimal.Decimal         `json:"total_amount" db:"total_amount"`
	DiscountType           string                  `json:"discount_type" db:"discount_type"`
	DiscountValue          decimal.Decimal         `json:"discount_value" db:"discount_value"`
	DiscountAmount         decimal.Decimal         `json:"discount_amount" db:"discount_amount"`
	PaymentMethod          string                  `json:"payment_method" db:"payment_method"`
	PaymentStatus          string                  `json:"payment_status" db:"payment_status"`
	AmountPaid             decimal.Decimal         `json:"amount_paid" db:"amount_paid"`
	AmountDue              decimal.Decimal         `json:"amount_due" db:"amount_due"`
	SaleDate               time.Time               `json:"sale_date" db:"sale_date"`
	Items                  []SaleItem              `json:"items" db:"-"`
	Payments               []Payment               `json:"payments" db:"-"`
	PartialPaymentCustomer *PartialPaymentCustomer `json:"partial_payment_customer,omitempty" db:"-"`
}

type SaleItem struct {
	ID                int64           `json:"id" db:"id"`
	SaleID            int64           `json:"sale_id" db:"sale_id"`
	ProductID         int64           `json:"product_id" db:"product_id"`
	ProductSKU        string          `json:"product_sku" db:"product_sku"`
	ProductName       string          `json:"product_name" db:"product_name"`
	Quantity          int             `json:"quantity" db:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price" db:"unit_price"`
	CostPriceSnapshot decimal.Decimal `json:"cost_price_snapshot" db:"cost_price_snapshot"`
	Subtotal          decimal.Decimal `json:"subtotal" db:"subtotal"`
}

type Payment struct {
	ID             int64           `json:"id" db:"id"`
	SaleID         int64           `json:"sale_id" db:"sale_id"`
	StoreID        int64           `json:"store_id" db:"store_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	PaymentMethod  string          `json:"payment_method" db:"payment_method"`
	PaymentDate    time.Time       `json:"payment_date" db:"payment_date"`
	RecordedBy     ActorID         `json:"recorded_by" db:"-"`
	RecordedByName string          `json:"recorded_by_name" db:"-"`
}

type PartialPaymentCustomer struct {
	ID              int64           `json:"id" db:"id"`
	SaleID          int64           `json:"sale_id" db:"sale_id"`
	StoreID         int64           `json:"store_id" db:"store_id"`
	CustomerName    string          `json:"customer_name" db:"customer_name"`
	CustomerCNIC    string          `json:"customer_cnic" db:"customer_cnic"`
	CustomerPhone   string          `json:"customer_phone" db:"customer_phone"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	AmountPaid      decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	AmountRemaining decimal.Decimal `json:"amount_remaining" db:"amount_remaining"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

type Expense struct {
	ID             int64           `json:"id" db:"id"`
	StoreID        int64           `json:"store_id" db:"store_id"`
	Description    string          `json:"description" db:"description"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Category       string          `json:"category" db:"category"`
	ExpenseDate    time.Time       `json:"expense_date" db:"expense_date"`
	RecordedBy     *ActorID        `json:"recorded_by,omitempty" db:"-"`
	RecordedByName string          `json:"recorded_by_name" db:"-"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

type AuditLog struct {
	ID         int64     `json:"id" db:"id"`
	StoreID    int64     `json:"store_id" db:"store_id"`
	Actor      string    `json:"actor" db:"actor"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	Detail     string    `json:"detail" db:"detail"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type CountAmount struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

type TopProduct struct {
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type TrendPoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Count   int             `json:"count"`
}

type DashboardStats struct {
	TodaySales         CountAmount     `json:"today_sales"`
	MonthSales         CountAmount     `json:"month_sales"`
	TodayExpenses      decimal.Decimal `json:"today_expenses"`
	MonthExpenses      decimal.Decimal `json:"month_expenses"`
	ExpensesByCategory []CategoryTotal `json:"expenses_by_category"`
	NetProfit          decimal.Decimal `json:"net_profit"`
	LowStockCount      int             `json:"low_stock_count"`
	LowStockProducts   []ProductDetail `json:"low_stock_products"`
	RecentSales        []Sale          `json:"recent_sales"`
	TopProducts        []TopProduct    `json:"top_products"`
	SalesTrend         []TrendPoint    `json:"sales_trend"`
	GeneratedAt        time.Time       `json:"generated_at"`
}
