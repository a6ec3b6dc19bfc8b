package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type DiscountSpec struct {
	Type  string          `json:"type"`
	Value decimal.Decimal `json:"value"`
}

type PartialCustomerInput struct {
	CustomerName  string `json:"customer_name"`
	CustomerCNIC  string `json:"customer_cnic"`
	CustomerPhone string `json:"customer_phone"`
}

// SaleRequest is checked by the sale processor itself rather than by struct
// tags: its failure codes have a fixed precedence.
type SaleRequest struct {
	StoreID                int64                 `json:"-"`
	Items                  []SaleLine            `json:"items"`
	PaymentMethod          string                `json:"payment_method"`
	AmountPaid             decimal.Decimal       `json:"amount_paid"`
	Discount               *DiscountSpec         `json:"discount,omitempty"`
	SaleDescription        string                `json:"sale_description"`
	Notes                  string                `json:"notes"`
	PartialPaymentCustomer *PartialCustomerInput `json:"partial_payment_customer,omitempty"`
}

type SaleFilter struct {
	StoreID   int64
	StartDate *time.Time
	EndDate   *time.Time
	Cashier   *ActorID
	Limit     int
}

type ManagerSignupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	FullName    string `json:"full_name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Action      string `json:"action" validate:"required,oneof=create join"`
	StoreName   string `json:"store_name" validate:"required_if=Action create"`
	StoreCode   string `json:"store_code" validate:"required_if=Action join"`
}

type ManagerSignupResponse struct {
	Manager   Manager `json:"manager"`
	StoreCode string  `json:"store_code,omitempty"`
	Pending   bool    `json:"pending"`
}

type CashierSignupRequest struct {
	FullName    string `json:"full_name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Password    string `json:"password" validate:"required"`
	StoreCode   string `json:"store_code" validate:"required"`
}

type LoginRequest struct {
	Kind       ActorKind `json:"kind" validate:"required,oneof=manager cashier"`
	Identifier string    `json:"identifier" validate:"required"`
	Password   string    `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresAt   string  `json:"expires_at"`
	Actor       ActorID `json:"actor"`
	Name        string  `json:"name"`
	StoreID     *int64  `json:"store_id,omitempty"`
}

type LookupManagerRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

type SessionResponse struct {
	Actor     ActorID `json:"actor"`
	Name      string  `json:"name"`
	StoreID   *int64  `json:"store_id,omitempty"`
	StoreName string  `json:"store_name,omitempty"`
}

type JoinRequestReview struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

type ProductCreateRequest struct {
	Name              string          `json:"name" validate:"required"`
	SKU               string          `json:"sku"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	StockQuantity     int             `json:"stock_quantity" validate:"min=0"`
	LowStockThreshold *int            `json:"low_stock_threshold,omitempty" validate:"omitempty,min=0"`
}

type ProductUpdateRequest struct {
	Name              *string          `json:"name,omitempty"`
	SKU               *string          `json:"sku,omitempty"`
	Description       *string          `json:"description,omitempty"`
	Category          *string          `json:"category,omitempty"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	CostPrice         *decimal.Decimal `json:"cost_price,omitempty"`
	StockQuantity     *int             `json:"stock_quantity,omitempty" validate:"omitempty,min=0"`
	LowStockThreshold *int             `json:"low_stock_threshold,omitempty" validate:"omitempty,min=0"`
	IsActive          *bool            `json:"is_active,omitempty"`
}

type RestockRequest struct {
	CostPrice         decimal.Decimal `json:"cost_price"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	QuantityAdded     int             `json:"quantity_added" validate:"gt=0"`
	LowStockThreshold *int            `json:"low_stock_threshold,omitempty" validate:"omitempty,min=0"`
	BatchNumber       string          `json:"batch_number"`
	Notes             string          `json:"notes"`
}

type ProductFilter struct {
	StoreID  int64
	Search   string
	Category string
	LowStock bool
}

type NextSKUResponse struct {
	SKU       string `json:"sku"`
	StoreCode string `json:"store_code"`
	Sequence  int    `json:"sequence"`
}

type ExpenseCreateRequest struct {
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category" validate:"required"`
	ExpenseDate string          `json:"expense_date" validate:"required,datetime=2006-01-02"`
}
