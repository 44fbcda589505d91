package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=4,max=64,excludesall= "`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	OwnerID     string `json:"owner_id"`
	ExpiresAt   string `json:"expires_at"`
}

type StaffCreateRequest struct {
	Username string `json:"username" validate:"required,min=4,max=64,excludesall= "`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type ProductCreateRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	CategoryID  *string `json:"category_id,omitempty"`
	CostCents   int64   `json:"cost_cents" validate:"gte=0"`
	PriceCents  int64   `json:"price_cents" validate:"gte=0"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
}

type ProductUpdateRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	CategoryID  *string `json:"category_id,omitempty"`
	CostCents   *int64  `json:"cost_cents,omitempty" validate:"omitempty,gte=0"`
	PriceCents  *int64  `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
}

type ProductFilter struct {
	Status string
	Search string
	Limit  int
}

type ReserveRequest struct {
	Quantity int    `json:"quantity" validate:"gte=1"`
	Holder   string `json:"holder" validate:"required,max=200"`
}

type CancelReservationRequest struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

type AdjustQuantityRequest struct {
	Quantity int    `json:"quantity" validate:"gte=0"`
	Reason   string `json:"reason" validate:"required,max=500"`
}

type ProductImageResponse struct {
	Product  Product  `json:"product"`
	Warnings []string `json:"warnings,omitempty"`
}

type SaleItemInput struct {
	ProductID      *string `json:"product_id,omitempty"`
	Description    string  `json:"description" validate:"max=500"`
	Quantity       int     `json:"quantity" validate:"gte=1"`
	UnitPriceCents *int64  `json:"unit_price_cents,omitempty" validate:"omitempty,gte=0"`
}

// SaleInput is shared by create and update; an update replaces every field.
type SaleInput struct {
	Date             string          `json:"date" validate:"required"`
	CustomerID       *string         `json:"customer_id,omitempty"`
	PaymentMethodID  string          `json:"payment_method_id" validate:"required"`
	CategoryID       *string         `json:"category_id,omitempty"`
	DiscountCents    int64           `json:"discount_cents" validate:"gte=0"`
	Status           string          `json:"status" validate:"omitempty,oneof=pending paid"`
	InstallmentCount int             `json:"installment_count" validate:"gte=0,lte=48"`
	FirstDueDate     string          `json:"first_due_date,omitempty"`
	SellerName       string          `json:"seller_name" validate:"max=200"`
	Notes            string          `json:"notes" validate:"max=2000"`
	Items            []SaleItemInput `json:"items" validate:"required,min=1,max=200,dive"`
}

type SaleFilter struct {
	From       *time.Time
	To         *time.Time
	Status     string
	CustomerID string
	Limit      int
}

// SaleResult is the committed sale with every derived record. Warnings list
// best-effort side effects that failed after commit.
type SaleResult struct {
	Sale         Sale          `json:"sale"`
	Installments []Installment `json:"installments"`
	Receivable   *Receivable   `json:"receivable,omitempty"`
	CashEntries  []CashEntry   `json:"cash_entries"`
	Commission   *Commission   `json:"commission,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
}

type PaymentRequest struct {
	PaidAt        string `json:"paid_at"`
	PaymentMethod string `json:"payment_method" validate:"required,max=100"`
}

type InstallmentFilter struct {
	Status    string
	SaleID    string
	DueBefore *time.Time
	Limit     int
}

type ReceivableCreateRequest struct {
	Type          string  `json:"type" validate:"required,oneof=service other"`
	Description   string  `json:"description" validate:"required,max=500"`
	AmountCents   int64   `json:"amount_cents" validate:"gt=0"`
	Date          string  `json:"date" validate:"required"`
	CategoryID    *string `json:"category_id,omitempty"`
	Received      bool    `json:"received"`
	PaymentMethod string  `json:"payment_method" validate:"required_if=Received true,max=100"`
	Recurring     bool    `json:"recurring"`
	Recurrence    string  `json:"recurrence" validate:"required_if=Recurring true,omitempty,oneof=weekly monthly yearly"`
}

type ReceivableFilter struct {
	From   *time.Time
	To     *time.Time
	Type   string
	Status string
	Limit  int
}

type ExpenseCreateRequest struct {
	Description   string  `json:"description" validate:"required,max=500"`
	AmountCents   int64   `json:"amount_cents" validate:"gt=0"`
	Date          string  `json:"date" validate:"required"`
	DueDate       string  `json:"due_date,omitempty"`
	CategoryID    *string `json:"category_id,omitempty"`
	SupplierID    *string `json:"supplier_id,omitempty"`
	Paid          bool    `json:"paid"`
	PaymentMethod string  `json:"payment_method" validate:"required_if=Paid true,max=100"`
}

type ExpenseFilter struct {
	From   *time.Time
	To     *time.Time
	Status string
	Limit  int
}

type ContactRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"omitempty,email,max=200"`
	Phone    string `json:"phone" validate:"max=40"`
	Document string `json:"document" validate:"max=40"`
	Notes    string `json:"notes" validate:"max=2000"`
}

type BulkDeactivateRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,required"`
}

type BulkItemResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type BulkResult struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []BulkItemResult `json:"results"`
}

type CategoryCreateRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Kind string `json:"kind" validate:"required,oneof=product income expense"`
}

type PaymentMethodCreateRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type CommissionRuleCreateRequest struct {
	SellerName string          `json:"seller_name" validate:"required,max=200"`
	Percent    decimal.Decimal `json:"percent"`
}

type CommissionFilter struct {
	Status     string
	SellerName string
	SaleID     string
	Limit      int
}

// CashMovementRequest records a manual movement with no linked record, such
// as an owner withdrawal or a till correction.
type CashMovementRequest struct {
	Kind          string `json:"kind" validate:"required,oneof=inflow outflow"`
	AmountCents   int64  `json:"amount_cents" validate:"gt=0"`
	Date          string `json:"date" validate:"required"`
	Description   string `json:"description" validate:"required,max=500"`
	PaymentMethod string `json:"payment_method" validate:"max=100"`
}

type CashDayDetail struct {
	Day     CashDay     `json:"day"`
	Entries []CashEntry `json:"entries"`
}
