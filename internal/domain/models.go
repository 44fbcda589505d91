package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	ProductAvailable = "available"
	ProductReserved  = "reserved"
	ProductSold      = "sold"
	ProductInactive  = "inactive"
)

const (
	SalePending   = "pending"
	SalePaid      = "paid"
	SaleCancelled = "cancelled"
)

const (
	InstallmentPending   = "pending"
	InstallmentPaid      = "paid"
	InstallmentCancelled = "cancelled"
)

const (
	ReceivableSale    = "sale"
	ReceivableService = "service"
	ReceivableOther   = "other"

	ReceivablePending  = "pending"
	ReceivableReceived = "received"
)

const (
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
	RecurrenceYearly  = "yearly"
)

const (
	ExpensePending = "pending"
	ExpensePaid    = "paid"
)

const (
	EntryInflow  = "inflow"
	EntryOutflow = "outflow"
)

const (
	CategoryProduct = "product"
	CategoryIncome  = "income"
	CategoryExpense = "expense"
)

const (
	CommissionPending = "pending"
	CommissionPaid    = "paid"
)

// Actor is the authenticated caller. OwnerID scopes every read and write.
type Actor struct {
	UserID   string
	OwnerID  string
	Username string
	Role     string
}

type UserAccount struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"`
	Role      string    `json:"role" db:"role"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Product struct {
	ID               string    `json:"id" db:"id"`
	OwnerID          string    `json:"owner_id" db:"owner_id"`
	Name             string    `json:"name" db:"name"`
	Description      string    `json:"description" db:"description"`
	CategoryID       *string   `json:"category_id,omitempty" db:"category_id"`
	CostCents        int64     `json:"cost_cents" db:"cost_cents"`
	PriceCents       int64     `json:"price_cents" db:"price_cents"`
	Quantity         int       `json:"quantity" db:"quantity"`
	ReservedQuantity int       `json:"reserved_quantity" db:"reserved_quantity"`
	Status           string    `json:"status" db:"status"`
	ImageURL         string    `json:"image_url" db:"image_url"`
	Notes            string    `json:"notes" db:"notes"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

type Sale struct {
	ID               string     `json:"id" db:"id"`
	OwnerID          string     `json:"owner_id" db:"owner_id"`
	Date             time.Time  `json:"date" db:"sale_date"`
	CustomerID       *string    `json:"customer_id,omitempty" db:"customer_id"`
	PaymentMethodID  string     `json:"payment_method_id" db:"payment_method_id"`
	PaymentMethod    string     `json:"payment_method" db:"payment_method"`
	CategoryID       *string    `json:"category_id,omitempty" db:"category_id"`
	DiscountCents    int64      `json:"discount_cents" db:"discount_cents"`
	TotalCents       int64      `json:"total_cents" db:"total_cents"`
	Status           string     `json:"status" db:"status"`
	InstallmentCount int        `json:"installment_count" db:"installment_count"`
	FirstDueDate     *time.Time `json:"first_due_date,omitempty" db:"first_due_date"`
	SellerName       string     `json:"seller_name" db:"seller_name"`
	Notes            string     `json:"notes" db:"notes"`
	CreatedBy        string     `json:"created_by" db:"created_by"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	Items            []SaleItem `json:"items" db:"-"`
}

type SaleItem struct {
	ID             string  `json:"id" db:"id"`
	SaleID         string  `json:"sale_id" db:"sale_id"`
	OwnerID        string  `json:"-" db:"owner_id"`
	ProductID      *string `json:"product_id,omitempty" db:"product_id"`
	Description    string  `json:"description" db:"description"`
	Quantity       int     `json:"quantity" db:"quantity"`
	UnitPriceCents int64   `json:"unit_price_cents" db:"unit_price_cents"`
	SubtotalCents  int64   `json:"subtotal_cents" db:"subtotal_cents"`
}

type Installment struct {
	ID            string     `json:"id" db:"id"`
	OwnerID       string     `json:"owner_id" db:"owner_id"`
	SaleID        string     `json:"sale_id" db:"sale_id"`
	CustomerID    *string    `json:"customer_id,omitempty" db:"customer_id"`
	Number        int        `json:"number" db:"number"`
	AmountCents   int64      `json:"amount_cents" db:"amount_cents"`
	DueDate       time.Time  `json:"due_date" db:"due_date"`
	Status        string     `json:"status" db:"status"`
	PaidAt        *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	PaymentMethod string     `json:"payment_method" db:"payment_method"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Receivable is an income record. Records of type "sale" mirror a sale and
// never post to the cash ledger themselves.
type Receivable struct {
	ID             string     `json:"id" db:"id"`
	OwnerID        string     `json:"owner_id" db:"owner_id"`
	Type           string     `json:"type" db:"type"`
	Description    string     `json:"description" db:"description"`
	AmountCents    int64      `json:"amount_cents" db:"amount_cents"`
	Date           time.Time  `json:"date" db:"income_date"`
	Status         string     `json:"status" db:"status"`
	SaleID         *string    `json:"sale_id,omitempty" db:"sale_id"`
	CategoryID     *string    `json:"category_id,omitempty" db:"category_id"`
	ReceivedAt     *time.Time `json:"received_at,omitempty" db:"received_at"`
	PaymentMethod  string     `json:"payment_method" db:"payment_method"`
	Recurring      bool       `json:"recurring" db:"recurring"`
	Recurrence     string     `json:"recurrence,omitempty" db:"recurrence"`
	NextOccurrence *time.Time `json:"next_occurrence,omitempty" db:"next_occurrence"`
	ParentID       *string    `json:"parent_id,omitempty" db:"parent_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

type Expense struct {
	ID            string     `json:"id" db:"id"`
	OwnerID       string     `json:"owner_id" db:"owner_id"`
	Description   string     `json:"description" db:"description"`
	AmountCents   int64      `json:"amount_cents" db:"amount_cents"`
	Date          time.Time  `json:"date" db:"expense_date"`
	DueDate       *time.Time `json:"due_date,omitempty" db:"due_date"`
	CategoryID    *string    `json:"category_id,omitempty" db:"category_id"`
	SupplierID    *string    `json:"supplier_id,omitempty" db:"supplier_id"`
	Status        string     `json:"status" db:"status"`
	PaidAt        *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	PaymentMethod string     `json:"payment_method" db:"payment_method"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// CashDay is the per-owner, per-day ledger bucket.
// ClosingCents always equals OpeningCents + InflowsCents - OutflowsCents.
type CashDay struct {
	ID            string    `json:"id" db:"id"`
	OwnerID       string    `json:"owner_id" db:"owner_id"`
	Day           time.Time `json:"day" db:"day"`
	OpeningCents  int64     `json:"opening_cents" db:"opening_cents"`
	InflowsCents  int64     `json:"inflows_cents" db:"inflows_cents"`
	OutflowsCents int64     `json:"outflows_cents" db:"outflows_cents"`
	ClosingCents  int64     `json:"closing_cents" db:"closing_cents"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type CashEntry struct {
	ID            string    `json:"id" db:"id"`
	OwnerID       string    `json:"owner_id" db:"owner_id"`
	DayID         string    `json:"day_id" db:"day_id"`
	Day           time.Time `json:"day" db:"day"`
	Kind          string    `json:"kind" db:"kind"`
	AmountCents   int64     `json:"amount_cents" db:"amount_cents"`
	Description   string    `json:"description" db:"description"`
	PaymentMethod string    `json:"payment_method" db:"payment_method"`
	SaleID        *string   `json:"sale_id,omitempty" db:"sale_id"`
	ReceivableID  *string   `json:"receivable_id,omitempty" db:"receivable_id"`
	ExpenseID     *string   `json:"expense_id,omitempty" db:"expense_id"`
	InstallmentID *string   `json:"installment_id,omitempty" db:"installment_id"`
	CreatedBy     string    `json:"created_by" db:"created_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// EntryLink names the single record a cash entry belongs to.
type EntryLink struct {
	SaleID        string
	ReceivableID  string
	ExpenseID     string
	InstallmentID string
}

// Count returns how many link fields are set.
func (l EntryLink) Count() int {
	n := 0
	for _, v := range []string{l.SaleID, l.ReceivableID, l.ExpenseID, l.InstallmentID} {
		if v != "" {
			n++
		}
	}
	return n
}

// Matches reports whether e is linked to the record named by l.
func (l EntryLink) Matches(e CashEntry) bool {
	switch {
	case l.SaleID != "":
		return e.SaleID != nil && *e.SaleID == l.SaleID
	case l.ReceivableID != "":
		return e.ReceivableID != nil && *e.ReceivableID == l.ReceivableID
	case l.ExpenseID != "":
		return e.ExpenseID != nil && *e.ExpenseID == l.ExpenseID
	case l.InstallmentID != "":
		return e.InstallmentID != nil && *e.InstallmentID == l.InstallmentID
	}
	return false
}

// Apply copies the link onto an entry.
func (l EntryLink) Apply(e *CashEntry) {
	e.SaleID = optional(l.SaleID)
	e.ReceivableID = optional(l.ReceivableID)
	e.ExpenseID = optional(l.ExpenseID)
	e.InstallmentID = optional(l.InstallmentID)
}

type Customer struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	Document  string    `json:"document" db:"document"`
	Notes     string    `json:"notes" db:"notes"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Supplier struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	Document  string    `json:"document" db:"document"`
	Notes     string    `json:"notes" db:"notes"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Category struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	Kind      string    `json:"kind" db:"kind"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type PaymentMethod struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CommissionRule struct {
	ID         string          `json:"id" db:"id"`
	OwnerID    string          `json:"owner_id" db:"owner_id"`
	SellerName string          `json:"seller_name" db:"seller_name"`
	Percent    decimal.Decimal `json:"percent" db:"percent"`
	Active     bool            `json:"active" db:"active"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

type Commission struct {
	ID          string          `json:"id" db:"id"`
	OwnerID     string          `json:"owner_id" db:"owner_id"`
	SaleID      string          `json:"sale_id" db:"sale_id"`
	RuleID      string          `json:"rule_id" db:"rule_id"`
	SellerName  string          `json:"seller_name" db:"seller_name"`
	BaseCents   int64           `json:"base_cents" db:"base_cents"`
	Percent     decimal.Decimal `json:"percent" db:"percent"`
	AmountCents int64           `json:"amount_cents" db:"amount_cents"`
	Status      string          `json:"status" db:"status"`
	PaidAt      *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type PaymentBreakdown struct {
	PaymentMethod string `json:"payment_method"`
	Sales         int    `json:"sales"`
	TotalCents    int64  `json:"total_cents"`
}

type FinanceSummary struct {
	OwnerID           string             `json:"owner_id"`
	From              string             `json:"from"`
	To                string             `json:"to"`
	SalesCount        int                `json:"sales_count"`
	SalesTotalCents   int64              `json:"sales_total_cents"`
	ByPaymentMethod   []PaymentBreakdown `json:"by_payment_method"`
	IncomesByType     map[string]int64   `json:"incomes_by_type"`
	ExpensesPaidCents int64              `json:"expenses_paid_cents"`
	CashInflowsCents  int64              `json:"cash_inflows_cents"`
	CashOutflowsCents int64              `json:"cash_outflows_cents"`
	ClosingCents      int64              `json:"closing_cents"`
	NetCents          int64              `json:"net_cents"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
