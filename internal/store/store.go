package store

import (
	"context"
	"errors"
	"time"

	"gestorbrecho/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
)

// Transactor runs fn inside one unit of work. Repository calls made with the
// ctx passed to fn join that unit; a nested WithinTx reuses it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repository is the persistence surface shared by the postgres and memory
// stores. Every owner-scoped read takes the owner explicitly; rows of another
// owner are reported as ErrNotFound.
type Repository interface {
	Transactor

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context, ownerID string) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, userID string, password string) error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, ownerID, id string) (*domain.Product, error)
	// GetProductForUpdate locks the row until the surrounding transaction ends.
	GetProductForUpdate(ctx context.Context, ownerID, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, ownerID string, filter domain.ProductFilter) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	// CreateSale inserts the header and its Items.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, ownerID, id string) (*domain.Sale, error)
	GetSaleForUpdate(ctx context.Context, ownerID, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, ownerID string, filter domain.SaleFilter) ([]domain.Sale, error)
	UpdateSaleHeader(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	ReplaceSaleItems(ctx context.Context, ownerID, saleID string, items []domain.SaleItem) ([]domain.SaleItem, error)
	DeleteSale(ctx context.Context, ownerID, id string) error

	CreateInstallments(ctx context.Context, installments []domain.Installment) ([]domain.Installment, error)
	GetInstallment(ctx context.Context, ownerID, id string) (*domain.Installment, error)
	ListInstallments(ctx context.Context, ownerID string, filter domain.InstallmentFilter) ([]domain.Installment, error)
	UpdateInstallment(ctx context.Context, installment domain.Installment) (*domain.Installment, error)
	DeleteInstallmentsBySale(ctx context.Context, ownerID, saleID string) error

	CreateReceivable(ctx context.Context, receivable domain.Receivable) (*domain.Receivable, error)
	GetReceivable(ctx context.Context, ownerID, id string) (*domain.Receivable, error)
	GetReceivableForUpdate(ctx context.Context, ownerID, id string) (*domain.Receivable, error)
	GetReceivableBySale(ctx context.Context, ownerID, saleID string) (*domain.Receivable, error)
	ListReceivables(ctx context.Context, ownerID string, filter domain.ReceivableFilter) ([]domain.Receivable, error)
	UpdateReceivable(ctx context.Context, receivable domain.Receivable) (*domain.Receivable, error)
	DeleteReceivable(ctx context.Context, ownerID, id string) error
	// ListDueRecurring scans every owner for recurring templates due by asOf.
	ListDueRecurring(ctx context.Context, asOf time.Time, limit int) ([]domain.Receivable, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	GetExpense(ctx context.Context, ownerID, id string) (*domain.Expense, error)
	GetExpenseForUpdate(ctx context.Context, ownerID, id string) (*domain.Expense, error)
	ListExpenses(ctx context.Context, ownerID string, filter domain.ExpenseFilter) ([]domain.Expense, error)
	UpdateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, ownerID, id string) error

	// UpsertCashDay returns the bucket for (owner, day), creating it with the
	// closing balance of the latest earlier bucket as its opening balance.
	UpsertCashDay(ctx context.Context, ownerID string, day time.Time) (*domain.CashDay, error)
	GetCashDay(ctx context.Context, ownerID string, day time.Time) (*domain.CashDay, error)
	ListCashDays(ctx context.Context, ownerID string, from, to time.Time) ([]domain.CashDay, error)
	// CreateCashEntry inserts the entry and adds its amount to the bucket totals.
	CreateCashEntry(ctx context.Context, entry domain.CashEntry) (*domain.CashEntry, error)
	// DeleteCashEntries removes every entry matching link, subtracts them from
	// their buckets and returns what was removed.
	DeleteCashEntries(ctx context.Context, ownerID string, link domain.EntryLink) ([]domain.CashEntry, error)
	ListCashEntries(ctx context.Context, ownerID string, day time.Time) ([]domain.CashEntry, error)
	ListLinkedCashEntries(ctx context.Context, ownerID string, link domain.EntryLink) ([]domain.CashEntry, error)
	// RebalanceCashDays recomputes opening and closing balances of every
	// bucket on or after from so each opening equals the previous closing.
	RebalanceCashDays(ctx context.Context, ownerID string, from time.Time) error

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, ownerID, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, ownerID string, includeInactive bool) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplier(ctx context.Context, ownerID, id string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context, ownerID string, includeInactive bool) ([]domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)

	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	GetCategory(ctx context.Context, ownerID, id string) (*domain.Category, error)
	ListCategories(ctx context.Context, ownerID string, kind string) ([]domain.Category, error)

	CreatePaymentMethod(ctx context.Context, method domain.PaymentMethod) (*domain.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, ownerID, id string) (*domain.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, ownerID string) ([]domain.PaymentMethod, error)

	CreateCommissionRule(ctx context.Context, rule domain.CommissionRule) (*domain.CommissionRule, error)
	GetCommissionRule(ctx context.Context, ownerID, id string) (*domain.CommissionRule, error)
	ListCommissionRules(ctx context.Context, ownerID string) ([]domain.CommissionRule, error)
	UpdateCommissionRule(ctx context.Context, rule domain.CommissionRule) (*domain.CommissionRule, error)
	// FindActiveCommissionRule matches seller names case-insensitively.
	FindActiveCommissionRule(ctx context.Context, ownerID, sellerName string) (*domain.CommissionRule, error)

	CreateCommission(ctx context.Context, commission domain.Commission) (*domain.Commission, error)
	GetCommission(ctx context.Context, ownerID, id string) (*domain.Commission, error)
	GetCommissionForUpdate(ctx context.Context, ownerID, id string) (*domain.Commission, error)
	ListCommissions(ctx context.Context, ownerID string, filter domain.CommissionFilter) ([]domain.Commission, error)
	UpdateCommission(ctx context.Context, commission domain.Commission) (*domain.Commission, error)
	DeleteCommissionsBySale(ctx context.Context, ownerID, saleID string) error

	// SummarizeFinance aggregates the closed range [from, to] of days.
	SummarizeFinance(ctx context.Context, ownerID string, from, to time.Time) (domain.FinanceSummary, error)
}

// ClampLimit applies the list limit policy shared by both stores.
func ClampLimit(limit int) int {
	if limit < 1 {
		return 100
	}
	if limit > 500 {
		return 500
	}
	return limit
}
