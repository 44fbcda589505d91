package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestorbrecho/backend/internal/apperror"
	"gestorbrecho/backend/internal/cache"
	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/logger"
	"gestorbrecho/backend/internal/objectstore"
	"gestorbrecho/backend/internal/store"
	"gestorbrecho/backend/internal/store/memory"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	repo    *memory.Store
	ctx     context.Context
	staff   context.Context
	methods map[string]string
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	repo := memory.New()
	return newFixtureWithRepo(t, repo, repo, opts)
}

func newFixtureWithRepo(t *testing.T, mem *memory.Store, repo store.Repository, opts Options) *fixture {
	t.Helper()
	opts.Clock = func() time.Time { return fixedNow }
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	svc := New(repo, opts)

	ctx := WithActor(context.Background(), domain.Actor{UserID: "u-admin", OwnerID: "owner-1", Username: "maria", Role: domain.RoleAdmin})
	staff := WithActor(context.Background(), domain.Actor{UserID: "u-staff", OwnerID: "owner-1", Username: "joana", Role: domain.RoleStaff})
	require.NoError(t, svc.SeedTenant(ctx, "owner-1"))

	methods, err := svc.ListPaymentMethods(ctx)
	require.NoError(t, err)
	byName := make(map[string]string, len(methods))
	for _, m := range methods {
		byName[m.Name] = m.ID
	}
	return &fixture{svc: svc, repo: mem, ctx: ctx, staff: staff, methods: byName}
}

func (f *fixture) product(t *testing.T, name string, qty int, price int64) domain.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{Name: name, Quantity: qty, PriceCents: price})
	require.NoError(t, err)
	return p
}

func (f *fixture) day(t *testing.T, raw string) domain.CashDay {
	t.Helper()
	detail, err := f.svc.GetCashDay(f.ctx, mustDay(t, raw))
	require.NoError(t, err)
	return detail.Day
}

func productLine(id string, qty int) domain.SaleItemInput {
	return domain.SaleItemInput{ProductID: &id, Quantity: qty}
}

func price(cents int64) *int64 { return &cents }

func mustDay(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := domain.ParseDay(raw)
	require.NoError(t, err)
	return d
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestCreateSaleRejectsInsufficientStockWithoutWrites(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.product(t, "Jaqueta jeans", 1, 8000)

	_, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodPIX],
		Items:           []domain.SaleItemInput{productLine(p.ID, 2)},
	})
	requireCode(t, err, apperror.CodeInsufficientStock)

	sales, err := f.svc.ListSales(f.ctx, domain.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)

	after, err := f.svc.GetProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Quantity)
	assert.Equal(t, domain.ProductAvailable, after.Status)

	days, err := f.svc.ListCashDays(f.ctx, mustDay(t, "2026-03-01"), mustDay(t, "2026-03-31"))
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestCreateSaleAggregatesDuplicateProductLines(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.product(t, "Bolsa couro", 3, 12000)

	_, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		Items:           []domain.SaleItemInput{productLine(p.ID, 2), productLine(p.ID, 2)},
	})
	requireCode(t, err, apperror.CodeInsufficientStock)
}

func TestCreateSaleRejectsInactiveProduct(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.product(t, "Casaco", 1, 9000)
	_, err := f.svc.DeactivateProduct(f.ctx, p.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		Items:           []domain.SaleItemInput{productLine(p.ID, 1)},
	})
	requireCode(t, err, apperror.CodeProductUnavailable)
}

func TestCreateSaleWithPIXPostsInflowAndSellsProduct(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.product(t, "Vestido floral", 1, 5000)

	result, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodPIX],
		Items:           []domain.SaleItemInput{productLine(p.ID, 1)},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	assert.Equal(t, int64(5000), result.Sale.TotalCents)
	assert.Equal(t, domain.SalePaid, result.Sale.Status)
	assert.Equal(t, "Vestido floral", result.Sale.Items[0].Description)
	require.NotNil(t, result.Receivable)
	assert.Equal(t, domain.ReceivableSale, result.Receivable.Type)
	assert.Equal(t, domain.ReceivableReceived, result.Receivable.Status)
	require.Len(t, result.CashEntries, 1)
	assert.Equal(t, domain.EntryInflow, result.CashEntries[0].Kind)
	assert.Equal(t, int64(5000), result.CashEntries[0].AmountCents)
	assert.Empty(t, result.Installments)

	sold, err := f.svc.GetProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sold.Quantity)
	assert.Equal(t, domain.ProductSold, sold.Status)
	assert.Contains(t, sold.Notes, "quantity 1 -> 0")

	bucket := f.day(t, "2026-03-10")
	assert.Equal(t, int64(5000), bucket.InflowsCents)
	assert.Equal(t, int64(5000), bucket.ClosingCents)
}

func TestCreateSaleWithCustomMethodStaysPendingUntilConfirmed(t *testing.T) {
	f := newFixture(t, Options{})
	boleto, err := f.svc.CreatePaymentMethod(f.ctx, domain.PaymentMethodCreateRequest{Name: "Boleto"})
	require.NoError(t, err)

	result, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: boleto.ID,
		Items:           []domain.SaleItemInput{{Description: "Ajuste de barra", Quantity: 1, UnitPriceCents: price(2500)}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SalePending, result.Sale.Status)
	assert.Equal(t, domain.ReceivablePending, result.Receivable.Status)
	assert.Empty(t, result.CashEntries)

	confirmed, err := f.svc.ConfirmSalePaid(f.ctx, result.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SalePaid, confirmed.Sale.Status)
	assert.Equal(t, domain.ReceivableReceived, confirmed.Receivable.Status)
	require.Len(t, confirmed.CashEntries, 1)
	assert.Equal(t, int64(2500), f.day(t, "2026-03-10").ClosingCents)

	_, err = f.svc.ConfirmSalePaid(f.ctx, result.Sale.ID)
	requireCode(t, err, apperror.CodeInvalidState)
}

func TestOnCreditSaleSplitsInstallmentsAndSettlesWhenAllPaid(t *testing.T) {
	f := newFixture(t, Options{})

	result, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:             "2026-01-15",
		PaymentMethodID:  f.methods[domain.MethodOnCredit],
		InstallmentCount: 3,
		FirstDueDate:     "2026-01-31",
		Items:            []domain.SaleItemInput{{Description: "Lote de camisetas", Quantity: 1, UnitPriceCents: price(10000)}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SalePending, result.Sale.Status)
	assert.Equal(t, domain.ReceivablePending, result.Receivable.Status)
	assert.Empty(t, result.CashEntries)

	require.Len(t, result.Installments, 3)
	wantAmounts := []int64{3333, 3333, 3334}
	wantDues := []string{"2026-01-31", "2026-02-28", "2026-03-31"}
	for i, inst := range result.Installments {
		assert.Equal(t, i+1, inst.Number)
		assert.Equal(t, wantAmounts[i], inst.AmountCents)
		assert.Equal(t, wantDues[i], domain.FormatDay(inst.DueDate))
	}

	for i, inst := range result.Installments {
		paid, _, err := f.svc.PayInstallment(f.ctx, inst.ID, domain.PaymentRequest{PaidAt: "2026-02-01", PaymentMethod: "pix"})
		require.NoError(t, err)
		assert.Equal(t, domain.InstallmentPaid, paid.Status)
		assert.Equal(t, domain.MethodPIX, paid.PaymentMethod)

		current, err := f.svc.GetSale(f.ctx, result.Sale.ID)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, domain.SalePending, current.Sale.Status)
		} else {
			assert.Equal(t, domain.SalePaid, current.Sale.Status)
			assert.Equal(t, domain.ReceivableReceived, current.Receivable.Status)
		}
	}

	_, _, err = f.svc.PayInstallment(f.ctx, result.Installments[0].ID, domain.PaymentRequest{PaymentMethod: "Cash"})
	requireCode(t, err, apperror.CodeInvalidState)

	bucket := f.day(t, "2026-02-01")
	assert.Equal(t, int64(10000), bucket.InflowsCents)
	assert.Equal(t, int64(10000), bucket.ClosingCents)
}

func TestUpdateSaleMovesLedgerEntryAndRebalancesLaterDays(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.product(t, "Saia midi", 1, 5000)

	created, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodPIX],
		Items:           []domain.SaleItemInput{productLine(p.ID, 1)},
	})
	require.NoError(t, err)

	_, _, err = f.svc.CreateExpense(f.ctx, domain.ExpenseCreateRequest{
		Description: "Sacolas", AmountCents: 1000, Date: "2026-03-11", Paid: true, PaymentMethod: "Dinheiro",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), f.day(t, "2026-03-11").OpeningCents)
	assert.Equal(t, int64(4000), f.day(t, "2026-03-11").ClosingCents)

	updated, err := f.svc.UpdateSale(f.ctx, created.Sale.ID, domain.SaleInput{
		Date:            "2026-03-12",
		PaymentMethodID: f.methods[domain.MethodPIX],
		Items:           []domain.SaleItemInput{productLine(p.ID, 1)},
	})
	require.NoError(t, err)
	require.Len(t, updated.CashEntries, 1)
	assert.Equal(t, "2026-03-12", domain.FormatDay(updated.CashEntries[0].Day))

	day10 := f.day(t, "2026-03-10")
	assert.Equal(t, int64(0), day10.InflowsCents)
	assert.Equal(t, int64(0), day10.ClosingCents)

	day11 := f.day(t, "2026-03-11")
	assert.Equal(t, int64(0), day11.OpeningCents)
	assert.Equal(t, int64(-1000), day11.ClosingCents)

	day12 := f.day(t, "2026-03-12")
	assert.Equal(t, int64(-1000), day12.OpeningCents)
	assert.Equal(t, int64(4000), day12.ClosingCents)

	still, err := f.svc.GetProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, still.Quantity)
}

func TestUpdateSaleSwapsInventoryBetweenProducts(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.product(t, "Blusa A", 1, 3000)
	b := f.product(t, "Blusa B", 1, 3500)

	created, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		Items:           []domain.SaleItemInput{productLine(a.ID, 1)},
	})
	require.NoError(t, err)

	updated, err := f.svc.UpdateSale(f.ctx, created.Sale.ID, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		Items:           []domain.SaleItemInput{productLine(b.ID, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3500), updated.Sale.TotalCents)
	assert.Equal(t, int64(3500), updated.Receivable.AmountCents)

	restored, err := f.svc.GetProduct(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, restored.Quantity)
	assert.Equal(t, domain.ProductAvailable, restored.Status)

	taken, err := f.svc.GetProduct(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductSold, taken.Status)

	assert.Equal(t, int64(3500), f.day(t, "2026-03-10").ClosingCents)
}

func TestUpdateSaleRejectsSaleWithPaidInstallments(t *testing.T) {
	f := newFixture(t, Options{})
	input := domain.SaleInput{
		Date:             "2026-03-01",
		PaymentMethodID:  f.methods[domain.MethodOnCredit],
		InstallmentCount: 2,
		Items:            []domain.SaleItemInput{{Description: "Conjunto", Quantity: 1, UnitPriceCents: price(6000)}},
	}
	created, err := f.svc.CreateSale(f.ctx, input)
	require.NoError(t, err)
	_, _, err = f.svc.PayInstallment(f.ctx, created.Installments[0].ID, domain.PaymentRequest{PaymentMethod: "Cash"})
	require.NoError(t, err)

	_, err = f.svc.UpdateSale(f.ctx, created.Sale.ID, input)
	requireCode(t, err, apperror.CodeBusinessRule)
}

func TestDeleteSaleRestoresStockAndLedger(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.product(t, "Tênis", 2, 7000)

	created, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodDebitCard],
		Items:           []domain.SaleItemInput{productLine(p.ID, 2)},
	})
	require.NoError(t, err)

	_, err = f.svc.DeleteSale(f.staff, created.Sale.ID)
	requireCode(t, err, apperror.CodeForbidden)

	warnings, err := f.svc.DeleteSale(f.ctx, created.Sale.ID)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	_, err = f.svc.GetSale(f.ctx, created.Sale.ID)
	requireCode(t, err, apperror.CodeNotFound)

	restored, err := f.svc.GetProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Quantity)
	assert.Equal(t, domain.ProductAvailable, restored.Status)

	bucket := f.day(t, "2026-03-10")
	assert.Equal(t, int64(0), bucket.InflowsCents)
	assert.Equal(t, int64(0), bucket.ClosingCents)

	receivables, err := f.svc.ListReceivables(f.ctx, domain.ReceivableFilter{Type: domain.ReceivableSale})
	require.NoError(t, err)
	assert.Empty(t, receivables)
}

func TestCancelSaleOnlyFromPending(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.product(t, "Cinto", 1, 2000)

	credit, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:             "2026-03-10",
		PaymentMethodID:  f.methods[domain.MethodOnCredit],
		InstallmentCount: 2,
		Items:            []domain.SaleItemInput{productLine(p.ID, 1)},
	})
	require.NoError(t, err)

	cancelled, err := f.svc.CancelSale(f.ctx, credit.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SaleCancelled, cancelled.Sale.Status)
	require.Len(t, cancelled.Installments, 2)
	for _, inst := range cancelled.Installments {
		assert.Equal(t, domain.InstallmentCancelled, inst.Status)
	}

	back, err := f.svc.GetProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, back.Quantity)
	assert.Equal(t, domain.ProductAvailable, back.Status)

	detail, err := f.svc.GetSale(f.ctx, credit.Sale.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Receivable)

	_, err = f.svc.CancelSale(f.ctx, credit.Sale.ID)
	requireCode(t, err, apperror.CodeInvalidState)

	_, err = f.svc.UpdateSale(f.ctx, credit.Sale.ID, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		Items:           []domain.SaleItemInput{productLine(p.ID, 1)},
	})
	requireCode(t, err, apperror.CodeInvalidState)

	paid, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		Items:           []domain.SaleItemInput{productLine(p.ID, 1)},
	})
	require.NoError(t, err)
	_, err = f.svc.CancelSale(f.ctx, paid.Sale.ID)
	requireCode(t, err, apperror.CodeInvalidState)
}

func TestReserveCancelAndAdjustKeepReservationWithinQuantity(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.product(t, "Vestido de festa", 3, 25000)

	p, err := f.svc.Reserve(f.ctx, p.ID, domain.ReserveRequest{Quantity: 2, Holder: "Joana"})
	require.NoError(t, err)
	assert.Equal(t, 2, p.ReservedQuantity)
	assert.Equal(t, domain.ProductAvailable, p.Status)
	assert.Contains(t, p.Notes, "reserved 2 for Joana")

	p, err = f.svc.Reserve(f.ctx, p.ID, domain.ReserveRequest{Quantity: 1, Holder: "Carla"})
	require.NoError(t, err)
	assert.Equal(t, domain.ProductReserved, p.Status)

	_, err = f.svc.Reserve(f.ctx, p.ID, domain.ReserveRequest{Quantity: 1, Holder: "Bia"})
	requireCode(t, err, apperror.CodeProductUnavailable)

	_, err = f.svc.AdjustQuantity(f.ctx, p.ID, domain.AdjustQuantityRequest{Quantity: 2, Reason: "recount"})
	requireCode(t, err, apperror.CodeInsufficientStock)

	p, err = f.svc.CancelReservation(f.ctx, p.ID, domain.CancelReservationRequest{Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, p.ReservedQuantity)
	assert.Equal(t, domain.ProductAvailable, p.Status)

	p, err = f.svc.AdjustQuantity(f.ctx, p.ID, domain.AdjustQuantityRequest{Quantity: 0, Reason: "lost"})
	require.NoError(t, err)
	assert.Equal(t, domain.ProductSold, p.Status)
	assert.Contains(t, p.Notes, "quantity 3 -> 0 (lost)")
}

func TestReserveRejectsMoreThanSellable(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.product(t, "Boné", 1, 1500)

	_, err := f.svc.Reserve(f.ctx, p.ID, domain.ReserveRequest{Quantity: 2, Holder: "Ana"})
	requireCode(t, err, apperror.CodeInsufficientStock)

	unchanged, err := f.svc.GetProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, unchanged.ReservedQuantity)
	assert.NotContains(t, unchanged.Notes, "reserved")
}

func TestGenerateDueRecurringReceivables(t *testing.T) {
	f := newFixture(t, Options{})

	template, _, err := f.svc.CreateReceivable(f.ctx, domain.ReceivableCreateRequest{
		Type: domain.ReceivableService, Description: "Aluguel de arara", AmountCents: 20000,
		Date: "2026-01-10", Recurring: true, Recurrence: domain.RecurrenceMonthly,
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-10", domain.FormatDay(*template.NextOccurrence))

	n, err := f.svc.GenerateDueRecurringReceivables(context.Background(), mustDay(t, "2026-04-15"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := f.svc.ListReceivables(f.ctx, domain.ReceivableFilter{Type: domain.ReceivableService})
	require.NoError(t, err)
	assert.Len(t, list, 4)
	for _, r := range list {
		if r.ID == template.ID {
			assert.Equal(t, "2026-05-10", domain.FormatDay(*r.NextOccurrence))
			continue
		}
		require.NotNil(t, r.ParentID)
		assert.Equal(t, template.ID, *r.ParentID)
		assert.Equal(t, domain.ReceivablePending, r.Status)
		assert.False(t, r.Recurring)
	}

	n, err = f.svc.GenerateDueRecurringReceivables(context.Background(), mustDay(t, "2026-04-15"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGenerateDueRecurringReceivablesKeepsMonthEndAnchor(t *testing.T) {
	f := newFixture(t, Options{})

	template, _, err := f.svc.CreateReceivable(f.ctx, domain.ReceivableCreateRequest{
		Type: domain.ReceivableService, Description: "Aluguel do box", AmountCents: 15000,
		Date: "2025-12-31", Recurring: true, Recurrence: domain.RecurrenceMonthly,
	})
	require.NoError(t, err)

	n, err := f.svc.GenerateDueRecurringReceivables(context.Background(), mustDay(t, "2026-03-31"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := f.svc.ListReceivables(f.ctx, domain.ReceivableFilter{Type: domain.ReceivableService})
	require.NoError(t, err)
	var dates []string
	for _, r := range list {
		if r.ID == template.ID {
			assert.Equal(t, "2026-04-30", domain.FormatDay(*r.NextOccurrence))
			continue
		}
		dates = append(dates, domain.FormatDay(r.Date))
	}
	assert.ElementsMatch(t, []string{"2026-01-31", "2026-02-28", "2026-03-31"}, dates)
}

func TestGenerateDueRecurringReceivablesCapsOccurrencesPerRun(t *testing.T) {
	f := newFixture(t, Options{})
	template, _, err := f.svc.CreateReceivable(f.ctx, domain.ReceivableCreateRequest{
		Type: domain.ReceivableOther, Description: "Consignação semanal", AmountCents: 1000,
		Date: "2025-01-01", Recurring: true, Recurrence: domain.RecurrenceWeekly,
	})
	require.NoError(t, err)

	n, err := f.svc.GenerateDueRecurringReceivables(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, maxOccurrencesPerRun, n)

	advanced, err := f.repo.GetReceivable(f.ctx, "owner-1", template.ID)
	require.NoError(t, err)
	want := mustDay(t, "2025-01-01").AddDate(0, 0, 7*(maxOccurrencesPerRun+1))
	assert.True(t, want.Equal(*advanced.NextOccurrence), "next occurrence %s", advanced.NextOccurrence)
}

func TestReceivableOfSaleCannotBeReceivedOrDeletedDirectly(t *testing.T) {
	f := newFixture(t, Options{})
	created, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodOnCredit],
		Items:           []domain.SaleItemInput{{Description: "Peça avulsa", Quantity: 1, UnitPriceCents: price(1000)}},
	})
	require.NoError(t, err)

	_, _, err = f.svc.ReceiveReceivable(f.ctx, created.Receivable.ID, domain.PaymentRequest{PaymentMethod: "Cash"})
	requireCode(t, err, apperror.CodeBusinessRule)
	_, err = f.svc.DeleteReceivable(f.ctx, created.Receivable.ID)
	requireCode(t, err, apperror.CodeBusinessRule)
}

func TestManualReceivableReceiveAndDelete(t *testing.T) {
	f := newFixture(t, Options{})
	r, _, err := f.svc.CreateReceivable(f.ctx, domain.ReceivableCreateRequest{
		Type: domain.ReceivableService, Description: "Customização", AmountCents: 4500, Date: "2026-03-02",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReceivablePending, r.Status)

	r, _, err = f.svc.ReceiveReceivable(f.ctx, r.ID, domain.PaymentRequest{PaidAt: "2026-03-03", PaymentMethod: "Cartão de Crédito"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReceivableReceived, r.Status)
	assert.Equal(t, domain.MethodCreditCard, r.PaymentMethod)
	assert.Equal(t, int64(4500), f.day(t, "2026-03-03").ClosingCents)

	_, err = f.svc.DeleteReceivable(f.ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.day(t, "2026-03-03").ClosingCents)
}

func TestExpenseLifecycleBooksOutflows(t *testing.T) {
	f := newFixture(t, Options{})
	e, _, err := f.svc.CreateExpense(f.ctx, domain.ExpenseCreateRequest{
		Description: "Energia", AmountCents: 3200, Date: "2026-03-05", DueDate: "2026-03-20",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpensePending, e.Status)

	_, err = f.svc.GetCashDay(f.ctx, mustDay(t, "2026-03-07"))
	requireCode(t, err, apperror.CodeNotFound)

	e, _, err = f.svc.PayExpense(f.ctx, e.ID, domain.PaymentRequest{PaidAt: "2026-03-07", PaymentMethod: "PIX"})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpensePaid, e.Status)

	detail, err := f.svc.GetCashDay(f.ctx, mustDay(t, "2026-03-07"))
	require.NoError(t, err)
	assert.Equal(t, int64(3200), detail.Day.OutflowsCents)
	assert.Equal(t, int64(-3200), detail.Day.ClosingCents)
	require.Len(t, detail.Entries, 1)
	assert.Equal(t, e.ID, *detail.Entries[0].ExpenseID)

	_, _, err = f.svc.PayExpense(f.ctx, e.ID, domain.PaymentRequest{PaymentMethod: "PIX"})
	requireCode(t, err, apperror.CodeInvalidState)

	_, err = f.svc.DeleteExpense(f.ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.day(t, "2026-03-07").ClosingCents)
}

func TestBulkDeactivateCustomersReportsPerItem(t *testing.T) {
	f := newFixture(t, Options{BulkConcurrency: 2})
	a, err := f.svc.CreateCustomer(f.ctx, domain.ContactRequest{Name: "Ana", Email: " ANA@example.com "})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", a.Email)
	b, err := f.svc.CreateCustomer(f.ctx, domain.ContactRequest{Name: "Bruna"})
	require.NoError(t, err)

	result, err := f.svc.BulkDeactivateCustomers(f.ctx, domain.BulkDeactivateRequest{IDs: []string{a.ID, "missing", b.ID}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Results, 3)
	assert.True(t, result.Results[0].OK)
	assert.False(t, result.Results[1].OK)
	assert.Equal(t, "customer not found", result.Results[1].Error)
	assert.True(t, result.Results[2].OK)

	active, err := f.svc.ListCustomers(f.ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = f.svc.BulkDeactivateCustomers(f.ctx, domain.BulkDeactivateRequest{})
	requireCode(t, err, apperror.CodeValidation)
}

func TestCommissionAmountRoundsHalfEven(t *testing.T) {
	cases := []struct {
		total   int64
		percent string
		want    int64
	}{
		{total: 1250, percent: "10", want: 125},
		{total: 25, percent: "10", want: 2},
		{total: 35, percent: "10", want: 4},
		{total: 9999, percent: "7.5", want: 750},
		{total: 0, percent: "12", want: 0},
	}
	for _, tc := range cases {
		got := commissionAmount(tc.total, decimal.RequireFromString(tc.percent))
		assert.Equal(t, tc.want, got, "total=%d percent=%s", tc.total, tc.percent)
	}
}

func TestSaleWithSellerRuleCreatesCommission(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.CreateCommissionRule(f.staff, domain.CommissionRuleCreateRequest{SellerName: "Ana", Percent: decimal.NewFromInt(10)})
	requireCode(t, err, apperror.CodeForbidden)
	_, err = f.svc.CreateCommissionRule(f.ctx, domain.CommissionRuleCreateRequest{SellerName: "Ana", Percent: decimal.NewFromInt(150)})
	requireCode(t, err, apperror.CodeValidation)

	rule, err := f.svc.CreateCommissionRule(f.ctx, domain.CommissionRuleCreateRequest{SellerName: "Ana", Percent: decimal.NewFromInt(10)})
	require.NoError(t, err)

	result, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		SellerName:      " ana ",
		Items:           []domain.SaleItemInput{{Description: "Peça", Quantity: 1, UnitPriceCents: price(1005)}},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Commission)
	assert.Equal(t, rule.ID, result.Commission.RuleID)
	assert.Equal(t, int64(100), result.Commission.AmountCents)

	paid, err := f.svc.PayCommission(f.ctx, result.Commission.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CommissionPaid, paid.Status)

	updated, err := f.svc.UpdateSale(f.ctx, result.Sale.ID, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		SellerName:      "Ana",
		Items:           []domain.SaleItemInput{{Description: "Peça", Quantity: 2, UnitPriceCents: price(1005)}},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Commission)
	assert.Equal(t, paid.ID, updated.Commission.ID)
	assert.Equal(t, int64(100), updated.Commission.AmountCents)
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string]string
}

const fakeBase = "http://media.test/"

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string]string{}}
}

func (f *fakeObjects) Put(_ context.Context, key string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = string(data)
	return fakeBase + key, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) KeyFromURL(rawURL string) (string, error) {
	key, ok := strings.CutPrefix(rawURL, fakeBase)
	if !ok {
		return "", objectstore.ErrForeignURL
	}
	return key, nil
}

func (f *fakeObjects) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type failingProductUpdates struct {
	*memory.Store
	fail bool
}

func (r *failingProductUpdates) UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if r.fail {
		return nil, errors.New("disk full")
	}
	return r.Store.UpdateProduct(ctx, p)
}

func TestUploadProductImageReplacesPreviousObject(t *testing.T) {
	objects := newFakeObjects()
	f := newFixture(t, Options{Objects: objects})
	p := f.product(t, "Óculos", 1, 4000)

	first, err := f.svc.UploadProductImage(f.ctx, p.ID, "frente.jpg", strings.NewReader("jpeg-1"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.Product.ImageURL, fakeBase+"owner-1/products/"+p.ID+"/"))
	assert.True(t, strings.HasSuffix(first.Product.ImageURL, ".jpg"))

	second, err := f.svc.UploadProductImage(f.ctx, p.ID, "verso.png", strings.NewReader("png-2"))
	require.NoError(t, err)
	assert.Empty(t, second.Warnings)
	assert.Equal(t, 1, objects.count())

	cleared, err := f.svc.DeleteProductImage(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, cleared.Product.ImageURL)
	assert.Zero(t, objects.count())
}

func TestUploadProductImageRemovesObjectWhenUpdateFails(t *testing.T) {
	objects := newFakeObjects()
	mem := memory.New()
	repo := &failingProductUpdates{Store: mem}
	f := newFixtureWithRepo(t, mem, repo, Options{Objects: objects})
	p := f.product(t, "Lenço", 1, 1200)

	repo.fail = true
	_, err := f.svc.UploadProductImage(f.ctx, p.ID, "lenco.webp", strings.NewReader("webp"))
	require.Error(t, err)
	assert.Zero(t, objects.count())

	unchanged, err := f.svc.GetProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, unchanged.ImageURL)
}

type brokenInvalidation struct {
	cache.NoopSummaryCache
}

func (brokenInvalidation) Invalidate(context.Context, string) error {
	return errors.New("redis unavailable")
}

func TestCacheFailureAfterCommitBecomesWarning(t *testing.T) {
	f := newFixture(t, Options{Summaries: brokenInvalidation{}})

	result, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		Items:           []domain.SaleItemInput{{Description: "Brinco", Quantity: 1, UnitPriceCents: price(900)}},
	})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)

	stored, err := f.svc.GetSale(f.ctx, result.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), stored.Sale.TotalCents)
}

func TestFinanceSummaryIsCachedUntilLedgerChanges(t *testing.T) {
	mr := miniredis.RunT(t)
	summaries := cache.NewRedisSummaryCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	f := newFixture(t, Options{Summaries: summaries, SummaryTTL: time.Minute})
	from, to := mustDay(t, "2026-03-01"), mustDay(t, "2026-03-31")

	_, _, err := f.svc.CreateExpense(f.ctx, domain.ExpenseCreateRequest{
		Description: "Frete", AmountCents: 1500, Date: "2026-03-05", Paid: true, PaymentMethod: "Cash",
	})
	require.NoError(t, err)

	first, err := f.svc.FinanceSummary(f.ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), first.ExpensesPaidCents)

	// written behind the service's back, so the cached value stays
	paidAt := mustDay(t, "2026-03-06")
	_, err = f.repo.CreateExpense(f.ctx, domain.Expense{
		OwnerID: "owner-1", Description: "Ajuste", AmountCents: 700, Date: paidAt,
		Status: domain.ExpensePaid, PaidAt: &paidAt,
	})
	require.NoError(t, err)
	cached, err := f.svc.FinanceSummary(f.ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), cached.ExpensesPaidCents)

	_, _, err = f.svc.CreateExpense(f.ctx, domain.ExpenseCreateRequest{
		Description: "Cabides", AmountCents: 500, Date: "2026-03-07", Paid: true, PaymentMethod: "Cash",
	})
	require.NoError(t, err)
	fresh, err := f.svc.FinanceSummary(f.ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(2700), fresh.ExpensesPaidCents)
	assert.Equal(t, int64(2000), fresh.CashOutflowsCents)
	assert.Equal(t, int64(-2000), fresh.ClosingCents)
}

func TestFinanceSummaryRejectsInvertedRange(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.FinanceSummary(f.ctx, mustDay(t, "2026-03-10"), mustDay(t, "2026-03-01"))
	requireCode(t, err, apperror.CodeValidation)
}

func TestOperationsRequireActor(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.ListProducts(context.Background(), domain.ProductFilter{})
	requireCode(t, err, apperror.CodeUnauthorized)
}

func TestValidationReportsJSONFieldName(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.CreateProduct(f.ctx, domain.ProductCreateRequest{Name: "", Quantity: 1})
	requireCode(t, err, apperror.CodeValidation)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "name is required", appErr.Message)
}

func TestSplitInstallmentsClampsMonthEnd(t *testing.T) {
	amounts, dues := splitInstallments(1000, 3, mustDay(t, "2026-01-31"))
	assert.Equal(t, []int64{333, 333, 334}, amounts)
	assert.Equal(t, "2026-02-28", domain.FormatDay(dues[1]))
	assert.Equal(t, "2026-03-31", domain.FormatDay(dues[2]))
}

func TestRecordMovementRequiresAdmin(t *testing.T) {
	f := newFixture(t, Options{})
	req := domain.CashMovementRequest{Kind: domain.EntryOutflow, AmountCents: 10000, Date: "2026-03-14", Description: "Retirada"}

	_, _, err := f.svc.RecordMovement(f.staff, req)
	requireCode(t, err, apperror.CodeForbidden)

	entry, _, err := f.svc.RecordMovement(f.ctx, req)
	require.NoError(t, err)
	assert.Nil(t, entry.SaleID)
	assert.Equal(t, int64(-10000), f.day(t, "2026-03-14").ClosingCents)
}

type lockRecorder struct {
	*memory.Store
	mu     sync.Mutex
	locked []string
}

func (r *lockRecorder) record(kind string) {
	r.mu.Lock()
	r.locked = append(r.locked, kind)
	r.mu.Unlock()
}

func (r *lockRecorder) GetReceivableForUpdate(ctx context.Context, ownerID, id string) (*domain.Receivable, error) {
	r.record("receivable")
	return r.Store.GetReceivableForUpdate(ctx, ownerID, id)
}

func (r *lockRecorder) GetExpenseForUpdate(ctx context.Context, ownerID, id string) (*domain.Expense, error) {
	r.record("expense")
	return r.Store.GetExpenseForUpdate(ctx, ownerID, id)
}

func (r *lockRecorder) GetCommissionForUpdate(ctx context.Context, ownerID, id string) (*domain.Commission, error) {
	r.record("commission")
	return r.Store.GetCommissionForUpdate(ctx, ownerID, id)
}

func TestSettlementsReadRowsForUpdate(t *testing.T) {
	mem := memory.New()
	repo := &lockRecorder{Store: mem}
	f := newFixtureWithRepo(t, mem, repo, Options{})

	r, _, err := f.svc.CreateReceivable(f.ctx, domain.ReceivableCreateRequest{
		Type: domain.ReceivableService, Description: "Ajuste", AmountCents: 2000, Date: "2026-03-02",
	})
	require.NoError(t, err)
	_, _, err = f.svc.ReceiveReceivable(f.ctx, r.ID, domain.PaymentRequest{PaidAt: "2026-03-03", PaymentMethod: "PIX"})
	require.NoError(t, err)

	e, _, err := f.svc.CreateExpense(f.ctx, domain.ExpenseCreateRequest{Description: "Água", AmountCents: 900, Date: "2026-03-04"})
	require.NoError(t, err)
	_, _, err = f.svc.PayExpense(f.ctx, e.ID, domain.PaymentRequest{PaidAt: "2026-03-04", PaymentMethod: "PIX"})
	require.NoError(t, err)

	_, err = f.svc.CreateCommissionRule(f.ctx, domain.CommissionRuleCreateRequest{SellerName: "Ana", Percent: decimal.NewFromInt(10)})
	require.NoError(t, err)
	sale, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		SellerName:      "Ana",
		Items:           []domain.SaleItemInput{{Description: "Peça", Quantity: 1, UnitPriceCents: price(3000)}},
	})
	require.NoError(t, err)
	require.NotNil(t, sale.Commission)
	_, err = f.svc.PayCommission(f.ctx, sale.Commission.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"receivable", "expense", "commission"}, repo.locked)
}

func TestConcurrentReceivePostsOnce(t *testing.T) {
	f := newFixture(t, Options{})
	r, _, err := f.svc.CreateReceivable(f.ctx, domain.ReceivableCreateRequest{
		Type: domain.ReceivableService, Description: "Bainha", AmountCents: 1500, Date: "2026-03-02",
	})
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = f.svc.ReceiveReceivable(f.ctx, r.ID, domain.PaymentRequest{PaidAt: "2026-03-05", PaymentMethod: "PIX"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireCode(t, err, apperror.CodeInvalidState)
	}
	assert.Equal(t, 1, succeeded)

	detail, err := f.svc.GetCashDay(f.ctx, mustDay(t, "2026-03-05"))
	require.NoError(t, err)
	assert.Len(t, detail.Entries, 1)
	assert.Equal(t, int64(1500), detail.Day.ClosingCents)
}

func TestCreateSaleKeepsExplicitZeroPrice(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.product(t, "Brinde", 2, 1500)

	line := productLine(p.ID, 1)
	line.UnitPriceCents = price(0)
	result, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		Items:           []domain.SaleItemInput{line, productLine(p.ID, 1)},
	})
	require.NoError(t, err)
	require.Len(t, result.Sale.Items, 2)
	assert.Equal(t, int64(0), result.Sale.Items[0].UnitPriceCents)
	assert.Equal(t, int64(1500), result.Sale.Items[1].UnitPriceCents)
	assert.Equal(t, int64(1500), result.Sale.TotalCents)
}

func TestUpdateSaleWithoutRepostReturnsExistingEntries(t *testing.T) {
	f := newFixture(t, Options{})
	created, err := f.svc.CreateSale(f.ctx, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		Items:           []domain.SaleItemInput{{Description: "Cinto", Quantity: 1, UnitPriceCents: price(2200)}},
	})
	require.NoError(t, err)
	require.Len(t, created.CashEntries, 1)

	updated, err := f.svc.UpdateSale(f.ctx, created.Sale.ID, domain.SaleInput{
		Date:            "2026-03-10",
		PaymentMethodID: f.methods[domain.MethodCash],
		Notes:           "cliente pediu embrulho",
		Items:           []domain.SaleItemInput{{Description: "Cinto", Quantity: 1, UnitPriceCents: price(2200)}},
	})
	require.NoError(t, err)
	require.Len(t, updated.CashEntries, 1)
	assert.Equal(t, created.CashEntries[0].ID, updated.CashEntries[0].ID)
	assert.Equal(t, int64(2200), f.day(t, "2026-03-10").ClosingCents)
}
