package postgres

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"gestorbrecho/backend/internal/domain"
)

type salesTotals struct {
	Count int   `db:"count"`
	Total int64 `db:"total"`
}

type incomeRow struct {
	Type  string `db:"type"`
	Total int64  `db:"total"`
}

type ledgerTotals struct {
	Inflows  int64 `db:"inflows"`
	Outflows int64 `db:"outflows"`
}

func (s *Store) SummarizeFinance(ctx context.Context, ownerID string, from, to time.Time) (domain.FinanceSummary, error) {
	from, to = domain.DayOf(from), domain.DayOf(to)
	summary := domain.FinanceSummary{
		OwnerID:       ownerID,
		From:          domain.FormatDay(from),
		To:            domain.FormatDay(to),
		IncomesByType: map[string]int64{},
	}

	activeSales := squirrel.And{
		squirrel.Eq{"owner_id": ownerID},
		squirrel.NotEq{"status": domain.SaleCancelled},
		squirrel.GtOrEq{"sale_date": from},
		squirrel.LtOrEq{"sale_date": to},
	}

	var totals salesTotals
	if err := s.get(ctx, &totals, s.sb.Select("COUNT(*) AS count", "COALESCE(SUM(total_cents), 0)::bigint AS total").
		From("sales").Where(activeSales)); err != nil {
		return summary, err
	}
	summary.SalesCount = totals.Count
	summary.SalesTotalCents = totals.Total

	breakdown := make([]domain.PaymentBreakdown, 0)
	if err := s.selectAll(ctx, &breakdown, s.sb.
		Select("payment_method AS payment_method", "COUNT(*) AS sales", "SUM(total_cents)::bigint AS total_cents").
		From("sales").Where(activeSales).
		GroupBy("payment_method").OrderBy("payment_method")); err != nil {
		return summary, err
	}
	summary.ByPaymentMethod = breakdown

	incomes := make([]incomeRow, 0)
	if err := s.selectAll(ctx, &incomes, s.sb.Select("type", "SUM(amount_cents)::bigint AS total").
		From("receivables").
		Where(squirrel.Eq{"owner_id": ownerID}).
		Where(squirrel.GtOrEq{"income_date": from}).
		Where(squirrel.LtOrEq{"income_date": to}).
		GroupBy("type")); err != nil {
		return summary, err
	}
	for _, row := range incomes {
		summary.IncomesByType[row.Type] = row.Total
	}

	var paid int64
	if err := s.get(ctx, &paid, s.sb.Select("COALESCE(SUM(amount_cents), 0)::bigint").
		From("expenses").
		Where(squirrel.Eq{"owner_id": ownerID, "status": domain.ExpensePaid}).
		Where("paid_at::date BETWEEN ? AND ?", from, to)); err != nil {
		return summary, err
	}
	summary.ExpensesPaidCents = paid

	var ledger ledgerTotals
	if err := s.get(ctx, &ledger, s.sb.
		Select("COALESCE(SUM(inflows_cents), 0)::bigint AS inflows", "COALESCE(SUM(outflows_cents), 0)::bigint AS outflows").
		From("cash_days").
		Where(squirrel.Eq{"owner_id": ownerID}).
		Where(squirrel.GtOrEq{"day": from}).
		Where(squirrel.LtOrEq{"day": to})); err != nil {
		return summary, err
	}
	summary.CashInflowsCents = ledger.Inflows
	summary.CashOutflowsCents = ledger.Outflows

	closing := make([]int64, 0, 1)
	if err := pgxscan.Select(ctx, s.tx.Querier(ctx), &closing, `
		SELECT closing_cents FROM cash_days
		WHERE owner_id = $1 AND day BETWEEN $2 AND $3
		ORDER BY day DESC LIMIT 1`, ownerID, from, to); err != nil {
		return summary, mapErr(err)
	}
	if len(closing) == 1 {
		summary.ClosingCents = closing[0]
	}

	summary.NetCents = summary.CashInflowsCents - summary.CashOutflowsCents
	summary.GeneratedAt = time.Now().UTC()
	return summary, nil
}
