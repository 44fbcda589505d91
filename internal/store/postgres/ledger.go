package postgres

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/store"
	"gestorbrecho/backend/internal/xid"
)

var (
	cashDayCols   = []string{"id", "owner_id", "day", "opening_cents", "inflows_cents", "outflows_cents", "closing_cents", "created_at", "updated_at"}
	cashEntryCols = []string{
		"id", "owner_id", "day_id", "day", "kind", "amount_cents", "description", "payment_method",
		"sale_id", "receivable_id", "expense_id", "installment_id", "created_by", "created_at",
	}
)

// The no-op DO UPDATE makes RETURNING yield the existing row on conflict, so
// concurrent callers for a missing day all receive the same bucket.
const upsertCashDaySQL = `
INSERT INTO cash_days (id, owner_id, day, opening_cents, inflows_cents, outflows_cents, closing_cents)
SELECT $1, $2, $3, prev.closing, 0, 0, prev.closing
FROM (
	SELECT COALESCE((
		SELECT closing_cents FROM cash_days
		WHERE owner_id = $2 AND day < $3
		ORDER BY day DESC LIMIT 1
	), 0) AS closing
) prev
ON CONFLICT (owner_id, day) DO UPDATE SET updated_at = cash_days.updated_at
RETURNING id, owner_id, day, opening_cents, inflows_cents, outflows_cents, closing_cents, created_at, updated_at`

const rebalanceCashDaysSQL = `
WITH base AS (
	SELECT COALESCE((
		SELECT closing_cents FROM cash_days
		WHERE owner_id = $1 AND day < $2
		ORDER BY day DESC LIMIT 1
	), 0) AS start
), chain AS (
	SELECT id,
	       inflows_cents - outflows_cents AS delta,
	       SUM(inflows_cents - outflows_cents) OVER (ORDER BY day ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW) AS running
	FROM cash_days
	WHERE owner_id = $1 AND day >= $2
)
UPDATE cash_days d
SET opening_cents = base.start + chain.running - chain.delta,
    closing_cents = base.start + chain.running,
    updated_at = now()
FROM chain, base
WHERE d.id = chain.id
  AND (d.opening_cents <> base.start + chain.running - chain.delta
       OR d.closing_cents <> base.start + chain.running)`

func (s *Store) UpsertCashDay(ctx context.Context, ownerID string, day time.Time) (*domain.CashDay, error) {
	if ownerID == "" {
		return nil, store.ErrInvalidInput
	}
	if err := s.lockOwnerLedger(ctx, ownerID); err != nil {
		return nil, err
	}
	var bucket domain.CashDay
	err := pgxscan.Get(ctx, s.tx.Querier(ctx), &bucket, upsertCashDaySQL, xid.New(), ownerID, domain.DayOf(day))
	if err != nil {
		return nil, mapErr(err)
	}
	return &bucket, nil
}

func (s *Store) GetCashDay(ctx context.Context, ownerID string, day time.Time) (*domain.CashDay, error) {
	var bucket domain.CashDay
	if err := s.get(ctx, &bucket, s.sb.Select(cashDayCols...).From("cash_days").
		Where(squirrel.Eq{"owner_id": ownerID, "day": domain.DayOf(day)})); err != nil {
		return nil, err
	}
	return &bucket, nil
}

func (s *Store) ListCashDays(ctx context.Context, ownerID string, from, to time.Time) ([]domain.CashDay, error) {
	days := make([]domain.CashDay, 0)
	q := s.sb.Select(cashDayCols...).From("cash_days").Where(squirrel.Eq{"owner_id": ownerID}).OrderBy("day")
	return days, s.selectAll(ctx, &days, whereDayRange(q, "day", &from, &to))
}

func (s *Store) CreateCashEntry(ctx context.Context, entry domain.CashEntry) (*domain.CashEntry, error) {
	if entry.AmountCents <= 0 || (entry.Kind != domain.EntryInflow && entry.Kind != domain.EntryOutflow) {
		return nil, store.ErrInvalidInput
	}
	if err := s.lockOwnerLedger(ctx, entry.OwnerID); err != nil {
		return nil, err
	}
	if entry.ID == "" {
		entry.ID = xid.New()
	}

	inflow, outflow := int64(0), int64(0)
	if entry.Kind == domain.EntryInflow {
		inflow = entry.AmountCents
	} else {
		outflow = entry.AmountCents
	}
	var bucketDay time.Time
	err := s.get(ctx, &bucketDay, s.sb.Update("cash_days").
		Set("inflows_cents", squirrel.Expr("inflows_cents + ?", inflow)).
		Set("outflows_cents", squirrel.Expr("outflows_cents + ?", outflow)).
		Set("closing_cents", squirrel.Expr("closing_cents + ? - ?", inflow, outflow)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": entry.DayID, "owner_id": entry.OwnerID}).
		Suffix("RETURNING day"))
	if err != nil {
		return nil, err
	}

	var created domain.CashEntry
	err = s.get(ctx, &created, s.sb.Insert("cash_entries").
		Columns("id", "owner_id", "day_id", "day", "kind", "amount_cents", "description", "payment_method",
			"sale_id", "receivable_id", "expense_id", "installment_id", "created_by").
		Values(entry.ID, entry.OwnerID, entry.DayID, bucketDay, entry.Kind, entry.AmountCents, entry.Description,
			entry.PaymentMethod, entry.SaleID, entry.ReceivableID, entry.ExpenseID, entry.InstallmentID, entry.CreatedBy).
		Suffix(returning(cashEntryCols)))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) DeleteCashEntries(ctx context.Context, ownerID string, link domain.EntryLink) ([]domain.CashEntry, error) {
	if link.Count() != 1 {
		return nil, store.ErrInvalidInput
	}
	if err := s.lockOwnerLedger(ctx, ownerID); err != nil {
		return nil, err
	}

	removed := make([]domain.CashEntry, 0)
	if err := s.selectAll(ctx, &removed, s.sb.Delete("cash_entries").
		Where(squirrel.Eq{"owner_id": ownerID}).
		Where(linkPredicate(link)).
		Suffix(returning(cashEntryCols))); err != nil {
		return nil, err
	}

	for _, entry := range removed {
		inflow, outflow := int64(0), int64(0)
		if entry.Kind == domain.EntryInflow {
			inflow = entry.AmountCents
		} else {
			outflow = entry.AmountCents
		}
		if _, err := s.exec(ctx, s.sb.Update("cash_days").
			Set("inflows_cents", squirrel.Expr("inflows_cents - ?", inflow)).
			Set("outflows_cents", squirrel.Expr("outflows_cents - ?", outflow)).
			Set("closing_cents", squirrel.Expr("closing_cents - ? + ?", inflow, outflow)).
			Set("updated_at", squirrel.Expr("now()")).
			Where(squirrel.Eq{"id": entry.DayID})); err != nil {
			return nil, err
		}
	}
	return removed, nil
}

func linkPredicate(link domain.EntryLink) squirrel.Eq {
	switch {
	case link.SaleID != "":
		return squirrel.Eq{"sale_id": link.SaleID}
	case link.ReceivableID != "":
		return squirrel.Eq{"receivable_id": link.ReceivableID}
	case link.ExpenseID != "":
		return squirrel.Eq{"expense_id": link.ExpenseID}
	default:
		return squirrel.Eq{"installment_id": link.InstallmentID}
	}
}

func (s *Store) ListCashEntries(ctx context.Context, ownerID string, day time.Time) ([]domain.CashEntry, error) {
	entries := make([]domain.CashEntry, 0)
	return entries, s.selectAll(ctx, &entries, s.sb.Select(cashEntryCols...).From("cash_entries").
		Where(squirrel.Eq{"owner_id": ownerID, "day": domain.DayOf(day)}).
		OrderBy("created_at", "id"))
}

func (s *Store) ListLinkedCashEntries(ctx context.Context, ownerID string, link domain.EntryLink) ([]domain.CashEntry, error) {
	if link.Count() != 1 {
		return nil, store.ErrInvalidInput
	}
	entries := make([]domain.CashEntry, 0)
	return entries, s.selectAll(ctx, &entries, s.sb.Select(cashEntryCols...).From("cash_entries").
		Where(squirrel.Eq{"owner_id": ownerID}).
		Where(linkPredicate(link)).
		OrderBy("day", "id"))
}

func (s *Store) RebalanceCashDays(ctx context.Context, ownerID string, from time.Time) error {
	if err := s.lockOwnerLedger(ctx, ownerID); err != nil {
		return err
	}
	_, err := s.tx.Querier(ctx).Exec(ctx, rebalanceCashDaysSQL, ownerID, domain.DayOf(from))
	return mapErr(err)
}
