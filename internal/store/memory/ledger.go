package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/store"
	"gestorbrecho/backend/internal/xid"
)

func (s *Store) UpsertCashDay(_ context.Context, ownerID string, day time.Time) (*domain.CashDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ownerID == "" {
		return nil, store.ErrInvalidInput
	}
	day = domain.DayOf(day)
	if existing, ok := s.findDay(ownerID, day); ok {
		return &existing, nil
	}

	opening := int64(0)
	var prev *domain.CashDay
	for _, d := range s.data.cashDays {
		if d.OwnerID != ownerID || !d.Day.Before(day) {
			continue
		}
		if prev == nil || d.Day.After(prev.Day) {
			candidate := d
			prev = &candidate
		}
	}
	if prev != nil {
		opening = prev.ClosingCents
	}

	now := s.now()
	created := domain.CashDay{
		ID:           xid.New(),
		OwnerID:      ownerID,
		Day:          day,
		OpeningCents: opening,
		ClosingCents: opening,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.data.cashDays[created.ID] = created
	return &created, nil
}

func (s *Store) findDay(ownerID string, day time.Time) (domain.CashDay, bool) {
	for _, d := range s.data.cashDays {
		if d.OwnerID == ownerID && d.Day.Equal(day) {
			return d, true
		}
	}
	return domain.CashDay{}, false
}

func (s *Store) GetCashDay(_ context.Context, ownerID string, day time.Time) (*domain.CashDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.findDay(ownerID, domain.DayOf(day))
	if !ok {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (s *Store) ListCashDays(_ context.Context, ownerID string, from, to time.Time) ([]domain.CashDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := make([]domain.CashDay, 0)
	for _, d := range s.data.cashDays {
		if d.OwnerID == ownerID && inRange(d.Day, &from, &to) {
			days = append(days, d)
		}
	}
	slices.SortFunc(days, func(a, b domain.CashDay) int {
		return a.Day.Compare(b.Day)
	})
	return days, nil
}

func (s *Store) CreateCashEntry(_ context.Context, entry domain.CashEntry) (*domain.CashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.AmountCents <= 0 || (entry.Kind != domain.EntryInflow && entry.Kind != domain.EntryOutflow) {
		return nil, store.ErrInvalidInput
	}
	bucket, exists := s.data.cashDays[entry.DayID]
	if !exists || bucket.OwnerID != entry.OwnerID {
		return nil, store.ErrNotFound
	}
	if entry.ID == "" {
		entry.ID = xid.New()
	}
	entry.Day = bucket.Day
	entry.CreatedAt = s.now()
	s.data.cashEntries[entry.ID] = entry

	applyEntry(&bucket, entry, 1)
	bucket.UpdatedAt = entry.CreatedAt
	s.data.cashDays[bucket.ID] = bucket

	created := entry
	return &created, nil
}

func (s *Store) DeleteCashEntries(_ context.Context, ownerID string, link domain.EntryLink) ([]domain.CashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if link.Count() != 1 {
		return nil, store.ErrInvalidInput
	}
	removed := make([]domain.CashEntry, 0)
	for id, entry := range s.data.cashEntries {
		if entry.OwnerID != ownerID || !link.Matches(entry) {
			continue
		}
		delete(s.data.cashEntries, id)
		if bucket, ok := s.data.cashDays[entry.DayID]; ok {
			applyEntry(&bucket, entry, -1)
			bucket.UpdatedAt = s.now()
			s.data.cashDays[bucket.ID] = bucket
		}
		removed = append(removed, entry)
	}
	slices.SortFunc(removed, func(a, b domain.CashEntry) int {
		return a.Day.Compare(b.Day)
	})
	return removed, nil
}

func applyEntry(bucket *domain.CashDay, entry domain.CashEntry, sign int64) {
	switch entry.Kind {
	case domain.EntryInflow:
		bucket.InflowsCents += sign * entry.AmountCents
	case domain.EntryOutflow:
		bucket.OutflowsCents += sign * entry.AmountCents
	}
	bucket.ClosingCents = bucket.OpeningCents + bucket.InflowsCents - bucket.OutflowsCents
}

func (s *Store) ListCashEntries(_ context.Context, ownerID string, day time.Time) ([]domain.CashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day = domain.DayOf(day)
	entries := make([]domain.CashEntry, 0)
	for _, e := range s.data.cashEntries {
		if e.OwnerID == ownerID && e.Day.Equal(day) {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b domain.CashEntry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return entries, nil
}

func (s *Store) ListLinkedCashEntries(_ context.Context, ownerID string, link domain.EntryLink) ([]domain.CashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if link.Count() != 1 {
		return nil, store.ErrInvalidInput
	}
	entries := make([]domain.CashEntry, 0)
	for _, e := range s.data.cashEntries {
		if e.OwnerID == ownerID && link.Matches(e) {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b domain.CashEntry) int {
		if c := a.Day.Compare(b.Day); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return entries, nil
}

func (s *Store) RebalanceCashDays(_ context.Context, ownerID string, from time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from = domain.DayOf(from)
	chain := make([]domain.CashDay, 0)
	for _, d := range s.data.cashDays {
		if d.OwnerID == ownerID {
			chain = append(chain, d)
		}
	}
	sort.Slice(chain, func(i, j int) bool { return chain[i].Day.Before(chain[j].Day) })

	running := int64(0)
	for _, d := range chain {
		if d.Day.Before(from) {
			running = d.ClosingCents
			continue
		}
		d.OpeningCents = running
		d.ClosingCents = d.OpeningCents + d.InflowsCents - d.OutflowsCents
		running = d.ClosingCents
		s.data.cashDays[d.ID] = d
	}
	return nil
}

func (s *Store) SummarizeFinance(_ context.Context, ownerID string, from, to time.Time) (domain.FinanceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.FinanceSummary{
		OwnerID:       ownerID,
		From:          domain.FormatDay(from),
		To:            domain.FormatDay(to),
		IncomesByType: map[string]int64{},
	}

	byMethod := map[string]*domain.PaymentBreakdown{}
	for _, sale := range s.data.sales {
		if sale.OwnerID != ownerID || sale.Status == domain.SaleCancelled || !inRange(sale.Date, &from, &to) {
			continue
		}
		summary.SalesCount++
		summary.SalesTotalCents += sale.TotalCents
		row, ok := byMethod[sale.PaymentMethod]
		if !ok {
			row = &domain.PaymentBreakdown{PaymentMethod: sale.PaymentMethod}
			byMethod[sale.PaymentMethod] = row
		}
		row.Sales++
		row.TotalCents += sale.TotalCents
	}
	for _, row := range byMethod {
		summary.ByPaymentMethod = append(summary.ByPaymentMethod, *row)
	}
	slices.SortFunc(summary.ByPaymentMethod, func(a, b domain.PaymentBreakdown) int {
		return strings.Compare(a.PaymentMethod, b.PaymentMethod)
	})

	for _, r := range s.data.receivables {
		if r.OwnerID == ownerID && inRange(r.Date, &from, &to) {
			summary.IncomesByType[r.Type] += r.AmountCents
		}
	}
	for _, e := range s.data.expenses {
		if e.OwnerID == ownerID && e.Status == domain.ExpensePaid && e.PaidAt != nil && inRange(*e.PaidAt, &from, &to) {
			summary.ExpensesPaidCents += e.AmountCents
		}
	}

	var last *domain.CashDay
	for _, d := range s.data.cashDays {
		if d.OwnerID != ownerID || !inRange(d.Day, &from, &to) {
			continue
		}
		summary.CashInflowsCents += d.InflowsCents
		summary.CashOutflowsCents += d.OutflowsCents
		if last == nil || d.Day.After(last.Day) {
			candidate := d
			last = &candidate
		}
	}
	if last != nil {
		summary.ClosingCents = last.ClosingCents
	}
	summary.NetCents = summary.CashInflowsCents - summary.CashOutflowsCents
	summary.GeneratedAt = s.now()
	return summary, nil
}
