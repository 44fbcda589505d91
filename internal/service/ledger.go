package service

import (
	"context"
	"strings"
	"time"

	"gestorbrecho/backend/internal/apperror"
	"gestorbrecho/backend/internal/domain"
)

type movement struct {
	kind        string
	amountCents int64
	day         time.Time
	description string
	method      string
	link        domain.EntryLink
}

// postEntry books one movement into the bucket of its day and rebalances the
// buckets that follow. Must run inside WithinTx.
func (s *Service) postEntry(ctx context.Context, actor domain.Actor, m movement) (domain.CashEntry, error) {
	bucket, err := s.repo.UpsertCashDay(ctx, actor.OwnerID, m.day)
	if err != nil {
		return domain.CashEntry{}, translate(err, "cash day", domain.FormatDay(m.day))
	}

	entry := domain.CashEntry{
		OwnerID:       actor.OwnerID,
		DayID:         bucket.ID,
		Day:           bucket.Day,
		Kind:          m.kind,
		AmountCents:   m.amountCents,
		Description:   m.description,
		PaymentMethod: m.method,
		CreatedBy:     actor.Username,
	}
	m.link.Apply(&entry)

	created, err := s.repo.CreateCashEntry(ctx, entry)
	if err != nil {
		return domain.CashEntry{}, translate(err, "cash entry", "")
	}
	if err := s.repo.RebalanceCashDays(ctx, actor.OwnerID, bucket.Day); err != nil {
		return domain.CashEntry{}, err
	}
	s.metrics.LedgerEntry(ctx, m.kind)
	return *created, nil
}

// removeEntries deletes every entry linked to one record and rebalances from
// the earliest affected day.
func (s *Service) removeEntries(ctx context.Context, ownerID string, link domain.EntryLink) ([]domain.CashEntry, error) {
	removed, err := s.repo.DeleteCashEntries(ctx, ownerID, link)
	if err != nil {
		return nil, translate(err, "cash entry", "")
	}
	if len(removed) == 0 {
		return removed, nil
	}
	earliest := removed[0].Day
	for _, entry := range removed[1:] {
		if entry.Day.Before(earliest) {
			earliest = entry.Day
		}
	}
	if err := s.repo.RebalanceCashDays(ctx, ownerID, earliest); err != nil {
		return nil, err
	}
	return removed, nil
}

// GetOrCreateCashDay returns the bucket for a day, opening it with the
// previous closing balance when it does not exist yet.
func (s *Service) GetOrCreateCashDay(ctx context.Context, day time.Time) (domain.CashDay, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.CashDay{}, err
	}
	var bucket *domain.CashDay
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		bucket, err = s.repo.UpsertCashDay(ctx, actor.OwnerID, day)
		return err
	})
	if err != nil {
		return domain.CashDay{}, translate(err, "cash day", domain.FormatDay(day))
	}
	return *bucket, nil
}

// RecordMovement books a manual movement that is not tied to any record.
func (s *Service) RecordMovement(ctx context.Context, req domain.CashMovementRequest) (domain.CashEntry, []string, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.CashEntry{}, nil, err
	}
	if err := validateStruct(req); err != nil {
		return domain.CashEntry{}, nil, err
	}
	day, err := parseDayOr(req.Date, s.today(), "date")
	if err != nil {
		return domain.CashEntry{}, nil, err
	}

	var entry domain.CashEntry
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.postEntry(ctx, actor, movement{
			kind:        req.Kind,
			amountCents: req.AmountCents,
			day:         day,
			description: strings.TrimSpace(req.Description),
			method:      domain.CanonicalMethod(req.PaymentMethod),
		})
		return err
	})
	if err != nil {
		return domain.CashEntry{}, nil, err
	}
	return entry, s.afterCommit(ctx, actor.OwnerID, "record_movement"), nil
}

func (s *Service) ListCashDays(ctx context.Context, from, to time.Time) ([]domain.CashDay, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	from, to, err = s.dayRange(from, to)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCashDays(ctx, actor.OwnerID, from, to)
}

func (s *Service) GetCashDay(ctx context.Context, day time.Time) (domain.CashDayDetail, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.CashDayDetail{}, err
	}
	bucket, err := s.repo.GetCashDay(ctx, actor.OwnerID, day)
	if err != nil {
		return domain.CashDayDetail{}, translate(err, "cash day", domain.FormatDay(day))
	}
	entries, err := s.repo.ListCashEntries(ctx, actor.OwnerID, day)
	if err != nil {
		return domain.CashDayDetail{}, err
	}
	return domain.CashDayDetail{Day: *bucket, Entries: entries}, nil
}

// dayRange defaults an open range to the current month and rejects inverted
// or oversized ranges.
func (s *Service) dayRange(from, to time.Time) (time.Time, time.Time, error) {
	today := s.today()
	if to.IsZero() {
		to = today
	}
	if from.IsZero() {
		from = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	from, to = domain.DayOf(from), domain.DayOf(to)
	if from.After(to) {
		return from, to, apperror.NewValidation("from must not be after to")
	}
	if to.Sub(from) > 366*24*time.Hour {
		return from, to, apperror.NewValidation("date range must not exceed one year")
	}
	return from, to, nil
}
