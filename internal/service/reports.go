package service

import (
	"context"
	"time"

	"gestorbrecho/backend/internal/domain"
)

// FinanceSummary aggregates sales, incomes, expenses and the ledger over the
// closed day range [from, to]. Zero bounds default to the current month.
func (s *Service) FinanceSummary(ctx context.Context, from, to time.Time) (domain.FinanceSummary, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.FinanceSummary{}, err
	}
	from, to, err = s.dayRange(from, to)
	if err != nil {
		return domain.FinanceSummary{}, err
	}
	fromKey, toKey := domain.FormatDay(from), domain.FormatDay(to)

	cached, gen, hit, cacheErr := s.summaries.Get(ctx, actor.OwnerID, fromKey, toKey)
	if cacheErr != nil {
		s.log.Warnw("summary cache read failed", "owner_id", actor.OwnerID, "error", cacheErr)
	} else if hit {
		return *cached, nil
	}

	summary, err := s.repo.SummarizeFinance(ctx, actor.OwnerID, from, to)
	if err != nil {
		return domain.FinanceSummary{}, err
	}
	if cacheErr != nil {
		// the generation is unknown, so the result is not cached
		return summary, nil
	}
	if err := s.summaries.Set(ctx, actor.OwnerID, gen, fromKey, toKey, &summary, s.summaryTTL); err != nil {
		s.log.Warnw("summary cache write failed", "owner_id", actor.OwnerID, "error", err)
	}
	return summary, nil
}
