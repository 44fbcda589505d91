package cache

import (
	"context"
	"time"

	"gestorbrecho/backend/internal/domain"
)

// SummaryCache stores finance summaries per owner and day range.
// Invalidate drops every cached range of one owner.
//
// Get reports the owner's generation it read under. Set stores under that
// generation, so a summary computed before an invalidation lands in an
// orphaned slot instead of outliving it.
type SummaryCache interface {
	Get(ctx context.Context, ownerID, from, to string) (*domain.FinanceSummary, Generation, bool, error)
	Set(ctx context.Context, ownerID string, gen Generation, from, to string, value *domain.FinanceSummary, ttl time.Duration) error
	Invalidate(ctx context.Context, ownerID string) error
}

// Generation identifies one owner's cache epoch.
type Generation int64

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context, _, _, _ string) (*domain.FinanceSummary, Generation, bool, error) {
	return nil, 0, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ string, _ Generation, _, _ string, _ *domain.FinanceSummary, _ time.Duration) error {
	return nil
}

func (NoopSummaryCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
