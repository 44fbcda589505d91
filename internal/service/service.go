package service

import (
	"context"
	"errors"
	"time"

	"gestorbrecho/backend/internal/apperror"
	"gestorbrecho/backend/internal/cache"
	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/logger"
	"gestorbrecho/backend/internal/metrics"
	"gestorbrecho/backend/internal/objectstore"
	"gestorbrecho/backend/internal/store"
)

type actorContextKey struct{}

type timeSource func() time.Time

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Options carries the optional collaborators. Nil fields get no-op defaults.
type Options struct {
	Summaries       cache.SummaryCache
	SummaryTTL      time.Duration
	Objects         objectstore.Store
	Metrics         *metrics.Recorder
	Logger          *logger.Logger
	BulkConcurrency int
	Clock           func() time.Time
}

type Service struct {
	repo            store.Repository
	summaries       cache.SummaryCache
	summaryTTL      time.Duration
	objects         objectstore.Store
	metrics         *metrics.Recorder
	log             *logger.Logger
	bulkConcurrency int
	now             func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	s := &Service{
		repo:            repo,
		summaries:       opts.Summaries,
		summaryTTL:      opts.SummaryTTL,
		objects:         opts.Objects,
		metrics:         opts.Metrics,
		log:             opts.Logger,
		bulkConcurrency: opts.BulkConcurrency,
		now:             opts.Clock,
	}
	if s.summaries == nil {
		s.summaries = cache.NoopSummaryCache{}
	}
	if s.summaryTTL <= 0 {
		s.summaryTTL = 5 * time.Minute
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop()
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	s.log = s.log.WithComponent("service")
	if s.bulkConcurrency < 1 {
		s.bulkConcurrency = 8
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.OwnerID == "" {
		return domain.Actor{}, apperror.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.Role != domain.RoleAdmin {
		return domain.Actor{}, apperror.NewForbidden("admin role required")
	}
	return actor, nil
}

// translate turns store sentinels into AppErrors. Anything else is returned
// unchanged and ends up as a masked 500.
func translate(err error, entity string, id string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperror.NewNotFound(entity, id).WithCause(err)
	case errors.Is(err, store.ErrConflict):
		return apperror.NewConflict(entity + " already exists").WithCause(err)
	case errors.Is(err, store.ErrInvalidInput):
		return apperror.NewValidation("invalid " + entity).WithCause(err)
	case errors.Is(err, store.ErrInsufficientStock):
		return apperror.NewBusinessRule(apperror.CodeInsufficientStock, "insufficient stock").WithCause(err)
	}
	return err
}

// afterCommit runs the non-transactional side effects of a ledger or sale
// mutation. Failures are logged and returned as warnings.
func (s *Service) afterCommit(ctx context.Context, ownerID string, operation string) []string {
	if err := s.summaries.Invalidate(ctx, ownerID); err != nil {
		s.log.Warnw("summary cache invalidation failed", "owner_id", ownerID, "operation", operation, "error", err)
		s.metrics.Warning(ctx, operation)
		return []string{"finance summary cache could not be refreshed; reports may be stale for a few minutes"}
	}
	return nil
}

func (s *Service) today() time.Time {
	return domain.DayOf(s.now())
}

// parseDayOr parses raw as a day, or returns fallback when raw is empty.
func parseDayOr(raw string, fallback time.Time, field string) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	day, err := domain.ParseDay(raw)
	if err != nil {
		return time.Time{}, apperror.NewValidation(field+" must be a date (YYYY-MM-DD)").WithDetail("field", field)
	}
	return day, nil
}

func optionalID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	v := *id
	return &v
}
