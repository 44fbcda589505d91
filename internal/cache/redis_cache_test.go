package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestorbrecho/backend/internal/domain"
)

func newTestCache(t *testing.T) (*RedisSummaryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisSummaryCacheFromClient(client)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisSummaryCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, gen, ok, err := c.Get(ctx, "owner-1", "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.False(t, ok)

	summary := &domain.FinanceSummary{OwnerID: "owner-1", SalesCount: 3, SalesTotalCents: 15000}
	require.NoError(t, c.Set(ctx, "owner-1", gen, "2026-03-01", "2026-03-31", summary, time.Minute))

	got, _, ok, err := c.Get(ctx, "owner-1", "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(15000), got.SalesTotalCents)
	assert.Equal(t, 3, got.SalesCount)
}

func TestRedisSummaryCacheInvalidateIsPerOwner(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "owner-1", 0, "a", "b", &domain.FinanceSummary{OwnerID: "owner-1"}, time.Minute))
	require.NoError(t, c.Set(ctx, "owner-2", 0, "a", "b", &domain.FinanceSummary{OwnerID: "owner-2"}, time.Minute))

	require.NoError(t, c.Invalidate(ctx, "owner-1"))

	_, gen, ok, err := c.Get(ctx, "owner-1", "a", "b")
	require.NoError(t, err)
	assert.False(t, ok, "owner-1 entry should be orphaned")
	assert.Equal(t, Generation(1), gen)

	_, _, ok, err = c.Get(ctx, "owner-2", "a", "b")
	require.NoError(t, err)
	assert.True(t, ok, "owner-2 entry should survive")
}

func TestRedisSummaryCacheEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "owner-1", 0, "a", "b", &domain.FinanceSummary{}, time.Second))
	mr.FastForward(2 * time.Second)

	_, _, ok, err := c.Get(ctx, "owner-1", "a", "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSummaryCacheDropsSummaryComputedBeforeInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, gen, ok, err := c.Get(ctx, "owner-1", "a", "b")
	require.NoError(t, err)
	require.False(t, ok)

	// a sale commits and invalidates while the summary is being computed
	require.NoError(t, c.Invalidate(ctx, "owner-1"))
	require.NoError(t, c.Set(ctx, "owner-1", gen, "a", "b", &domain.FinanceSummary{SalesCount: 1}, time.Minute))

	_, _, ok, err = c.Get(ctx, "owner-1", "a", "b")
	require.NoError(t, err)
	assert.False(t, ok, "summary computed before the invalidation must not be served")
}

func TestRedisSummaryCacheReportsConnectionErrors(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, _, _, err := c.Get(context.Background(), "owner-1", "a", "b")
	assert.Error(t, err)
}
