package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"gestorbrecho/backend/internal/domain"
)

// RedisSummaryCache namespaces entries by a per-owner generation counter.
// Invalidation bumps the counter, which orphans every older entry until its
// TTL removes it.
type RedisSummaryCache struct {
	client *redis.Client
	prefix string
}

func NewRedisSummaryCache(addr string, password string, db int) *RedisSummaryCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisSummaryCacheFromClient(client)
}

func NewRedisSummaryCacheFromClient(client *redis.Client) *RedisSummaryCache {
	return &RedisSummaryCache{client: client, prefix: "gestor:summary"}
}

func (c *RedisSummaryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSummaryCache) Close() error {
	return c.client.Close()
}

func (c *RedisSummaryCache) generationKey(ownerID string) string {
	return fmt.Sprintf("%s:gen:%s", c.prefix, ownerID)
}

func (c *RedisSummaryCache) generation(ctx context.Context, ownerID string) (Generation, error) {
	gen, err := c.client.Get(ctx, c.generationKey(ownerID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return Generation(gen), nil
}

func (c *RedisSummaryCache) entryKey(ownerID string, gen Generation, from, to string) string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", c.prefix, ownerID, gen, from, to)
}

func (c *RedisSummaryCache) Get(ctx context.Context, ownerID, from, to string) (*domain.FinanceSummary, Generation, bool, error) {
	gen, err := c.generation(ctx, ownerID)
	if err != nil {
		return nil, 0, false, err
	}
	val, err := c.client.Get(ctx, c.entryKey(ownerID, gen, from, to)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, err
	}

	var summary domain.FinanceSummary
	if err := json.Unmarshal(val, &summary); err != nil {
		return nil, gen, false, err
	}
	return &summary, gen, true, nil
}

// Set writes under gen, the generation returned by the Get that missed.
func (c *RedisSummaryCache) Set(ctx context.Context, ownerID string, gen Generation, from, to string, value *domain.FinanceSummary, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.entryKey(ownerID, gen, from, to), payload, ttl).Err()
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context, ownerID string) error {
	return c.client.Incr(ctx, c.generationKey(ownerID)).Err()
}
