// Package cache stores interaction matrices and mixed recommendation results
// in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/actuallystonmai/meme-recommendation-service/internal/metrics"
	"github.com/actuallystonmai/meme-recommendation-service/internal/recommend"
)

const defaultTTL = 10 * time.Minute

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCache creates a cache whose result entries expire after ttl. A
// non-positive ttl uses the default of ten minutes.
func NewCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		log:    logger.With().Str("component", "cache").Logger(),
	}
}

func userPrefix(userID int64) string {
	return fmt.Sprintf("rec:user:%d:", userID)
}

// resultKey identifies a mixed result by user and every option that changes it.
func resultKey(userID int64, opts recommend.MixedOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%slimit:%d:div:%t:cs:%t", userPrefix(userID), opts.Limit,
		opts.IncludeDiversity, opts.IncludeColdStartAnalysis)
	if opts.Weights != nil {
		b.WriteString(":w")
		for _, name := range opts.Weights.Sources() {
			fmt.Fprintf(&b, ":%s=%g", name, opts.Weights[name])
		}
	}
	return b.String()
}

func matrixKey(key string) string {
	return "rec:matrix:" + key
}

// Get mixed recommendations from cache
func (c *Cache) Get(ctx context.Context, userID int64, opts recommend.MixedOptions) (*recommend.RecommendationResult, bool, error) {
	key := resultKey(userID, opts)
	var res recommend.RecommendationResult
	found, err := c.get(ctx, key, &res)
	metrics.RecordCacheLookup("result", found, err)
	if err != nil || !found {
		return nil, false, err
	}
	return &res, true, nil
}

// Store mixed recommendations in cache
func (c *Cache) Set(ctx context.Context, userID int64, opts recommend.MixedOptions, res *recommend.RecommendationResult) error {
	return c.set(ctx, resultKey(userID, opts), res, c.ttl)
}

func (c *Cache) GetMatrix(ctx context.Context, key string) (recommend.InteractionMatrix, bool, error) {
	var m recommend.InteractionMatrix
	found, err := c.get(ctx, matrixKey(key), &m)
	metrics.RecordCacheLookup("matrix", found, err)
	if err != nil || !found {
		return nil, false, err
	}
	return m, true, nil
}

func (c *Cache) SetMatrix(ctx context.Context, key string, m recommend.InteractionMatrix, ttl time.Duration) error {
	return c.set(ctx, matrixKey(key), m, ttl)
}

func (c *Cache) get(ctx context.Context, key string, dst any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(val, dst); err != nil {
		return false, fmt.Errorf("unmarshal cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache entry %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// ClearUserCache drops every cached result of the user. Used when the user's
// engagement changes.
func (c *Cache) ClearUserCache(ctx context.Context, userID int64) error {
	pattern := userPrefix(userID) + "*"
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache delete %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", pattern, err)
	}
	c.log.Debug().Int64("user_id", userID).Int("deleted", deleted).Msg("user cache cleared")
	return nil
}

// Ping connectivity
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
