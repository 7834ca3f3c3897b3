package services

import (
	"context"
	"diffly_crawler/structs"
	"diffly_crawler/structs/tables"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/MonkyMars/gecho"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "diffly:"

// CacheService is a read-through cache for lookup rows that never change
// during a crawl (regions and stores). It is optional: a service built
// without an address, or a nil *CacheService, turns every call into a miss
// or a no-op.
type CacheService struct {
	logger *gecho.Logger
	config *structs.CacheConfig
	client *redis.Client
}

func NewCacheService(logger *gecho.Logger, cfg *structs.CacheConfig) *CacheService {
	cs := &CacheService{logger: logger, config: cfg}
	if cfg == nil || cfg.Address == "" {
		return cs
	}

	cs.client = redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	})
	return cs
}

// Enabled reports whether a redis client is configured.
func (cs *CacheService) Enabled() bool {
	return cs != nil && cs.client != nil
}

// Client exposes the underlying redis client, nil when disabled.
func (cs *CacheService) Client() *redis.Client {
	if !cs.Enabled() {
		return nil
	}
	return cs.client
}

func (cs *CacheService) Close() error {
	if !cs.Enabled() {
		return nil
	}
	return cs.client.Close()
}

// withRetry runs a redis operation with exponential backoff and jitter.
func (cs *CacheService) withRetry(ctx context.Context, operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}
		if !isRetryableCacheError(err) {
			return err
		}

		backoff := min(100*time.Millisecond<<attempt, 2*time.Second)
		// jitter in [backoff/2, backoff]
		wait := backoff/2 + rand.N(backoff/2+1)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("redis operation failed after %d retries: %w", maxRetries, lastErr)
}

func isRetryableCacheError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()
	retryableErrors := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"broken pipe",
		"no such host",
		"network is unreachable",
	}
	for _, retryableErr := range retryableErrors {
		if strings.Contains(errStr, retryableErr) {
			return true
		}
	}
	return false
}

func (cs *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !cs.Enabled() {
		return nil
	}
	return cs.withRetry(ctx, func() error {
		return cs.client.Set(ctx, key, value, ttl).Err()
	}, 3)
}

// Get returns "" without error when the key is absent.
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	if !cs.Enabled() {
		return "", nil
	}

	var result string
	err := cs.withRetry(ctx, func() error {
		val, err := cs.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			result = ""
			return nil
		}
		if err != nil {
			return err
		}
		result = val
		return nil
	}, 3)
	if err != nil {
		return "", err
	}
	return result, nil
}

func (cs *CacheService) Delete(ctx context.Context, keys ...string) error {
	if !cs.Enabled() || len(keys) == 0 {
		return nil
	}
	return cs.withRetry(ctx, func() error {
		return cs.client.Del(ctx, keys...).Err()
	}, 3)
}

func (cs *CacheService) Ping(ctx context.Context) error {
	if !cs.Enabled() {
		return nil
	}
	return cs.withRetry(ctx, func() error {
		return cs.client.Ping(ctx).Err()
	}, 3)
}

// GetConnectionStats returns redis pool statistics, nil when disabled.
func (cs *CacheService) GetConnectionStats() map[string]any {
	if !cs.Enabled() {
		return nil
	}
	stats := cs.client.PoolStats()
	return map[string]any{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}

// ============================================================================
// Lookup rows
// ============================================================================

func regionCacheKey(code string) string {
	return cacheKeyPrefix + "region:" + code
}

func storeCacheKey(name string) string {
	return cacheKeyPrefix + "store:" + strings.ToLower(name)
}

func (cs *CacheService) GetRegion(ctx context.Context, code string) (*tables.Region, error) {
	return getJSON[tables.Region](ctx, cs, regionCacheKey(code))
}

func (cs *CacheService) SetRegion(ctx context.Context, region *tables.Region) error {
	if region == nil {
		return nil
	}
	return setJSON(ctx, cs, regionCacheKey(region.Code), region, cs.lookupTTL())
}

func (cs *CacheService) GetStore(ctx context.Context, name string) (*tables.Store, error) {
	return getJSON[tables.Store](ctx, cs, storeCacheKey(name))
}

func (cs *CacheService) SetStore(ctx context.Context, store *tables.Store) error {
	if store == nil {
		return nil
	}
	return setJSON(ctx, cs, storeCacheKey(store.Name), store, cs.lookupTTL())
}

// InvalidateLookups drops every cached region and store. The migrate command
// calls it after reseeding. Other keys under the prefix, such as crawl locks,
// are left alone.
func (cs *CacheService) InvalidateLookups(ctx context.Context) error {
	if !cs.Enabled() {
		return nil
	}
	for _, pattern := range lookupPatterns() {
		keys, err := cs.scanKeys(ctx, pattern)
		if err != nil {
			return err
		}
		if err := cs.Delete(ctx, keys...); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
	}
	return nil
}

func lookupPatterns() []string {
	return []string{regionCacheKey("*"), storeCacheKey("*")}
}

func (cs *CacheService) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := cs.withRetry(ctx, func() error {
		keys = keys[:0]
		var cursor uint64
		for {
			batch, next, err := cs.client.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			keys = append(keys, batch...)
			cursor = next
			if cursor == 0 {
				return nil
			}
		}
	}, 3)
	return keys, err
}

func (cs *CacheService) lookupTTL() time.Duration {
	if cs != nil && cs.config != nil && cs.config.LookupTTL > 0 {
		return cs.config.LookupTTL
	}
	return time.Hour
}

func setJSON[T any](ctx context.Context, cs *CacheService, key string, value T, ttl time.Duration) error {
	if !cs.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return cs.Set(ctx, key, data, ttl)
}

func getJSON[T any](ctx context.Context, cs *CacheService, key string) (*T, error) {
	val, err := cs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if val == "" {
		return nil, nil
	}

	var result T
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
