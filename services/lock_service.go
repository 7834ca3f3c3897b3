package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MonkyMars/gecho"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
)

var ErrCrawlLocked = errors.New("crawl already running")

// LockService guards a crawl so two processes never scrape the same
// (platform, type) at once. Without redis every lock is granted locally.
type LockService struct {
	logger *gecho.Logger
	rs     *redsync.Redsync
	expiry time.Duration
}

func NewLockService(logger *gecho.Logger, cache *CacheService, expiry time.Duration) *LockService {
	if expiry <= 0 {
		expiry = 2 * time.Hour
	}
	ls := &LockService{logger: logger, expiry: expiry}
	if client := cache.Client(); client != nil {
		ls.rs = redsync.New(goredis.NewPool(client))
	}
	return ls
}

func crawlLockKey(platform, contentType string) string {
	return fmt.Sprintf("%scrawl_lock:%s:%s", cacheKeyPrefix, strings.ToLower(platform), strings.ToLower(contentType))
}

// AcquireCrawlLock takes the lock for one crawl. The returned release func
// must be called when the crawl ends. ErrCrawlLocked means another process
// holds it.
func (ls *LockService) AcquireCrawlLock(ctx context.Context, platform, contentType string) (func(), error) {
	if ls == nil || ls.rs == nil {
		return func() {}, nil
	}

	key := crawlLockKey(platform, contentType)
	mutex := ls.rs.NewMutex(key,
		redsync.WithExpiry(ls.expiry),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		// a single try fails both when the key is taken and when redis is down
		return nil, fmt.Errorf("%w: %s: %w", ErrCrawlLocked, key, err)
	}
	ls.logger.Debug("Acquired crawl lock", gecho.Field("key", key))

	return func() {
		// the crawl context may already be cancelled at release time
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			ls.logger.Warn("Failed to release crawl lock", gecho.Field("key", key), gecho.Field("error", err))
		}
	}, nil
}
