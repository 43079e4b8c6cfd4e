package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
)

// CacheStore persists answers by normalized question key.
// Implemented by database.CacheDBHandler.
type CacheStore interface {
	SelectCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error)
	UpsertCacheEntry(ctx context.Context, entry *model.CacheEntry) error
	DeleteAllCacheEntries(ctx context.Context) (int, error)
	CountCacheEntries(ctx context.Context) (int, error)
}

// Cached memoizes the answers of an Answerer.
// Questions differing only in case or surrounding whitespace share an entry.
// Answers computed across a ClearCache are returned but not stored.
type Cached struct {
	inner  Answerer
	store  CacheStore
	logger *slog.Logger

	// epoch counts clears, writes hold mu for reading while they check it
	mu    sync.RWMutex
	epoch uint64
}

// NewCached wraps inner with the cache in store
func NewCached(inner Answerer, store CacheStore, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		inner:  inner,
		store:  store,
		logger: logger,
	}
}

// Answer returns the cached result for question, or computes and stores it.
// Cache failures are logged and never fail the query, errors of the inner Answerer are not cached.
func (c *Cached) Answer(ctx context.Context, question string, topK int) (*model.QueryResult, error) {
	key := helper.QueryKey(question)
	epoch := c.currentEpoch()

	entry, err := c.store.SelectCacheEntry(ctx, key)
	if err != nil {
		c.logger.Warn("Cache read failed", slog.String("key", key), slog.Any("error", err))
	} else if entry != nil {
		c.logger.Debug("Cache hit", slog.String("key", key))
		result := entry.Result
		result.Cached = true
		return &result, nil
	}

	result, err := c.inner.Answer(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	stored := *result
	stored.Cached = false
	stored.ResponseTime = 0
	c.write(ctx, epoch, &model.CacheEntry{
		Key:    key,
		Query:  question,
		Result: stored,
	})

	return result, nil
}

// write stores entry unless the cache was cleared after epoch
func (c *Cached) write(ctx context.Context, epoch uint64, entry *model.CacheEntry) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.epoch != epoch {
		c.logger.Debug("Skipped caching answer computed across a clear", slog.String("key", entry.Key))
		return
	}

	err := c.store.UpsertCacheEntry(ctx, entry)
	if err != nil {
		c.logger.Warn("Cache write failed", slog.String("key", entry.Key), slog.Any("error", err))
	}
}

func (c *Cached) currentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// ClearCache removes every cached answer and returns how many were removed
func (c *Cached) ClearCache(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	count, err := c.store.DeleteAllCacheEntries(ctx)
	if err != nil {
		return 0, helper.NewError("clear cache", err)
	}
	c.logger.Info("Cleared cache", slog.Int("entries", count))
	return count, nil
}

// CacheStats returns the number of cached answers
func (c *Cached) CacheStats(ctx context.Context) (int, error) {
	count, err := c.store.CountCacheEntries(ctx)
	if err != nil {
		return 0, helper.NewError("cache stats", err)
	}
	return count, nil
}
