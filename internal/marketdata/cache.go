package marketdata

import (
	"context"
	"time"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/storage/barcache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedFetcher deduplicates concurrent fetches for the same request and
// persists results to an optional bar cache.
type CachedFetcher struct {
	provider string
	upstream Fetcher
	store    barcache.Store
	group    singleflight.Group
	logger   *zap.Logger
}

// NewCachedFetcher wraps upstream. store may be nil to disable persistence.
func NewCachedFetcher(provider string, upstream Fetcher, store barcache.Store, logger *zap.Logger) *CachedFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedFetcher{
		provider: provider,
		upstream: upstream,
		store:    store,
		logger:   logger,
	}
}

func (c *CachedFetcher) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	key := barcache.Key(c.provider, symbol, interval, start, end)

	v, err, shared := c.group.Do(key, func() (any, error) {
		if c.store != nil {
			bars, ok, err := c.store.Load(ctx, key)
			if err != nil {
				c.logger.Warn("bar cache read failed", zap.String("key", key), zap.Error(err))
			} else if ok && len(bars) > 0 {
				c.logger.Debug("bar cache hit", zap.String("key", key), zap.Int("bars", len(bars)))
				return bars, nil
			}
		}

		bars, err := c.upstream.FetchHistory(ctx, symbol, start, end, interval)
		if err != nil {
			return nil, err
		}

		if c.store != nil {
			if err := c.store.Save(ctx, key, bars); err != nil {
				c.logger.Warn("bar cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return bars, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("historical fetch shared", zap.String("key", key))
	}

	// callers may share one result; hand each its own slice
	bars := v.([]core.OHLCV)
	return append([]core.OHLCV(nil), bars...), nil
}
