package scripts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/GriffinCanCode/modbridge/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// sharedFetchTimeout bounds a network fetch shared by several callers.
const sharedFetchTimeout = time.Minute

// Fetcher downloads a script body by hash.
type Fetcher interface {
	Fetch(ctx context.Context, hash string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, hash string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, hash string) (string, error) {
	return f(ctx, hash)
}

// Cache is the two-tier script cache in front of a Fetcher.
type Cache struct {
	fetcher Fetcher
	store   *store.Store
	group   singleflight.Group
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu  sync.RWMutex
	mem map[string]string
}

// NewCache creates a cache. A nil store keeps only the memory tier.
func NewCache(fetcher Fetcher, st *store.Store, log *zap.Logger, metrics *monitoring.Metrics) *Cache {
	return &Cache{
		fetcher: fetcher,
		store:   st,
		log:     logging.OrNop(log),
		metrics: metrics,
		mem:     make(map[string]string),
	}
}

// FetchScript goes straight to the network and caches a successful body in
// both tiers. It reports false on any failure.
func (c *Cache) FetchScript(ctx context.Context, hash string) (string, bool) {
	src, err := c.download(ctx, hash)
	if err != nil {
		c.log.Warn("script fetch failed", zap.String("hash", hash), zap.Error(err))
		return "", false
	}
	return src, true
}

// GetScript returns the body for hash from the first tier that has it.
func (c *Cache) GetScript(ctx context.Context, hash string) (string, bool) {
	src, err := c.Lookup(ctx, hash)
	if err != nil {
		c.log.Warn("script unavailable", zap.String("hash", hash), zap.Error(err))
		return "", false
	}
	return src, true
}

// Lookup is GetScript keeping the failure cause.
func (c *Cache) Lookup(ctx context.Context, hash string) (string, error) {
	if src, ok := c.memory(hash); ok {
		c.metrics.RecordCacheLookup("memory")
		return src, nil
	}

	if c.store != nil {
		var src string
		ok, err := c.store.Get(store.ScopeLocal, store.ScriptKey(hash), &src)
		if err != nil {
			c.log.Warn("script store read failed", zap.String("hash", hash), zap.Error(err))
		} else if ok && src != "" {
			c.metrics.RecordCacheLookup("store")
			c.remember(hash, src)
			return src, nil
		}
	}

	c.metrics.RecordCacheLookup("network")
	return c.download(ctx, hash)
}

// Forget drops hash from the memory tier. The stored copy stays.
func (c *Cache) Forget(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.mem, hash)
}

// download collapses concurrent network fetches of one hash into one.
func (c *Cache) download(ctx context.Context, hash string) (string, error) {
	if c.fetcher == nil {
		return "", fmt.Errorf("%w: no fetcher configured", types.ErrFetch)
	}

	// The fetch outlives any one caller; each caller stops waiting on its own ctx.
	ch := c.group.DoChan(hash, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		src, err := c.fetcher.Fetch(fetchCtx, hash)
		if err != nil {
			return "", err
		}
		c.remember(hash, src)
		if c.store != nil {
			if err := c.store.Set(store.ScopeLocal, store.ScriptKey(hash), src); err != nil {
				c.log.Warn("script store write failed", zap.String("hash", hash), zap.Error(err))
			}
		}
		return src, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.log.Debug("script fetch shared", zap.String("hash", hash))
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Cache) memory(hash string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src, ok := c.mem[hash]
	return src, ok
}

func (c *Cache) remember(hash, src string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[hash] = src
}
