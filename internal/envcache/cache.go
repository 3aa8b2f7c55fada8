// Package envcache caches loaded environment policy trees behind a TTL,
// coalescing concurrent misses for the same environment into a single load.
package envcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/org/jitaccess/internal/apperrors"
	"github.com/org/jitaccess/internal/logging"
	"github.com/org/jitaccess/internal/policy"
)

// Loader is the collaborator that actually loads an environment's policy
// tree from wherever it lives (a policy document store, a config bucket).
// Names lists every known environment without loading any of them.
type Loader interface {
	Names(ctx context.Context) ([]string, error)
	Load(ctx context.Context, name string) (*policy.EnvironmentPolicy, error)
}

type entry struct {
	tree     *policy.EnvironmentPolicy
	loadedAt time.Time
}

// Cache is a TTL-bounded, singleflight-coalesced environment loader. It
// satisfies catalog.Source.
type Cache struct {
	loader Loader
	ttl    time.Duration
	logger logging.Logger

	mu      sync.Mutex
	entries map[string]*entry

	group singleflight.Group
}

// New creates a Cache. ttl of zero disables caching (every Lookup reloads).
func New(loader Loader, ttl time.Duration, logger logging.Logger) *Cache {
	return &Cache{loader: loader, ttl: ttl, logger: logger, entries: make(map[string]*entry)}
}

// Environments lists every known environment name, bypassing the cache
// entirely since it never loads a tree.
func (c *Cache) Environments(ctx context.Context) ([]string, error) {
	return c.loader.Names(ctx)
}

// Lookup returns the cached tree for name if still within its TTL,
// otherwise loads it. Concurrent Lookup calls for the same name during a
// miss share one underlying load. A load failure is never cached; it
// surfaces to every waiting caller as apperrors.ResourceNotFound (or
// whatever kind the loader raised) and the next Lookup tries again.
func (c *Cache) Lookup(ctx context.Context, name string) (*policy.EnvironmentPolicy, error) {
	if tree, ok := c.cached(name); ok {
		return tree, nil
	}

	result, err, _ := c.group.Do(name, func() (any, error) {
		tree, err := c.loader.Load(ctx, name)
		if err != nil {
			c.logger.Warn("failed to load environment",
				logging.WithEvent(logging.EventEnvironmentLoadFailed),
				logging.Field("environment", name),
			)
			return nil, err
		}
		c.store(name, tree)
		c.logger.Info("loaded environment",
			logging.WithEvent(logging.EventEnvironmentLoaded),
			logging.Field("environment", name),
		)
		return tree, nil
	})
	if err != nil {
		if _, ok := apperrors.KindOf(err); ok {
			return nil, err
		}
		return nil, apperrors.ResourceNotFound("environment " + name + " not found")
	}
	return result.(*policy.EnvironmentPolicy), nil
}

func (c *Cache) cached(name string) (*policy.EnvironmentPolicy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	if c.ttl <= 0 || time.Since(e.loadedAt) > c.ttl {
		return nil, false
	}
	return e.tree, true
}

func (c *Cache) store(name string, tree *policy.EnvironmentPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = &entry{tree: tree, loadedAt: time.Now()}
}

// Invalidate evicts name so the next Lookup reloads it.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}
