package resourcecache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-remote-resource/cache"
	"github.com/goliatone/go-remote-resource/internal/metrics"
	"github.com/goliatone/go-remote-resource/resource"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
)

// KeyPrefix starts every key written by a Decorator.
const KeyPrefix = "resolve" + cache.KeySeparator

const keyMethod = "resolve"

// Tagged is implemented by resolvables that know which cache tags their
// result belongs to. Finders report their class, and the class plus id for
// single record lookups.
type Tagged interface {
	CacheTags() []string
}

// Decorator routes resolvables through a CacheService and tracks the keys
// it writes under tags for targeted invalidation.
type Decorator struct {
	cache      cache.CacheService
	serializer cache.KeySerializer
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tags       *xsync.MapOf[string, *xsync.MapOf[string, struct{}]]
	keys       *xsync.MapOf[string, struct{}]
}

// Option configures a Decorator.
type Option func(*Decorator) error

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decorator) error {
		if logger != nil {
			d.logger = logger
		}
		return nil
	}
}

// WithKeySerializer replaces the default key serializer.
func WithKeySerializer(serializer cache.KeySerializer) Option {
	return func(d *Decorator) error {
		if serializer != nil {
			d.serializer = serializer
		}
		return nil
	}
}

// WithMetrics counts underlying loads on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(d *Decorator) error {
		m, err := metrics.New(reg)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		d.metrics = m
		return nil
	}
}

// New builds a Decorator on svc.
func New(svc cache.CacheService, opts ...Option) (*Decorator, error) {
	if svc == nil {
		return nil, fmt.Errorf("resourcecache: cache service is required")
	}
	d := &Decorator{
		cache:      svc,
		serializer: cache.NewDefaultKeySerializer(),
		logger:     slog.New(slog.DiscardHandler),
		tags:       xsync.NewMapOf[string, *xsync.MapOf[string, struct{}]](),
		keys:       xsync.NewMapOf[string, struct{}](),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// CachedResolvable resolves its inner resolvable through the cache.
//
// The first load uses the inner Resolve, so seeded proxies and finders that
// were already resolved fill the cache without I/O. Every later load, after
// expiry or invalidation, goes through Refresh when the inner resolvable
// memoizes its outcome. A Query reaches the store on every Resolve and needs
// no refresh.
type CachedResolvable[T any] struct {
	d      *Decorator
	inner  resource.Resolvable[T]
	ttl    time.Duration
	loaded atomic.Bool
}

var _ resource.Resolvable[*resource.Record] = (*CachedResolvable[*resource.Record])(nil)

// Cached wraps r so its result is kept for ttl. A non-positive ttl selects
// the cache service default.
func Cached[T any](d *Decorator, r resource.Resolvable[T], ttl time.Duration) *CachedResolvable[T] {
	return &CachedResolvable[T]{d: d, inner: r, ttl: ttl}
}

// Signature identifies the cached request. It differs from the inner
// signature so nested wrappers use distinct keys.
func (c *CachedResolvable[T]) Signature() string {
	return "cached:" + c.inner.Signature()
}

// Key returns the cache key the result is stored under.
func (c *CachedResolvable[T]) Key() string {
	return c.d.serializer.SerializeKey(keyMethod, c.Signature())
}

// CacheTags forwards the inner resolvable tags.
func (c *CachedResolvable[T]) CacheTags() []string {
	if tagged, ok := c.inner.(Tagged); ok {
		return tagged.CacheTags()
	}
	return nil
}

// Resolve returns the cached value, loading it through the inner
// resolvable on a miss or after expiry. Errors are not cached.
func (c *CachedResolvable[T]) Resolve(ctx context.Context) (T, error) {
	key := c.Key()
	c.d.track(key, append(c.CacheTags(), cacheTagsFromContext(ctx)...))
	return cache.GetOrFetch(ctx, c.d.cache, key, c.ttl, func(ctx context.Context) (T, error) {
		c.d.logger.DebugContext(ctx, "cache load", "key", key, "ttl", c.ttl)
		value, err := c.load(ctx)
		c.d.metrics.CacheLoad(err)
		return value, err
	})
}

func (c *CachedResolvable[T]) load(ctx context.Context) (T, error) {
	if refresher, ok := c.inner.(resource.Refresher[T]); ok && c.loaded.Swap(true) {
		return refresher.Refresh(ctx)
	}
	return c.inner.Resolve(ctx)
}

func (d *Decorator) track(key string, tags []string) {
	d.keys.Store(key, struct{}{})
	for _, tag := range dedupeStrings(tags) {
		set, _ := d.tags.LoadOrCompute(tag, func() *xsync.MapOf[string, struct{}] {
			return xsync.NewMapOf[string, struct{}]()
		})
		set.Store(key, struct{}{})
	}
}

// Keys returns the tracked keys registered under tag, sorted.
func (d *Decorator) Keys(tag string) []string {
	set, ok := d.tags.Load(tag)
	if !ok {
		return nil
	}
	keys := make([]string, 0, set.Size())
	set.Range(func(key string, _ struct{}) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	return keys
}

// InvalidateTag deletes every key registered under tag. Deletion continues
// past failures; the first error is returned.
func (d *Decorator) InvalidateTag(ctx context.Context, tag string) error {
	set, ok := d.tags.LoadAndDelete(tag)
	if !ok {
		return nil
	}
	var firstErr error
	count := 0
	set.Range(func(key string, _ struct{}) bool {
		if err := d.cache.Delete(ctx, key); err != nil {
			d.logger.WarnContext(ctx, "cache delete failed", "key", key, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			return true
		}
		d.keys.Delete(key)
		count++
		return true
	})
	d.logger.DebugContext(ctx, "invalidated tag", "tag", tag, "keys", count)
	return firstErr
}

// InvalidatePrefix deletes every cached key starting with prefix. Keys
// written by a Decorator start with KeyPrefix.
func (d *Decorator) InvalidatePrefix(ctx context.Context, prefix string) error {
	if err := d.cache.DeleteByPrefix(ctx, prefix); err != nil {
		return fmt.Errorf("invalidate prefix %q: %w", prefix, err)
	}
	d.keys.Range(func(key string, _ struct{}) bool {
		if strings.HasPrefix(key, prefix) {
			d.keys.Delete(key)
		}
		return true
	})
	d.tags.Range(func(tag string, set *xsync.MapOf[string, struct{}]) bool {
		set.Range(func(key string, _ struct{}) bool {
			if strings.HasPrefix(key, prefix) {
				set.Delete(key)
			}
			return true
		})
		return true
	})
	return nil
}
