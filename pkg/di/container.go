package di

import (
	"log/slog"
	"time"

	"github.com/goliatone/go-remote-resource/cache"
	"github.com/goliatone/go-remote-resource/resource"
	"github.com/goliatone/go-remote-resource/resourcecache"
	"github.com/goliatone/go-remote-resource/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Container provides dependency injection for cache related components.
// It owns a single cache service and key serializer and hands them to every
// client and decorator it builds, so cached store answers and cached
// resolvables share one backing cache.
type Container struct {
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	decorator     *resourcecache.Decorator
	config        cache.Config
	logger        *slog.Logger
	registerer    prometheus.Registerer
}

// ContainerOption configures a Container.
type ContainerOption func(*Container)

// WithLogger sets the logger passed to clients and the decorator.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegisterer registers resolution metrics on reg.
func WithRegisterer(reg prometheus.Registerer) ContainerOption {
	return func(c *Container) {
		c.registerer = reg
	}
}

// NewContainer creates a new DI container with the provided cache
// configuration. The configuration is validated by the cache service.
func NewContainer(config cache.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		config: config,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	cacheService, err := cache.NewCacheService(config)
	if err != nil {
		return nil, err
	}
	c.cacheService = cacheService
	c.keySerializer = cache.NewDefaultKeySerializer()

	decorator, err := resourcecache.New(cacheService,
		resourcecache.WithLogger(c.logger),
		resourcecache.WithKeySerializer(c.keySerializer),
		resourcecache.WithMetrics(c.registerer),
	)
	if err != nil {
		return nil, err
	}
	c.decorator = decorator
	return c, nil
}

// NewContainerWithDefaults creates a new DI container using default configuration.
func NewContainerWithDefaults(opts ...ContainerOption) (*Container, error) {
	return NewContainer(cache.DefaultConfig(), opts...)
}

// CacheService returns the singleton cache service instance.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// KeySerializer returns the singleton key serializer instance.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Decorator returns the singleton resolvable decorator.
func (c *Container) Decorator() *resourcecache.Decorator {
	return c.decorator
}

// Config returns a copy of the cache configuration used by this container.
func (c *Container) Config() cache.Config {
	return c.config
}

// NewClient builds a resource client on st and schema whose store answers
// go through the container cache. opts are applied after the container
// defaults and may override them.
func (c *Container) NewClient(st store.Store, schema *resource.Schema, opts ...resource.Option) (*resource.Client, error) {
	base := []resource.Option{
		resource.WithCache(c.cacheService),
		resource.WithKeySerializer(c.keySerializer),
		resource.WithLogger(c.logger),
		resource.WithMetrics(c.registerer),
		resource.WithDefaultTTL(c.config.TTL),
	}
	return resource.NewClient(st, schema, append(base, opts...)...)
}

// NewCachedResolvable wraps r with the container decorator.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewCachedResolvable[*resource.Record](container, client.Query("User").Finder(1), time.Minute)
func NewCachedResolvable[T any](container *Container, r resource.Resolvable[T], ttl time.Duration) *resourcecache.CachedResolvable[T] {
	return resourcecache.Cached(container.decorator, r, ttl)
}
