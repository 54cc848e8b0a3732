package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/goliatone/go-remote-resource/cache"
	"github.com/goliatone/go-remote-resource/internal/metrics"
	"github.com/goliatone/go-remote-resource/store"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/goliatone/go-remote-resource/resource"

// storeKeyPrefix namespaces cached store answers by class so a class can be
// invalidated with a single prefix delete.
const storeKeyPrefix = "store"

// Client resolves queries declared against a Schema using a Store.
type Client struct {
	store      store.Store
	schema     *Schema
	cfg        Config
	logger     *slog.Logger
	cache      cache.CacheService
	serializer cache.KeySerializer
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client) error

// WithLogger sets the structured logger. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithCache routes store answers through svc when a TTL applies.
func WithCache(svc cache.CacheService) Option {
	return func(c *Client) error {
		c.cache = svc
		return nil
	}
}

// WithKeySerializer replaces the serializer used for cache keys and proxy
// signatures.
func WithKeySerializer(serializer cache.KeySerializer) Option {
	return func(c *Client) error {
		if serializer != nil {
			c.serializer = serializer
		}
		return nil
	}
}

// WithMetrics registers resolution collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) error {
		m, err := metrics.New(reg)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		c.metrics = m
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry provider. Defaults to the
// global provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *Client) error {
		if provider != nil {
			c.tracer = provider.Tracer(instrumentationName)
		}
		return nil
	}
}

// WithConfig replaces the whole engine configuration.
func WithConfig(cfg Config) Option {
	return func(c *Client) error {
		c.cfg = cfg
		return nil
	}
}

// WithBatchSize sets the number of ids per eager-load fetch.
func WithBatchSize(size int) Option {
	return func(c *Client) error {
		c.cfg.BatchSize = size
		return nil
	}
}

// WithBatchConcurrency bounds concurrent eager-load batch fetches.
func WithBatchConcurrency(n int) Option {
	return func(c *Client) error {
		c.cfg.BatchConcurrency = n
		return nil
	}
}

// WithDefaultTTL caches every store answer for ttl when a cache is set.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		c.cfg.DefaultTTL = ttl
		return nil
	}
}

// NewClient builds a client over st resolving classes from schema.
func NewClient(st store.Store, schema *Schema, opts ...Option) (*Client, error) {
	if st == nil {
		return nil, errors.New("resource: store must be provided")
	}
	if schema == nil {
		return nil, errors.New("resource: schema must be provided")
	}

	c := &Client{
		store:      st,
		schema:     schema,
		cfg:        DefaultConfig(),
		logger:     slog.New(slog.DiscardHandler),
		serializer: cache.NewDefaultKeySerializer(),
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("resource: invalid config: %w", err)
	}
	return c, nil
}

// Schema returns the class schema.
func (c *Client) Schema() *Schema { return c.schema }

// Config returns the engine configuration.
func (c *Client) Config() Config { return c.cfg }

// Find resolves the record of class identified by id.
func (c *Client) Find(ctx context.Context, class string, id any) (*Record, error) {
	return c.Query(class).Find(ctx, id)
}

// All resolves every record of class.
func (c *Client) All(ctx context.Context, class string) ([]*Record, error) {
	return c.Query(class).All(ctx)
}

// NewRecord builds a detached record of class from attrs.
func (c *Client) NewRecord(class string, attrs map[string]any) (*Record, error) {
	cls, err := c.schema.Class(class)
	if err != nil {
		return nil, err
	}
	return c.newRecord(cls, attrs), nil
}

// InvalidateClass drops every cached store answer for class.
func (c *Client) InvalidateClass(ctx context.Context, class string) error {
	if c.cache == nil {
		return nil
	}
	cls, err := c.schema.Class(class)
	if err != nil {
		return err
	}
	return c.cache.DeleteByPrefix(ctx, c.storeKeyMethod(cls)+cache.KeySeparator)
}

func (c *Client) storeKeyMethod(class *Class) string {
	return storeKeyPrefix + cache.KeySeparator + toSnake(class.Name())
}

type fetchRequest struct {
	class *Class
	kind  Kind
	path  string
	query url.Values
	ttl   time.Duration
}

// get performs one store fetch, going through the cache service when a
// TTL applies.
func (c *Client) get(ctx context.Context, req fetchRequest) (*store.Response, error) {
	load := func(ctx context.Context) (*store.Response, error) {
		c.logger.DebugContext(ctx, "store fetch",
			"class", req.class.Name(),
			"kind", req.kind.String(),
			"path", req.path,
			"query", req.query.Encode(),
		)
		resp, err := c.store.Get(ctx, req.path, req.query)
		c.metrics.Fetch(req.class.Name(), req.kind.String(), err)
		if err == nil && resp == nil {
			resp = &store.Response{}
		}
		return resp, err
	}

	ttl := req.ttl
	if ttl == 0 {
		ttl = c.cfg.DefaultTTL
	}
	if c.cache == nil || ttl <= 0 {
		return load(ctx)
	}

	key := c.serializer.SerializeKey(c.storeKeyMethod(req.class), req.path, req.query.Encode())
	return cache.GetOrFetch[*store.Response](ctx, c.cache, key, ttl, load)
}
