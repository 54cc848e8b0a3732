package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-remote-resource/internal/cacheinfra"
)

// ErrInvalidResultType is returned when a cached value does not match the
// type requested by GetOrFetch.
var ErrInvalidResultType = errors.New("cache: invalid result type")

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn loads a value from the source of truth on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService exposes the read-through operations the resolution engine
// needs. A non-positive ttl selects the service default.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFn[any]) (any, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetOrFetch is the type-safe wrapper over CacheService. A nil cached value
// yields the zero T.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, ttl time.Duration, fetchFn FetchFn[T]) (T, error) {
	var zero T
	result, err := service.GetOrFetch(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T, want %T", ErrInvalidResultType, key, result, zero)
	}
	return typed, nil
}

type sturdycService struct {
	inner *cacheinfra.Service
}

func (s *sturdycService) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFn[any]) (any, error) {
	if fetchFn == nil {
		return s.inner.GetOrFetch(ctx, key, ttl, nil)
	}
	return s.inner.GetOrFetch(ctx, key, ttl, cacheinfra.FetchFunc(fetchFn))
}

func (s *sturdycService) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *sturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	return s.inner.DeleteByPrefix(ctx, prefix)
}
