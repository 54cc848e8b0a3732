package cacheinfra

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viccon/sturdyc"
)

// FetchFunc loads a value on a cache miss.
type FetchFunc func(ctx context.Context) (any, error)

const (
	// TTLGranularity is the step bucket lifetimes are rounded up to.
	TTLGranularity = time.Second
	// MaxBuckets bounds the number of sturdyc clients a service allocates.
	MaxBuckets = 16
	// MinEvictionInterval is the shortest sweep period of a bucket.
	MinEvictionInterval = time.Second
)

// nilValue stands in for a nil fetch result, which sturdyc cannot store.
type nilValue struct{}

// Service is a read-through cache with per-call TTLs.
//
// sturdyc fixes the TTL per client, so the service keeps one client per
// bucket lifetime. TTLs are rounded up to TTLGranularity. Once MaxBuckets
// clients exist, a new TTL shares the longest bucket not exceeding it, or
// the shortest bucket when all are longer. Keys are expected to be unique
// across buckets; a key cached under two TTLs lives in two buckets until
// each entry expires.
type Service struct {
	cfg     Config
	mu      sync.RWMutex
	buckets map[time.Duration]*sturdyc.Client[any]
}

// NewService validates cfg and returns a service with its default bucket
// created eagerly.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:     cfg,
		buckets: make(map[time.Duration]*sturdyc.Client[any]),
	}
	s.bucket(cfg.TTL)
	return s, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() Config { return s.cfg }

// bucketTTL maps a requested lifetime onto its bucket lifetime.
func (s *Service) bucketTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}
	if rem := ttl % TTLGranularity; rem != 0 {
		ttl += TTLGranularity - rem
	}
	return ttl
}

func (s *Service) bucket(ttl time.Duration) *sturdyc.Client[any] {
	ttl = s.bucketTTL(ttl)

	s.mu.RLock()
	client, ok := s.buckets[ttl]
	s.mu.RUnlock()
	if ok {
		return client
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.buckets[ttl]; ok {
		return client
	}
	if len(s.buckets) >= MaxBuckets {
		return s.buckets[s.nearestTTL(ttl)]
	}
	client = sturdyc.New[any](
		s.cfg.Capacity,
		s.cfg.NumShards,
		ttl,
		s.cfg.EvictionPercentage,
		append(s.cfg.ToSturdycOptions(), sturdyc.WithEvictionInterval(s.evictionInterval(ttl)))...,
	)
	s.buckets[ttl] = client
	return client
}

// nearestTTL picks the longest allocated lifetime not above ttl, falling
// back to the shortest one. Callers hold s.mu.
func (s *Service) nearestTTL(ttl time.Duration) time.Duration {
	var below, shortest time.Duration
	for existing := range s.buckets {
		if existing <= ttl && existing > below {
			below = existing
		}
		if shortest == 0 || existing < shortest {
			shortest = existing
		}
	}
	if below > 0 {
		return below
	}
	return shortest
}

// evictionInterval is the configured interval, or the sturdyc default of
// ttl per shard, never below MinEvictionInterval.
func (s *Service) evictionInterval(ttl time.Duration) time.Duration {
	interval := s.cfg.EvictionInterval
	if interval <= 0 {
		interval = ttl / time.Duration(s.cfg.NumShards)
	}
	return max(interval, MinEvictionInterval)
}

func (s *Service) clients() []*sturdyc.Client[any] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*sturdyc.Client[any], 0, len(s.buckets))
	for _, client := range s.buckets {
		out = append(out, client)
	}
	return out
}

// GetOrFetch returns the value cached under key, calling fetchFn on a miss
// and storing its result for ttl. A non-positive ttl selects the default.
// Errors are returned as-is and never cached. Nil results are cached.
func (s *Service) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc) (any, error) {
	if fetchFn == nil {
		return nil, &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}
	v, err := s.bucket(ttl).GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		v, err := fetchFn(ctx)
		if v == nil {
			return nilValue{}, err
		}
		return v, err
	})
	return unbox(v), err
}

func unbox(v any) any {
	if _, ok := v.(nilValue); ok {
		return nil
	}
	return v
}

// Get returns the value cached under key in any bucket.
func (s *Service) Get(key string) (any, bool) {
	for _, client := range s.clients() {
		if v, ok := client.Get(key); ok {
			return unbox(v), true
		}
	}
	return nil, false
}

// Delete removes key from every bucket.
func (s *Service) Delete(_ context.Context, key string) error {
	for _, client := range s.clients() {
		client.Delete(key)
	}
	return nil
}

// DeleteByPrefix removes every key starting with prefix.
func (s *Service) DeleteByPrefix(_ context.Context, prefix string) error {
	for _, client := range s.clients() {
		for _, key := range client.ScanKeys() {
			if strings.HasPrefix(key, prefix) {
				client.Delete(key)
			}
		}
	}
	return nil
}

// InvalidateKeys removes each of keys from every bucket.
func (s *Service) InvalidateKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the number of entries across buckets.
func (s *Service) Size() int {
	total := 0
	for _, client := range s.clients() {
		total += client.Size()
	}
	return total
}

// TTLs lists the bucket lifetimes currently allocated.
func (s *Service) TTLs() []time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]time.Duration, 0, len(s.buckets))
	for ttl := range s.buckets {
		out = append(out, ttl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
