package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/viccon/sturdyc"
)

type mockCacheService struct {
	result  any
	err     error
	lastTTL time.Duration
}

func (m *mockCacheService) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFn[any]) (any, error) {
	m.lastTTL = ttl
	return m.result, m.err
}

func (m *mockCacheService) Delete(ctx context.Context, key string) error { return nil }

func (m *mockCacheService) DeleteByPrefix(ctx context.Context, prefix string) error { return nil }

func TestGetOrFetch_NilInterface(t *testing.T) {
	mock := &mockCacheService{}

	type SomeInterface interface{ DoSomething() string }

	result, err := GetOrFetch[SomeInterface](context.Background(), mock, "key", time.Second, func(ctx context.Context) (SomeInterface, error) {
		return nil, nil
	})
	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
	if mock.lastTTL != time.Second {
		t.Errorf("ttl not forwarded: %v", mock.lastTTL)
	}
}

func TestGetOrFetch_TypedNilPointer(t *testing.T) {
	mock := &mockCacheService{result: (*string)(nil)}

	result, err := GetOrFetch[*string](context.Background(), mock, "key", 0, func(ctx context.Context) (*string, error) {
		return nil, nil
	})
	if err != nil || result != nil {
		t.Errorf("expected nil, nil; got %v, %v", result, err)
	}
}

func TestGetOrFetch_TypeMismatch(t *testing.T) {
	mock := &mockCacheService{result: "wrong-type"}

	result, err := GetOrFetch[int](context.Background(), mock, "key", 0, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if !errors.Is(err, ErrInvalidResultType) {
		t.Errorf("expected ErrInvalidResultType but got: %v", err)
	}
	if result != 0 {
		t.Errorf("expected zero value but got: %v", result)
	}
}

func TestGetOrFetch_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	mock := &mockCacheService{err: boom}

	if _, err := GetOrFetch[string](context.Background(), mock, "key", 0, func(ctx context.Context) (string, error) {
		return "", nil
	}); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestNewCacheService_ExpiresWithClock(t *testing.T) {
	clock := sturdyc.NewTestClock(time.Now())
	cfg := DefaultConfig()
	cfg.Capacity = 100
	cfg.NumShards = 2
	cfg.Clock = clock

	svc, err := NewCacheService(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loads := 0
	fetch := func(ctx context.Context) (string, error) {
		loads++
		return "value", nil
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		got, err := GetOrFetch(ctx, svc, "key", time.Minute, fetch)
		if err != nil || got != "value" {
			t.Fatalf("unexpected result %q (%v)", got, err)
		}
	}
	if loads != 1 {
		t.Fatalf("expected one load within TTL, got %d", loads)
	}

	clock.Add(2 * time.Minute)
	if _, err := GetOrFetch(ctx, svc, "key", time.Minute, fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loads != 2 {
		t.Fatalf("expected a fresh load after expiry, got %d", loads)
	}

	if err := svc.Delete(ctx, "key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := GetOrFetch(ctx, svc, "key", time.Minute, fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loads != 3 {
		t.Fatalf("expected a fresh load after delete, got %d", loads)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	cfg.TTL = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero TTL")
	}
	if _, err := NewCacheService(cfg); err == nil {
		t.Fatal("expected constructor to reject invalid config")
	}
}
