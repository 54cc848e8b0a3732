package cache

import (
	"github.com/goliatone/go-remote-resource/internal/cacheinfra"
)

// Config holds the sturdyc settings. It aliases the internal configuration
// so callers never convert between the two.
type Config = cacheinfra.Config

// EarlyRefreshConfig holds the sturdyc early refresh settings.
type EarlyRefreshConfig = cacheinfra.EarlyRefreshConfig

// DefaultConfig returns the cache defaults.
func DefaultConfig() Config {
	return cacheinfra.DefaultConfig()
}

// NewCacheService validates cfg and builds the sturdyc backed cache service.
func NewCacheService(cfg Config) (CacheService, error) {
	svc, err := cacheinfra.NewService(cfg)
	if err != nil {
		return nil, err
	}
	return &sturdycService{inner: svc}, nil
}
