// Package cache provides the read-through cache contract and key
// serialization used by the resolution engine.
//
// # Overview
//
//   - CacheService: read-through GetOrFetch with a per-call TTL, plus key and
//     prefix deletion
//   - KeySerializer: builds stable cache keys from a method name and arguments
//
// NewCacheService returns the sturdyc backed implementation. sturdyc fixes
// the TTL per client, so the service keeps one client per distinct TTL.
//
// # Basic Usage
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	serializer := cache.NewDefaultKeySerializer()
//	key := serializer.SerializeKey("users", cond)
//	user, err := cache.GetOrFetch(ctx, svc, key, time.Minute, func(ctx context.Context) (*resource.Record, error) {
//		return finder.Resolve(ctx)
//	})
//
// # Key Serialization Strategy
//
// Values implementing Signer (conditions, finders, cached resolvables) are
// keyed by their signature. Everything else goes through reflection:
//
//   - Maps: sorted key=value pairs
//   - Structs: exported fields as name:value pairs
//   - Slices and arrays: recursive
//   - Functions and channels: their address, stable only within one process
//   - Anything else: JSON
//
// WithHashedArgs collapses long argument lists into an xxhash digest while
// leaving the method segment readable for DeleteByPrefix.
//
// # Testing
//
// Config.Clock accepts a sturdyc.TestClock so expiry can be driven without
// sleeping.
package cache
