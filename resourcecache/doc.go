// Package resourcecache adds a TTL cache and one-shot async resolution on
// top of resource.Resolvable values.
//
// Cached routes a Query, Finder or association proxy through a
// cache.CacheService keyed by the wrapped signature:
//
//	d, _ := resourcecache.New(svc)
//	users := resourcecache.Cached[[]*resource.Record](d, client.Query("User").Scope("active"), time.Minute)
//	list, err := users.Resolve(ctx)
//
// Once the entry expires or is invalidated the next Resolve loads again. A
// Query fetches on every load; finders and proxies memoize, so later loads
// go through their Refresh method.
//
// Async starts a resolution in the background and returns a Future whose
// Resolve blocks until it completes. Both wrappers are Resolvable, so they
// nest in either order:
//
//	f := resourcecache.Async(ctx, resourcecache.Cached(d, finder, time.Minute))
//	c := resourcecache.Cached(d, resourcecache.Async(ctx, finder), time.Minute)
//
// Every key a Decorator writes is tracked under the class tags reported by
// the wrapped value and under tags attached with WithCacheTags. InvalidateTag
// removes them; InvalidatePrefix removes keys by prefix.
//
// Errors are never cached. Concurrent misses for one key may load more than
// once; the last write wins.
package resourcecache
