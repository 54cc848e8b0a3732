package resource

import "context"

// Resolvable is a deferred value identified by a signature. Finders,
// queries and association proxies implement it, and so do the caching and
// async wrappers built on top of them.
type Resolvable[T any] interface {
	Resolve(ctx context.Context) (T, error)
	Signature() string
}

// Refresher is implemented by resolvables that memoize their outcome.
// Refresh skips the memo and loads again from the store.
type Refresher[T any] interface {
	Refresh(ctx context.Context) (T, error)
}

var (
	_ Resolvable[*Record]   = (*Finder[*Record])(nil)
	_ Resolvable[[]*Record] = (*Finder[[]*Record])(nil)
	_ Resolvable[[]*Record] = (*Query)(nil)
	_ Resolvable[[]*Record] = (*MultiProxy)(nil)
	_ Resolvable[*Record]   = (*SingleProxy)(nil)

	_ Refresher[*Record]   = (*Finder[*Record])(nil)
	_ Refresher[[]*Record] = (*MultiProxy)(nil)
	_ Refresher[*Record]   = (*SingleProxy)(nil)
)
