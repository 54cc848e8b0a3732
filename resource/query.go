package resource

import (
	"context"
	"time"

	"github.com/goliatone/go-remote-resource/condition"
)

// Query is an immutable builder over one class. Every method returns a new
// Query; the first composition error sticks and is reported by Err and by
// every terminal call, before any I/O.
type Query struct {
	client *Client
	class  *Class
	cond   condition.Condition
	ttl    time.Duration
	err    error
}

// Query starts a builder for class seeded with its default scopes.
func (c *Client) Query(class string) *Query {
	cls, err := c.schema.Class(class)
	q := &Query{client: c, class: cls, err: err}
	if cls != nil {
		q.cond = cls.DefaultCondition()
	}
	return q
}

func (q *Query) with(fn func(*Query) error) *Query {
	if q.err != nil {
		return q
	}
	next := *q
	if err := fn(&next); err != nil {
		next.err = err
	}
	return &next
}

// Scope applies a named class scope.
func (q *Query) Scope(name string, args ...any) *Query {
	return q.with(func(next *Query) error {
		scoped, err := q.class.Scopes().Apply(q.class.Name(), name, args...)
		if err != nil {
			return err
		}
		next.cond, err = q.cond.Merge(scoped)
		return err
	})
}

// Where merges a plain filter map.
func (q *Query) Where(params map[string]any) *Query {
	return q.with(func(next *Query) error {
		next.cond = q.cond.Where(params)
		return nil
	})
}

// Includes eager-loads the named associations. Unknown names and missing
// target classes are reported immediately.
func (q *Query) Includes(names ...string) *Query {
	return q.with(func(next *Query) error {
		if _, err := q.client.planIncludes(q.class, names); err != nil {
			return err
		}
		next.cond = q.cond.WithIncludes(names...)
		return nil
	})
}

// Paginate requests one page of perPage records.
func (q *Query) Paginate(page, perPage int) *Query {
	return q.with(func(next *Query) error {
		next.cond = q.cond.WithPagination(page, perPage)
		return nil
	})
}

// WithTTL caches the store answers of this query for ttl.
func (q *Query) WithTTL(ttl time.Duration) *Query {
	return q.with(func(next *Query) error {
		next.ttl = ttl
		return nil
	})
}

// Err returns the first composition error.
func (q *Query) Err() error { return q.err }

// Class returns the target class, nil when the class lookup failed.
func (q *Query) Class() *Class { return q.class }

// Condition returns the composed condition.
func (q *Query) Condition() condition.Condition { return q.cond }

// Signature returns the composed condition signature.
func (q *Query) Signature() string { return q.cond.Signature() }

// Finder returns a single-record finder for id. The id is merged into the
// condition and addressed through the element path.
func (q *Query) Finder(id any) *Finder[*Record] {
	if q.err != nil {
		return failedFinder[*Record](q.err)
	}
	cond := q.cond.Where(map[string]any{q.class.PrimaryKey(): id})
	return newFinder(q.client, q.class, KindSingle, cond, q.class.ElementPath(id), q.ttl, projectOne)
}

// Collection returns a finder over the class collection.
func (q *Query) Collection() *Finder[[]*Record] {
	if q.err != nil {
		return failedFinder[[]*Record](q.err)
	}
	return newFinder(q.client, q.class, KindCollection, q.cond, q.class.Path(), q.ttl, projectMany)
}

// Find resolves the record identified by id; nil when the store has none.
func (q *Query) Find(ctx context.Context, id any) (*Record, error) {
	return q.Finder(id).Resolve(ctx)
}

// All resolves the collection; empty when the store has none.
func (q *Query) All(ctx context.Context) ([]*Record, error) {
	return q.Collection().Resolve(ctx)
}

// Resolve is All. Each call builds a new collection finder, so a Query can
// be resolved repeatedly and every call reaches the store.
func (q *Query) Resolve(ctx context.Context) ([]*Record, error) {
	return q.All(ctx)
}

// CacheTags returns the class tag of the query results.
func (q *Query) CacheTags() []string {
	if q.class == nil {
		return nil
	}
	return []string{toSnake(q.class.Name())}
}

// First resolves the first record of the collection, requesting a single
// record page unless the query is already paginated.
func (q *Query) First(ctx context.Context) (*Record, error) {
	scoped := q
	if q.err == nil && !q.cond.Pagination().Enabled {
		scoped = q.Paginate(1, 1)
	}
	records, err := scoped.All(ctx)
	if err != nil {
		return nil, err
	}
	return projectOne(records), nil
}
