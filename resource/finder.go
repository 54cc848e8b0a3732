package resource

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/goliatone/go-remote-resource/condition"
	"github.com/goliatone/go-remote-resource/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Kind is the finder variant.
type Kind int

const (
	KindCollection Kind = iota
	KindSingle
	KindAssociation
)

func (k Kind) String() string {
	switch k {
	case KindCollection:
		return "collection"
	case KindSingle:
		return "single"
	case KindAssociation:
		return "association"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Finder resolves one condition against the store. The first Resolve
// performs the fetch and eager loads; later calls return the memoized
// outcome. A Finder belongs to a single resolution and is not reused.
type Finder[T any] struct {
	client   *Client
	class    *Class
	kind     Kind
	cond     condition.Condition
	path     string
	assocKey string
	ttl      time.Duration
	project  func([]*Record) T

	once    sync.Once
	result  T
	records []*Record
	resp    *store.Response
	err     error
}

func newFinder[T any](c *Client, class *Class, kind Kind, cond condition.Condition, path string, ttl time.Duration, project func([]*Record) T) *Finder[T] {
	return &Finder[T]{
		client:  c,
		class:   class,
		kind:    kind,
		cond:    cond,
		path:    path,
		ttl:     ttl,
		project: project,
	}
}

func failedFinder[T any](err error) *Finder[T] {
	f := &Finder[T]{err: err}
	f.once.Do(func() {})
	return f
}

func projectMany(records []*Record) []*Record {
	if records == nil {
		return []*Record{}
	}
	return records
}

func projectOne(records []*Record) *Record {
	if len(records) == 0 {
		return nil
	}
	return records[0]
}

// Kind returns the finder variant.
func (f *Finder[T]) Kind() Kind { return f.kind }

// Condition returns the condition being resolved.
func (f *Finder[T]) Condition() condition.Condition { return f.cond }

// Path returns the store path fetched by the finder.
func (f *Finder[T]) Path() string { return f.path }

// Signature identifies the finder by kind, path and condition.
func (f *Finder[T]) Signature() string {
	if f.class == nil {
		return "invalid"
	}
	return f.kind.String() + "|" + f.path + "|" + f.cond.Signature()
}

// CacheTags returns the invalidation tags for the finder's result.
func (f *Finder[T]) CacheTags() []string {
	if f.class == nil {
		return nil
	}
	tags := []string{toSnake(f.class.Name())}
	if f.kind == KindSingle {
		if id, ok := f.cond.Value(f.class.PrimaryKey()); ok {
			tags = append(tags, toSnake(f.class.Name())+"#"+idKey(id))
		}
	}
	return tags
}

// Resolve fetches on first call and returns the memoized result afterwards.
func (f *Finder[T]) Resolve(ctx context.Context) (T, error) {
	f.once.Do(func() {
		f.result, f.err = f.resolve(ctx)
	})
	return f.result, f.err
}

// Refresh fetches again with the same condition. The memoized outcome and
// response of f are left as they were.
func (f *Finder[T]) Refresh(ctx context.Context) (T, error) {
	if f.class == nil {
		return f.Resolve(ctx)
	}
	fresh := newFinder(f.client, f.class, f.kind, f.cond, f.path, f.ttl, f.project)
	fresh.assocKey = f.assocKey
	return fresh.Resolve(ctx)
}

func (f *Finder[T]) resolve(ctx context.Context) (T, error) {
	var zero T

	ctx, span := f.client.tracer.Start(ctx, "resource.Finder.Resolve",
		trace.WithAttributes(
			attribute.String("resource.class", f.class.Name()),
			attribute.String("resource.kind", f.kind.String()),
			attribute.String("resource.path", f.path),
			attribute.StringSlice("resource.includes", f.cond.Includes()),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		f.client.metrics.ObserveResolve(f.class.Name(), f.kind.String(), time.Since(start))
	}()

	plans, err := f.client.planIncludes(f.class, f.cond.Includes())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}

	resp, err := f.client.get(ctx, fetchRequest{
		class: f.class,
		kind:  f.kind,
		path:  f.path,
		query: f.queryCondition().ToQueryParams(),
		ttl:   f.ttl,
	})
	if err != nil {
		if !store.IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return zero, err
		}
		f.client.logger.DebugContext(ctx, "resource not found",
			"class", f.class.Name(),
			"kind", f.kind.String(),
			"path", f.path,
		)
		span.SetAttributes(attribute.Bool("resource.not_found", true))
		f.records = []*Record{}
		return f.project(f.records), nil
	}

	records, err := f.client.decode(f.class, resp.Body, f.assocKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}

	if err := f.client.eagerLoadPlans(ctx, records, plans, f.ttl); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}

	span.SetAttributes(attribute.Int("resource.records", len(records)))
	f.records = records
	f.resp = resp
	return f.project(records), nil
}

// queryCondition strips the primary key from single fetches since it is
// carried by the path.
func (f *Finder[T]) queryCondition() condition.Condition {
	if f.kind == KindSingle {
		return f.cond.Without(f.class.PrimaryKey())
	}
	return f.cond
}

// Response returns the raw store answer, nil before resolution or after a
// not-found.
func (f *Finder[T]) Response() *store.Response { return f.resp }

// TotalEntries returns the Total-Entries header, falling back to the number
// of records fetched.
func (f *Finder[T]) TotalEntries() int {
	if total, ok := f.resp.TotalEntries(); ok {
		return total
	}
	return len(f.records)
}

// Offset returns the Offset header, zero when absent.
func (f *Finder[T]) Offset() int {
	offset, _ := f.resp.Offset()
	return offset
}

// TotalPages returns ceil(total / per page), or 1 when not paginated.
func (f *Finder[T]) TotalPages() int {
	p := f.cond.Pagination()
	if !p.Enabled || p.PerPage <= 0 {
		return 1
	}
	return int(math.Ceil(float64(f.TotalEntries()) / float64(p.PerPage)))
}
