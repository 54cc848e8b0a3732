package resourcecache

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-remote-resource/resource"
	"github.com/google/uuid"
)

// ErrPanic wraps a panic raised while a Future was resolving.
var ErrPanic = errors.New("resourcecache: resolution panicked")

// Future is a one-shot background resolution. The work starts when the
// Future is created and is neither cancelled nor retried.
type Future[T any] struct {
	id    string
	inner resource.Resolvable[T]
	done  chan struct{}
	value T
	err   error
}

var _ resource.Resolvable[[]*resource.Record] = (*Future[[]*resource.Record])(nil)

// Async starts resolving r in the background. Values carried by ctx reach
// the resolution; its cancellation does not.
func Async[T any](ctx context.Context, r resource.Resolvable[T]) *Future[T] {
	f := &Future[T]{
		id:    uuid.NewString(),
		inner: r,
		done:  make(chan struct{}),
	}
	go f.run(context.WithoutCancel(ctx))
	return f
}

func (f *Future[T]) run(ctx context.Context) {
	defer close(f.done)
	defer func() {
		if p := recover(); p != nil {
			f.err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()
	f.value, f.err = f.inner.Resolve(ctx)
}

// ID identifies the Future in logs.
func (f *Future[T]) ID() string { return f.id }

// Done is closed once the resolution finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Signature is the signature of the wrapped resolvable.
func (f *Future[T]) Signature() string { return f.inner.Signature() }

// CacheTags forwards the inner resolvable tags.
func (f *Future[T]) CacheTags() []string {
	if tagged, ok := f.inner.(Tagged); ok {
		return tagged.CacheTags()
	}
	return nil
}

// Resolve waits for the background resolution. ctx bounds the wait only.
func (f *Future[T]) Resolve(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
