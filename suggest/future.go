package suggest

import (
	"context"
	"sync"
)

// Future is the pending outcome of a request submitted to the dispatcher. It completes exactly
// once, with either a value or an error.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a future that already holds a value
func Completed[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.complete(v, nil)
	return f
}

// Failed returns a future that already holds an error
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

// complete reports whether this call was the one that completed the future
func (f *Future[T]) complete(v T, err error) bool {
	completed := false
	f.once.Do(func() {
		f.value, f.err = v, err
		close(f.done)
		completed = true
	})
	return completed
}

// Done is closed when the outcome is available
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the outcome is available or ctx is done. Giving up on the context does
// not cancel the job.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then runs fn with the outcome on a new goroutine once it is available
func (f *Future[T]) Then(fn func(T, error)) {
	go func() {
		<-f.done
		fn(f.value, f.err)
	}()
}
