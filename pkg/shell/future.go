package shell

import (
	"context"
	"sync"

	"github.com/smazurov/procspawn/pkg/spawn"
)

// Future is a value that becomes available once. The first Complete or
// Error wins; later calls are ignored.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// Promise is the future returned by Shell.Run. It settles when the
// execution ends; its error is the result's Err.
type Promise = Future[*spawn.Result]

// NewFuture creates an unsettled Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved creates a Future that is already settled.
func Resolved[T any](v T, err error) *Future[T] {
	f := NewFuture[T]()
	f.settle(v, err)
	return f
}

// Complete settles f with v.
func (f *Future[T]) Complete(v T) {
	f.settle(v, nil)
}

// Error settles f with err.
func (f *Future[T]) Error(err error) {
	var zero T
	f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) {
	f.once.Do(func() {
		f.val = v
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed once f is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until f is settled.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.val, f.err
}

// Await is Get bounded by ctx.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Resolve implements Pending.
func (f *Future[T]) Resolve(ctx context.Context) (any, error) {
	return f.Await(ctx)
}
