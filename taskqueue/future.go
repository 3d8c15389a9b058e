/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package taskqueue

import (
	"context"
	"sync"
)

// Future represents the eventual result of a submitted task.
// It's settled exactly once: either by the task finishing or by Queue.Clear discarding it.
type Future[V any] struct {
	done chan struct{}
	once sync.Once
	val  V
	err  error
}

func newFuture[V any]() *Future[V] {
	return &Future[V]{done: make(chan struct{})}
}

func (f *Future[V]) settle(val V, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

// Done returns a channel that is closed when the future is settled.
func (f *Future[V]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future is settled or the passed context is done.
func (f *Future[V]) Wait(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Result returns the settled value and error.
// It must be called only after the channel returned by Done is closed.
func (f *Future[V]) Result() (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
		var zero V
		return zero, ErrFutureNotSettled
	}
}
