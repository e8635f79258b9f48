package worker

import (
	"context"
	"fmt"
)

// Result is the caller-side handle for a detached operation. The operation
// runs to completion regardless of what the caller does with the handle;
// abandoning or cancelling a Wait never interrupts the work.
type Result[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Wait blocks until the operation finishes or the waiting context is
// cancelled. Cancellation aborts only the wait: the detached goroutine keeps
// running and its outcome stays readable from a later Wait call.
func (r *Result[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("detached from running operation: %w", ctx.Err())
	}
}

// Done returns a channel closed when the operation has finished
func (r *Result[T]) Done() <-chan struct{} {
	return r.done
}

// Detach starts fn immediately on a context that is never cancelled by the
// caller, and returns a handle for its eventual result. Once an operation has
// begun mutating a working tree it must run to completion; partial git state
// is worse than a slow response.
func Detach[T any](fn func(ctx context.Context) (T, error)) *Result[T] {
	r := &Result[T]{done: make(chan struct{})}

	go func() {
		defer close(r.done)
		defer func() {
			if p := recover(); p != nil {
				r.err = fmt.Errorf("detached operation panicked: %v", p)
			}
		}()
		r.value, r.err = fn(context.Background())
	}()

	return r
}
