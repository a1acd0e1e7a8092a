// Package wait sequences values that may either be available right away or
// arrive later as a *Future, without the caller branching on which one it got.
//
// A Future is a single-assignment result. Continuations attached to a pending
// Future run on the goroutine that settles it, in the order they were attached.
// A Future that has already settled is treated exactly like a plain value: no
// goroutine hop, no deferral.
package wait

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadySettled is returned when a Future is resolved or rejected twice.
var ErrAlreadySettled = errors.New("future already settled")

// Future is a pending computation that eventually holds a value or an error.
type Future struct {
	mu        sync.Mutex
	settled   bool
	value     any
	err       error
	done      chan struct{}
	listeners []func(any, error)
}

// NewPromise returns an unsettled Future. The owner settles it with Resolve
// or Reject.
func NewPromise() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future already holding v.
func Resolved(v any) *Future {
	f := NewPromise()
	_ = f.Resolve(v)
	return f
}

// Rejected returns a Future already holding err.
func Rejected(err error) *Future {
	f := NewPromise()
	_ = f.Reject(err)
	return f
}

// Resolve settles the future with v. If v is itself a *Future the result is
// adopted once it settles.
func (f *Future) Resolve(v any) error {
	if inner, ok := v.(*Future); ok {
		if inner == f {
			return f.Reject(errors.New("future cannot resolve to itself"))
		}
		inner.subscribe(func(v any, err error) {
			_ = f.settle(v, err)
		})
		return nil
	}
	return f.settle(v, nil)
}

// Reject settles the future with err.
func (f *Future) Reject(err error) error {
	if err == nil {
		err = errors.New("future rejected with nil error")
	}
	return f.settle(nil, err)
}

func (f *Future) settle(v any, err error) error {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return ErrAlreadySettled
	}
	f.settled = true
	f.value, f.err = v, err
	listeners := f.listeners
	f.listeners = nil
	close(f.done)
	f.mu.Unlock()

	for _, l := range listeners {
		l(v, err)
	}
	return nil
}

// Settled reports whether the future holds its final result.
func (f *Future) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Result returns the settled value and error. ok is false while pending.
func (f *Future) Result() (v any, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, f.settled
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is done.
func (f *Future) Await(ctx context.Context) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-f.done:
		v, err, _ := f.Result()
		return v, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// subscribe runs fn with the result. When the future is already settled fn
// runs immediately on the calling goroutine.
func (f *Future) subscribe(fn func(any, error)) {
	f.mu.Lock()
	if !f.settled {
		f.listeners = append(f.listeners, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	fn(v, err)
}
