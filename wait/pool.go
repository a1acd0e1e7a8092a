package wait

import (
	"fmt"
	"runtime/debug"

	"github.com/panjf2000/ants/v2"
)

// PanicError is the rejection reason of a Future whose function panicked.
type PanicError struct {
	Panic any
	Stack []byte
}

func (e PanicError) Error() string {
	return fmt.Sprintf("async function panicked: %v", e.Panic)
}

// Pool runs blocking functions on a bounded goroutine pool and exposes their
// outcome as futures.
type Pool struct {
	pool *ants.Pool
}

// NewPool creates a pool running at most size functions at once.
func NewPool(size int) (*Pool, error) {
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create goroutine pool: %w", err)
	}
	return &Pool{pool: p}, nil
}

// Go submits fn and returns a Future of its result.
func (p *Pool) Go(fn func() (any, error)) *Future {
	return submit(p.pool.Submit, fn)
}

// Running returns the number of functions currently executing.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops the pool's workers.
func (p *Pool) Release() {
	p.pool.Release()
}

// Go submits fn to the shared ants pool and returns a Future of its result.
func Go(fn func() (any, error)) *Future {
	return submit(ants.Submit, fn)
}

func submit(submitter func(func()) error, fn func() (any, error)) *Future {
	f := NewPromise()
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				_ = f.Reject(PanicError{Panic: r, Stack: debug.Stack()})
			}
		}()
		v, err := fn()
		if err != nil {
			_ = f.Reject(err)
			return
		}
		_ = f.Resolve(v)
	}

	if err := submitter(task); err != nil {
		// pool overloaded or closed
		go task()
	}
	return f
}
