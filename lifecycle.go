package hookdi

import (
	"io"

	"go.uber.org/multierr"

	"github.com/junioryono/hookdi/wait"
)

// Initializer is implemented by values that need setup once their fields
// are injected. OnInit runs once per instance.
type Initializer interface {
	OnInit() error
}

// AsyncInitializer is the asynchronous form of Initializer.
type AsyncInitializer interface {
	OnInit() *wait.Future
}

// Destroyer is implemented by values that release resources when their
// instance is destroyed.
//
// Example:
//
//	type Store struct {
//	    db *sql.DB
//	}
//
//	func (s *Store) OnDestroy() error {
//	    return s.db.Close()
//	}
type Destroyer interface {
	OnDestroy() error
}

// AsyncDestroyer is the asynchronous form of Destroyer. Children of the
// instance are destroyed once the returned future settles.
type AsyncDestroyer interface {
	OnDestroy() *wait.Future
}

// Poolable is implemented by values that track their moves in and out of a
// Pooled scope. Either method may be implemented alone.
type Poolable interface {
	OnGetFromPool() error
	OnReturnToPool() error
}

// callOnInit runs the provider's init callback and then the value's own.
func callOnInit(inst *Instance) (any, error) {
	v := inst.Value()
	if fn := inst.definition.onInit; fn != nil {
		if err := fn(v); err != nil {
			return nil, err
		}
	}

	switch t := v.(type) {
	case Initializer:
		return nil, t.OnInit()
	case AsyncInitializer:
		return t.OnInit(), nil
	}
	return nil, nil
}

// callOnDestroy runs the value's own destroy method, falling back to
// io.Closer, and then the provider's destroy callback.
func callOnDestroy(inst *Instance) (any, error) {
	v := inst.Value()
	var res any
	var err error
	switch t := v.(type) {
	case Destroyer:
		err = t.OnDestroy()
	case AsyncDestroyer:
		res = t.OnDestroy()
	case io.Closer:
		err = t.Close()
	}

	fn := inst.definition.onDestroy
	if fn == nil {
		return res, err
	}
	return wait.Wait(res, err, func(any) (any, error) {
		return nil, fn(v)
	}, func(cause error) (any, error) {
		if err := fn(v); err != nil {
			return nil, multierr.Append(cause, err)
		}
		return nil, cause
	})
}

func callOnGetFromPool(inst *Instance) error {
	if p, ok := inst.Value().(interface{ OnGetFromPool() error }); ok {
		return p.OnGetFromPool()
	}
	return nil
}

func callOnReturnToPool(inst *Instance) error {
	if p, ok := inst.Value().(interface{ OnReturnToPool() error }); ok {
		return p.OnReturnToPool()
	}
	return nil
}
