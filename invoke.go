package hookdi

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/multierr"

	"github.com/junioryono/hookdi/wait"
)

// Invoke calls fn with its parameters injected as a method call. fn may
// return nothing, an error, a value, or a value and an error. Parameter
// tokens default to the parameter types; args replaces them. Instances
// whose scope releases per-call injections (Transient) are destroyed once
// fn returns.
func (inj *Injector) Invoke(fn any, args ...Argument) (any, error) {
	if inj.closed() {
		return nil, ErrInjectorDestroyed
	}

	info, err := inj.analyzer.AnalyzeCallable(fn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFactory, err)
	}
	if len(args) == 0 {
		for _, t := range info.Params {
			args = append(args, Argument{Token: t})
		}
	} else if len(args) != len(info.Params) {
		return nil, fmt.Errorf("%w: %d arguments for %d parameters", ErrInvalidFactory, len(args), len(info.Params))
	}
	args = withMetadata(args, nil, Method, nil)

	sessions := make([]*Session, len(args))
	vals, err := wait.Sequence(args, func(i int, arg Argument) (any, error) {
		sessions[i] = newSession(inj, arg, nil)
		return inj.run(sessions[i], arg.Hooks)
	})

	res, err := wait.Then(vals, err, func(v any) (res any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = FactoryPanicError{Token: info.Type, Panic: r, Stack: debug.Stack()}
			}
		}()
		return info.Call(v.([]any))
	})

	return wait.Wait(res, err, func(res any) (any, error) {
		v, err := release(sessions)
		return wait.Then(v, err, func(any) (any, error) {
			return res, nil
		})
	}, func(cause error) (any, error) {
		v, err := release(sessions)
		return wait.Then(v, err, func(any) (any, error) {
			return nil, cause
		})
	})
}

// release destroys the per-call instances of sessions.
func release(sessions []*Session) (any, error) {
	var errs error
	return wait.SequenceThen(sessions, func(_ int, s *Session) (any, error) {
		if s == nil || s.instance == nil {
			return nil, nil
		}
		v, err := destroyInstance(s.instance, EventDefault)
		return wait.Catch(v, err, func(err error) (any, error) {
			errs = multierr.Append(errs, err)
			return nil, nil
		})
	}, func([]any) (any, error) {
		return nil, destroyError("invoke", errs)
	})
}
