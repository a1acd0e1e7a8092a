package hookdi

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/junioryono/hookdi/wait"
)

type delegationsAnnotation struct{}

// argIndex keys positional delegated values.
type argIndex int

// originalValue keys the value handed to Decorate and Transform functions.
type originalValue struct{}

// delegated looks key up in the delegation payloads along the session chain.
func delegated(s *Session, key any) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		m, ok := cur.LocalAnnotation(delegationsAnnotation{})
		if !ok {
			continue
		}
		if v, ok := m.(map[any]any)[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Delegate makes the injection site receive the value delegated under key
// by an enclosing Delegations or AsFactory stage. No provider is looked up.
func Delegate(key any) Hook {
	return HookFunc(func(s *Session, _ Next) (any, error) {
		if v, ok := delegated(s, key); ok {
			return v, nil
		}
		return nil, DelegationError{Key: key}
	})
}

// DelegateArg receives the i-th argument passed to a FactoryFunc.
func DelegateArg(i int) Hook {
	return Delegate(argIndex(i))
}

// Delegated receives the FactoryFunc argument whose type is the requested
// token.
func Delegated() Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		return Delegate(s.token).Apply(s, next)
	})
}

// Delegations publishes values for Delegate stages of the dependencies
// resolved below this injection site.
func Delegations(values map[any]any) Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		s.SetAnnotation(delegationsAnnotation{}, mergeDelegations(s, values))
		return next(s)
	})
}

func mergeDelegations(s *Session, values map[any]any) map[any]any {
	m := make(map[any]any, len(values))
	if cur, ok := s.LocalAnnotation(delegationsAnnotation{}); ok {
		for k, v := range cur.(map[any]any) {
			m[k] = v
		}
	}
	for k, v := range values {
		m[k] = v
	}
	return m
}

type factoryContextAnnotation struct{}

// FactoryFunc creates a new instance per call. The arguments are delegated
// by position (DelegateArg) and by type (Delegated). The result may be a
// *wait.Future.
type FactoryFunc func(args ...any) (any, error)

// AsFactory makes the injection site receive a FactoryFunc instead of the
// value. Every call runs a fresh resolution under a new context; nothing is
// shared between calls. Singleton providers ignore that context, so every
// call returns the shared instance.
//
// Example:
//
//	type Handler struct {
//		NewJob hookdi.FactoryFunc
//	}
//
//	hookdi.Class[Handler](hookdi.WithField("NewJob", hookdi.Inject(hookdi.TypeOf[*Job](), hookdi.AsFactory())))
func AsFactory() Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		s.SetFlag(FlagSideEffect)
		return FactoryFunc(func(args ...any) (any, error) {
			values := make(map[any]any, len(args)*2)
			for i, arg := range args {
				values[argIndex(i)] = arg
				if arg != nil {
					values[reflect.TypeOf(arg)] = arg
				}
			}

			ctx := NewContext("factory")
			f := s.Fork()
			f.SetCustomContext(ctx)
			f.SetAnnotation(factoryContextAnnotation{}, ctx)
			f.SetAnnotation(delegationsAnnotation{}, values)
			f.SetFlag(FlagSideEffect)
			return next(f)
		}), nil
	})
}

// Make calls fn and waits for a value of type T.
func Make[T any](ctx context.Context, fn FactoryFunc, args ...any) (T, error) {
	var zero T
	v, err := fn(args...)
	v, err = wait.Await(ctx, v, err)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, typeMismatch[T](TypeOf[T](), v)
	}
	return t, nil
}

type decorateHook struct {
	fn   any
	args []Argument
}

type decorated struct {
	hook *decorateHook
}

// Decorate replaces the resolved value with the result of fn. The first
// parameter of fn receives the original value; the others are injected, by
// type or as given in args. Each instance is decorated once and the result
// is reused.
func Decorate(fn any, args ...Argument) Hook {
	return &decorateHook{fn: fn, args: args}
}

func (d *decorateHook) Apply(s *Session, next Next) (any, error) {
	v, err := next(s)
	if s.HasFlag(FlagDryRun) {
		return v, err
	}
	return wait.Then(v, err, func(v any) (any, error) {
		inst := s.instance
		if inst == nil {
			return applyFunc(s, d.fn, d.args, v)
		}

		key := decorated{hook: d}
		if cur, ok := inst.Meta(key); ok {
			return cur, nil
		}
		res, err := applyFunc(s, d.fn, d.args, v)
		return wait.Then(res, err, func(res any) (any, error) {
			if cur, ok := inst.Meta(key); ok {
				return cur, nil
			}
			inst.SetMeta(key, res)
			return res, nil
		})
	})
}

type transformHook struct {
	fn   any
	args []Argument
}

// Transform passes the resolved value through fn. The first parameter of
// fn receives the value; the others are injected, by type or as given in
// args. Consecutive Transform stages apply in declaration order.
func Transform(fn any, args ...Argument) Hook {
	return &transformHook{fn: fn, args: args}
}

func (t *transformHook) Apply(s *Session, next Next) (any, error) {
	return transformChain{t}.Apply(s, next)
}

// transformChain is a run of consecutive Transform stages merged by
// compose.
type transformChain []*transformHook

func (c transformChain) Apply(s *Session, next Next) (any, error) {
	v, err := next(s)
	if s.HasFlag(FlagDryRun) {
		return v, err
	}
	return wait.Then(v, err, func(v any) (any, error) {
		return wait.SequenceThen(c, func(_ int, t *transformHook) (any, error) {
			res, err := applyFunc(s, t.fn, t.args, v)
			return wait.Then(res, err, func(res any) (any, error) {
				v = res
				return res, nil
			})
		}, func([]any) (any, error) {
			return v, nil
		})
	})
}

// mergeTransforms folds consecutive Transform stages into one
// transformChain.
func mergeTransforms(hooks []Hook) []Hook {
	out := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		t, ok := h.(*transformHook)
		if !ok {
			out = append(out, h)
			continue
		}
		if n := len(out); n > 0 {
			if chain, ok := out[n-1].(transformChain); ok {
				out[n-1] = append(chain, t)
				continue
			}
		}
		out = append(out, transformChain{t})
	}
	return out
}

// applyFunc calls fn with value as its first argument and injects the rest
// as dependencies of s.
func applyFunc(s *Session, fn any, args []Argument, value any) (any, error) {
	info, err := s.injector.analyzer.AnalyzeFunc(fn)
	if err != nil {
		return nil, ConfigurationError{Token: s.token, Cause: err}
	}
	if len(info.Params) == 0 {
		return nil, ConfigurationError{Token: s.token, Cause: fmt.Errorf("%w: %v takes no value", ErrInvalidFactory, info.Type)}
	}

	injected := args
	if len(injected) == 0 {
		for _, t := range info.Params[1:] {
			injected = append(injected, Argument{Token: t})
		}
	} else if len(injected) != len(info.Params)-1 {
		return nil, ConfigurationError{Token: s.token, Cause: fmt.Errorf("%w: %d arguments for %d parameters", ErrInvalidFactory, len(injected), len(info.Params)-1)}
	}

	all := append([]Argument{{Token: info.Params[0], Hooks: []Hook{Delegate(originalValue{})}}}, injected...)
	all = withMetadata(all, s.token, Parameter, nil)

	f := s.Fork()
	f.instance = s.instance
	f.SetAnnotation(delegationsAnnotation{}, map[any]any{originalValue{}: value})

	vals, err := resolveArguments(f, all)
	return wait.Then(vals, err, func(v any) (res any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = FactoryPanicError{Token: s.token, Panic: r, Stack: debug.Stack()}
			}
		}()
		return info.Call(v.([]any))
	})
}
