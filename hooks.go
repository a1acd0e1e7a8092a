package hookdi

import (
	"errors"
	"time"

	"github.com/junioryono/hookdi/wait"
)

type (
	nameAnnotation          struct{}
	labelsAnnotation        struct{}
	localBoundaryAnnotation struct{}
)

// Optional turns a missing provider for the requested token into def, or
// nil when def is omitted. Errors of the dependencies of an existing
// provider still propagate.
func Optional(def ...any) Hook {
	var fallback any
	if len(def) > 0 {
		fallback = def[0]
	}
	return HookFunc(func(s *Session, next Next) (any, error) {
		v, err := next(s)
		return wait.Catch(v, err, func(err error) (any, error) {
			if missing(err, s.token) {
				return fallback, nil
			}
			return nil, err
		})
	})
}

// Fallback resolves token instead when the requested token has no
// provider. If token is missing too, the original error is returned.
func Fallback(token Token) Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		v, err := next(s)
		return wait.Catch(v, err, func(cause error) (any, error) {
			if !missing(cause, s.token) {
				return nil, cause
			}
			v, err := next(s.WithToken(token))
			return wait.Catch(v, err, func(err error) (any, error) {
				if missing(err, token) {
					return nil, cause
				}
				return nil, err
			})
		})
	})
}

// missing reports whether err is a NoProviderError for token.
func missing(err error, token Token) bool {
	var np NoProviderError
	return errors.As(err, &np) && np.Token == token
}

// Named selects the provider registered with WithName(name).
func Named(name string) Hook {
	return Annotate(nameAnnotation{}, name)
}

// Labelled selects a provider registered with WithLabels whose labels
// include all of labels.
func Labelled(labels map[string]any) Hook {
	return Annotate(labelsAnnotation{}, labels)
}

// Annotate stores value under key on the session before provider
// selection, for use by WithWhen predicates and scopes.
func Annotate(key, value any) Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		s.SetAnnotation(key, value)
		return next(s)
	})
}

// Fresh forces a new instance for this injection site by supplying a new
// context. Singleton providers reject it.
func Fresh() Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		s.SetCustomContext(NewContext("fresh"))
		s.SetFlag(FlagSideEffect)
		return next(s)
	})
}

// Ctx resolves under ctx. Resolutions sharing ctx share instances.
func Ctx(ctx *Context) Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		s.SetCustomContext(ctx)
		return next(s)
	})
}

// Scoped resolves with scope instead of the provider's scope, unless the
// provider's scope cannot be overridden.
func Scoped(scope Scope) Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		s.SetScope(scope)
		return next(s)
	})
}

// Self only looks for providers in the resolving injector.
func Self() Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		s.SetFlag(FlagSelf)
		return next(s)
	})
}

// SkipSelf starts the provider lookup at the parent injector.
func SkipSelf() Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		s.SetFlag(FlagSkipSelf)
		return next(s)
	})
}

// All resolves every provider of the token and yields a []any in provider
// order.
func All() Hook {
	return Annotate(allAnnotation{}, true)
}

// Catch hands any error of the inner stages to handler, which may return a
// replacement value or an error.
func Catch(handler func(s *Session, err error) (any, error)) Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		v, err := next(s)
		return wait.Catch(v, err, func(err error) (any, error) {
			return handler(s, err)
		})
	})
}

// Timeout rejects a pending resolution with a TimeoutError if it has not
// settled after d. Synchronous results are returned as is.
func Timeout(d time.Duration) Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		v, err := next(s)
		if err != nil || !wait.IsPending(v) {
			return v, err
		}

		p := wait.NewPromise()
		timer := time.AfterFunc(d, func() {
			_ = p.Reject(TimeoutError{Token: s.token, Timeout: d})
		})
		_, _ = wait.Wait(v, nil, func(v any) (any, error) {
			timer.Stop()
			_ = p.Resolve(v)
			return nil, nil
		}, func(err error) (any, error) {
			timer.Stop()
			_ = p.Reject(err)
			return nil, nil
		})
		return p, nil
	})
}
