package hookdi

import (
	"context"
	"fmt"

	"github.com/junioryono/hookdi/wait"
)

// Handler is a method call wrapped by interceptors.
type Handler func(args ...any) (any, error)

// ExecutionContext describes the intercepted call.
type ExecutionContext struct {
	Injector *Injector
	Token    Token
	Method   string
	Args     []any
}

// Interceptor wraps a method call. It calls next to continue the chain.
type Interceptor interface {
	Intercept(ctx *ExecutionContext, next Handler) (any, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx *ExecutionContext, next Handler) (any, error)

func (f InterceptorFunc) Intercept(ctx *ExecutionContext, next Handler) (any, error) {
	return f(ctx, next)
}

// Enhance builds the interceptor chain of method on the provider of token
// once and returns the wrapped handler. fn is wrapped by methodLevel in
// declaration order, then by the provider's WithInterceptors, then by the
// WithGlobalInterceptors of inj and its ancestors, nearest first. Entries
// that are not Interceptor values are resolved as tokens through inj.
//
// With method level m1, m2 and class level c1, c2 each appending its name
// to the result of next, a method returning "0" yields "0m1m2c1c2".
func Enhance(inj *Injector, token Token, method string, fn Handler, methodLevel ...any) (Handler, error) {
	var chain []any
	chain = append(chain, methodLevel...)

	s := newSession(inj, Argument{Token: token}, nil)
	if token != nil {
		for cur := inj; cur != nil; cur = cur.parent {
			if defs := cur.match(s); len(defs) > 0 {
				chain = append(chain, defs[0].interceptors...)
				break
			}
		}
	}
	for cur := inj; cur != nil; cur = cur.parent {
		chain = append(chain, cur.interceptors...)
	}

	h := fn
	for _, entry := range chain {
		ic, err := inj.interceptor(entry)
		if err != nil {
			return nil, err
		}
		h = wrapHandler(inj, token, method, ic, h)
	}
	return h, nil
}

func wrapHandler(inj *Injector, token Token, method string, ic Interceptor, next Handler) Handler {
	return func(args ...any) (any, error) {
		ctx := &ExecutionContext{Injector: inj, Token: token, Method: method, Args: args}
		return ic.Intercept(ctx, next)
	}
}

func (inj *Injector) interceptor(entry any) (Interceptor, error) {
	switch v := entry.(type) {
	case Interceptor:
		return v, nil
	case func(*ExecutionContext, Handler) (any, error):
		return InterceptorFunc(v), nil
	}

	v, err := inj.resolveArgument(Argument{Token: entry, Metadata: Metadata{Kind: Method}}, nil)
	v, err = wait.Await(context.Background(), v, err)
	if err != nil {
		return nil, err
	}
	ic, ok := v.(Interceptor)
	if !ok {
		return nil, fmt.Errorf("%w: %s resolved to %T, not an Interceptor", ErrTypeMismatch, TokenName(entry), v)
	}
	return ic, nil
}
