// Package digbridge connects a hookdi injector to a go.uber.org/dig
// container in both directions: dig constructed values can be provided to
// an injector, and injector tokens can be offered to dig constructors.
package digbridge

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/dig"

	"github.com/junioryono/hookdi"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// ErrNilContainer is returned when no container is given.
var ErrNilContainer = errors.New("digbridge: nil dig container")

// Provider returns a hookdi provider for t whose factory extracts t from c
// with Invoke. The value is built by dig, so dig's own caching applies; the
// provider scope only controls how often hookdi asks for it.
//
//	c := dig.New()
//	_ = c.Provide(NewDatabase)
//	_ = inj.Provide(digbridge.Provider(c, reflect.TypeFor[*Database](),
//		hookdi.WithScope(hookdi.Singleton)))
func Provider(c *dig.Container, t reflect.Type, opts ...hookdi.ProviderOption) hookdi.Provider {
	return hookdi.Factory(extractor(c, t), opts...)
}

// From is the generic form of Provider.
func From[T any](c *dig.Container, opts ...hookdi.ProviderOption) hookdi.Provider {
	return Provider(c, reflect.TypeFor[T](), opts...)
}

// extractor builds a func() (t, error) that pulls t out of c.
func extractor(c *dig.Container, t reflect.Type) any {
	fnType := reflect.FuncOf(nil, []reflect.Type{t, errType}, false)
	fn := reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
		if c == nil {
			return []reflect.Value{reflect.Zero(t), reflect.ValueOf(&ErrNilContainer).Elem()}
		}

		var result reflect.Value
		invokeType := reflect.FuncOf([]reflect.Type{t}, nil, false)
		invokeFn := reflect.MakeFunc(invokeType, func(args []reflect.Value) []reflect.Value {
			result = args[0]
			return nil
		})

		if err := c.Invoke(invokeFn.Interface()); err != nil {
			wrapped := fmt.Errorf("digbridge: extract %v: %w", t, err)
			return []reflect.Value{reflect.Zero(t), reflect.ValueOf(&wrapped).Elem()}
		}
		return []reflect.Value{result, reflect.Zero(errType)}
	})
	return fn.Interface()
}

// Export makes token resolvable by dig constructors as type t. Each dig
// resolution of t resolves token through inj and waits for asynchronous
// results.
func Export(c *dig.Container, inj *hookdi.Injector, token hookdi.Token, t reflect.Type, opts ...dig.ProvideOption) error {
	if c == nil {
		return ErrNilContainer
	}

	fnType := reflect.FuncOf(nil, []reflect.Type{t, errType}, false)
	fn := reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
		v, err := inj.GetContext(context.Background(), token)
		if err != nil {
			return []reflect.Value{reflect.Zero(t), reflect.ValueOf(&err).Elem()}
		}

		rv := reflect.ValueOf(v)
		switch {
		case v == nil:
			rv = reflect.Zero(t)
		case !rv.Type().AssignableTo(t):
			err := fmt.Errorf("%w: %s resolved to %T, dig expects %v",
				hookdi.ErrTypeMismatch, hookdi.TokenName(token), v, t)
			return []reflect.Value{reflect.Zero(t), reflect.ValueOf(&err).Elem()}
		}
		return []reflect.Value{rv.Convert(t), reflect.Zero(errType)}
	})
	return c.Provide(fn.Interface(), opts...)
}

// ExportType is Export for a type token: T is both the hookdi token and the
// dig type.
func ExportType[T any](c *dig.Container, inj *hookdi.Injector, opts ...dig.ProvideOption) error {
	t := reflect.TypeFor[T]()
	return Export(c, inj, t, t, opts...)
}
