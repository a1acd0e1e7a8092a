package hookdi

import (
	"fmt"
	"reflect"
)

type providerKind int

const (
	valueProvider providerKind = iota
	factoryProvider
	asyncFactoryProvider
	classProvider
	aliasProvider
)

func (k providerKind) String() string {
	switch k {
	case valueProvider:
		return "value"
	case factoryProvider:
		return "factory"
	case asyncFactoryProvider:
		return "async-factory"
	case classProvider:
		return "class"
	case aliasProvider:
		return "alias"
	default:
		return "unknown"
	}
}

// Provider is a registration recipe. Build one with Value, Factory,
// AsyncFactory, Class or Alias and hand it to Injector.Provide.
type Provider struct {
	token Token
	kind  providerKind

	value     any
	fn        any
	classType reflect.Type
	existing  Token

	args   ArgumentProvider
	fields []fieldArgument

	scope        Scope
	hooks        []Hook
	when         func(*Session) bool
	annotations  map[any]any
	order        int
	override     bool
	onInit       func(any) error
	onDestroy    func(any) error
	interceptors []any
}

type fieldArgument struct {
	name string
	arg  Argument
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// Value provides a fixed value under token.
func Value(token Token, v any, opts ...ProviderOption) Provider {
	p := Provider{token: token, kind: valueProvider, value: v}
	return p.apply(opts)
}

// Factory provides the result of fn. The token defaults to the first return
// type of fn and the arguments default to fn's parameter types.
func Factory(fn any, opts ...ProviderOption) Provider {
	p := Provider{kind: factoryProvider, fn: fn}
	if t := reflect.TypeOf(fn); t != nil && t.Kind() == reflect.Func && t.NumOut() > 0 {
		p.token = t.Out(0)
	}
	return p.apply(opts)
}

// AsyncFactory is like Factory but fn runs on the injector's goroutine pool
// once its arguments are resolved, and the resolution yields a future.
func AsyncFactory(fn any, opts ...ProviderOption) Provider {
	p := Factory(fn)
	p.kind = asyncFactoryProvider
	return p.apply(opts)
}

// Class provides a freshly allocated *T whose fields tagged `inject` (and
// fields added with WithField) are injected after allocation. Because the
// value exists before its fields are filled, field injection can satisfy
// circular dependencies.
func Class[T any](opts ...ProviderOption) Provider {
	t := reflect.TypeFor[T]()
	p := Provider{
		token:     reflect.PointerTo(t),
		kind:      classProvider,
		classType: t,
	}
	return p.apply(opts)
}

// Alias provides token by resolving existing.
func Alias(token, existing Token, opts ...ProviderOption) Provider {
	p := Provider{token: token, kind: aliasProvider, existing: existing}
	return p.apply(opts)
}

func (p Provider) apply(opts []ProviderOption) Provider {
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Token returns the token the provider registers under.
func (p Provider) Token() Token {
	return p.token
}

func (p Provider) validate() error {
	if p.token == nil {
		return fmt.Errorf("%w: %w", ErrInvalidProvider, ErrTokenNil)
	}
	switch p.kind {
	case factoryProvider, asyncFactoryProvider:
		if p.fn == nil {
			return fmt.Errorf("%w: %w", ErrInvalidProvider, ErrInvalidFactory)
		}
	case classProvider:
		if p.classType == nil || p.classType.Kind() != reflect.Struct {
			return fmt.Errorf("%w: class type must be a struct", ErrInvalidProvider)
		}
	case aliasProvider:
		if p.existing == nil {
			return fmt.Errorf("%w: alias target: %w", ErrInvalidProvider, ErrTokenNil)
		}
		if p.existing == p.token {
			return fmt.Errorf("%w: %s aliases itself", ErrInvalidProvider, TokenName(p.token))
		}
	}
	return nil
}

// As registers the provider under token instead of the inferred one.
func As(token Token) ProviderOption {
	return func(p *Provider) {
		p.token = token
	}
}

// WithScope sets the scope of the provider. The default is Default.
func WithScope(scope Scope) ProviderOption {
	return func(p *Provider) {
		p.scope = scope
	}
}

// WithHooks appends hooks run on every resolution of the provider.
func WithHooks(hooks ...Hook) ProviderOption {
	return func(p *Provider) {
		p.hooks = append(p.hooks, hooks...)
	}
}

// WithWhen constrains the provider to sessions accepted by pred. Predicates
// added by WithWhen, WithName and WithLabels must all accept the session.
func WithWhen(pred func(*Session) bool) ProviderOption {
	return func(p *Provider) {
		p.addWhen(pred)
	}
}

func (p *Provider) addWhen(pred func(*Session) bool) {
	prev := p.when
	if prev == nil {
		p.when = pred
		return
	}
	p.when = func(s *Session) bool {
		return prev(s) && pred(s)
	}
}

// WithName constrains the provider to injections asking for name through
// the Named hook.
func WithName(name string) ProviderOption {
	return func(p *Provider) {
		p.annotations = withAnnotation(p.annotations, nameAnnotation{}, name)
		p.addWhen(func(s *Session) bool {
			v, ok := s.LocalAnnotation(nameAnnotation{})
			return ok && v == name
		})
	}
}

// WithLabels constrains the provider to injections whose Labelled hook asks
// for a subset of labels.
func WithLabels(labels map[string]any) ProviderOption {
	return func(p *Provider) {
		p.annotations = withAnnotation(p.annotations, labelsAnnotation{}, labels)
		p.addWhen(func(s *Session) bool {
			v, ok := s.LocalAnnotation(labelsAnnotation{})
			if !ok {
				return false
			}
			for k, want := range v.(map[string]any) {
				if got, ok := labels[k]; !ok || got != want {
					return false
				}
			}
			return true
		})
	}
}

// WithOrder sets the position of the provider among the providers of the
// same token. Lower orders come first; ties keep registration order.
func WithOrder(order int) ProviderOption {
	return func(p *Provider) {
		p.order = order
	}
}

// WithArgs replaces the inferred factory arguments.
func WithArgs(args ...Argument) ProviderOption {
	return WithArgumentProvider(Arguments(args))
}

// WithArgumentProvider takes the injection sites of the provider from ap
// instead of reflection. For Factory providers the arguments map to the
// parameters in order. For Class providers every argument names its field in
// Metadata.Key and replaces the field's tag.
func WithArgumentProvider(ap ArgumentProvider) ProviderOption {
	return func(p *Provider) {
		p.args = ap
	}
}

// WithField injects arg into the named field of a Class provider.
func WithField(name string, arg Argument) ProviderOption {
	return func(p *Provider) {
		p.fields = append(p.fields, fieldArgument{name: name, arg: arg})
	}
}

// WithAnnotation attaches a static annotation to the provider.
func WithAnnotation(key, value any) ProviderOption {
	return func(p *Provider) {
		p.annotations = withAnnotation(p.annotations, key, value)
	}
}

// AsLocalBoundary marks the provider as a boundary for Local scopes looking
// for name.
func AsLocalBoundary(name string) ProviderOption {
	return WithAnnotation(localBoundaryAnnotation{}, name)
}

// WithOverride destroys the definitions already registered under the token
// in the same injector before adding this one.
func WithOverride() ProviderOption {
	return func(p *Provider) {
		p.override = true
	}
}

// WithOnInit runs fn after the value is created, before the value's own
// OnInit method.
func WithOnInit(fn func(v any) error) ProviderOption {
	return func(p *Provider) {
		p.onInit = fn
	}
}

// WithOnDestroy runs fn after the value's own OnDestroy method.
func WithOnDestroy(fn func(v any) error) ProviderOption {
	return func(p *Provider) {
		p.onDestroy = fn
	}
}

// WithInterceptors sets class level interceptors used by Enhance for values
// of this provider. Entries are Interceptor values or tokens resolving to one.
func WithInterceptors(interceptors ...any) ProviderOption {
	return func(p *Provider) {
		p.interceptors = append(p.interceptors, interceptors...)
	}
}

func withAnnotation(m map[any]any, key, value any) map[any]any {
	if m == nil {
		m = make(map[any]any)
	}
	m[key] = value
	return m
}
