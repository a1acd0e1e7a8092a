package hookdi

import (
	"fmt"
	"reflect"
)

// Token identifies what is being requested. Tokens are compared with ==, so
// *InjectionToken values match by pointer identity and reflect.Type values by
// type identity.
type Token = any

// InjectionToken is an explicit token object. It can carry a default
// provider that is registered in the root injector the first time the token
// cannot be found anywhere.
type InjectionToken struct {
	name     string
	provider *Provider
}

// TokenOption configures an InjectionToken.
type TokenOption func(*InjectionToken)

// WithDefaultProvider makes the token self-providing.
func WithDefaultProvider(p Provider) TokenOption {
	return func(t *InjectionToken) {
		p.token = t
		t.provider = &p
	}
}

// NewToken creates a new InjectionToken.
func NewToken(name string, opts ...TokenOption) *InjectionToken {
	t := &InjectionToken{name: name}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *InjectionToken) String() string {
	return "InjectionToken(" + t.name + ")"
}

// Name returns the display name of the token.
func (t *InjectionToken) Name() string {
	return t.name
}

// TypeOf returns the token for T.
func TypeOf[T any]() Token {
	return reflect.TypeFor[T]()
}

// TokenName formats a token for errors and logs.
func TokenName(token Token) string {
	switch t := token.(type) {
	case nil:
		return "<nil>"
	case *InjectionToken:
		return t.String()
	case reflect.Type:
		return formatType(t)
	case string:
		return fmt.Sprintf("%q", t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%T(%v)", token, token)
	}
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Slice:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "[]" + elem.Name()
		}
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}
