package hookdi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// Typed errors below wrap or match these, so callers can rely on errors.Is.

var (
	// Resolution errors.
	ErrNoProvider         = errors.New("no provider")
	ErrCircularDependency = errors.New("circular dependency")
	ErrNoDelegation       = errors.New("no delegated value")
	ErrTypeMismatch       = errors.New("resolved value has unexpected type")

	// Configuration errors.
	ErrStaticContextOnly = errors.New("singleton scope only accepts the static context")
	ErrInvalidFactory    = errors.New("invalid factory")
	ErrInvalidProvider   = errors.New("invalid provider")
	ErrTokenNil          = errors.New("token cannot be nil")
	ErrScopeNil          = errors.New("scope cannot be nil")

	// Lifecycle errors.
	ErrInjectorDestroyed = errors.New("injector has been destroyed")
	ErrInstanceDestroyed = errors.New("instance has been destroyed")
)

var (
	_ error = NoProviderError{}
	_ error = ConfigurationError{}
	_ error = CircularDependencyError{}
	_ error = FactoryPanicError{}
	_ error = TimeoutError{}
	_ error = DestroyError{}
	_ error = DelegationError{}
)

// NoProviderError is returned when a token cannot be matched by any injector
// in the chain. Optional and Fallback hooks recover from this error only.
type NoProviderError struct {
	Token    Token
	Injector string
	Path     []Token // requesting tokens, outermost first
}

func (e NoProviderError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("no provider for %s", TokenName(e.Token)))
	if e.Injector != "" {
		b.WriteString(fmt.Sprintf(" (injector %s)", e.Injector))
	}

	if len(e.Path) > 0 {
		b.WriteString("\n\nResolution path:\n    ")
		for i, t := range e.Path {
			if i > 0 {
				b.WriteString(" -> ")
			}
			b.WriteString(TokenName(t))
		}
		b.WriteString(" -> ")
		b.WriteString(TokenName(e.Token))
		b.WriteString("\n")
	}

	return b.String()
}

func (e NoProviderError) Is(target error) bool {
	return target == ErrNoProvider
}

// ConfigurationError reports misuse by a provider author, such as handing a
// custom context to a singleton.
type ConfigurationError struct {
	Token Token
	Scope string
	Cause error
}

func (e ConfigurationError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("invalid configuration for %s (%s scope): %v", TokenName(e.Token), e.Scope, e.Cause)
	}
	return fmt.Sprintf("invalid configuration for %s: %v", TokenName(e.Token), e.Cause)
}

func (e ConfigurationError) Unwrap() error {
	return e.Cause
}

// CircularDependencyError is returned when a cycle cannot be satisfied by
// reusing an already allocated instance.
type CircularDependencyError struct {
	Token Token
	Path  []Token
}

func (e CircularDependencyError) Error() string {
	var b strings.Builder
	b.WriteString("circular dependency detected:\n\n")

	path := e.Path
	if len(path) == 0 {
		path = []Token{e.Token}
	}
	for _, t := range path {
		b.WriteString(fmt.Sprintf("    %s\n", TokenName(t)))
		b.WriteString("      ↓\n")
	}
	b.WriteString(fmt.Sprintf("    %s (cycle)\n", TokenName(e.Token)))

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Inject one side of the cycle through a struct field instead of a constructor argument\n")
	b.WriteString("  • Use the Factory hook to resolve the dependency lazily\n")
	b.WriteString("  • Restructure to remove the circular relationship\n")

	return b.String()
}

func (e CircularDependencyError) Is(target error) bool {
	return target == ErrCircularDependency
}

// FactoryPanicError captures a panic raised by a user factory.
type FactoryPanicError struct {
	Token Token
	Panic any
	Stack []byte
}

func (e FactoryPanicError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("factory for %s panicked: %v\n", TokenName(e.Token), e.Panic))
	if len(e.Stack) > 0 {
		b.WriteString("\nStack trace:\n")
		b.Write(e.Stack)
	}
	return b.String()
}

// TimeoutError indicates a pending resolution did not settle in time.
type TimeoutError struct {
	Token   Token
	Timeout time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("resolution of %s timed out after %v", TokenName(e.Token), e.Timeout)
}

func (e TimeoutError) Is(target error) bool {
	return errors.Is(target, context.DeadlineExceeded)
}

// DelegationError is returned by Delegate hooks that find no payload.
type DelegationError struct {
	Key any
}

func (e DelegationError) Error() string {
	return fmt.Sprintf("no delegated value for key %v", e.Key)
}

func (e DelegationError) Is(target error) bool {
	return target == ErrNoDelegation
}

// DestroyError aggregates failures collected during best-effort teardown.
type DestroyError struct {
	Context string // "injector", "instance", "call"
	Err     error
}

func (e DestroyError) Error() string {
	errs := multierr.Errors(e.Err)
	if len(errs) == 1 {
		return fmt.Sprintf("%s destroy failed: %v", e.Context, errs[0])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s destroy failed with %d errors:", e.Context, len(errs)))
	for i, err := range errs {
		sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return sb.String()
}

func (e DestroyError) Unwrap() []error {
	return multierr.Errors(e.Err)
}

func destroyError(context string, err error) error {
	if err == nil {
		return nil
	}
	return DestroyError{Context: context, Err: err}
}

func typeMismatch[T any](token Token, v any) error {
	return fmt.Errorf("%w: %s resolved to %T, want %s", ErrTypeMismatch, TokenName(token), v, TokenName(TypeOf[T]()))
}

// IsNoProvider reports whether err stems from a missing provider.
func IsNoProvider(err error) bool {
	return errors.Is(err, ErrNoProvider)
}

// IsCircular reports whether err is an unsatisfiable circular dependency.
func IsCircular(err error) bool {
	return errors.Is(err, ErrCircularDependency)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce ConfigurationError
	return errors.As(err, &ce)
}
