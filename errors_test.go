package hookdi

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

func TestNoProviderError(t *testing.T) {
	err := NoProviderError{
		Token:    TypeOf[*TConfig](),
		Injector: "app",
		Path:     []Token{TypeOf[*TService](), "handler"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "no provider for *TConfig (injector app)")
	assert.Contains(t, msg, `*TService -> "handler" -> *TConfig`)
	assert.ErrorIs(t, err, ErrNoProvider)
	assert.True(t, IsNoProvider(fmt.Errorf("wrapped: %w", err)))

	assert.Equal(t, `no provider for "port"`, NoProviderError{Token: "port"}.Error())
}

func TestConfigurationError(t *testing.T) {
	err := ConfigurationError{Token: "db", Scope: "singleton", Cause: ErrStaticContextOnly}
	assert.Equal(t, `invalid configuration for "db" (singleton scope): singleton scope only accepts the static context`, err.Error())
	assert.ErrorIs(t, err, ErrStaticContextOnly)
	assert.True(t, IsConfiguration(err))

	err = ConfigurationError{Token: "db", Cause: ErrInvalidFactory}
	assert.Equal(t, `invalid configuration for "db": invalid factory`, err.Error())
}

func TestCircularDependencyError(t *testing.T) {
	err := CircularDependencyError{Token: "a", Path: []Token{"a", "b"}}

	msg := err.Error()
	assert.Contains(t, msg, "circular dependency detected")
	assert.Contains(t, msg, "    \"a\"\n      ↓\n    \"b\"\n      ↓\n    \"a\" (cycle)")
	assert.True(t, IsCircular(err))
	assert.False(t, IsCircular(errBoom))
}

func TestFactoryPanicError(t *testing.T) {
	err := FactoryPanicError{Token: "a", Panic: "oops", Stack: []byte("goroutine 1")}
	assert.Contains(t, err.Error(), `factory for "a" panicked: oops`)
	assert.Contains(t, err.Error(), "Stack trace:\ngoroutine 1")
}

func TestTimeoutError(t *testing.T) {
	err := TimeoutError{Token: "slow", Timeout: time.Second}
	assert.Equal(t, `resolution of "slow" timed out after 1s`, err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDelegationError(t *testing.T) {
	err := DelegationError{Key: "user"}
	assert.Equal(t, "no delegated value for key user", err.Error())
	assert.ErrorIs(t, err, ErrNoDelegation)
}

func TestDestroyError(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")

	single := destroyError("instance", errA)
	assert.Equal(t, "instance destroy failed: a", single.Error())

	both := destroyError("call", multierr.Append(errA, errB))
	assert.Equal(t, "call destroy failed with 2 errors:\n  1. a\n  2. b", both.Error())
	assert.ErrorIs(t, both, errA)
	assert.ErrorIs(t, both, errB)

	assert.NoError(t, destroyError("injector", nil))
}

func TestTypeMismatch(t *testing.T) {
	err := typeMismatch[*TService]("svc", &TConfig{})
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, err.Error(), `"svc" resolved to *hookdi.TConfig, want *TService`)
}
