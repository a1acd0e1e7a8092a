package hookdi

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// suffix appends its name to the result of the rest of the chain.
type suffix string

func (s suffix) Intercept(_ *ExecutionContext, next Handler) (any, error) {
	v, err := next()
	if err != nil {
		return nil, err
	}
	return fmt.Sprint(v) + string(s), nil
}

type Calculator struct{}

func (Calculator) Zero() string { return "0" }

func TestEnhance_Order(t *testing.T) {
	inj := newTestInjector(t,
		Class[Calculator](WithInterceptors(suffix("c1"), suffix("c2"))),
	)
	calc := mustGet[*Calculator](t, inj)

	h, err := Enhance(inj, TypeOf[*Calculator](), "Zero", func(...any) (any, error) {
		return calc.Zero(), nil
	}, suffix("m1"), suffix("m2"))
	require.NoError(t, err)

	v, err := h()
	require.NoError(t, err)
	assert.Equal(t, "0m1m2c1c2", v)
}

func TestEnhance_GlobalInterceptors(t *testing.T) {
	root, err := New(WithGlobalInterceptors(suffix("root")))
	require.NoError(t, err)
	defer root.Destroy()

	child, err := root.Child(WithGlobalInterceptors(suffix("child")))
	require.NoError(t, err)
	require.NoError(t, child.Provide(Class[Calculator](WithInterceptors(suffix("c")))))

	h, err := Enhance(child, TypeOf[*Calculator](), "Zero", func(...any) (any, error) {
		return "0", nil
	})
	require.NoError(t, err)

	v, err := h()
	require.NoError(t, err)
	assert.Equal(t, "0cchildroot", v)
}

func TestEnhance_ExecutionContext(t *testing.T) {
	var seen *ExecutionContext
	inj := newTestInjector(t)

	h, err := Enhance(inj, "calc", "Add", func(args ...any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	}, func(ctx *ExecutionContext, next Handler) (any, error) {
		seen = ctx
		return next(ctx.Args...)
	})
	require.NoError(t, err)

	v, err := h(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	require.NotNil(t, seen)
	assert.Equal(t, "Add", seen.Method)
	assert.Equal(t, "calc", seen.Token)
	assert.Equal(t, []any{1, 2}, seen.Args)
	assert.Same(t, inj, seen.Injector)
}

func TestEnhance_TokenInterceptor(t *testing.T) {
	inj := newTestInjector(t,
		Factory(func(cfg *TConfig) Interceptor { return suffix(cfg.DSN) }, As("audit")),
		Value(TypeOf[*TConfig](), &TConfig{DSN: "-audited"}),
	)

	h, err := Enhance(inj, nil, "Run", func(...any) (any, error) { return "run", nil }, "audit")
	require.NoError(t, err)

	v, err := h()
	require.NoError(t, err)
	assert.Equal(t, "run-audited", v)
}

func TestEnhance_NotAnInterceptor(t *testing.T) {
	inj := newTestInjector(t, Value("audit", 42))

	_, err := Enhance(inj, nil, "Run", func(...any) (any, error) { return nil, nil }, "audit")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = Enhance(inj, nil, "Run", func(...any) (any, error) { return nil, nil }, "missing")
	assert.True(t, IsNoProvider(err))
}

func TestEnhance_ShortCircuit(t *testing.T) {
	inj := newTestInjector(t)
	called := false

	h, err := Enhance(inj, nil, "Run", func(...any) (any, error) {
		called = true
		return "run", nil
	}, InterceptorFunc(func(*ExecutionContext, Handler) (any, error) {
		return nil, errBoom
	}))
	require.NoError(t, err)

	_, err = h()
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, called)
}
