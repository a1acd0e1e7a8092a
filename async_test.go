package hookdi

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/hookdi/wait"
)

func TestAsync_Factory(t *testing.T) {
	inj := newTestInjector(t,
		Value(TypeOf[*TConfig](), &TConfig{DSN: "db"}),
		AsyncFactory(func(cfg *TConfig) *TService {
			time.Sleep(5 * time.Millisecond)
			return NewTService(cfg)
		}),
	)

	v, err := inj.Get(TypeOf[*TService]())
	require.NoError(t, err)
	assert.True(t, wait.IsPending(v))

	svc, err := ResolveContext[*TService](t.Context(), inj)
	require.NoError(t, err)
	assert.Equal(t, "db", svc.Config.DSN)

	v, err = inj.Get(TypeOf[*TService]())
	require.NoError(t, err)
	assert.Same(t, svc, v, "settled instances are returned directly")
}

func TestAsync_CoalescesPendingInstance(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32

	inj := newTestInjector(t, AsyncFactory(func() *TConfig {
		calls.Add(1)
		<-release
		return &TConfig{}
	}))

	v1, err1 := inj.Get(TypeOf[*TConfig]())
	v2, err2 := inj.Get(TypeOf[*TConfig]())
	require.True(t, wait.IsPending(v1))
	require.True(t, wait.IsPending(v2))
	close(release)

	a, err := wait.Await(t.Context(), v1, err1)
	require.NoError(t, err)
	b, err := wait.Await(t.Context(), v2, err2)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, int32(1), calls.Load())
}

type asyncInit struct {
	ready atomic.Bool
}

func (a *asyncInit) OnInit() *wait.Future {
	return wait.Go(func() (any, error) {
		time.Sleep(5 * time.Millisecond)
		a.ready.Store(true)
		return nil, nil
	})
}

func TestAsync_Initializer(t *testing.T) {
	inj := newTestInjector(t, Factory(func() *asyncInit { return &asyncInit{} }))

	v, err := inj.Get(TypeOf[*asyncInit]())
	require.NoError(t, err)
	assert.True(t, wait.IsPending(v), "an asynchronous OnInit makes the resolution asynchronous")

	v, err = wait.Await(t.Context(), v, err)
	require.NoError(t, err)
	assert.True(t, v.(*asyncInit).ready.Load())
}

func TestAsync_FailureDropsInstance(t *testing.T) {
	inj := newTestInjector(t, AsyncFactory(func() (*TConfig, error) { return nil, errBoom }))

	_, err := Resolve[*TConfig](inj)
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, inj.Records()[0].Definitions()[0].Instances())
}

func TestAsync_WaitCanceled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	inj, err := New(WithProviders(AsyncFactory(func() *TConfig {
		<-release
		return &TConfig{}
	})))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ResolveContext[*TConfig](ctx, inj)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAsync_Pool(t *testing.T) {
	pool, err := wait.NewPool(2)
	require.NoError(t, err)
	defer pool.Release()

	inj, err := New(
		WithPool(pool),
		WithProviders(
			AsyncFactory(func() *TConfig { return &TConfig{DSN: "pooled"} }),
			AsyncFactory(NewTService),
		),
	)
	require.NoError(t, err)
	defer inj.Destroy()

	svc, err := ResolveContext[*TService](t.Context(), inj)
	require.NoError(t, err)
	assert.Equal(t, "pooled", svc.Config.DSN)
}

func TestAsync_GetAll(t *testing.T) {
	inj := newTestInjector(t,
		AsyncFactory(func() string { return "a" }, As("item")),
		Value("item", "b"),
	)

	v, err := inj.GetAll("item")
	v, err = wait.Await(t.Context(), v, err)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)
}
