package hookdi

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ============================================================================
// Shared Test Types
// ============================================================================

// TConfig is a leaf dependency.
type TConfig struct {
	DSN string
}

// TService depends on TConfig through its constructor.
type TService struct {
	Config *TConfig
}

func NewTService(cfg *TConfig) *TService {
	return &TService{Config: cfg}
}

// TGreeter is an interface token.
type TGreeter interface {
	Greet() string
}

type englishGreeter struct{}

func (englishGreeter) Greet() string { return "hello" }

// TLog records lifecycle events in order.
type TLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *TLog) Add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *TLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// TClosable implements io.Closer.
type TClosable struct {
	closed   atomic.Int32
	closeErr error
}

func (c *TClosable) Close() error {
	c.closed.Add(1)
	return c.closeErr
}

// TLifecycle implements Initializer and Destroyer.
type TLifecycle struct {
	Name string
	Log  *TLog

	initErr    error
	destroyErr error
}

func (l *TLifecycle) OnInit() error {
	l.Log.Add(l.Name + "-init")
	return l.initErr
}

func (l *TLifecycle) OnDestroy() error {
	l.Log.Add(l.Name + "-destroyed")
	return l.destroyErr
}

var errBoom = errors.New("boom")

// ============================================================================
// Helpers
// ============================================================================

// newTestInjector creates a root injector logging to the test output and
// destroys it when the test ends.
func newTestInjector(t *testing.T, providers ...Provider) *Injector {
	t.Helper()
	inj, err := New(
		WithInjectorName("test"),
		WithLogger(zaptest.NewLogger(t)),
		WithProviders(providers...),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = inj.Destroy()
	})
	return inj
}

// counter returns a factory producing *TConfig values and the number of
// calls made so far.
func counter() (func() *TConfig, *atomic.Int32) {
	var n atomic.Int32
	return func() *TConfig {
		n.Add(1)
		return &TConfig{}
	}, &n
}

func mustGet[T any](t *testing.T, inj *Injector, hooks ...Hook) T {
	t.Helper()
	v, err := Resolve[T](inj, hooks...)
	require.NoError(t, err)
	return v
}
