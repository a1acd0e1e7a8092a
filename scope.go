package hookdi

import (
	"sync"
)

// DestroyEvent tells a scope why an instance is being torn down.
type DestroyEvent int

const (
	// EventDefault is raised when an instance loses its last parent during a
	// cascade that was not started by injector teardown.
	EventDefault DestroyEvent = iota
	// EventInjector is raised while the owning injector is being destroyed.
	EventInjector
	// EventManual is raised by explicit Destroy calls.
	EventManual
)

func (e DestroyEvent) String() string {
	switch e {
	case EventDefault:
		return "default"
	case EventInjector:
		return "injector"
	case EventManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Scope decides which context a resolution uses as the cache key for a
// definition's instances, and whether an instance may be torn down.
//
// Custom scopes implement Scope directly. A scope that also implements
// instanceObserver is told about every instance it created.
//
// Example:
//
//	inj.Provide(hookdi.Factory(NewRequestLog, hookdi.WithScope(hookdi.Resolution)))
type Scope interface {
	// Name identifies the scope in errors and logs.
	Name() string

	// Context returns the cache key for s.
	Context(s *Session) (*Context, error)

	// CanDestroy reports whether inst may be destroyed for event.
	CanDestroy(inst *Instance, event DestroyEvent) bool

	// CanBeOverridden reports whether a Scoped hook may replace this scope.
	CanBeOverridden() bool
}

// instanceObserver is implemented by scopes that keep per-instance state.
type instanceObserver interface {
	instanceCreated(inst *Instance)
}

// ScopeOptions carries the options shared by the built-in scopes.
type ScopeOptions struct {
	// DisableContextReuse ignores a context supplied through Ctx or Fresh and
	// applies the scope's own policy instead.
	DisableContextReuse bool

	// NotOverridable rejects Scoped hooks for providers using the scope.
	NotOverridable bool
}

// reused returns the caller supplied context when the options allow it.
func (o ScopeOptions) reused(s *Session) (*Context, bool) {
	if o.DisableContextReuse || s.custom == nil {
		return nil, false
	}
	return s.custom, true
}

func (o ScopeOptions) CanBeOverridden() bool {
	return !o.NotOverridable
}

// noParents reports whether nothing holds a reference to inst anymore.
func noParents(inst *Instance) bool {
	return inst.ParentCount() == 0
}

// contextTable maps an owner instance to the context shared by everything it
// injects. Entries are dropped when the owner is destroyed.
type contextTable struct {
	name string

	mu       sync.Mutex
	contexts map[uint64]*Context
}

func newContextTable(name string) *contextTable {
	return &contextTable{
		name:     name,
		contexts: make(map[uint64]*Context),
	}
}

func (t *contextTable) get(owner *Instance) *Context {
	t.mu.Lock()
	ctx, ok := t.contexts[owner.ID()]
	if !ok {
		ctx = NewContext(t.name)
		t.contexts[owner.ID()] = ctx
	}
	t.mu.Unlock()

	if !ok {
		owner.OnDestroyed(t.drop)
	}
	return ctx
}

func (t *contextTable) drop(owner *Instance) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.contexts, owner.ID())
}

func (t *contextTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.contexts)
}
