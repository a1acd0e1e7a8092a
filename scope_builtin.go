package hookdi

import "fmt"

var (
	// Singleton shares one instance per definition. It only accepts the
	// static context and cannot be overridden.
	Singleton Scope = SingletonScope{}

	// Transient creates a new instance on every resolution unless a context
	// is supplied through Ctx.
	Transient = TransientScope{}

	// Default uses the context already on the session, or the static one.
	// Providers without WithScope use it.
	Default = DefaultScope{}
)

// SingletonScope is the scope behind Singleton.
type SingletonScope struct{}

func (SingletonScope) Name() string { return "singleton" }

func (SingletonScope) Context(s *Session) (*Context, error) {
	if ctx, ok := s.LocalAnnotation(factoryContextAnnotation{}); ok && ctx == s.custom {
		return Static, nil
	}
	if s.custom != nil && s.custom != Static {
		return nil, fmt.Errorf("%w: got %s", ErrStaticContextOnly, s.custom)
	}
	return Static, nil
}

func (SingletonScope) CanDestroy(inst *Instance, event DestroyEvent) bool {
	return event == EventInjector && noParents(inst)
}

func (SingletonScope) CanBeOverridden() bool { return false }

// TransientScope is the scope behind Transient.
type TransientScope struct {
	ScopeOptions
}

// With returns a copy of the scope using opts.
func (t TransientScope) With(opts ScopeOptions) TransientScope {
	t.ScopeOptions = opts
	return t
}

func (TransientScope) Name() string { return "transient" }

func (t TransientScope) Context(s *Session) (*Context, error) {
	if ctx, ok := t.reused(s); ok {
		return ctx, nil
	}
	s.SetFlag(FlagSideEffect)
	return NewContext("transient"), nil
}

func (TransientScope) CanDestroy(inst *Instance, event DestroyEvent) bool {
	return transientCanDestroy(inst, event)
}

func transientCanDestroy(inst *Instance, event DestroyEvent) bool {
	switch {
	case event == EventInjector && noParents(inst):
		return true
	case event == EventManual:
		return true
	case inst.session != nil && inst.session.metadata.Kind == Method:
		return true
	}
	return false
}

// DefaultScope is the scope behind Default.
type DefaultScope struct {
	ScopeOptions
}

// With returns a copy of the scope using opts.
func (d DefaultScope) With(opts ScopeOptions) DefaultScope {
	d.ScopeOptions = opts
	return d
}

func (DefaultScope) Name() string { return "default" }

func (d DefaultScope) Context(s *Session) (*Context, error) {
	if ctx, ok := d.reused(s); ok {
		return ctx, nil
	}
	return Static, nil
}

func (DefaultScope) CanDestroy(inst *Instance, event DestroyEvent) bool {
	return event == EventInjector && noParents(inst)
}
