package hookdi

// PerInstance shares one instance per injecting parent instance: two fields
// of the same struct get the same value, two structs get different ones.
// Top-level resolutions behave like Transient.
var PerInstance = NewInstanceScope(ScopeOptions{})

// InstanceScope is the scope behind PerInstance.
type InstanceScope struct {
	opts  ScopeOptions
	table *contextTable
}

// NewInstanceScope returns a per-instance scope with its own context table.
func NewInstanceScope(opts ScopeOptions) *InstanceScope {
	return &InstanceScope{opts: opts, table: newContextTable("instance")}
}

// With returns a scope using opts that shares the receiver's contexts.
func (i *InstanceScope) With(opts ScopeOptions) *InstanceScope {
	return &InstanceScope{opts: opts, table: i.table}
}

func (*InstanceScope) Name() string { return "instance" }

func (i *InstanceScope) Context(s *Session) (*Context, error) {
	if ctx, ok := i.opts.reused(s); ok {
		return ctx, nil
	}
	owner := s.parentInstance()
	if owner == nil {
		return TransientScope{ScopeOptions: i.opts}.Context(s)
	}
	return i.table.get(owner), nil
}

func (*InstanceScope) CanDestroy(inst *Instance, event DestroyEvent) bool {
	if inst.custom {
		return transientCanDestroy(inst, event)
	}
	return noParents(inst)
}

func (i *InstanceScope) CanBeOverridden() bool { return i.opts.CanBeOverridden() }

// LocalOptions selects the boundary a Local scope shares instances under.
type LocalOptions struct {
	// Name matches definitions registered with AsLocalBoundary(Name).
	Name string

	// Token matches sessions requesting Token.
	Token Token

	// Depth picks among matching ancestors: 0 and 1 select the nearest, -1
	// the farthest and n the nth nearest (the farthest if there are fewer).
	Depth int

	ScopeOptions
}

// LocalScope shares one instance per enclosing boundary instance.
type LocalScope struct {
	opts  LocalOptions
	table *contextTable
}

// Local returns a scope sharing instances below the boundary described by
// opts. Without a matching boundary the static context is used.
//
// Example:
//
//	inj.Provide(
//		hookdi.Class[Form](hookdi.AsLocalBoundary("form")),
//		hookdi.Class[FieldState](hookdi.WithScope(hookdi.Local(hookdi.LocalOptions{Name: "form"}))),
//	)
func Local(opts LocalOptions) *LocalScope {
	return &LocalScope{opts: opts, table: newContextTable("local")}
}

func (*LocalScope) Name() string { return "local" }

func (l *LocalScope) Context(s *Session) (*Context, error) {
	if ctx, ok := l.opts.reused(s); ok {
		return ctx, nil
	}
	boundary := l.boundary(s)
	if boundary == nil {
		return Static, nil
	}
	return l.table.get(boundary), nil
}

// boundary walks the ancestors of s and returns the instance of the
// selected matching session.
func (l *LocalScope) boundary(s *Session) *Instance {
	var matches []*Instance
	for cur := s.parent; cur != nil; cur = cur.parent {
		if cur.instance == nil || !l.matches(cur) {
			continue
		}
		matches = append(matches, cur.instance)
		if l.opts.Depth >= 0 && len(matches) >= max(l.opts.Depth, 1) {
			break
		}
	}
	if len(matches) == 0 {
		return nil
	}
	return matches[len(matches)-1]
}

func (l *LocalScope) matches(s *Session) bool {
	if l.opts.Token != nil && s.token == l.opts.Token {
		return true
	}
	if l.opts.Name == "" || s.definition == nil {
		return false
	}
	name, ok := s.definition.Annotation(localBoundaryAnnotation{})
	return ok && name == l.opts.Name
}

func (*LocalScope) CanDestroy(inst *Instance, event DestroyEvent) bool {
	if inst.custom {
		return transientCanDestroy(inst, event)
	}
	return noParents(inst)
}

func (l *LocalScope) CanBeOverridden() bool { return l.opts.CanBeOverridden() }
