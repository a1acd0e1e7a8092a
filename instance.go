package hookdi

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/junioryono/hookdi/wait"
)

// InstanceStatus describes the state of an Instance.
type InstanceStatus uint32

const (
	// InstancePending is set while the factory or OnInit is running.
	InstancePending InstanceStatus = 1 << iota
	// InstanceResolved is set once the value is ready for use.
	InstanceResolved
	// InstanceCircular marks instances that took part in a satisfied cycle.
	InstanceCircular
	// InstanceDestroyed is set when destruction begins.
	InstanceDestroyed
	// InstanceFailed is set when the factory or OnInit failed.
	InstanceFailed
)

var instanceIDs atomic.Uint64

// Instance is one resolved value of a definition for one context, linked to
// the instances that injected it (parents) and the ones it injected
// (children).
type Instance struct {
	id         uint64
	definition *Definition
	context    *Context
	scope      Scope
	session    *Session
	graph      *instanceGraph
	custom     bool // created under a caller supplied context

	status atomic.Uint32
	ready  *wait.Future

	mu          sync.Mutex
	value       any
	hasValue    bool
	meta        map[any]any
	pendingInit []*Instance
	observers   []func(*Instance)

	// guarded by graph.mu
	parents  map[*Instance]struct{}
	children map[*Instance]struct{}
}

func newInstance(def *Definition, ctx *Context, scope Scope, s *Session, g *instanceGraph) *Instance {
	inst := &Instance{
		id:         instanceIDs.Add(1),
		definition: def,
		context:    ctx,
		scope:      scope,
		session:    s,
		graph:      g,
		custom:     s.custom != nil && s.custom == ctx,
		ready:      wait.NewPromise(),
		parents:    make(map[*Instance]struct{}),
		children:   make(map[*Instance]struct{}),
	}
	inst.status.Store(uint32(InstancePending))
	return inst
}

// ID returns the process-unique id of the instance.
func (i *Instance) ID() uint64 { return i.id }

// Definition returns the definition that produced the instance.
func (i *Instance) Definition() *Definition { return i.definition }

// Context returns the cache key the instance is stored under.
func (i *Instance) Context() *Context { return i.context }

// Scope returns the scope that assigned the instance's context.
func (i *Instance) Scope() Scope { return i.scope }

// Session returns the session that created the instance.
func (i *Instance) Session() *Session { return i.session }

// CustomContext reports whether the instance was created under a context
// supplied by a hook rather than one assigned by its scope.
func (i *Instance) CustomContext() bool { return i.custom }

// Value returns the resolved value.
func (i *Instance) Value() any {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.value
}

// Status returns the current status bits.
func (i *Instance) Status() InstanceStatus {
	return InstanceStatus(i.status.Load())
}

// Has reports whether all bits of status are set.
func (i *Instance) Has(status InstanceStatus) bool {
	return i.Status()&status == status
}

func (i *Instance) setStatus(set, clear InstanceStatus) {
	for {
		old := i.status.Load()
		next := (old | uint32(set)) &^ uint32(clear)
		if i.status.CompareAndSwap(old, next) {
			return
		}
	}
}

// markDestroyed sets InstanceDestroyed and reports whether this call did it.
func (i *Instance) markDestroyed() bool {
	for {
		old := i.status.Load()
		if old&uint32(InstanceDestroyed) != 0 {
			return false
		}
		if i.status.CompareAndSwap(old, old|uint32(InstanceDestroyed)) {
			return true
		}
	}
}

// Meta returns a value stored on the instance by a hook.
func (i *Instance) Meta(key any) (any, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := i.meta[key]
	return v, ok
}

// SetMeta stores a value on the instance.
func (i *Instance) SetMeta(key, value any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.meta == nil {
		i.meta = make(map[any]any)
	}
	i.meta[key] = value
}

// OnDestroyed registers fn to run when the instance is destroyed. Scopes use
// it to clean side tables keyed by the instance.
func (i *Instance) OnDestroyed(fn func(*Instance)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.observers = append(i.observers, fn)
}

// Parents returns the instances that injected this one, ordered by id.
func (i *Instance) Parents() []*Instance {
	i.graph.mu.RLock()
	defer i.graph.mu.RUnlock()
	return instanceSet(i.parents)
}

// Children returns the instances this one injected, ordered by id.
func (i *Instance) Children() []*Instance {
	i.graph.mu.RLock()
	defer i.graph.mu.RUnlock()
	return instanceSet(i.children)
}

// ParentCount returns the number of parent links.
func (i *Instance) ParentCount() int {
	i.graph.mu.RLock()
	defer i.graph.mu.RUnlock()
	return len(i.parents)
}

// Destroy tears the instance down as a manual destroy event.
func (i *Instance) Destroy() (any, error) {
	return destroyInstance(i, EventManual)
}

func (i *Instance) setValue(v any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.value = v
	i.hasValue = true
}

func (i *Instance) earlyValue() (any, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.value, i.hasValue
}

func (i *Instance) deferInit(insts ...*Instance) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pendingInit = append(i.pendingInit, insts...)
}

func (i *Instance) takePendingInit() []*Instance {
	i.mu.Lock()
	defer i.mu.Unlock()
	p := i.pendingInit
	i.pendingInit = nil
	return p
}

func (i *Instance) takeObservers() []func(*Instance) {
	i.mu.Lock()
	defer i.mu.Unlock()
	o := i.observers
	i.observers = nil
	return o
}

// instanceGraph guards the parent/child links of every instance created by
// one injector tree.
type instanceGraph struct {
	mu sync.RWMutex
}

// link records that parent injected child.
func (g *instanceGraph) link(parent, child *Instance) {
	if parent == nil || child == nil || parent == child {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	parent.children[child] = struct{}{}
	child.parents[parent] = struct{}{}
}

// unlink removes inst from the graph and returns its former children.
func (g *instanceGraph) unlink(inst *Instance) []*Instance {
	g.mu.Lock()
	defer g.mu.Unlock()

	for p := range inst.parents {
		delete(p.children, inst)
	}
	children := instanceSet(inst.children)
	for _, c := range children {
		delete(c.parents, inst)
	}

	inst.parents = make(map[*Instance]struct{})
	inst.children = make(map[*Instance]struct{})
	return children
}

func instanceSet(m map[*Instance]struct{}) []*Instance {
	out := make([]*Instance, 0, len(m))
	for inst := range m {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
