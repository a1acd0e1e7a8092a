package hookdi

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tidwall/btree"
)

// Definition is one registered way to supply a token inside one injector.
// It owns the instances it produced, keyed by context.
type Definition struct {
	id     uint64
	record *Record
	kind   providerKind

	factory      factory
	alias        Token
	scope        Scope
	hooks        []Hook
	when         func(*Session) bool
	annotations  map[any]any
	order        int
	onInit       func(any) error
	onDestroy    func(any) error
	interceptors []any

	mu        sync.Mutex
	values    map[*Context]*Instance
	destroyed bool
}

// Token returns the token the definition is registered under.
func (d *Definition) Token() Token { return d.record.token }

// Record returns the record holding the definition.
func (d *Definition) Record() *Record { return d.record }

// Scope returns the scope assigned at registration.
func (d *Definition) Scope() Scope { return d.scope }

// Annotation returns a static annotation of the definition.
func (d *Definition) Annotation(key any) (any, bool) {
	v, ok := d.annotations[key]
	return v, ok
}

// Destroyed reports whether the owning injector or an override destroyed the
// definition.
func (d *Definition) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// Instances returns the live instances of the definition ordered by creation.
func (d *Definition) Instances() []*Instance {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortedInstances(d.values)
}

// Arguments lists the injection sites of the definition's factory.
func (d *Definition) Arguments() []Argument {
	if d.factory == nil {
		return nil
	}
	return d.factory.Arguments()
}

// removeValue drops inst from the instance map if it is still the entry for
// its context.
func (d *Definition) removeValue(inst *Instance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.values[inst.context]; ok && cur == inst {
		delete(d.values, inst.context)
	}
}

// instanceFor returns the live instance of ctx, or registers a new pending
// one. The pending entry makes concurrent resolutions of the same context
// wait for the first one instead of creating their own.
func (d *Definition) instanceFor(s *Session, ctx *Context, scope Scope) (*Instance, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.destroyed {
		return nil, false, fmt.Errorf("%s: %w", TokenName(d.Token()), ErrInstanceDestroyed)
	}
	if inst, ok := d.values[ctx]; ok {
		if !inst.Has(InstanceDestroyed) && !inst.Has(InstanceFailed) {
			return inst, false, nil
		}
		delete(d.values, ctx)
	}

	inst := newInstance(d, ctx, scope, s, s.injector.graph)
	d.values[ctx] = inst
	return inst, true, nil
}

// markDestroyed flags the definition and takes its instances.
func (d *Definition) markDestroyed() []*Instance {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
	insts := sortedInstances(d.values)
	d.values = make(map[*Context]*Instance)
	return insts
}

// Record is the ordered collection of definitions registered for one token
// in one injector.
type Record struct {
	token Token
	host  *Injector
	defs  *btree.BTreeG[*Definition]
}

func newRecord(token Token, host *Injector) *Record {
	return &Record{
		token: token,
		host:  host,
		defs: btree.NewBTreeG(func(a, b *Definition) bool {
			if a.order != b.order {
				return a.order < b.order
			}
			return a.id < b.id
		}),
	}
}

// Token returns the record's token.
func (r *Record) Token() Token { return r.token }

// Host returns the injector owning the record.
func (r *Record) Host() *Injector { return r.host }

// Definitions returns the definitions in selection order.
func (r *Record) Definitions() []*Definition {
	defs := make([]*Definition, 0, r.defs.Len())
	r.defs.Scan(func(d *Definition) bool {
		defs = append(defs, d)
		return true
	})
	return defs
}

func (r *Record) add(d *Definition) {
	d.record = r
	r.defs.Set(d)
}

func (r *Record) clear() []*Definition {
	defs := r.Definitions()
	r.defs.Clear()
	return defs
}

func sortedInstances(m map[*Context]*Instance) []*Instance {
	out := make([]*Instance, 0, len(m))
	for _, inst := range m {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
