package hookdi

import (
	"sync"

	"go.uber.org/zap"
)

// PooledScope keeps up to capacity released instances per definition and
// hands them out again before creating new ones.
type PooledScope struct {
	opts     ScopeOptions
	capacity int

	mu   sync.Mutex
	free map[*Definition][]*Instance
}

// Pooled returns a scope recycling up to capacity instances per definition.
// Released instances get OnReturnToPool, reacquired ones OnGetFromPool.
// Only releases that overflow the pool destroy the instance.
//
// Example:
//
//	inj.Provide(hookdi.Factory(NewBuffer, hookdi.WithScope(hookdi.Pooled(8))))
func Pooled(capacity int, opts ...ScopeOptions) *PooledScope {
	p := &PooledScope{
		capacity: capacity,
		free:     make(map[*Definition][]*Instance),
	}
	if len(opts) > 0 {
		p.opts = opts[0]
	}
	return p
}

func (*PooledScope) Name() string { return "pooled" }

func (p *PooledScope) Context(s *Session) (*Context, error) {
	if ctx, ok := p.opts.reused(s); ok {
		return ctx, nil
	}
	s.SetFlag(FlagSideEffect)

	if s.HasFlag(FlagDryRun) {
		return NewContext("pooled"), nil
	}
	if inst := p.acquire(s.definition); inst != nil {
		if err := callOnGetFromPool(inst); err != nil {
			return nil, err
		}
		return inst.context, nil
	}
	return NewContext("pooled"), nil
}

func (p *PooledScope) acquire(def *Definition) *Instance {
	if def == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	free := p.free[def]
	for len(free) > 0 {
		inst := free[len(free)-1]
		free = free[:len(free)-1]
		if !inst.Has(InstanceDestroyed) {
			p.free[def] = free
			return inst
		}
	}
	delete(p.free, def)
	return nil
}

func (p *PooledScope) instanceCreated(inst *Instance) {
	inst.OnDestroyed(p.remove)
}

func (p *PooledScope) CanDestroy(inst *Instance, event DestroyEvent) bool {
	if event == EventInjector {
		return true
	}
	if !noParents(inst) {
		return false
	}

	p.mu.Lock()
	def := inst.definition
	free := p.free[def]
	for _, cur := range free {
		if cur == inst {
			p.mu.Unlock()
			return false
		}
	}
	if len(free) >= p.capacity {
		p.mu.Unlock()
		return true
	}
	p.free[def] = append(free, inst)
	p.mu.Unlock()

	if err := callOnReturnToPool(inst); err != nil {
		inst.definition.record.host.logger.Warn("pool release callback failed",
			zap.String("token", TokenName(inst.definition.Token())), zap.Error(err))
	}
	return false
}

func (p *PooledScope) remove(inst *Instance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	free := p.free[inst.definition]
	for i, cur := range free {
		if cur == inst {
			free = append(free[:i], free[i+1:]...)
			if len(free) == 0 {
				delete(p.free, inst.definition)
			} else {
				p.free[inst.definition] = free
			}
			return
		}
	}
}

// Len returns the number of pooled instances of def. Destroyed instances
// leave the pool whatever destroyed them.
func (p *PooledScope) Len(def *Definition) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free[def])
}

func (p *PooledScope) CanBeOverridden() bool { return p.opts.CanBeOverridden() }
