package hookdi

import (
	"sync"

	"go.uber.org/zap"

	"github.com/junioryono/hookdi/wait"
)

type allAnnotation struct{}

// provideStage selects the definition for s and runs the definition hooks
// around resolveDefinition.
func provideStage(s *Session) (any, error) {
	defs, err := s.injector.lookup(s)
	if err != nil {
		return nil, err
	}
	if _, ok := s.LocalAnnotation(allAnnotation{}); ok {
		return resolveAll(s, defs)
	}
	return runPipeline(s, s.definition.hooks, resolveDefinition)
}

// resolveAll resolves every definition in defs on a fork of s and collects
// the values in order.
func resolveAll(s *Session, defs []*Definition) (any, error) {
	return wait.Sequence(defs, func(_ int, def *Definition) (any, error) {
		f := s.Fork()
		f.record = def.record
		f.definition = def
		f.host = def.record.host
		f.injector = f.host
		f.custom = s.custom
		f.scope = s.scope
		if s.HasFlag(FlagDryRun) {
			f.SetFlag(FlagDryRun)
		}
		return runPipeline(f, def.hooks, resolveDefinition)
	})
}

// resolveDefinition is the terminal stage: it assigns the context through
// the scope and finds or creates the instance for it.
func resolveDefinition(s *Session) (any, error) {
	def := s.definition
	inj := s.injector

	if def.kind == aliasProvider {
		return resolveAlias(s)
	}

	scope := def.scope
	if s.scope != nil {
		if scope.CanBeOverridden() {
			scope = s.scope
		} else {
			inj.logger.Warn("scope override rejected",
				zap.String("token", TokenName(s.token)),
				zap.String("scope", scope.Name()),
				zap.String("requested", s.scope.Name()),
			)
		}
	}

	ctx, err := scope.Context(s)
	if err != nil {
		return nil, ConfigurationError{Token: s.token, Scope: scope.Name(), Cause: err}
	}
	s.context = ctx

	if s.HasFlag(FlagDryRun) {
		return s, nil
	}

	if entry := s.pendingAncestor(def); entry != nil {
		return resolveCircular(s, entry, ctx)
	}

	inst, created, err := def.instanceFor(s, ctx, scope)
	if err != nil {
		return nil, err
	}
	s.instance = inst
	inj.graph.link(s.parentInstance(), inst)

	if !created {
		if inst.Has(InstancePending) {
			// Created by a concurrent resolution.
			return awaitPending(s, inst)
		}
		return inst.Value(), nil
	}
	return create(s, inst)
}

func resolveAlias(s *Session) (any, error) {
	f := newSession(s.injector, Argument{Token: s.definition.alias, Metadata: s.metadata}, s.parent)
	f.origin = s
	f.call = s.call
	f.custom = s.custom
	f.scope = s.scope
	if s.HasFlag(FlagDryRun) {
		f.SetFlag(FlagDryRun)
	}
	return provideStage(f)
}

// pendingWaits holds, for every pending instance whose resolution waits on
// an instance created by a concurrent resolution, the instances it waits on.
var pendingWaits = struct {
	mu    sync.Mutex
	edges map[*Instance][]*Instance
}{edges: make(map[*Instance][]*Instance)}

// awaitPending returns the ready future of inst, a pending instance created
// by a concurrent resolution. When that resolution already waits, directly
// or through others, on an instance the chain of s is still creating, the two
// would wait on each other forever: the early value of inst is reused if it
// has one, and the request fails as circular otherwise.
func awaitPending(s *Session, inst *Instance) (any, error) {
	var held []*Instance
	for cur := s.parent; cur != nil; cur = cur.parent {
		if cur.instance != nil && cur.instance != inst && cur.instance.Has(InstancePending) {
			held = append(held, cur.instance)
		}
	}
	if len(held) == 0 {
		return inst.ready, nil
	}

	pendingWaits.mu.Lock()
	if waitsOn(inst, held) {
		pendingWaits.mu.Unlock()
		return resolveCrossCycle(s, inst)
	}
	for _, h := range held {
		pendingWaits.edges[h] = append(pendingWaits.edges[h], inst)
	}
	pendingWaits.mu.Unlock()

	return wait.Finally(inst.ready, nil, func() {
		pendingWaits.mu.Lock()
		defer pendingWaits.mu.Unlock()
		for _, h := range held {
			targets := pendingWaits.edges[h]
			for i, t := range targets {
				if t == inst {
					targets = append(targets[:i], targets[i+1:]...)
					break
				}
			}
			if len(targets) == 0 {
				delete(pendingWaits.edges, h)
			} else {
				pendingWaits.edges[h] = targets
			}
		}
	})
}

// waitsOn reports whether from reaches any of targets through pendingWaits.
// The caller holds pendingWaits.mu.
func waitsOn(from *Instance, targets []*Instance) bool {
	want := make(map[*Instance]struct{}, len(targets))
	for _, t := range targets {
		want[t] = struct{}{}
	}
	seen := make(map[*Instance]struct{})
	stack := []*Instance{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := want[cur]; ok {
			return true
		}
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		stack = append(stack, pendingWaits.edges[cur]...)
	}
	return false
}

// resolveCrossCycle closes a cycle spanning two concurrent resolutions with
// the early value of inst. OnInit of inst still runs in its own resolution.
func resolveCrossCycle(s *Session, inst *Instance) (any, error) {
	v, ok := inst.earlyValue()
	if !ok {
		path := append(s.Path(), s.token)
		return nil, CircularDependencyError{Token: s.token, Path: path}
	}
	s.SetFlag(FlagCircular)
	inst.setStatus(InstanceCircular, 0)
	return v, nil
}

// resolveCircular handles a request for a definition an ancestor session
// is still creating. The cycle is satisfied with the early value when both
// resolve under the same context, and rejected otherwise.
func resolveCircular(s *Session, entry *Session, ctx *Context) (any, error) {
	inst := entry.instance
	v, ok := inst.earlyValue()
	if inst.context != ctx || !ok {
		path := append(s.Path(), s.token)
		return nil, CircularDependencyError{Token: s.token, Path: path}
	}

	s.instance = inst
	s.SetFlag(FlagCircular)
	entry.SetFlag(FlagCircular)
	inst.setStatus(InstanceCircular, 0)
	for cur := s.parent; cur != nil && cur != entry; cur = cur.parent {
		cur.SetFlag(FlagCircular)
		cur.setCircularEntry(entry)
		if cur.instance != nil {
			cur.instance.setStatus(InstanceCircular, 0)
		}
	}

	s.injector.graph.link(s.parentInstance(), inst)
	return v, nil
}

// create runs the factory for a new instance and initializes it.
func create(s *Session, inst *Instance) (any, error) {
	if obs, ok := inst.scope.(instanceObserver); ok {
		obs.instanceCreated(inst)
	}

	v, err := s.definition.factory.Create(s)
	return wait.Wait(v, err, func(v any) (any, error) {
		inst.setValue(v)
		s.injector.logger.Debug("instance created",
			zap.String("token", TokenName(s.token)),
			zap.String("scope", inst.scope.Name()),
			zap.Stringer("context", inst.context),
		)
		return initialize(s, inst)
	}, func(err error) (any, error) {
		fail(inst, err)
		return nil, err
	})
}

// initialize runs OnInit for inst. Inside a cycle the call is handed to the
// cycle's entry, which runs the collected calls in dependency order before
// its own.
func initialize(s *Session, inst *Instance) (any, error) {
	v := inst.Value()

	if entry := s.cycleEntry(); entry != nil && entry.instance != inst {
		entry.instance.deferInit(append(inst.takePendingInit(), inst)...)
		resolved(inst, v)
		return v, nil
	}

	pending := inst.takePendingInit()
	res, err := wait.Sequence(pending, func(_ int, peer *Instance) (any, error) {
		return callOnInit(peer)
	})
	res, err = wait.Then(res, err, func(any) (any, error) {
		return callOnInit(inst)
	})
	return wait.Wait(res, err, func(any) (any, error) {
		resolved(inst, v)
		return v, nil
	}, func(err error) (any, error) {
		fail(inst, err)
		return nil, err
	})
}

func resolved(inst *Instance, v any) {
	inst.setStatus(InstanceResolved, InstancePending)
	_ = inst.ready.Resolve(v)
}

// fail drops an instance whose factory or OnInit failed.
func fail(inst *Instance, err error) {
	inst.setStatus(InstanceFailed, InstancePending)
	inst.definition.removeValue(inst)
	inst.graph.unlink(inst)
	_ = inst.ready.Reject(err)
}
