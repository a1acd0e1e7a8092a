package hookdi

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/junioryono/hookdi/wait"
)

// destroyInstance tears inst down if its scope allows it for event, or if a
// force condition holds: its definition is gone and nothing references it,
// or it is part of a cycle and only one parent is left. The instance leaves
// its definition's map before OnDestroy runs; children are cascaded after
// OnDestroy settles.
func destroyInstance(inst *Instance, event DestroyEvent) (any, error) {
	return destroy(inst, event, false)
}

func destroy(inst *Instance, event DestroyEvent, force bool) (any, error) {
	if inst.Has(InstanceDestroyed) {
		return nil, nil
	}
	if inst.Has(InstanceFailed) {
		inst.markDestroyed()
		return nil, nil
	}
	if inst.Has(InstancePending) && !inst.Has(InstanceCircular) {
		return wait.Wait(inst.ready, nil, func(any) (any, error) {
			return destroy(inst, event, force)
		}, func(error) (any, error) {
			return nil, nil
		})
	}

	def := inst.definition
	switch {
	case force:
	case orphaned(inst):
	case inst.scope.CanDestroy(inst, event):
	default:
		return nil, nil
	}

	if !inst.markDestroyed() {
		return nil, nil
	}
	def.removeValue(inst)
	for _, fn := range inst.takeObservers() {
		fn(inst)
	}
	children := inst.graph.unlink(inst)

	logger := def.record.host.logger
	logger.Debug("instance destroyed",
		zap.String("token", TokenName(def.Token())),
		zap.Stringer("event", event),
		zap.Int("children", len(children)),
	)

	v, err := callOnDestroy(inst)
	return wait.Wait(v, err, func(any) (any, error) {
		return cascade(children, event, nil)
	}, func(err error) (any, error) {
		logger.Warn("destroy callback failed", zap.String("token", TokenName(def.Token())), zap.Error(err))
		return cascade(children, event, fmt.Errorf("destroy %s: %w", TokenName(def.Token()), err))
	})
}

// orphaned reports whether inst must go whatever its scope says: its
// definition is gone and nothing references it, or it is part of a cycle and
// only one parent is left.
func orphaned(inst *Instance) bool {
	parents := inst.ParentCount()
	if inst.definition.Destroyed() && parents == 0 {
		return true
	}
	return inst.Has(InstanceCircular) && parents == 1
}

// cascade destroys the children of a destroyed instance in order. Failures
// are collected and do not stop the remaining children.
func cascade(children []*Instance, event DestroyEvent, errs error) (any, error) {
	return wait.SequenceThen(children, func(_ int, child *Instance) (any, error) {
		ev := event
		if ev == EventInjector && !child.definition.record.host.destroying() {
			ev = EventDefault
		}
		v, err := destroyInstance(child, ev)
		return wait.Catch(v, err, func(err error) (any, error) {
			errs = multierr.Append(errs, err)
			return nil, nil
		})
	}, func([]any) (any, error) {
		return nil, errs
	})
}

// destroyDefinitions destroys every instance of defs regardless of scope
// refusal. Instances nothing references go first so their children are
// cascaded in order; the rest are forced afterwards.
func destroyDefinitions(defs []*Definition) (any, error) {
	var insts []*Instance
	for _, def := range defs {
		insts = append(insts, def.markDestroyed()...)
	}

	var errs error
	collect := func(v any, err error) (any, error) {
		return wait.Catch(v, err, func(err error) (any, error) {
			errs = multierr.Append(errs, err)
			return nil, nil
		})
	}

	first, err := wait.Sequence(insts, func(_ int, inst *Instance) (any, error) {
		return collect(destroyInstance(inst, EventInjector))
	})
	return wait.Then(first, err, func(any) (any, error) {
		return wait.SequenceThen(insts, func(_ int, inst *Instance) (any, error) {
			return collect(destroy(inst, EventInjector, true))
		}, func([]any) (any, error) {
			return nil, errs
		})
	})
}

// releaseDefinitions marks defs destroyed and tears down the instances
// nothing references any more. Referenced ones are destroyed when their last
// parent goes.
func releaseDefinitions(defs []*Definition) (any, error) {
	var insts []*Instance
	for _, def := range defs {
		insts = append(insts, def.markDestroyed()...)
	}

	var errs error
	return wait.SequenceThen(insts, func(_ int, inst *Instance) (any, error) {
		if !orphaned(inst) {
			return nil, nil
		}
		v, err := destroyInstance(inst, EventDefault)
		return wait.Catch(v, err, func(err error) (any, error) {
			errs = multierr.Append(errs, err)
			return nil, nil
		})
	}, func([]any) (any, error) {
		return nil, errs
	})
}

// Destroy tears the injector down: every instance of its own definitions,
// then the injectors it owns. It detaches from the injectors that imported
// it. Failures are collected into a DestroyError and do not stop the rest.
func (inj *Injector) Destroy() (any, error) {
	if !inj.state.CompareAndSwap(injectorActive, injectorDestroying) {
		return nil, nil
	}

	inj.mu.Lock()
	var defs []*Definition
	for _, token := range inj.order {
		if rec, ok := inj.records[token]; ok {
			defs = append(defs, rec.clear()...)
		}
	}
	inj.records = make(map[Token]*Record)
	inj.order = nil
	inj.imported = make(map[Token][]*Record)
	imports := inj.imports
	inj.imports = nil
	inj.mu.Unlock()

	var errs error
	v, err := destroyDefinitions(defs)
	v, err = wait.Wait(v, err, func(any) (any, error) {
		return nil, nil
	}, func(err error) (any, error) {
		errs = multierr.Append(errs, err)
		return nil, nil
	})

	return wait.Then(v, err, func(any) (any, error) {
		inj.detach()

		return wait.SequenceThen(imports, func(_ int, child *Injector) (any, error) {
			v, err := child.Destroy()
			return wait.Catch(v, err, func(err error) (any, error) {
				errs = multierr.Append(errs, err)
				return nil, nil
			})
		}, func([]any) (any, error) {
			inj.state.Store(injectorDestroyed)
			inj.cache.Clear()
			inj.logger.Debug("injector destroyed", zap.String("injector", inj.String()))
			return nil, destroyError("injector", errs)
		})
	})
}

// Destroyed reports whether Destroy has started.
func (inj *Injector) Destroyed() bool {
	return inj.destroying()
}

// detach removes inj and its records from its parent and importers.
func (inj *Injector) detach() {
	inj.mu.Lock()
	others := inj.importers
	inj.importers = nil
	inj.mu.Unlock()
	if inj.parent != nil {
		others = append(others, inj.parent)
	}

	for _, other := range others {
		other.mu.Lock()
		for i, imp := range other.imports {
			if imp == inj {
				other.imports = append(other.imports[:i], other.imports[i+1:]...)
				break
			}
		}
		for token, recs := range other.imported {
			kept := recs[:0]
			for _, rec := range recs {
				if rec.host != inj {
					kept = append(kept, rec)
				}
			}
			if len(kept) == 0 {
				delete(other.imported, token)
			} else {
				other.imported[token] = kept
			}
		}
		other.mu.Unlock()
	}

	if len(others) > 0 {
		others[0].invalidate()
	}
}
