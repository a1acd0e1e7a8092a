package hookdi

// Next invokes the rest of the pipeline for s. The returned value may be a
// pending *wait.Future.
type Next func(s *Session) (any, error)

// Hook is one stage of the resolution pipeline. A stage may change the
// session, short-circuit, call next with a forked session or post-process the
// value returned by next.
type Hook interface {
	Apply(s *Session, next Next) (any, error)
}

// HookFunc adapts a function to Hook.
type HookFunc func(s *Session, next Next) (any, error)

func (f HookFunc) Apply(s *Session, next Next) (any, error) {
	return f(s, next)
}

// compose chains hooks around terminal. hooks[0] is the outermost stage and
// the last hook sits right next to terminal. Consecutive Transform stages
// are merged so they apply in declaration order.
func compose(hooks []Hook, terminal Next) Next {
	hooks = mergeTransforms(hooks)
	next := terminal
	for i := len(hooks) - 1; i >= 0; i-- {
		hook, inner := hooks[i], next
		if hook == nil {
			continue
		}
		next = func(s *Session) (any, error) {
			return hook.Apply(s, inner)
		}
	}
	return next
}

// runPipeline composes and runs hooks for s.
func runPipeline(s *Session, hooks []Hook, terminal Next) (any, error) {
	if len(hooks) == 0 {
		return terminal(s)
	}
	return compose(hooks, terminal)(s)
}
