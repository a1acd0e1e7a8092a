package hookdi

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/junioryono/hookdi/wait"
)

// Resolution gives every top-level resolution its own instances: all
// Resolution scoped dependencies resolved below one Get share an instance,
// two Gets never do. Gets carrying the same Call (see WithCall) share.
// Instances are only destroyed through Call.Destroy or Instance.Destroy.
var Resolution Scope = &ResolutionScope{}

// ResolutionScope is the scope behind Resolution.
type ResolutionScope struct {
	opts ScopeOptions
}

// With returns a Resolution scope using opts.
func (r *ResolutionScope) With(opts ScopeOptions) *ResolutionScope {
	return &ResolutionScope{opts: opts}
}

func (*ResolutionScope) Name() string { return "resolution" }

func (r *ResolutionScope) Context(s *Session) (*Context, error) {
	if ctx, ok := r.opts.reused(s); ok {
		return ctx, nil
	}
	s.SetFlag(FlagSideEffect)
	return callOf(s).ctx, nil
}

func (*ResolutionScope) CanDestroy(_ *Instance, event DestroyEvent) bool {
	return event == EventManual
}

func (r *ResolutionScope) CanBeOverridden() bool { return r.opts.CanBeOverridden() }

func (*ResolutionScope) instanceCreated(inst *Instance) {
	if inst.custom || inst.session == nil {
		return
	}
	callOf(inst.session).track(inst)
}

type callAnnotation struct{}

// callOf returns the call of s, creating one on the root session when the
// resolution was started without a Call.
func callOf(s *Session) *Call {
	if s.call != nil {
		return s.call
	}
	return s.Root().loadOrStoreAnnotation(callAnnotation{}, func() any {
		return NewCall()
	}).(*Call)
}

// Call groups resolutions that share Resolution scoped instances. Attach a
// Call to a context.Context with WithCall and resolve through GetContext.
//
// Example:
//
//	ctx, call := hookdi.WithCall(r.Context())
//	defer call.Destroy()
//
//	svc, err := hookdi.ResolveContext[*Checkout](ctx, inj)
type Call struct {
	ctx *Context

	mu        sync.Mutex
	instances []*Instance
	handles   map[*Handle]any
}

// NewCall returns an empty call.
func NewCall() *Call {
	return &Call{
		ctx:     NewContext("resolution"),
		handles: make(map[*Handle]any),
	}
}

type callKey struct{}

// WithCall returns a copy of ctx carrying a new Call.
func WithCall(ctx context.Context) (context.Context, *Call) {
	c := NewCall()
	return context.WithValue(ctx, callKey{}, c), c
}

// CallFrom returns the Call carried by ctx, or nil.
func CallFrom(ctx context.Context) *Call {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(callKey{}).(*Call)
	return c
}

// Context returns the context Resolution scoped instances of the call use.
func (c *Call) Context() *Context { return c.ctx }

// Instances returns the instances created for the call.
func (c *Call) Instances() []*Instance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Instance(nil), c.instances...)
}

func (c *Call) track(inst *Instance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances = append(c.instances, inst)
}

// Destroy destroys every instance created for the call, in creation order.
// Failures do not stop the remaining destroys.
func (c *Call) Destroy() (any, error) {
	c.mu.Lock()
	insts := c.instances
	c.instances = nil
	c.handles = make(map[*Handle]any)
	c.mu.Unlock()

	var errs error
	return wait.SequenceThen(insts, func(_ int, inst *Instance) (any, error) {
		v, err := destroyInstance(inst, EventManual)
		return wait.Catch(v, err, func(err error) (any, error) {
			errs = multierr.Append(errs, err)
			return nil, nil
		})
	}, func([]any) (any, error) {
		return nil, errs
	})
}

// Handle defers a resolution until Get is called with the context of a
// call. Lazy injection sites receive a *Handle instead of the value.
type Handle struct {
	session *Session
	next    Next
}

// Get resolves the value for the Call carried by ctx. Within one Call the
// value is resolved once.
func (h *Handle) Get(ctx context.Context) (any, error) {
	call := CallFrom(ctx)
	if call != nil {
		call.mu.Lock()
		v, ok := call.handles[h]
		call.mu.Unlock()
		if ok {
			return v, nil
		}
	}

	f := h.session.Fork()
	f.call = call
	v, err := h.next(f)
	v, err = wait.Await(ctx, v, err)
	if err != nil {
		return nil, err
	}

	if call != nil {
		call.mu.Lock()
		if cur, ok := call.handles[h]; ok {
			v = cur
		} else {
			call.handles[h] = v
		}
		call.mu.Unlock()
	}
	return v, nil
}

// Deref resolves h and asserts the value to T.
func Deref[T any](ctx context.Context, h *Handle) (T, error) {
	var zero T
	v, err := h.Get(ctx)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok && v != nil {
		return zero, typeMismatch[T](h.session.token, v)
	}
	return t, nil
}

// Lazy makes the injection site receive a *Handle. The rest of the pipeline
// runs when the handle is dereferenced.
func Lazy() Hook {
	return HookFunc(func(s *Session, next Next) (any, error) {
		s.SetFlag(FlagSideEffect)
		return &Handle{session: s, next: next}, nil
	})
}
