package hookdi

import (
	"sync"
	"sync/atomic"
)

// SessionFlag marks the state of a resolution attempt.
type SessionFlag uint32

const (
	// FlagAsync is set once the resolution returned a pending future.
	FlagAsync SessionFlag = 1 << iota
	// FlagDryRun stops the resolution after provider and context selection.
	FlagDryRun
	// FlagCircular marks sessions that took part in a satisfied cycle.
	FlagCircular
	// FlagSideEffect marks a resolution that must not be treated as
	// idempotent. It propagates to every ancestor.
	FlagSideEffect
	// FlagSelf restricts provider lookup to the resolving injector.
	FlagSelf
	// FlagSkipSelf starts provider lookup at the parent injector.
	FlagSkipSelf
)

// Session is one resolution attempt. Sessions form a chain through Parent
// that mirrors the nested resolution call stack.
type Session struct {
	parent *Session
	origin *Session // session this one was forked from

	injector *Injector
	host     *Injector
	call     *Call

	token    Token
	metadata Metadata

	record     *Record
	definition *Definition
	instance   *Instance

	custom  *Context // context supplied through a hook
	context *Context // context assigned by the scope
	scope   Scope    // scope override

	status atomic.Uint32

	mu            sync.Mutex
	annotations   map[any]any
	circularEntry *Session // outermost entry of a cycle this session is part of
}

func newSession(injector *Injector, arg Argument, parent *Session) *Session {
	s := &Session{
		parent:   parent,
		injector: injector,
		token:    arg.Token,
		metadata: arg.Metadata,
	}
	if parent != nil {
		s.call = parent.call
	}
	return s
}

// Parent returns the session that triggered this one, nil for top level.
func (s *Session) Parent() *Session { return s.parent }

// Injector returns the injector actively resolving the session.
func (s *Session) Injector() *Injector { return s.injector }

// Host returns the injector owning the matched provider record.
func (s *Session) Host() *Injector { return s.host }

// Token returns the requested token.
func (s *Session) Token() Token { return s.token }

// Metadata returns where the injection happens.
func (s *Session) Metadata() Metadata { return s.metadata }

// Record returns the matched provider record, once selected.
func (s *Session) Record() *Record { return s.record }

// Definition returns the selected provider definition.
func (s *Session) Definition() *Definition { return s.definition }

// Instance returns the resolved instance record.
func (s *Session) Instance() *Instance { return s.instance }

// Context returns the assigned context, or the custom one if no scope ran yet.
func (s *Session) Context() *Context {
	if s.context != nil {
		return s.context
	}
	return s.custom
}

// CustomContext returns the context supplied by a hook, if any.
func (s *Session) CustomContext() *Context { return s.custom }

// SetCustomContext forces the context used for this resolution.
func (s *Session) SetCustomContext(c *Context) { s.custom = c }

// SetScope overrides the definition scope for this resolution.
func (s *Session) SetScope(scope Scope) { s.scope = scope }

// Call returns the per-call handle the session runs under, if any.
func (s *Session) Call() *Call { return s.call }

// HasFlag reports whether flag is set.
func (s *Session) HasFlag(flag SessionFlag) bool {
	return SessionFlag(s.status.Load())&flag != 0
}

// SetFlag sets flag. FlagSideEffect is propagated to the whole parent chain
// and to the session this one was forked from.
func (s *Session) SetFlag(flag SessionFlag) {
	s.or(flag)
	if flag&FlagSideEffect == 0 {
		return
	}
	for cur := s; cur != nil; cur = cur.parent {
		cur.or(FlagSideEffect)
		if cur.origin != nil {
			cur.origin.SetFlag(FlagSideEffect)
		}
	}
}

// ClearFlag clears flag on this session only.
func (s *Session) ClearFlag(flag SessionFlag) {
	for {
		old := s.status.Load()
		if s.status.CompareAndSwap(old, old&^uint32(flag)) {
			return
		}
	}
}

func (s *Session) or(flag SessionFlag) {
	for {
		old := s.status.Load()
		if old&uint32(flag) == uint32(flag) || s.status.CompareAndSwap(old, old|uint32(flag)) {
			return
		}
	}
}

// SetAnnotation stores a value in this session's bag.
func (s *Session) SetAnnotation(key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.annotations == nil {
		s.annotations = make(map[any]any)
	}
	s.annotations[key] = value
}

// LocalAnnotation looks key up in this session's bag only.
func (s *Session) LocalAnnotation(key any) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.annotations[key]
	return v, ok
}

// Annotation looks key up in this session and then along the parent chain.
func (s *Session) Annotation(key any) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.LocalAnnotation(key); ok {
			return v, true
		}
	}
	return nil, false
}

// Fork derives a session with the same token, metadata and injector, reset
// flags and an empty annotation bag. The fork shares the parent, so
// annotation lookups still reach the rest of the chain.
func (s *Session) Fork() *Session {
	return &Session{
		parent:   s.parent,
		origin:   s,
		injector: s.injector,
		call:     s.call,
		token:    s.token,
		metadata: s.metadata,
	}
}

// WithToken forks the session for another token.
func (s *Session) WithToken(token Token) *Session {
	f := s.Fork()
	f.token = token
	return f
}

// Path returns the requested tokens from the outermost session down to, but
// excluding, this one.
func (s *Session) Path() []Token {
	var path []Token
	for cur := s.parent; cur != nil; cur = cur.parent {
		path = append([]Token{cur.token}, path...)
	}
	return path
}

// Root returns the top-level session of the chain.
func (s *Session) Root() *Session {
	cur := s
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// parentInstance returns the instance of the nearest ancestor that has one.
func (s *Session) parentInstance() *Instance {
	for cur := s.parent; cur != nil; cur = cur.parent {
		if cur.instance != nil {
			return cur.instance
		}
	}
	return nil
}

// isAncestor reports whether other is s or one of its ancestors.
func (s *Session) isAncestor(other *Session) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// loadOrStoreAnnotation returns the value stored under key in this session's
// bag, storing the result of fn first if the key is absent.
func (s *Session) loadOrStoreAnnotation(key any, fn func() any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.annotations[key]; ok {
		return v
	}
	if s.annotations == nil {
		s.annotations = make(map[any]any)
	}
	v := fn()
	s.annotations[key] = v
	return v
}

// setCircularEntry records entry as the cycle entry of s unless s already
// belongs to a cycle entered further up the chain.
func (s *Session) setCircularEntry(entry *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.circularEntry != nil && entry.isAncestor(s.circularEntry) {
		return
	}
	s.circularEntry = entry
}

func (s *Session) cycleEntry() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.circularEntry
}

// pendingAncestor returns the nearest ancestor still creating an instance
// of def.
func (s *Session) pendingAncestor(def *Definition) *Session {
	for cur := s.parent; cur != nil; cur = cur.parent {
		if cur.definition == def && cur.instance != nil && cur.instance.Has(InstancePending) {
			return cur
		}
	}
	return nil
}
