package hookdi

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/junioryono/hookdi/internal/reflection"
	"github.com/junioryono/hookdi/wait"
)

const (
	injectorActive int32 = iota
	injectorDestroying
	injectorDestroyed
)

var definitionIDs atomic.Uint64

// Injector holds provider registrations and resolves tokens against them.
// Injectors form a tree through Child; lookups that miss in an injector
// continue in its parent.
//
// Example:
//
//	inj, err := hookdi.New(hookdi.WithProviders(
//		hookdi.Factory(NewConfig, hookdi.WithScope(hookdi.Singleton)),
//		hookdi.Class[Server](),
//	))
//	if err != nil {
//		return err
//	}
//	defer inj.Destroy()
//
//	srv, err := hookdi.Resolve[*Server](inj)
type Injector struct {
	id     string
	name   string
	parent *Injector

	graph        *instanceGraph
	logger       *zap.Logger
	analyzer     *reflection.Analyzer
	pool         *wait.Pool
	hooks        []Hook
	interceptors []any

	mu        sync.RWMutex
	records   map[Token]*Record
	order     []Token // self records in registration order
	imported  map[Token][]*Record
	imports   []*Injector // destroyed together with this injector
	importers []*Injector // injectors holding records of this one

	cache sync.Map // Token -> *Instance, see remember
	state atomic.Int32
}

// New creates a root injector.
func New(opts ...Option) (*Injector, error) {
	return newInjector(nil, opts)
}

func newInjector(parent *Injector, opts []Option) (*Injector, error) {
	var o injectorOptions
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&o)
		}
	}

	inj := &Injector{
		id:           uuid.NewString(),
		name:         o.name,
		parent:       parent,
		pool:         o.pool,
		hooks:        o.hooks,
		interceptors: o.interceptors,
		records:      make(map[Token]*Record),
		imported:     make(map[Token][]*Record),
	}

	if parent != nil {
		inj.graph = parent.graph
		inj.analyzer = parent.analyzer
		if inj.pool == nil {
			inj.pool = parent.pool
		}
		inj.logger = parent.logger.Named(inj.String())
	} else {
		inj.graph = &instanceGraph{}
		inj.analyzer = reflection.New()
		inj.logger = zap.NewNop()
	}
	if o.logger != nil {
		inj.logger = o.logger
	}

	if err := inj.Provide(o.providers...); err != nil {
		return nil, err
	}
	return inj, nil
}

// Child creates an injector whose lookups fall back to inj. The child is
// destroyed with inj.
func (inj *Injector) Child(opts ...Option) (*Injector, error) {
	if inj.closed() {
		return nil, ErrInjectorDestroyed
	}

	child, err := newInjector(inj, opts)
	if err != nil {
		return nil, err
	}

	inj.mu.Lock()
	inj.imports = append(inj.imports, child)
	inj.mu.Unlock()
	return child, nil
}

// ID returns the unique id of the injector.
func (inj *Injector) ID() string { return inj.id }

// Parent returns the parent injector, nil for a root.
func (inj *Injector) Parent() *Injector { return inj.parent }

// Logger returns the injector's logger.
func (inj *Injector) Logger() *zap.Logger { return inj.logger }

func (inj *Injector) String() string {
	if inj.name != "" {
		return inj.name
	}
	return inj.id
}

func (inj *Injector) root() *Injector {
	cur := inj
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

func (inj *Injector) closed() bool {
	return inj.state.Load() == injectorDestroyed
}

func (inj *Injector) destroying() bool {
	return inj.state.Load() != injectorActive
}

// Provide registers providers. Providers for an already registered token
// are added after the existing ones unless WithOverride is set.
func (inj *Injector) Provide(providers ...Provider) error {
	if inj.closed() {
		return ErrInjectorDestroyed
	}

	for _, p := range providers {
		if err := inj.provide(p); err != nil {
			return err
		}
	}
	if len(providers) > 0 {
		inj.invalidate()
	}
	return nil
}

func (inj *Injector) provide(p Provider) error {
	if err := p.validate(); err != nil {
		return err
	}

	def := &Definition{
		id:           definitionIDs.Add(1),
		kind:         p.kind,
		alias:        p.existing,
		scope:        p.scope,
		hooks:        p.hooks,
		when:         p.when,
		annotations:  p.annotations,
		order:        p.order,
		onInit:       p.onInit,
		onDestroy:    p.onDestroy,
		interceptors: p.interceptors,
		values:       make(map[*Context]*Instance),
	}
	if def.scope == nil {
		def.scope = Default
	}
	if p.kind != aliasProvider {
		f, err := inj.newFactory(p)
		if err != nil {
			return fmt.Errorf("provide %s: %w", TokenName(p.token), err)
		}
		def.factory = f
	}

	inj.mu.Lock()
	rec, ok := inj.records[p.token]
	if !ok {
		rec = newRecord(p.token, inj)
		inj.records[p.token] = rec
		inj.order = append(inj.order, p.token)
	}
	var replaced []*Definition
	if p.override {
		replaced = rec.clear()
	}
	rec.add(def)
	inj.mu.Unlock()

	inj.logger.Debug("provider registered",
		zap.String("token", TokenName(p.token)),
		zap.Stringer("kind", p.kind),
		zap.String("scope", def.scope.Name()),
	)

	if len(replaced) == 0 {
		return nil
	}
	_, err := releaseDefinitions(replaced)
	return destroyError("override", err)
}

// Export publishes the records of tokens, or of every token when none are
// given, to the parent injector.
func (inj *Injector) Export(tokens ...Token) error {
	if inj.parent == nil {
		return fmt.Errorf("%w: root injector %s cannot export", ErrInvalidProvider, inj)
	}
	return inj.parent.importRecords(inj, tokens, false)
}

// Import makes the records of tokens from other, or all of them when none
// are given, visible in inj. other is destroyed together with inj.
func (inj *Injector) Import(other *Injector, tokens ...Token) error {
	if other == nil || other == inj {
		return fmt.Errorf("%w: invalid import", ErrInvalidProvider)
	}
	return inj.importRecords(other, tokens, true)
}

func (inj *Injector) importRecords(from *Injector, tokens []Token, own bool) error {
	if inj.closed() || from.closed() {
		return ErrInjectorDestroyed
	}

	from.mu.RLock()
	if len(tokens) == 0 {
		tokens = append(tokens, from.order...)
	}
	recs := make([]*Record, 0, len(tokens))
	for _, token := range tokens {
		rec, ok := from.records[token]
		if !ok {
			from.mu.RUnlock()
			return NoProviderError{Token: token, Injector: from.String()}
		}
		recs = append(recs, rec)
	}
	from.mu.RUnlock()

	inj.mu.Lock()
	for _, rec := range recs {
		if !containsRecord(inj.imported[rec.token], rec) {
			inj.imported[rec.token] = append(inj.imported[rec.token], rec)
		}
	}
	if own && !containsInjector(inj.imports, from) {
		inj.imports = append(inj.imports, from)
	}
	inj.mu.Unlock()

	if from.parent != inj {
		from.mu.Lock()
		if !containsInjector(from.importers, inj) {
			from.importers = append(from.importers, inj)
		}
		from.mu.Unlock()
	}

	inj.invalidate()
	return nil
}

// Has reports whether token has a provider in inj or its ancestors.
func (inj *Injector) Has(token Token) bool {
	s := newSession(inj, Argument{Token: token}, nil)
	for cur := inj; cur != nil; cur = cur.parent {
		if len(cur.match(s)) > 0 {
			return true
		}
	}
	return false
}

// Records returns the injector's own records in registration order.
func (inj *Injector) Records() []*Record {
	inj.mu.RLock()
	defer inj.mu.RUnlock()
	recs := make([]*Record, 0, len(inj.order))
	for _, token := range inj.order {
		if rec, ok := inj.records[token]; ok {
			recs = append(recs, rec)
		}
	}
	return recs
}

// Get resolves token. The result is a *wait.Future when an asynchronous
// factory or hook is involved; use GetContext or Resolve to wait for it.
func (inj *Injector) Get(token Token, hooks ...Hook) (any, error) {
	return inj.get(nil, token, hooks)
}

// GetContext resolves token and waits for the result. A Call carried by ctx
// (see WithCall) is used by Resolution scoped providers.
func (inj *Injector) GetContext(ctx context.Context, token Token, hooks ...Hook) (any, error) {
	v, err := inj.get(CallFrom(ctx), token, hooks)
	return wait.Await(ctx, v, err)
}

// GetAll resolves every provider of token visible from the first injector
// that has one, in provider order.
func (inj *Injector) GetAll(token Token, hooks ...Hook) (any, error) {
	return inj.get(nil, token, append(append([]Hook(nil), hooks...), All()))
}

// DryRun runs the pipeline for token up to provider and context selection
// and returns the session without creating anything.
func (inj *Injector) DryRun(token Token, hooks ...Hook) (*Session, error) {
	if err := inj.usable(token); err != nil {
		return nil, err
	}

	s := newSession(inj, Argument{Token: token, Hooks: hooks}, nil)
	s.SetFlag(FlagDryRun)
	v, err := inj.run(s, hooks)
	v, err = wait.Await(context.Background(), v, err)
	if err != nil {
		return nil, err
	}
	if res, ok := v.(*Session); ok {
		return res, nil
	}
	return s, nil
}

func (inj *Injector) usable(token Token) error {
	if token == nil {
		return ErrTokenNil
	}
	if inj.closed() {
		return ErrInjectorDestroyed
	}
	return nil
}

func (inj *Injector) get(call *Call, token Token, hooks []Hook) (any, error) {
	if err := inj.usable(token); err != nil {
		return nil, err
	}

	fast := len(hooks) == 0 && len(inj.hooks) == 0
	if fast {
		if v, ok := inj.cached(token); ok {
			return v, nil
		}
	}

	s := newSession(inj, Argument{Token: token, Hooks: hooks}, nil)
	s.call = call
	v, err := inj.run(s, hooks)
	if fast && err == nil && !wait.IsPending(v) {
		inj.remember(s)
	}
	return v, err
}

// resolveArgument resolves arg in inj as a dependency of parent.
func (inj *Injector) resolveArgument(arg Argument, parent *Session) (any, error) {
	if inj.closed() {
		return nil, ErrInjectorDestroyed
	}
	return inj.run(newSession(inj, arg, parent), arg.Hooks)
}

func (inj *Injector) run(s *Session, hooks []Hook) (any, error) {
	if len(inj.hooks) > 0 {
		hooks = append(append([]Hook(nil), hooks...), inj.hooks...)
	}
	v, err := runPipeline(s, hooks, provideStage)
	if err == nil && wait.IsPending(v) {
		s.SetFlag(FlagAsync)
	}
	return v, err
}

// cached serves a top-level Get from the token cache.
func (inj *Injector) cached(token Token) (any, bool) {
	v, ok := inj.cache.Load(token)
	if !ok {
		return nil, false
	}
	inst := v.(*Instance)
	if inst.Has(InstanceDestroyed) || inst.definition.Destroyed() {
		inj.cache.CompareAndDelete(token, v)
		return nil, false
	}
	return inst.Value(), true
}

// remember caches the instance of a hook-less resolution that had no side
// effects, so the next Get skips the pipeline.
func (inj *Injector) remember(s *Session) {
	inst, def := s.instance, s.definition
	if inst == nil || def == nil || s.HasFlag(FlagSideEffect|FlagCircular) {
		return
	}
	if len(def.hooks) > 0 || def.when != nil || !inst.Has(InstanceResolved) {
		return
	}
	inj.cache.Store(s.token, inst)
}

// invalidate clears the token caches of every injector connected to inj.
func (inj *Injector) invalidate() {
	seen := make(map[*Injector]bool)
	var walk func(*Injector)
	walk = func(cur *Injector) {
		if cur == nil || seen[cur] {
			return
		}
		seen[cur] = true
		cur.cache.Clear()

		cur.mu.RLock()
		next := append(append([]*Injector(nil), cur.imports...), cur.importers...)
		cur.mu.RUnlock()
		for _, n := range next {
			walk(n)
		}
	}
	walk(inj.root())
}

// lookup selects the definition for s, walking inj and its ancestors.
// It returns every accepted definition of the matching injector in
// selection order.
func (inj *Injector) lookup(s *Session) ([]*Definition, error) {
	start := inj
	if s.HasFlag(FlagSkipSelf) {
		start = inj.parent
	}

	for cur := start; cur != nil; cur = cur.parent {
		if defs := cur.match(s); len(defs) > 0 {
			def := defs[0]
			s.record = def.record
			s.definition = def
			s.host = def.record.host
			s.injector = s.host
			return defs, nil
		}
		if s.HasFlag(FlagSelf) {
			break
		}
	}

	if inj.provideDefault(s.token) {
		return inj.lookup(s)
	}
	return nil, NoProviderError{Token: s.token, Injector: inj.String(), Path: s.Path()}
}

// match returns the accepted definitions of inj for s: conditional ones
// whose predicate accepts s first, then unconditional ones. Self records
// come before imported ones within each group.
func (inj *Injector) match(s *Session) []*Definition {
	inj.mu.RLock()
	var all []*Definition
	if rec, ok := inj.records[s.token]; ok {
		all = rec.Definitions()
	}
	for _, rec := range inj.imported[s.token] {
		all = append(all, rec.Definitions()...)
	}
	inj.mu.RUnlock()

	var conditional, plain []*Definition
	for _, def := range all {
		switch {
		case def.when == nil:
			plain = append(plain, def)
		case def.when(s):
			conditional = append(conditional, def)
		}
	}
	return append(conditional, plain...)
}

// provideDefault registers the default provider of an InjectionToken into
// the root injector. It reports whether a registration happened.
func (inj *Injector) provideDefault(token Token) bool {
	it, ok := token.(*InjectionToken)
	if !ok || it.provider == nil {
		return false
	}

	root := inj.root()
	root.mu.RLock()
	_, exists := root.records[token]
	root.mu.RUnlock()
	if exists {
		return false
	}

	if err := root.Provide(*it.provider); err != nil {
		root.logger.Warn("default provider rejected", zap.String("token", it.String()), zap.Error(err))
		return false
	}
	return true
}

func (inj *Injector) goAsync(fn func() (any, error)) *wait.Future {
	if inj.pool != nil {
		return inj.pool.Go(fn)
	}
	return wait.Go(fn)
}

// Resolve resolves the type token of T and waits for the result.
func Resolve[T any](inj *Injector, hooks ...Hook) (T, error) {
	return ResolveToken[T](inj, TypeOf[T](), hooks...)
}

// ResolveContext is Resolve using ctx for waiting and for the ambient Call.
func ResolveContext[T any](ctx context.Context, inj *Injector, hooks ...Hook) (T, error) {
	return resolveAs[T](ctx, inj, TypeOf[T](), hooks)
}

// ResolveToken resolves token and asserts the value to T.
func ResolveToken[T any](inj *Injector, token Token, hooks ...Hook) (T, error) {
	return resolveAs[T](context.Background(), inj, token, hooks)
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](inj *Injector, hooks ...Hook) T {
	v, err := Resolve[T](inj, hooks...)
	if err != nil {
		panic(err)
	}
	return v
}

func resolveAs[T any](ctx context.Context, inj *Injector, token Token, hooks []Hook) (T, error) {
	var zero T
	v, err := inj.GetContext(ctx, token, hooks...)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, typeMismatch[T](token, v)
	}
	return t, nil
}

func containsRecord(recs []*Record, rec *Record) bool {
	for _, r := range recs {
		if r == rec {
			return true
		}
	}
	return false
}

func containsInjector(injs []*Injector, inj *Injector) bool {
	for _, i := range injs {
		if i == inj {
			return true
		}
	}
	return false
}
