// Package hookdi is a hierarchical dependency injection runtime built around
// a per-resolution hook pipeline.
//
// # Overview
//
// An Injector holds providers keyed by token. Resolving a token runs a
// Session through a chain of hooks and ends in the provider's factory.
// Every resolved value is an Instance: it belongs to one Definition and one
// Context, and it is linked to the instances that injected it (parents) and
// the instances it injected (children). Destroying an instance cascades to
// the children no other instance still holds.
//
//   - Tokens: reflect.Type values, *InjectionToken values or any comparable
//   - Providers: Value, Factory, AsyncFactory, Class and Alias
//   - Scopes: Singleton, Transient, Default, PerInstance, Local, Resolution
//     and Pooled, or any type implementing Scope
//   - Hooks: Optional, Fallback, Named, Labelled, All, Fresh, Ctx, Scoped,
//     Self, SkipSelf, Decorate, Transform, AsFactory, Delegate, Catch and
//     Timeout, or any function matching Hook
//   - Lifecycle: OnInit and OnDestroy methods, io.Closer, pool callbacks
//   - Interceptors around method calls with Enhance
//   - Snapshots of the live instance graph in DOT, text or JSON
//
// # Basic Usage
//
//	inj, err := hookdi.New(hookdi.WithProviders(
//		hookdi.Factory(NewConfig, hookdi.WithScope(hookdi.Singleton)),
//		hookdi.Factory(NewRepository),
//		hookdi.Class[Server](),
//	))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inj.Destroy()
//
//	srv, err := hookdi.Resolve[*Server](inj)
//
// # Scopes
//
// A scope assigns the Context a resolution lands in. Two resolutions of the
// same definition in the same context share an instance:
//
//   - Singleton: one static context
//   - Transient: a fresh context every time
//   - Default: the context of the instance being built, or the static one
//     at top level
//   - PerInstance: one context per injecting instance
//   - Local: the context of the nearest, farthest or nth ancestor matching
//     a boundary
//   - Resolution: one context per Call, shared by the whole dependency tree
//     of one top-level resolution
//   - Pooled: transient instances recycled through a bounded free list
//
// # Hooks
//
// Hooks wrap the lookup of a provider and its creation:
//
//	cfg, err := inj.Get(hookdi.TypeOf[*Config](), hookdi.Optional(), hookdi.Fresh())
//
// Argument hooks run outermost, then injector hooks from WithInjectorHooks,
// then provider hooks from WithHooks.
//
// # Asynchronous Resolution
//
// Get returns a *wait.Future when an AsyncFactory or an asynchronous OnInit
// takes part. GetContext and Resolve wait for it:
//
//	v, err := inj.GetContext(ctx, token)
//
// # Destruction
//
// Injector.Destroy destroys every instance of the injector's definitions
// in creation order, then its children and imported injectors. OnDestroy
// methods and io.Closer are called once per instance.
package hookdi
