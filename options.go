package hookdi

import (
	"go.uber.org/zap"

	"github.com/junioryono/hookdi/wait"
)

// Option configures an Injector.
type Option interface {
	apply(*injectorOptions)
}

// injectorOptions holds injector configuration.
type injectorOptions struct {
	name         string
	logger       *zap.Logger
	pool         *wait.Pool
	hooks        []Hook
	interceptors []any
	providers    []Provider
}

// optionFunc adapts a function to Option.
type optionFunc func(*injectorOptions)

func (f optionFunc) apply(opts *injectorOptions) {
	f(opts)
}

// WithInjectorName names the injector in logs and errors. Unnamed injectors
// use their id.
func WithInjectorName(name string) Option {
	return optionFunc(func(opts *injectorOptions) {
		opts.name = name
	})
}

// WithLogger sets the logger. Child injectors inherit it, named after the
// child. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(opts *injectorOptions) {
		opts.logger = logger
	})
}

// WithPool runs AsyncFactory providers on pool instead of the shared one.
func WithPool(pool *wait.Pool) Option {
	return optionFunc(func(opts *injectorOptions) {
		opts.pool = pool
	})
}

// WithInjectorHooks adds hooks run on every resolution started in the
// injector, inside the argument hooks and outside provider lookup.
func WithInjectorHooks(hooks ...Hook) Option {
	return optionFunc(func(opts *injectorOptions) {
		opts.hooks = append(opts.hooks, hooks...)
	})
}

// WithGlobalInterceptors registers interceptors Enhance applies to every
// method enhanced through the injector or its children. Entries are
// Interceptor values or tokens resolving to one.
func WithGlobalInterceptors(interceptors ...any) Option {
	return optionFunc(func(opts *injectorOptions) {
		opts.interceptors = append(opts.interceptors, interceptors...)
	})
}

// WithProviders registers providers when the injector is created.
func WithProviders(providers ...Provider) Option {
	return optionFunc(func(opts *injectorOptions) {
		opts.providers = append(opts.providers, providers...)
	})
}
