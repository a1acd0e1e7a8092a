// Package httpcall runs every HTTP request in its own hookdi.Call, so
// Resolution scoped providers get one instance per request that is destroyed
// when the request completes.
//
// The middleware has the standard func(http.Handler) http.Handler shape and
// plugs into net/http muxes and routers such as chi.
//
// Example usage:
//
//	inj, _ := hookdi.New(hookdi.WithProviders(
//	    hookdi.Factory(NewRequestLog, hookdi.WithScope(hookdi.Resolution)),
//	    hookdi.Factory(NewUserController),
//	))
//
//	r := chi.NewRouter()
//	r.Use(httpcall.Middleware(inj))
//	r.Get("/users/{id}", httpcall.Handle((*UserController).GetByID))
package httpcall

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/junioryono/hookdi"
	"github.com/junioryono/hookdi/wait"
)

// ErrNoInjector is returned by FromContext when the request did not pass
// through Middleware.
var ErrNoInjector = errors.New("httpcall: no injector in request context")

type injectorKey struct{}

// Config holds the configuration for the call middleware.
type Config struct {
	// ErrorHandler is called when the request cannot start a call or a
	// middleware fails. If nil, 500 Internal Server Error is returned.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// DestroyErrorHandler is called when destroying the call's instances
	// fails. If nil, errors are logged with the injector's logger.
	DestroyErrorHandler func(error)

	// Middlewares run after the call is attached to the request, in the
	// order they were added.
	Middlewares []func(*hookdi.Call, *http.Request) error
}

// Option configures the call middleware.
type Option func(*Config)

// WithErrorHandler sets the handler for call setup failures.
func WithErrorHandler(h func(http.ResponseWriter, *http.Request, error)) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithDestroyErrorHandler sets the handler for teardown failures.
func WithDestroyErrorHandler(h func(error)) Option {
	return func(c *Config) {
		c.DestroyErrorHandler = h
	}
}

// WithMiddleware adds a function that runs after the call is created.
func WithMiddleware(mw func(*hookdi.Call, *http.Request) error) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, mw)
	}
}

func defaultConfig(inj *hookdi.Injector) *Config {
	return &Config{
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
		DestroyErrorHandler: func(err error) {
			inj.Logger().Error("failed to destroy request call", zap.Error(err))
		},
	}
}

// Middleware attaches inj and a new Call to every request context. The
// call is destroyed once the next handler returns.
func Middleware(inj *hookdi.Injector, opts ...Option) func(http.Handler) http.Handler {
	cfg := defaultConfig(inj)
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if inj.Destroyed() {
				cfg.ErrorHandler(w, r, hookdi.ErrInjectorDestroyed)
				return
			}

			ctx, call := hookdi.WithCall(r.Context())
			defer func() {
				v, err := call.Destroy()
				// The request context may already be canceled.
				if _, err := wait.Await(context.Background(), v, err); err != nil {
					cfg.DestroyErrorHandler(err)
				}
			}()

			r = r.WithContext(context.WithValue(ctx, injectorKey{}, inj))

			for _, mw := range cfg.Middlewares {
				if err := mw(call, r); err != nil {
					cfg.ErrorHandler(w, r, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// FromContext returns the injector attached by Middleware.
func FromContext(ctx context.Context) (*hookdi.Injector, error) {
	inj, ok := ctx.Value(injectorKey{}).(*hookdi.Injector)
	if !ok {
		return nil, ErrNoInjector
	}
	return inj, nil
}

// Resolve resolves T within the call of the request.
func Resolve[T any](r *http.Request) (T, error) {
	inj, err := FromContext(r.Context())
	if err != nil {
		var zero T
		return zero, err
	}
	return hookdi.ResolveContext[T](r.Context(), inj)
}

// HandlerConfig holds configuration for the Handle wrapper.
type HandlerConfig struct {
	// PanicRecovery enables panic recovery in the handler.
	PanicRecovery bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(http.ResponseWriter, *http.Request, any)

	// InjectorErrorHandler is called when the request carries no injector.
	InjectorErrorHandler func(http.ResponseWriter, *http.Request, error)

	// ResolutionErrorHandler is called when the controller cannot be resolved.
	ResolutionErrorHandler func(http.ResponseWriter, *http.Request, error)
}

// HandlerOption configures the Handle wrapper.
type HandlerOption func(*HandlerConfig)

// WithPanicRecovery enables or disables panic recovery in the handler.
func WithPanicRecovery(enabled bool) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicRecovery = enabled
	}
}

// WithPanicHandler sets the handler for panics.
func WithPanicHandler(h func(http.ResponseWriter, *http.Request, any)) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithInjectorErrorHandler sets the handler for requests without injector.
func WithInjectorErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.InjectorErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the handler for resolution failures.
func WithResolutionErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ResolutionErrorHandler = h
	}
}

func defaultHandlerConfig() *HandlerConfig {
	internalError := func(w http.ResponseWriter, r *http.Request, _ error) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return &HandlerConfig{
		PanicHandler: func(w http.ResponseWriter, r *http.Request, _ any) {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
		InjectorErrorHandler:   internalError,
		ResolutionErrorHandler: internalError,
	}
}

// Handle wraps a controller method. The controller T is resolved within the
// call of the request.
//
// The method signature should be: func(T, http.ResponseWriter, *http.Request)
//
// Example:
//
//	r.Get("/users/{id}", httpcall.Handle((*UserController).GetByID))
func Handle[T any](method func(T, http.ResponseWriter, *http.Request), opts ...HandlerOption) http.HandlerFunc {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					cfg.PanicHandler(w, r, v)
				}
			}()
		}

		inj, err := FromContext(r.Context())
		if err != nil {
			cfg.InjectorErrorHandler(w, r, err)
			return
		}

		controller, err := hookdi.ResolveContext[T](r.Context(), inj)
		if err != nil {
			inj.Logger().Debug("controller resolution failed", zap.Error(err))
			cfg.ResolutionErrorHandler(w, r, err)
			return
		}

		method(controller, w, r)
	}
}
