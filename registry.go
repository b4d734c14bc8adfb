package escalate

import (
	"fmt"
	"sync"
)

// Provider supplies handlers to a [Registry]. Providers run once, on the
// first [Registry.Load]; a provider that returns an error aborts that load
// and surfaces the error to whoever triggered it.
type Provider func() ([]Handler, error)

// Registry is a lazily-loaded, process-lifetime collection of [Handler]
// instances. Providers are registered up front (typically from init
// functions, in the manner of database/sql drivers); the first call to
// [Registry.Load] runs them all and freezes the result.
//
// A Registry is safe for concurrent use. Concurrent first loads elect a
// single winner; the others block until it completes and reuse its result.
type Registry struct {
	mu        sync.Mutex
	providers []Provider
	loaded    bool
	handlers  []Handler
}

// NewRegistry returns an empty [Registry]. Most callers want the process
// default registry (see [RegisterProvider]); a private registry exists so
// an [Escalator] can be tested, or embedded, in isolation.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a provider to the registry. Handlers load in registration
// order. Register panics if called after a successful [Registry.Load]:
// the loaded handler set is immutable for the life of the registry.
func (r *Registry) Register(p Provider) {
	if p == nil {
		panic("escalate: nil provider")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		panic("escalate: Register called after registry load")
	}
	r.providers = append(r.providers, p)
}

// Load returns the registry's handlers, running the providers on first
// call and caching the result. Repeated calls after a successful load are
// cheap and never re-invoke providers.
//
// A provider error is a configuration problem, not a failure-handling
// concern: it is returned as-is and nothing is cached, so the next Load
// retries discovery. Callers must not mutate the returned slice.
func (r *Registry) Load() ([]Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return r.handlers, nil
	}

	var handlers []Handler
	for i, p := range r.providers {
		hs, err := p()
		if err != nil {
			return nil, fmt.Errorf("escalate: handler provider %d: %w", i, err)
		}
		handlers = append(handlers, hs...)
	}

	r.handlers = handlers
	r.loaded = true
	return r.handlers, nil
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by the default
// [Escalator].
func DefaultRegistry() *Registry { return defaultRegistry }

// RegisterProvider registers a provider on the process default registry.
// Call it from an init function, before the first failure escalates.
func RegisterProvider(p Provider) {
	defaultRegistry.Register(p)
}
