// Package registry implements the process-global handle and kind
// tables every machine is looked up through. A Handle is an opaque,
// monotonically increasing identifier; nothing about its numeric value
// is meaningful beyond equality and non-zero-ness.
package registry

import (
	"sync"
	"sync/atomic"
)

// Handle identifies a registered machine. The zero Handle is never
// issued and is used as an invalid/"no handle" sentinel.
type Handle uint64

// Invalid is the sentinel returned on lookup failure.
const Invalid Handle = 0

var nextHandle atomic.Uint64

// nextHandleValue returns the next monotonic handle value, skipping 0.
func nextHandleValue() Handle {
	return Handle(nextHandle.Add(1))
}

// Kind names a machine type ("ring", "file", "udp-client", ...); kinds
// are registered once at process init by each machines/* package via
// RegisterKind and never removed.
type Kind string

// Factory constructs the implementation-specific state for one
// instance of a kind, given arbitrary construction args. Individual
// machines/* packages define their own typed constructors and wrap
// them to satisfy this signature when they self-register.
type Factory func(args any) (any, error)

// Registry is the table of live handles and registered kinds. A single
// process-wide instance (Global) mirrors bingewatch's single global
// handle table; tests that need isolation construct their own with New.
type Registry struct {
	mu    sync.RWMutex
	kinds map[Kind]Factory
	descs map[Handle]any
	kindOf map[Handle]Kind
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		kinds:  make(map[Kind]Factory),
		descs:  make(map[Handle]any),
		kindOf: make(map[Handle]Kind),
	}
}

// Global is the process-wide registry used by the public API in the
// streamrig root package.
var Global = New()

// RegisterKind associates a kind name with a factory. Re-registering
// the same name overwrites the previous factory — used by tests that
// substitute a fake machine kind.
func (r *Registry) RegisterKind(kind Kind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = factory
}

// FindKind returns the factory registered for kind, or nil if none is.
func (r *Registry) FindKind(kind Kind) Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kinds[kind]
}

// RequestHandle allocates a fresh handle and stores desc under it with
// the given kind, returning the handle.
func (r *Registry) RequestHandle(kind Kind, desc any) Handle {
	h := nextHandleValue()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.descs[h] = desc
	r.kindOf[h] = kind
	return h
}

// KindOf returns the kind a handle was registered under, and whether
// the handle is currently live.
func (r *Registry) KindOf(h Handle) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kindOf[h]
	return k, ok
}

// Find returns the descriptor stored under h, and whether it exists.
func (r *Registry) Find(h Handle) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descs[h]
	return d, ok
}

// Remove deletes h from the table. It is a no-op if h is not present.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.descs, h)
	delete(r.kindOf, h)
}

// Len reports how many handles are currently live, for diagnostics and
// tests that assert no leaks after a teardown.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descs)
}
