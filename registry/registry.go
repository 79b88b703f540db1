package registry

import (
	"reflect"
	"sync"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/errors"
)

var _ docmap.Services = (*Registry)(nil)

// Registry maps capability types to shared service instances.
type Registry struct {
	services map[reflect.Type]any
	order    []reflect.Type
	mu       sync.RWMutex
}

func New() *Registry {
	return &Registry{
		services: make(map[reflect.Type]any),
	}
}

// Register stores svc under its concrete type and under every type in as.
// Each listed type must be implemented by, or assignable from, svc.
// Registering a key again replaces the previous service.
func (r *Registry) Register(svc any, as ...reflect.Type) error {
	if svc == nil {
		return errors.InvalidInput(errors.PhaseRegistry, "service cannot be nil")
	}

	st := reflect.TypeOf(svc)
	keys := make([]reflect.Type, 0, len(as)+1)
	keys = append(keys, st)
	for _, t := range as {
		if t == nil {
			return errors.NilPointer(errors.PhaseRegistry, nil, "capability type")
		}
		if !st.AssignableTo(t) {
			return errors.New(errors.PhaseRegistry, errors.KindRegistration).
				GoType(st.String()).
				Detail("service does not implement %s", t).
				Build()
		}
		if t != st {
			keys = append(keys, t)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range keys {
		if _, exists := r.services[k]; !exists {
			r.order = append(r.order, k)
		}
		r.services[k] = svc
	}
	return nil
}

// Provide registers svc under T.
func Provide[T any](r *Registry, svc T) error {
	return r.Register(svc, reflect.TypeFor[T]())
}

// Lookup returns the service registered under t. For interface types
// without an exact registration, the first service in registration order
// implementing t is returned.
func (r *Registry) Lookup(t reflect.Type) (any, bool) {
	if r == nil || t == nil {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if svc, ok := r.services[t]; ok {
		return svc, true
	}
	if t.Kind() != reflect.Interface {
		return nil, false
	}
	for _, k := range r.order {
		svc := r.services[k]
		if reflect.TypeOf(svc).Implements(t) {
			return svc, true
		}
	}
	return nil, false
}

// Resolve returns the service registered for T.
func Resolve[T any](r *Registry) (T, bool) {
	var zero T
	svc, ok := r.Lookup(reflect.TypeFor[T]())
	if !ok {
		return zero, false
	}
	v, ok := svc.(T)
	return v, ok
}

// MustResolve is Resolve that fails with a not_found error.
func MustResolve[T any](r *Registry) (T, error) {
	v, ok := Resolve[T](r)
	if !ok {
		return v, errors.NotFound(errors.PhaseRegistry, "service", reflect.TypeFor[T]().String())
	}
	return v, nil
}

// Has reports whether Lookup would find a service for t.
func (r *Registry) Has(t reflect.Type) bool {
	_, ok := r.Lookup(t)
	return ok
}

// Types returns the registered keys in registration order.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
