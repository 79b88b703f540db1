package mapper

import (
	"fmt"
	"reflect"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/errors"
)

type binder func(s *state, doc *docmap.Document) reflect.Value

type factory struct {
	fn     reflect.Value
	out    reflect.Type
	params []binder
	hasErr bool
}

// RegisterFactory registers fn as the construction entry point for the type
// it returns. fn returns T or (T, error). Each parameter is bound once here:
//
//   - docmap.Services, or a type implementing it such as *registry.Registry,
//     receives the services passed to the decode call
//   - *docmap.Document receives the document being decoded
//   - any other type is looked up in the services and is its zero value
//     when absent
func (m *Mapper) RegisterFactory(fn any) error {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return errors.Registration(errors.PhaseConvert, "factory", fmt.Errorf("expected a function, got %T", fn))
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return errors.Registration(errors.PhaseConvert, "factory "+ft.String(), fmt.Errorf("variadic factories are not supported"))
	}

	f := &factory{fn: fv}
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
		f.hasErr = true
	default:
		return errors.Registration(errors.PhaseConvert, "factory "+ft.String(), fmt.Errorf("must return T or (T, error)"))
	}
	f.out = ft.Out(0)

	f.params = make([]binder, ft.NumIn())
	for i := range f.params {
		f.params[i] = bindParam(ft.In(i))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.factories[f.out]; exists {
		return errors.Registration(errors.PhaseConvert, "factory for "+f.out.String(), fmt.Errorf("already registered"))
	}
	m.factories[f.out] = f
	return nil
}

func bindParam(p reflect.Type) binder {
	switch {
	case p == documentType:
		return func(_ *state, doc *docmap.Document) reflect.Value {
			return reflect.ValueOf(doc)
		}
	case p == servicesType || (p.Kind() != reflect.Interface && p.Implements(servicesType)):
		return func(s *state, _ *docmap.Document) reflect.Value {
			if sv := reflect.ValueOf(s.services); sv.IsValid() && sv.Type().AssignableTo(p) {
				out := reflect.New(p).Elem()
				out.Set(sv)
				return out
			}
			return reflect.Zero(p)
		}
	default:
		return func(s *state, _ *docmap.Document) reflect.Value {
			if s.services != nil {
				if svc, ok := s.services.Lookup(p); ok {
					if sv := reflect.ValueOf(svc); sv.IsValid() && sv.Type().AssignableTo(p) {
						out := reflect.New(p).Elem()
						out.Set(sv)
						return out
					}
				}
			}
			return reflect.Zero(p)
		}
	}
}

// factoryFor finds the factory for t, its value type, or its pointer type.
func (m *Mapper) factoryFor(t reflect.Type) *factory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.factories) == 0 {
		return nil
	}
	if f, ok := m.factories[t]; ok {
		return f
	}
	base := indirect(t)
	if f, ok := m.factories[base]; ok {
		return f
	}
	if f, ok := m.factories[reflect.PointerTo(base)]; ok {
		return f
	}
	return nil
}

func (f *factory) call(s *state, doc *docmap.Document) (out reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Construction(f.out.String(), fmt.Errorf("panic: %v", r), "factory panicked")
		}
	}()

	args := make([]reflect.Value, len(f.params))
	for i, bind := range f.params {
		args[i] = bind(s, doc)
	}

	res := f.fn.Call(args)
	if f.hasErr && !res[1].IsNil() {
		return reflect.Value{}, errors.Construction(f.out.String(), res[1].Interface().(error), "factory failed")
	}

	out = res[0]
	if isNil(out) {
		return reflect.Value{}, errors.Construction(f.out.String(), nil, "factory returned nil")
	}
	if out.Kind() == reflect.Interface {
		out = out.Elem()
	}
	return out, nil
}
