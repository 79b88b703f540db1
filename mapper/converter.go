package mapper

import (
	"fmt"
	"reflect"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/errors"
)

type converter struct {
	typ    reflect.Type
	encode func(v reflect.Value) (any, error)
	decode func(services docmap.Services, raw any) (reflect.Value, error)
}

// RegisterConverter registers the Method strategy conversion pair for T.
// Either function may be nil when only one direction is needed. Cached
// descriptors are dropped, so fields of T are described again on next use.
func RegisterConverter[T any](m *Mapper, encode func(T) (any, error), decode func(docmap.Services, any) (T, error)) error {
	t := reflect.TypeFor[T]()
	if encode == nil && decode == nil {
		return errors.Registration(errors.PhaseConvert, "converter for "+t.String(),
			fmt.Errorf("encode and decode are both nil"))
	}

	c := &converter{typ: t}
	if encode != nil {
		c.encode = func(v reflect.Value) (any, error) {
			av, ok := adaptTo(v, t)
			if !ok {
				return nil, fmt.Errorf("cannot convert %s to %s", v.Type(), t)
			}
			return encode(av.Interface().(T))
		}
	}
	if decode != nil {
		c.decode = func(services docmap.Services, raw any) (reflect.Value, error) {
			out, err := decode(services, raw)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(&out).Elem(), nil
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.converters[t]; exists {
		return errors.Registration(errors.PhaseConvert, "converter for "+t.String(),
			fmt.Errorf("already registered"))
	}
	m.converters[t] = c
	// arity of fields holding t depends on the converter table
	m.cache.Clear()
	return nil
}

// RegisterReference registers T as a reference type: elements are stored
// as the canonical text of their unique identifier and loaded back through
// resolve.
func RegisterReference[T docmap.Referenceable](m *Mapper, resolve func(docmap.Services, docmap.ID) (T, error)) error {
	if resolve == nil {
		return errors.Registration(errors.PhaseConvert, "reference "+reflect.TypeFor[T]().String(),
			fmt.Errorf("resolve is nil"))
	}
	return RegisterConverter(m,
		func(v T) (any, error) {
			return v.UniqueID().String(), nil
		},
		func(services docmap.Services, raw any) (T, error) {
			var zero T
			s, ok := raw.(string)
			if !ok {
				return zero, errors.TypeMismatch(errors.PhaseDecode, nil, "string", docmap.KindOf(raw).String())
			}
			id, err := docmap.ParseID(s)
			if err != nil {
				return zero, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "parse reference id")
			}
			return resolve(services, id)
		})
}

// converterFor finds a converter registered for t or for the pointer or
// value form of t.
func (m *Mapper) converterFor(t reflect.Type) *converter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.converters) == 0 {
		return nil
	}
	if c, ok := m.converters[t]; ok {
		return c
	}
	if t.Kind() == reflect.Pointer {
		if c, ok := m.converters[t.Elem()]; ok {
			return c
		}
		return nil
	}
	if c, ok := m.converters[reflect.PointerTo(t)]; ok {
		return c
	}
	return nil
}
