package mapper

import (
	"context"
	"encoding"
	"fmt"
	"reflect"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/errors"
)

// Decode constructs a T from doc. T may be a struct, a pointer to one, or
// any type with a registered factory.
func Decode[T any](m *Mapper, doc *docmap.Document, services docmap.Services) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()
	v, err := m.Construct(doc, t, services)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.Construction(t.String(), nil, "constructed %T", v)
	}
	return out, nil
}

// Construct builds a new value of type t from doc: a registered factory
// creates it, or it is allocated with its zero value, and the document's
// fields are populated into it. Construction failures are returned;
// per-field failures are recovered unless the mapper is strict.
func (m *Mapper) Construct(doc *docmap.Document, t reflect.Type, services docmap.Services) (any, error) {
	v, _, err := m.ConstructWithDiagnostics(doc, t, services)
	return v, err
}

// ConstructWithDiagnostics is Construct reporting recovered per-field
// failures.
func (m *Mapper) ConstructWithDiagnostics(doc *docmap.Document, t reflect.Type, services docmap.Services) (any, *errors.Diagnostics, error) {
	if doc == nil {
		return nil, &errors.Diagnostics{}, errors.InvalidInput(errors.PhaseDecode, "cannot decode a nil document")
	}
	if t == nil {
		return nil, &errors.Diagnostics{}, errors.NilPointer(errors.PhaseConstruct, nil, "nil")
	}

	s := m.acquire(context.Background(), errors.PhaseDecode, services)
	defer release(s)

	v, err := m.constructValue(s, doc, t)
	if err != nil {
		return nil, s.diag, err
	}
	return v.Interface(), s.diag, nil
}

// Populate decodes doc into the existing value ptr points to.
func (m *Mapper) Populate(doc *docmap.Document, ptr any, services docmap.Services) error {
	_, err := m.PopulateWithDiagnostics(doc, ptr, services)
	return err
}

// PopulateWithDiagnostics is Populate reporting recovered per-field
// failures.
func (m *Mapper) PopulateWithDiagnostics(doc *docmap.Document, ptr any, services docmap.Services) (*errors.Diagnostics, error) {
	if doc == nil {
		return &errors.Diagnostics{}, errors.InvalidInput(errors.PhaseDecode, "cannot decode a nil document")
	}
	pv := reflect.ValueOf(ptr)
	if !pv.IsValid() || pv.Kind() != reflect.Pointer || pv.IsNil() {
		return &errors.Diagnostics{}, errors.NilPointer(errors.PhaseDecode, nil, fmt.Sprintf("%T", ptr))
	}

	s := m.acquire(context.Background(), errors.PhaseDecode, services)
	defer release(s)

	err := m.populate(s, doc, pv)
	return s.diag, err
}

func (m *Mapper) constructValue(s *state, doc *docmap.Document, t reflect.Type) (reflect.Value, error) {
	if s.depth >= maxDepth {
		return reflect.Value{}, errors.InvalidData(errors.PhaseDecode, s.pathCopy(), fmt.Sprintf("nesting deeper than %d", maxDepth))
	}
	s.depth++
	defer func() { s.depth-- }()

	var ptr reflect.Value
	if f := m.factoryFor(t); f != nil {
		out, err := f.call(s, doc)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.Kind() == reflect.Pointer {
			ptr = out
		} else {
			ptr = reflect.New(out.Type())
			ptr.Elem().Set(out)
		}
	} else {
		base := indirect(t)
		if base.Kind() != reflect.Struct && !reflect.PointerTo(base).Implements(documentUnmarshalerType) {
			return reflect.Value{}, errors.Construction(t.String(), nil, "no factory registered for non-struct type")
		}
		ptr = reflect.New(base)
	}

	if err := m.populate(s, doc, ptr); err != nil {
		return reflect.Value{}, err
	}

	v, ok := adaptTo(ptr, t)
	if !ok {
		return reflect.Value{}, errors.Construction(t.String(), nil, "constructed %s", ptr.Type())
	}
	return v, nil
}

// populate fills the value ptr points to, field by field, or hands the
// document to its DocumentUnmarshaler.
func (m *Mapper) populate(s *state, doc *docmap.Document, ptr reflect.Value) error {
	if du, ok := ptr.Interface().(docmap.DocumentUnmarshaler); ok {
		if err := du.UnmarshalDocument(doc); err != nil {
			return errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Path(s.pathCopy()...).
				GoType(ptr.Type().String()).
				Detail("unmarshal document").
				Cause(err).
				Build()
		}
		return nil
	}

	sv := ptr.Elem()
	if sv.Kind() != reflect.Struct {
		return nil
	}
	desc, err := m.Describe(sv.Type())
	if err != nil {
		return err
	}

	for i := range desc.Fields {
		f := &desc.Fields[i]
		if f.Strategy == Ignore {
			continue
		}
		raw, ok := doc.Get(f.Key)
		if !ok {
			continue
		}

		s.push(f.Key)
		if err := m.decodeField(s, ptr, f, raw); err != nil {
			if ferr := s.fail(err); ferr != nil {
				s.pop()
				return ferr
			}
		}
		s.pop()
	}
	return nil
}

func (m *Mapper) decodeField(s *state, ptr reflect.Value, f *FieldDescriptor, raw any) (err error) {
	depth := len(s.path)
	defer func() {
		if r := recover(); r != nil {
			s.path = s.path[:depth]
			err = errors.FieldAccess(errors.PhaseDecode, s.pathCopy(), fmt.Errorf("panic: %v", r))
		}
	}()

	if raw == nil {
		if nilable(f.Type) {
			return assign(ptr, f, reflect.Zero(f.Type))
		}
		return nil
	}

	var value reflect.Value
	switch f.Arity {
	case Array, List:
		seq, ok := raw.([]any)
		if !ok {
			seq = []any{raw}
		}
		var out reflect.Value
		if f.Arity == List {
			out = reflect.MakeSlice(f.Type, 0, len(seq))
		} else {
			out = reflect.New(f.Type).Elem()
		}
		n := 0
		for i, e := range seq {
			if f.Arity == Array && n >= out.Len() {
				break
			}
			s.pushIndex(i)
			ev, keep, err := m.decodeElem(s, e, f)
			s.pop()
			if err != nil {
				return err
			}
			if !keep {
				continue
			}
			if f.Arity == List {
				out = reflect.Append(out, ev)
			} else {
				out.Index(n).Set(ev)
			}
			n++
		}
		value = out

	case Map:
		sub, ok := raw.(*docmap.Document)
		if !ok {
			return mismatch(s.pathCopy(), f.Type, raw)
		}
		out := reflect.MakeMapWithSize(f.Type, sub.Len())
		for _, el := range sub.Elements() {
			s.push(el.Key)
			ev, keep, err := m.decodeElem(s, el.Value, f)
			s.pop()
			if err != nil {
				return err
			}
			if keep {
				out.SetMapIndex(reflect.ValueOf(el.Key).Convert(f.Type.Key()), ev)
			}
		}
		value = out

	default:
		elem := raw
		if seq, ok := raw.([]any); ok && !acceptsSequence(f) {
			switch len(seq) {
			case 0:
				return nil
			case 1:
				elem = seq[0]
			default:
				return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
					Path(s.pathCopy()...).
					GoType(f.Type.String()).
					DocType(docmap.KindSequence.String()).
					Detail("%d values for a scalar field", len(seq)).
					Build()
			}
		}
		ev, keep, err := m.decodeElem(s, elem, f)
		if err != nil {
			return err
		}
		if !keep {
			return nil
		}
		value = ev
	}

	return assign(ptr, f, value)
}

// acceptsSequence reports whether a scalar field takes a sequence as is.
func acceptsSequence(f *FieldDescriptor) bool {
	if f.Strategy == Method || f.Elem.Kind() == reflect.Interface {
		return true
	}
	k := f.Target.Kind()
	return k == reflect.Slice || k == reflect.Array
}

func (m *Mapper) decodeElem(s *state, raw any, f *FieldDescriptor) (reflect.Value, bool, error) {
	if raw == nil {
		return reflect.Zero(f.Elem), true, nil
	}
	if f.Strategy == Method {
		return m.decodeMethod(s, raw, f)
	}
	v, err := m.decodeObject(s, raw, f.Elem, f.Target)
	if err != nil {
		return reflect.Value{}, false, err
	}
	return v, true, nil
}

// decodeMethod inverts encodeMethod: a registered converter, else the
// ValueUnmarshaler of the target type.
func (m *Mapper) decodeMethod(s *state, raw any, f *FieldDescriptor) (reflect.Value, bool, error) {
	var out reflect.Value
	if c := m.converterFor(f.Target); c != nil && c.decode != nil {
		v, err := c.decode(s.services, raw)
		if err != nil {
			return reflect.Value{}, false, err
		}
		out = v
	} else if reflect.PointerTo(f.Target).Implements(valueUnmarshalerType) {
		p := reflect.New(f.Target)
		if err := p.Interface().(docmap.ValueUnmarshaler).UnmarshalDocValue(s.services, raw); err != nil {
			return reflect.Value{}, false, err
		}
		out = p
	} else {
		if ferr := s.fail(errors.MissingConversion(errors.PhaseDecode, s.pathCopy(), f.Target.String())); ferr != nil {
			return reflect.Value{}, false, ferr
		}
		return reflect.Value{}, false, nil
	}

	v, ok := adaptTo(out, f.Elem)
	if !ok {
		return reflect.Value{}, false, errors.TypeMismatch(errors.PhaseDecode, s.pathCopy(), f.Elem.String(), out.Type().String())
	}
	return v, true, nil
}

// decodeObject builds a value of type t from a raw document value. A
// target other than t's base type is decoded first and then stored in t.
func (m *Mapper) decodeObject(s *state, raw any, t, target reflect.Type) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(t), nil
	}

	if target != nil && target != indirect(t) {
		v, err := m.decodeObject(s, raw, target, nil)
		if err != nil {
			return reflect.Value{}, err
		}
		out, ok := adaptTo(v, t)
		if !ok {
			return reflect.Value{}, errors.TypeMismatch(errors.PhaseDecode, s.pathCopy(), t.String(), target.String())
		}
		return out, nil
	}

	if t == documentType {
		d, ok := raw.(*docmap.Document)
		if !ok {
			return reflect.Value{}, mismatch(s.pathCopy(), t, raw)
		}
		return reflect.ValueOf(d.Clone()), nil
	}

	if t.Kind() == reflect.Interface {
		if d, ok := raw.(*docmap.Document); ok && m.factoryFor(t) != nil {
			return m.constructValue(s, d, t)
		}
		rv := reflect.ValueOf(cloneRaw(raw))
		if !rv.Type().AssignableTo(t) {
			return reflect.Value{}, mismatch(s.pathCopy(), t, raw)
		}
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	}

	base := indirect(t)
	if str, ok := raw.(string); ok && reflect.PointerTo(base).Implements(textUnmarshalerType) {
		p := reflect.New(base)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(str)); err != nil {
			return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Path(s.pathCopy()...).
				GoType(base.String()).
				Detail("parse %q", str).
				Cause(err).
				Build()
		}
		return adaptOrMismatch(s, p, t)
	}

	var (
		v   reflect.Value
		err error
	)
	switch r := raw.(type) {
	case *docmap.Document:
		if base.Kind() == reflect.Map && !reflect.PointerTo(base).Implements(documentUnmarshalerType) {
			v, err = m.decodeMap(s, r, base)
		} else {
			return m.constructValue(s, r, t)
		}
	case []any:
		if base.Kind() != reflect.Slice && base.Kind() != reflect.Array {
			return reflect.Value{}, mismatch(s.pathCopy(), t, raw)
		}
		v, err = m.decodeSequence(s, r, base)
	default:
		v, err = coerce(raw, base, s.pathCopy())
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return adaptOrMismatch(s, v, t)
}

func (m *Mapper) decodeMap(s *state, doc *docmap.Document, t reflect.Type) (reflect.Value, error) {
	if t.Key().Kind() != reflect.String {
		return reflect.Value{}, mismatch(s.pathCopy(), t, doc)
	}
	out := reflect.MakeMapWithSize(t, doc.Len())
	for _, el := range doc.Elements() {
		s.push(el.Key)
		v, err := m.decodeObject(s, el.Value, t.Elem(), nil)
		s.pop()
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetMapIndex(reflect.ValueOf(el.Key).Convert(t.Key()), v)
	}
	return out, nil
}

func (m *Mapper) decodeSequence(s *state, seq []any, t reflect.Type) (reflect.Value, error) {
	var out reflect.Value
	if t.Kind() == reflect.Slice {
		out = reflect.MakeSlice(t, len(seq), len(seq))
	} else {
		out = reflect.New(t).Elem()
	}
	for i, e := range seq {
		if i >= out.Len() {
			break
		}
		s.pushIndex(i)
		v, err := m.decodeObject(s, e, t.Elem(), nil)
		s.pop()
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

func adaptOrMismatch(s *state, v reflect.Value, t reflect.Type) (reflect.Value, error) {
	out, ok := adaptTo(v, t)
	if !ok {
		return reflect.Value{}, errors.TypeMismatch(errors.PhaseDecode, s.pathCopy(), t.String(), v.Type().String())
	}
	return out, nil
}

// assign stores value through the field's setter, or directly, allocating
// nil embedded pointers on the way.
func assign(ptr reflect.Value, f *FieldDescriptor, value reflect.Value) error {
	if f.Setter >= 0 {
		res := ptr.Method(f.Setter).Call([]reflect.Value{value})
		if len(res) == 1 && !res[0].IsNil() {
			return errors.FieldAccess(errors.PhaseDecode, nil, res[0].Interface().(error))
		}
		return nil
	}

	fv := ptr.Elem()
	for i, x := range f.Index {
		if i > 0 && fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				if !fv.CanSet() {
					return errors.FieldAccess(errors.PhaseDecode, nil, fmt.Errorf("cannot allocate embedded %s", fv.Type()))
				}
				fv.Set(reflect.New(fv.Type().Elem()))
			}
			fv = fv.Elem()
		}
		fv = fv.Field(x)
	}
	if !fv.CanSet() {
		return errors.FieldAccess(errors.PhaseDecode, nil, fmt.Errorf("field %s is not settable", f.Name))
	}
	fv.Set(value)
	return nil
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	}
	return false
}
