package mapper

import (
	"cmp"
	"context"
	"encoding"
	"fmt"
	"math"
	"reflect"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/errors"
)

// Encode converts a struct, or a pointer to one, into a document.
// Per-field failures omit the field unless the mapper is strict.
func (m *Mapper) Encode(v any) (*docmap.Document, error) {
	return m.EncodeContext(context.Background(), v)
}

// EncodeContext is Encode with a context handed to cascading saves.
func (m *Mapper) EncodeContext(ctx context.Context, v any) (*docmap.Document, error) {
	doc, _, err := m.EncodeWithDiagnostics(ctx, v)
	return doc, err
}

// EncodeWithDiagnostics encodes v and reports every recovered per-field
// failure alongside the partial document.
func (m *Mapper) EncodeWithDiagnostics(ctx context.Context, v any) (*docmap.Document, *errors.Diagnostics, error) {
	if v == nil {
		return nil, &errors.Diagnostics{}, errors.InvalidInput(errors.PhaseEncode, "cannot encode nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, &errors.Diagnostics{}, errors.NilPointer(errors.PhaseEncode, nil, rv.Type().String())
	}
	if rv.Kind() != reflect.Pointer {
		// an addressable copy lets pointer-receiver conversions run
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		rv = p
	}

	s := m.acquire(ctx, errors.PhaseEncode, nil)
	defer release(s)

	if dm, ok := implementer[docmap.DocumentMarshaler](rv); ok {
		doc, err := dm.MarshalDocument()
		if err != nil {
			return nil, s.diag, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "marshal document")
		}
		return doc, s.diag, nil
	}

	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, s.diag, errors.NilPointer(errors.PhaseEncode, nil, rv.Type().String())
		}
		rv = rv.Elem()
	}

	doc, err := m.encodeStruct(s, rv)
	if err != nil {
		return nil, s.diag, err
	}
	return doc, s.diag, nil
}

func (m *Mapper) encodeStruct(s *state, rv reflect.Value) (*docmap.Document, error) {
	desc, err := m.Describe(rv.Type())
	if err != nil {
		return nil, err
	}
	if s.depth >= maxDepth {
		return nil, errors.InvalidData(errors.PhaseEncode, s.pathCopy(), fmt.Sprintf("nesting deeper than %d", maxDepth))
	}
	s.depth++
	defer func() { s.depth-- }()

	doc := docmap.NewDocument(len(desc.Fields))
	for i := range desc.Fields {
		f := &desc.Fields[i]
		if f.Strategy == Ignore {
			continue
		}

		s.push(f.Key)
		val, ok, err := m.encodeField(s, rv, f)
		if err != nil {
			if ferr := s.fail(err); ferr != nil {
				s.pop()
				return nil, ferr
			}
		} else if ok {
			doc.Set(f.Key, val)
		}
		s.pop()
	}
	return doc, nil
}

// encodeField returns the document value of one field, or ok=false when the
// key is to be omitted.
func (m *Mapper) encodeField(s *state, rv reflect.Value, f *FieldDescriptor) (val any, ok bool, err error) {
	depth := len(s.path)
	defer func() {
		if r := recover(); r != nil {
			s.path = s.path[:depth]
			err = errors.FieldAccess(errors.PhaseEncode, s.pathCopy(), fmt.Errorf("panic: %v", r))
		}
	}()

	fv, found := fieldByIndex(rv, f.Index)
	if !found || isNil(fv) {
		return nil, false, nil
	}

	switch f.Arity {
	case Array, List:
		n := fv.Len()
		seq := make([]any, 0, n)
		for i := 0; i < n; i++ {
			s.pushIndex(i)
			ev, keep, err := m.encodeElem(s, fv.Index(i), f)
			s.pop()
			if err != nil {
				return nil, false, err
			}
			if keep {
				seq = append(seq, ev)
			}
		}
		return seq, true, nil

	case Map:
		keys := fv.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return cmp.Compare(a.String(), b.String())
		})
		doc := docmap.NewDocument(len(keys))
		for _, k := range keys {
			s.push(k.String())
			ev, keep, err := m.encodeElem(s, fv.MapIndex(k), f)
			s.pop()
			if err != nil {
				return nil, false, err
			}
			if keep {
				doc.Set(k.String(), ev)
			}
		}
		return doc, true, nil

	default:
		return m.encodeElem(s, fv, f)
	}
}

func (m *Mapper) encodeElem(s *state, ev reflect.Value, f *FieldDescriptor) (any, bool, error) {
	if f.Strategy == Method {
		return m.encodeMethod(s, ev, f)
	}
	if f.Cascade != CascadeNone && !isNil(ev) {
		if err := m.cascade(s, ev, f.Cascade); err != nil {
			if ferr := s.fail(err); ferr != nil {
				return nil, false, ferr
			}
		}
	}
	val, err := m.encodeObject(s, ev)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// encodeObject converts a value structurally: documents are copied,
// marshalers take over, identifier-like values become text, structs and
// collections recurse, and primitives are normalized.
func (m *Mapper) encodeObject(s *state, v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return m.encodeObject(s, v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
	}

	if v.Type() == documentType {
		return v.Interface().(*docmap.Document).Clone(), nil
	}
	if dm, ok := implementer[docmap.DocumentMarshaler](v); ok {
		return dm.MarshalDocument()
	}
	if tm, ok := implementer[encoding.TextMarshaler](v); ok {
		text, err := tm.MarshalText()
		if err != nil {
			return nil, err
		}
		return string(text), nil
	}

	switch v.Kind() {
	case reflect.Pointer:
		return m.encodeObject(s, v.Elem())
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, errors.Overflow(errors.PhaseEncode, s.pathCopy(), u, "int64")
		}
		return int64(u), nil
	case reflect.Float32:
		return widenFloat32(v.Float()), nil
	case reflect.Float64:
		return v.Float(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Struct:
		return m.encodeStruct(s, v)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		seq := make([]any, v.Len())
		for i := range seq {
			s.pushIndex(i)
			ev, err := m.encodeObject(s, v.Index(i))
			s.pop()
			if err != nil {
				return nil, err
			}
			seq[i] = ev
		}
		return seq, nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, errors.New(errors.PhaseEncode, errors.KindUnsupported).
				Path(s.pathCopy()...).
				GoType(v.Type().String()).
				Detail("map keys must be strings").
				Build()
		}
		if v.IsNil() {
			return nil, nil
		}
		keys := v.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return cmp.Compare(a.String(), b.String())
		})
		doc := docmap.NewDocument(len(keys))
		for _, k := range keys {
			s.push(k.String())
			ev, err := m.encodeObject(s, v.MapIndex(k))
			s.pop()
			if err != nil {
				return nil, err
			}
			doc.Set(k.String(), ev)
		}
		return doc, nil
	default:
		return nil, errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Path(s.pathCopy()...).
			GoType(v.Type().String()).
			Detail("no document representation").
			Build()
	}
}

// encodeMethod converts an element through a registered converter or its
// ValueMarshaler, saving reference-capable elements first when the field
// cascades.
func (m *Mapper) encodeMethod(s *state, ev reflect.Value, f *FieldDescriptor) (any, bool, error) {
	if isNil(ev) {
		return nil, true, nil
	}

	if f.Cascade != CascadeNone {
		if err := m.cascade(s, ev, f.Cascade); err != nil {
			if ferr := s.fail(err); ferr != nil {
				return nil, false, ferr
			}
		}
	}

	var (
		raw any
		err error
	)
	if c := m.converterFor(f.Target); c != nil && c.encode != nil {
		raw, err = c.encode(ev)
	} else if vm, ok := implementer[docmap.ValueMarshaler](ev); ok {
		raw, err = vm.MarshalDocValue()
	} else {
		if ferr := s.fail(errors.MissingConversion(errors.PhaseEncode, s.pathCopy(), f.Target.String())); ferr != nil {
			return nil, false, ferr
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if !docmap.Valid(raw) {
		// normalize plain Go values such as int or []string
		raw, err = m.encodeObject(s, reflect.ValueOf(raw))
		if err != nil {
			return nil, false, err
		}
	}
	return raw, true, nil
}

func (m *Mapper) cascade(s *state, ev reflect.Value, mode Cascade) error {
	ref, ok := implementer[docmap.Referenceable](ev)
	if !ok {
		return nil
	}

	switch mode {
	case CascadeSync:
		if !ref.Save(s.ctx, docmap.WithUpsert(true)) {
			m.logger.Warn("cascade save failed", zap.Stringer("id", ref.UniqueID()))
			return errors.New(errors.PhaseEncode, errors.KindCascade).
				Path(s.pathCopy()...).
				Detail("save of %s failed", ref.UniqueID()).
				Build()
		}
	case CascadeAsync:
		id := ref.UniqueID()
		log := m.logger
		ref.Save(context.WithoutCancel(s.ctx),
			docmap.WithAsync(true),
			docmap.WithUpsert(true),
			docmap.OnComplete(func(saved bool) {
				if !saved {
					log.Warn("cascade save failed", zap.Stringer("id", id))
				}
			}))
	}
	return nil
}

// fieldByIndex walks an index path, reporting false when it crosses a nil
// embedded pointer.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
