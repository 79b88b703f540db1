package mapper

import (
	"math"
	"reflect"
	"strconv"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/errors"
)

// 2^53, the largest range in which float64 holds every integer exactly
const maxExactFloat = 1 << 53

// adaptTo converts v to type t across one level of pointer indirection or
// interface assignment, allocating when a pointer is needed.
func adaptTo(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	if !v.IsValid() {
		return reflect.Zero(t), true
	}
	vt := v.Type()

	switch {
	case vt == t:
		return v, true
	case vt.AssignableTo(t):
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, true
	case vt.Kind() == reflect.Pointer && vt.Elem().AssignableTo(t):
		if v.IsNil() {
			return reflect.Zero(t), true
		}
		out := reflect.New(t).Elem()
		out.Set(v.Elem())
		return out, true
	case t.Kind() == reflect.Pointer && vt.AssignableTo(t.Elem()):
		p := reflect.New(t.Elem())
		p.Elem().Set(v)
		return p, true
	case vt.Kind() != reflect.Pointer && reflect.PointerTo(vt).AssignableTo(t):
		p := reflect.New(vt)
		p.Elem().Set(v)
		out := reflect.New(t).Elem()
		out.Set(p)
		return out, true
	}
	return reflect.Value{}, false
}

// implementer returns v as an I, trying v, its address, and a pointer copy
// of v in that order. Callers rule out nil pointers beforehand.
func implementer[I any](v reflect.Value) (I, bool) {
	var zero I
	if !v.IsValid() || !v.CanInterface() {
		return zero, false
	}
	if i, ok := v.Interface().(I); ok {
		return i, true
	}
	if v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		return zero, false
	}
	if v.CanAddr() {
		i, ok := v.Addr().Interface().(I)
		return i, ok
	}
	if reflect.PointerTo(v.Type()).Implements(reflect.TypeFor[I]()) {
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		return p.Interface().(I), true
	}
	return zero, false
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// coerce converts a primitive document value into a value of kind t.
func coerce(raw any, t reflect.Type, path []string) (reflect.Value, error) {
	v := reflect.New(t).Elem()

	switch t.Kind() {
	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return v, mismatch(path, t, raw)
		}
		v.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := toInt64(raw)
		if !ok {
			return v, mismatch(path, t, raw)
		}
		if v.OverflowInt(n) {
			return v, errors.Overflow(errors.PhaseDecode, path, n, t.String())
		}
		v.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok := toInt64(raw)
		if !ok {
			return v, mismatch(path, t, raw)
		}
		if n < 0 || v.OverflowUint(uint64(n)) {
			return v, errors.Overflow(errors.PhaseDecode, path, n, t.String())
		}
		v.SetUint(uint64(n))

	case reflect.Float32, reflect.Float64:
		f, ok := toFloat64(raw)
		if !ok {
			return v, mismatch(path, t, raw)
		}
		if v.OverflowFloat(f) {
			return v, errors.Overflow(errors.PhaseDecode, path, f, t.String())
		}
		v.SetFloat(f)

	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return v, mismatch(path, t, raw)
		}
		v.SetString(s)

	default:
		return v, mismatch(path, t, raw)
	}

	return v, nil
}

// toInt64 accepts integers of any Go kind and floats without a fractional
// part.
func toInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Float32:
		return toInt64(rv.Float())
	}
	return 0, false
}

// widenFloat32 returns the float64 closest to the shortest decimal form of
// a float32, so 0.1 stays 0.1 instead of 0.10000000149011612.
func widenFloat32(f float64) float64 {
	w, err := strconv.ParseFloat(strconv.FormatFloat(f, 'g', -1, 32), 64)
	if err != nil {
		return f
	}
	return w
}

// toFloat64 accepts floats and integers that float64 represents exactly.
func toFloat64(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return widenFloat32(float64(n)), true
	}
	i, ok := toInt64(raw)
	if !ok || i > maxExactFloat || i < -maxExactFloat {
		return 0, false
	}
	return float64(i), true
}

func mismatch(path []string, t reflect.Type, raw any) *errors.Error {
	return errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
		Path(path...).
		GoType(t.String()).
		DocType(docmap.KindOf(raw).String()).
		Value(raw).
		Build()
}

// cloneRaw copies nested documents and sequences so decoded values never
// share storage with the input document.
func cloneRaw(raw any) any {
	switch v := raw.(type) {
	case *docmap.Document:
		return v.Clone()
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneRaw(e)
		}
		return out
	default:
		return raw
	}
}
