package mapper

import (
	"encoding"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/errors"
)

var (
	documentType            = reflect.TypeFor[*docmap.Document]()
	documentMarshalerType   = reflect.TypeFor[docmap.DocumentMarshaler]()
	documentUnmarshalerType = reflect.TypeFor[docmap.DocumentUnmarshaler]()
	valueMarshalerType      = reflect.TypeFor[docmap.ValueMarshaler]()
	valueUnmarshalerType    = reflect.TypeFor[docmap.ValueUnmarshaler]()
	textMarshalerType       = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType     = reflect.TypeFor[encoding.TextUnmarshaler]()
	referenceableType       = reflect.TypeFor[docmap.Referenceable]()
	servicesType            = reflect.TypeFor[docmap.Services]()
	errorType               = reflect.TypeFor[error]()
)

// Describe returns the cached descriptor of a struct type, computing it on
// first use. Pointer types are dereferenced.
func (m *Mapper) Describe(t reflect.Type) (*TypeDescriptor, error) {
	if t == nil {
		return nil, errors.NilPointer(errors.PhaseDescribe, nil, "nil")
	}
	t = indirect(t)

	if cached, ok := m.cache.Load(t); ok {
		return cached.(*TypeDescriptor), nil
	}

	if t.Kind() != reflect.Struct {
		return nil, errors.New(errors.PhaseDescribe, errors.KindUnsupported).
			GoType(t.String()).
			Detail("only struct types have field descriptors").
			Build()
	}

	// singleflight only saves duplicate work; keys of distinct types may
	// collide, so the result is checked before it is published.
	v, _, _ := m.group.Do(t.PkgPath()+"."+t.String(), func() (any, error) {
		return m.describe(t), nil
	})
	desc := v.(*TypeDescriptor)
	if desc.Type != t {
		desc = m.describe(t)
	}

	actual, _ := m.cache.LoadOrStore(t, desc)
	return actual.(*TypeDescriptor), nil
}

type candidate struct {
	field  FieldDescriptor
	depth  int
	tagged bool
}

func (m *Mapper) describe(t reflect.Type) *TypeDescriptor {
	var cands []candidate
	m.collect(t, nil, 0, map[reflect.Type]bool{t: true}, &cands)

	fields := dominantFields(cands)
	ptr := reflect.PointerTo(t)
	for i := range fields {
		fields[i].Setter = findSetter(ptr, &fields[i])
	}

	return &TypeDescriptor{Type: t, Fields: fields}
}

// collect appends the fields of embedded structs before the type's own
// fields.
func (m *Mapper) collect(t reflect.Type, index []int, depth int, visiting map[reflect.Type]bool, out *[]candidate) {
	var own []candidate

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		idx := make([]int, len(index)+1)
		copy(idx, index)
		idx[len(index)] = i

		tag, tagged := sf.Tag.Lookup(m.tagName)
		opts, err := parseTag(tag)
		if err != nil {
			m.omit(t, sf.Name, err)
			continue
		}
		if opts.skip {
			continue
		}

		if sf.Anonymous && opts.key == "" {
			et := sf.Type
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct && !m.isAtomic(et) {
				// unexported embedded pointers cannot be allocated on decode
				if sf.Type.Kind() == reflect.Pointer && !sf.IsExported() {
					continue
				}
				if m.ancestorDepth > 0 && depth >= m.ancestorDepth {
					continue
				}
				if visiting[et] {
					continue
				}
				visiting[et] = true
				m.collect(et, idx, depth+1, visiting, out)
				delete(visiting, et)
				continue
			}
		}

		if !sf.IsExported() || sf.Name == "_" {
			continue
		}

		fd, err := m.describeField(sf, idx, opts)
		if err != nil {
			m.omit(t, sf.Name, err)
			continue
		}
		own = append(own, candidate{field: fd, depth: depth, tagged: tagged && opts.key != ""})
	}

	*out = append(*out, own...)
}

func (m *Mapper) omit(t reflect.Type, field string, err error) {
	m.logger.Debug("field omitted from descriptor",
		zap.String("type", t.String()),
		zap.String("field", field),
		zap.Error(err))
}

func (m *Mapper) describeField(sf reflect.StructField, index []int, opts tagOptions) (FieldDescriptor, error) {
	if !representable(sf.Type, 0) {
		return FieldDescriptor{}, fmt.Errorf("type %s has no document representation", sf.Type)
	}

	key := opts.key
	if key == "" {
		key = defaultKey(sf.Name)
	}

	arity, elem := m.arityOf(sf.Type)
	if arity == Map && sf.Type.Key().Kind() != reflect.String {
		return FieldDescriptor{}, fmt.Errorf("map key type %s is not a string", sf.Type.Key())
	}

	target := indirect(elem)
	if opts.target != "" {
		nt, ok := m.namedType(opts.target)
		if !ok {
			return FieldDescriptor{}, fmt.Errorf("unknown target type %q", opts.target)
		}
		if opts.strategy == Object && !targetFits(nt, elem) {
			return FieldDescriptor{}, fmt.Errorf("target %s cannot be stored in %s", nt, elem)
		}
		target = nt
	}

	return FieldDescriptor{
		Type:     sf.Type,
		Elem:     elem,
		Target:   target,
		Name:     sf.Name,
		Key:      key,
		Index:    index,
		Setter:   -1,
		Arity:    arity,
		Strategy: opts.strategy,
		Cascade:  opts.cascade,
	}, nil
}

func (m *Mapper) arityOf(t reflect.Type) (Arity, reflect.Type) {
	if m.isAtomic(t) {
		return Scalar, t
	}
	switch t.Kind() {
	case reflect.Array:
		return Array, t.Elem()
	case reflect.Slice:
		return List, t.Elem()
	case reflect.Map:
		return Map, t.Elem()
	default:
		return Scalar, t
	}
}

// isAtomic reports whether values of t convert as a whole even when t is
// a collection kind (uuid.UUID is an array, for example).
func (m *Mapper) isAtomic(t reflect.Type) bool {
	if t == documentType {
		return true
	}
	for _, iface := range []reflect.Type{textMarshalerType, documentMarshalerType, valueMarshalerType} {
		if implements(t, iface) {
			return true
		}
	}
	return m.converterFor(t) != nil
}

func implements(t, iface reflect.Type) bool {
	if t.Implements(iface) {
		return true
	}
	return t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(iface)
}

func representable(t reflect.Type, depth int) bool {
	if depth > 16 {
		return false
	}
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128, reflect.Invalid:
		return false
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return representable(t.Elem(), depth+1)
	default:
		return true
	}
}

func targetFits(target, elem reflect.Type) bool {
	return target == indirect(elem) ||
		target.AssignableTo(elem) ||
		reflect.PointerTo(target).AssignableTo(elem)
}

// dominantFields keeps, for every key, the shallowest field. Ties at the
// same depth are broken by an explicit tag key; remaining ties drop the key.
func dominantFields(cands []candidate) []FieldDescriptor {
	byKey := make(map[string][]int, len(cands))
	for i, c := range cands {
		byKey[c.field.Key] = append(byKey[c.field.Key], i)
	}

	keep := make([]bool, len(cands))
	for _, idxs := range byKey {
		if w, ok := dominant(cands, idxs); ok {
			keep[w] = true
		}
	}

	fields := make([]FieldDescriptor, 0, len(cands))
	for i, c := range cands {
		if keep[i] {
			fields = append(fields, c.field)
		}
	}
	return fields
}

func dominant(cands []candidate, idxs []int) (int, bool) {
	if len(idxs) == 1 {
		return idxs[0], true
	}

	minDepth := cands[idxs[0]].depth
	for _, i := range idxs[1:] {
		if cands[i].depth < minDepth {
			minDepth = cands[i].depth
		}
	}

	var shallow []int
	for _, i := range idxs {
		if cands[i].depth == minDepth {
			shallow = append(shallow, i)
		}
	}
	if len(shallow) == 1 {
		return shallow[0], true
	}

	winner, tagged := -1, 0
	for _, i := range shallow {
		if cands[i].tagged {
			winner = i
			tagged++
		}
	}
	if tagged == 1 {
		return winner, true
	}
	return -1, false
}

// findSetter returns the method index of Set<Name> on the pointer type, or
// -1 when the type has no usable setter.
func findSetter(ptr reflect.Type, f *FieldDescriptor) int {
	meth, ok := ptr.MethodByName("Set" + f.Name)
	if !ok {
		return -1
	}
	mt := meth.Type
	if mt.NumIn() != 2 || mt.IsVariadic() || !f.Type.AssignableTo(mt.In(1)) {
		return -1
	}
	switch mt.NumOut() {
	case 0:
	case 1:
		if mt.Out(0) != errorType {
			return -1
		}
	default:
		return -1
	}
	return meth.Index
}
