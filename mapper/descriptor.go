package mapper

import "reflect"

// Arity describes how many values a field holds.
type Arity uint8

const (
	Scalar Arity = iota // a single value
	Array               // fixed-length Go array
	List                // slice
	Map                 // map with string keys, stored as a nested document
)

func (a Arity) String() string {
	switch a {
	case Scalar:
		return "scalar"
	case Array:
		return "array"
	case List:
		return "list"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}

// Strategy selects how each element of a field is converted.
type Strategy uint8

const (
	// Object converts elements structurally: nested structs become
	// documents, identifier-like values become text, primitives pass through.
	Object Strategy = iota
	// Method converts elements with a registered converter or the
	// ValueMarshaler/ValueUnmarshaler pair of the target type.
	Method
	// Ignore keeps the field out of documents in both directions.
	Ignore
)

func (s Strategy) String() string {
	switch s {
	case Object:
		return "object"
	case Method:
		return "method"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}

// Cascade controls whether reference-capable elements are saved while
// their owner is being encoded.
type Cascade uint8

const (
	CascadeNone  Cascade = iota
	CascadeSync          // blocking upsert before the reference is embedded
	CascadeAsync         // upsert scheduled without waiting
)

func (c Cascade) String() string {
	switch c {
	case CascadeNone:
		return "none"
	case CascadeSync:
		return "sync"
	case CascadeAsync:
		return "async"
	default:
		return "unknown"
	}
}

// FieldDescriptor is the mapping metadata of one struct field.
type FieldDescriptor struct {
	// Type is the declared field type.
	Type reflect.Type
	// Elem is the element type after stripping the arity: the slice, array
	// or map element type, or Type itself for scalars.
	Elem reflect.Type
	// Target is the type elements are converted through: the tag override
	// when present, otherwise Elem with pointers removed.
	Target   reflect.Type
	Name     string
	Key      string
	Index    []int
	Setter   int
	Arity    Arity
	Strategy Strategy
	Cascade  Cascade
}

// HasSetter reports whether population goes through a Set<Name> method.
func (f *FieldDescriptor) HasSetter() bool {
	return f.Setter >= 0
}

// TypeDescriptor is the cached, immutable field list of a struct type.
// Fields promoted from embedded structs come first, then the type's own
// fields, each group in declaration order.
type TypeDescriptor struct {
	Type   reflect.Type
	Fields []FieldDescriptor
}

// Field returns the descriptor stored under the document key.
func (d *TypeDescriptor) Field(key string) (*FieldDescriptor, bool) {
	for i := range d.Fields {
		if d.Fields[i].Key == key {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// Keys returns the document keys of every non-ignored field, in order.
func (d *TypeDescriptor) Keys() []string {
	keys := make([]string, 0, len(d.Fields))
	for i := range d.Fields {
		if d.Fields[i].Strategy != Ignore {
			keys = append(keys, d.Fields[i].Key)
		}
	}
	return keys
}
