package docmap

import (
	"sort"
	"strconv"
	"strings"
)

// Element is a single key/value pair of a Document.
type Element struct {
	Value any
	Key   string
}

// Document is an ordered mapping from string keys to document values.
// The zero value is an empty document ready to use.
type Document struct {
	index map[string]int
	elems []Element
}

// NewDocument returns an empty document with room for n keys.
func NewDocument(n ...int) *Document {
	size := 0
	if len(n) > 0 {
		size = n[0]
	}
	return &Document{
		elems: make([]Element, 0, size),
		index: make(map[string]int, size),
	}
}

// DocumentOf builds a document from alternating key/value arguments.
// It panics if a key is not a string, which only happens on programmer error.
func DocumentOf(kv ...any) *Document {
	d := NewDocument(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		d.Set(kv[i].(string), kv[i+1])
	}
	return d
}

// Set stores v under key. Re-setting an existing key keeps its position.
func (d *Document) Set(key string, v any) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[key]; ok {
		d.elems[i].Value = v
		return
	}
	d.index[key] = len(d.elems)
	d.elems = append(d.elems, Element{Key: key, Value: v})
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.elems[i].Value, true
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Delete removes key and reports whether it was present.
func (d *Document) Delete(key string) bool {
	if d == nil {
		return false
	}
	i, ok := d.index[key]
	if !ok {
		return false
	}
	d.elems = append(d.elems[:i], d.elems[i+1:]...)
	delete(d.index, key)
	for j := i; j < len(d.elems); j++ {
		d.index[d.elems[j].Key] = j
	}
	return true
}

// Len returns the number of keys.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.elems)
}

// Keys returns the keys in insertion order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, len(d.elems))
	for i, e := range d.elems {
		keys[i] = e.Key
	}
	return keys
}

// Elements returns a copy of the key/value pairs in insertion order.
func (d *Document) Elements() []Element {
	if d == nil {
		return nil
	}
	out := make([]Element, len(d.elems))
	copy(out, d.elems)
	return out
}

// Range calls fn for each pair in insertion order until fn returns false.
func (d *Document) Range(fn func(key string, v any) bool) {
	if d == nil {
		return
	}
	for _, e := range d.elems {
		if !fn(e.Key, e.Value) {
			return
		}
	}
}

// Lookup walks nested documents and sequences by path segment.
// Sequence elements are addressed by decimal index.
func (d *Document) Lookup(path ...string) (any, bool) {
	var cur any = d
	for _, seg := range path {
		switch v := cur.(type) {
		case *Document:
			next, ok := v.Get(seg)
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy. Nested documents and sequences are copied;
// scalar values are immutable and shared.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := NewDocument(len(d.elems))
	for _, e := range d.elems {
		out.Set(e.Key, cloneValue(e.Value))
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Document:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether both documents hold the same keys with deeply equal
// values. Key order is ignored.
func (d *Document) Equal(other *Document) bool {
	if d.Len() != other.Len() {
		return false
	}
	for _, e := range d.elemsOrNil() {
		ov, ok := other.Get(e.Key)
		if !ok || !ValuesEqual(e.Value, ov) {
			return false
		}
	}
	return true
}

func (d *Document) elemsOrNil() []Element {
	if d == nil {
		return nil
	}
	return d.elems
}

// ValuesEqual compares two document values deeply.
func ValuesEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case *Document:
		bv, ok := b.(*Document)
		return ok && av.Equal(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !ValuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// String renders the document in a compact JSON-like form for debugging.
func (d *Document) String() string {
	var b strings.Builder
	writeValue(&b, d)
	return b.String()
}

func writeValue(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case string:
		b.WriteString(strconv.Quote(t))
	case *Document:
		if t == nil {
			b.WriteString("null")
			return
		}
		b.WriteByte('{')
		for i, e := range t.elems {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(e.Key))
			b.WriteByte(':')
			writeValue(b, e.Value)
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, e)
		}
		b.WriteByte(']')
	default:
		b.WriteString("<invalid>")
	}
}

// SortedKeys returns the keys in lexical order.
func (d *Document) SortedKeys() []string {
	keys := d.Keys()
	sort.Strings(keys)
	return keys
}
