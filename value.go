package docmap

// Kind classifies a document value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindDocument
	KindSequence
)

// String returns the kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDocument:
		return "document"
	case KindSequence:
		return "sequence"
	default:
		return "invalid"
	}
}

// KindOf returns the kind of a single document value without descending.
func KindOf(v any) Kind {
	switch t := v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case string:
		return KindString
	case *Document:
		if t == nil {
			return KindNull
		}
		return KindDocument
	case []any:
		return KindSequence
	default:
		return KindInvalid
	}
}

// Valid reports whether v and everything nested in it is a document value.
func Valid(v any) bool {
	switch t := v.(type) {
	case *Document:
		ok := true
		t.Range(func(_ string, e any) bool {
			ok = Valid(e)
			return ok
		})
		return ok
	case []any:
		for _, e := range t {
			if !Valid(e) {
				return false
			}
		}
		return true
	default:
		return KindOf(v) != KindInvalid
	}
}
