// Package protocodec provides a Protocol Buffers codec for documents using
// the well-known google.protobuf.Struct message.
//
// Struct fields are a protobuf map, so key order is not kept: encoded keys
// are written sorted and decoded documents list keys in lexical order.
// All numbers travel as doubles; integral values within ±2^53 decode as
// int64, and larger integers are rejected on encode.
package protocodec

import (
	"math"
	"sort"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/codec"
	"github.com/wippyai/docmap/errors"
)

const name = "protobuf"

const maxExact = 1 << 53

func init() {
	codec.MustRegister(New())
}

// Codec implements codec.Codec using protobuf serialization.
type Codec struct{}

var _ codec.Codec = &Codec{}

// New creates a new protobuf codec.
func New() *Codec {
	return &Codec{}
}

func (c *Codec) Name() string        { return name }
func (c *Codec) ContentType() string { return "application/x-protobuf" }

// Encode serializes doc as a google.protobuf.Struct.
func (c *Codec) Encode(doc *docmap.Document) ([]byte, error) {
	st, err := ToStruct(doc)
	if err != nil {
		return nil, err
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(st)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCodec, errors.KindInvalidData, err, "protobuf encode")
	}
	return data, nil
}

// Decode parses a serialized google.protobuf.Struct.
func (c *Codec) Decode(data []byte) (*docmap.Document, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, codec.Malformed(name, err)
	}
	return FromStruct(&st), nil
}

// ToStruct converts a document to a Struct message.
func ToStruct(doc *docmap.Document) (*structpb.Struct, error) {
	return toStruct(doc, nil)
}

func toStruct(doc *docmap.Document, path []string) (*structpb.Struct, error) {
	st := &structpb.Struct{Fields: make(map[string]*structpb.Value, doc.Len())}
	for _, el := range doc.Elements() {
		v, err := toValue(el.Value, append(path, el.Key))
		if err != nil {
			return nil, err
		}
		st.Fields[el.Key] = v
	}
	return st, nil
}

func toValue(v any, path []string) (*structpb.Value, error) {
	switch t := v.(type) {
	case nil:
		return structpb.NewNullValue(), nil
	case bool:
		return structpb.NewBoolValue(t), nil
	case int64:
		if t > maxExact || t < -maxExact {
			return nil, errors.Overflow(errors.PhaseCodec, path, t, "double")
		}
		return structpb.NewNumberValue(float64(t)), nil
	case float64:
		return structpb.NewNumberValue(t), nil
	case string:
		return structpb.NewStringValue(t), nil
	case *docmap.Document:
		if t == nil {
			return structpb.NewNullValue(), nil
		}
		st, err := toStruct(t, path)
		if err != nil {
			return nil, err
		}
		return structpb.NewStructValue(st), nil
	case []any:
		list := &structpb.ListValue{Values: make([]*structpb.Value, len(t))}
		for i, e := range t {
			ev, err := toValue(e, append(path, "["+strconv.Itoa(i)+"]"))
			if err != nil {
				return nil, err
			}
			list.Values[i] = ev
		}
		return structpb.NewListValue(list), nil
	default:
		return nil, codec.UnsupportedValue(name, path, v)
	}
}

// FromStruct converts a Struct message to a document with sorted keys.
func FromStruct(st *structpb.Struct) *docmap.Document {
	fields := st.GetFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := docmap.NewDocument(len(keys))
	for _, k := range keys {
		doc.Set(k, fromValue(fields[k]))
	}
	return doc
}

func fromValue(v *structpb.Value) any {
	switch k := v.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return k.BoolValue
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n == math.Trunc(n) && n <= maxExact && n >= -maxExact {
			return int64(n)
		}
		return n
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_StructValue:
		return FromStruct(k.StructValue)
	case *structpb.Value_ListValue:
		vals := k.ListValue.GetValues()
		seq := make([]any, len(vals))
		for i, e := range vals {
			seq[i] = fromValue(e)
		}
		return seq
	default:
		// null and unset kinds
		return nil
	}
}
