// Package msgpackcodec provides a MessagePack codec for documents.
// Maps are written and read element by element, so key order survives
// the round trip.
package msgpackcodec

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/codec"
)

const name = "msgpack"

// maxContainerLen bounds declared map and array lengths so corrupt input
// cannot trigger huge allocations.
const maxContainerLen = 1 << 24

func init() {
	codec.MustRegister(New())
}

// Codec implements codec.Codec using MessagePack serialization.
type Codec struct{}

var _ codec.Codec = &Codec{}

// New creates a new MessagePack codec.
func New() *Codec {
	return &Codec{}
}

func (c *Codec) Name() string        { return name }
func (c *Codec) ContentType() string { return "application/msgpack" }

// Encode serializes doc. Integers use the smallest encoding, floats are
// always written as 64-bit doubles.
func (c *Codec) Encode(doc *docmap.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := encodeValue(enc, doc, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AppendValue writes a single document value to enc. It lets callers embed
// documents inside larger MessagePack messages.
func AppendValue(enc *msgpack.Encoder, v any) error {
	return encodeValue(enc, v, nil)
}

func encodeValue(enc *msgpack.Encoder, v any, path []string) error {
	switch t := v.(type) {
	case nil:
		return enc.EncodeNil()
	case bool:
		return enc.EncodeBool(t)
	case int64:
		return enc.EncodeInt(t)
	case float64:
		return enc.EncodeFloat64(t)
	case string:
		return enc.EncodeString(t)
	case *docmap.Document:
		if t == nil {
			return enc.EncodeNil()
		}
		if err := enc.EncodeMapLen(t.Len()); err != nil {
			return err
		}
		for _, el := range t.Elements() {
			if err := enc.EncodeString(el.Key); err != nil {
				return err
			}
			if err := encodeValue(enc, el.Value, append(path, el.Key)); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if err := enc.EncodeArrayLen(len(t)); err != nil {
			return err
		}
		for i, e := range t {
			if err := encodeValue(enc, e, append(path, "["+strconv.Itoa(i)+"]")); err != nil {
				return err
			}
		}
		return nil
	default:
		return codec.UnsupportedValue(name, path, v)
	}
}

// Decode parses a MessagePack map.
func (c *Codec) Decode(data []byte) (*docmap.Document, error) {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)

	code, err := dec.PeekCode()
	if err != nil {
		return nil, codec.Malformed(name, err)
	}
	if !isMap(code) {
		return nil, codec.NotADocument(name, kindOfCode(code))
	}

	v, err := ReadValue(dec)
	if err != nil {
		return nil, codec.Malformed(name, err)
	}
	if r.Len() > 0 {
		return nil, codec.Malformed(name, fmt.Errorf("%d trailing bytes", r.Len()))
	}
	return v.(*docmap.Document), nil
}

// ReadValue reads one document value from dec. Maps become documents in
// wire order; unsigned integers beyond int64 are rejected.
func ReadValue(dec *msgpack.Decoder) (any, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case isMap(code):
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, nil
		}
		if n > maxContainerLen {
			return nil, fmt.Errorf("map of %d entries exceeds limit", n)
		}
		doc := docmap.NewDocument(n)
		for i := 0; i < n; i++ {
			key, err := dec.DecodeString()
			if err != nil {
				return nil, fmt.Errorf("map key: %w", err)
			}
			v, err := ReadValue(dec)
			if err != nil {
				return nil, err
			}
			doc.Set(key, v)
		}
		return doc, nil

	case isArray(code):
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, nil
		}
		if n > maxContainerLen {
			return nil, fmt.Errorf("array of %d elements exceeds limit", n)
		}
		seq := make([]any, n)
		for i := range seq {
			if seq[i], err = ReadValue(dec); err != nil {
				return nil, err
			}
		}
		return seq, nil
	}

	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case nil, bool, int64, float64, string:
		return t, nil
	case uint64:
		if t > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned integer %d overflows int64", t)
		}
		return int64(t), nil
	case []byte:
		return string(t), nil
	default:
		return nil, fmt.Errorf("unsupported MessagePack value %T", v)
	}
}

func isMap(c byte) bool {
	return msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32
}

func isArray(c byte) bool {
	return msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32
}

func kindOfCode(c byte) string {
	switch {
	case isArray(c):
		return docmap.KindSequence.String()
	case c == msgpcode.Nil:
		return docmap.KindNull.String()
	case c == msgpcode.True || c == msgpcode.False:
		return docmap.KindBool.String()
	case c == msgpcode.Float || c == msgpcode.Double:
		return docmap.KindFloat.String()
	case msgpcode.IsString(c):
		return docmap.KindString.String()
	default:
		return docmap.KindInt.String()
	}
}
