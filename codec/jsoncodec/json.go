// Package jsoncodec provides an ordered JSON codec for documents.
// It uses Go's standard encoding/json package for tokenizing and string
// escaping, keeping document key order in both directions.
package jsoncodec

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/codec"
)

const name = "json"

func init() {
	codec.MustRegister(New())
}

// Codec implements codec.Codec using JSON.
type Codec struct {
	indent string
}

var _ codec.Codec = &Codec{}

// Option configures a Codec.
type Option func(*Codec)

// WithIndent pretty-prints encoded output, one level per indent.
func WithIndent(indent string) Option {
	return func(c *Codec) {
		c.indent = indent
	}
}

// New creates a new JSON codec.
func New(opts ...Option) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Name() string        { return name }
func (c *Codec) ContentType() string { return "application/json" }

// Encode serializes doc. Integral floats keep a fractional part so they
// decode back as floats.
func (c *Codec) Encode(doc *docmap.Document) ([]byte, error) {
	var buf bytes.Buffer
	w := writer{buf: &buf, indent: c.indent}
	if err := w.value(doc, 0, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type writer struct {
	buf    *bytes.Buffer
	indent string
}

func (w *writer) newline(depth int) {
	if w.indent == "" {
		return
	}
	w.buf.WriteByte('\n')
	w.buf.WriteString(strings.Repeat(w.indent, depth))
}

func (w *writer) value(v any, depth int, path []string) error {
	switch t := v.(type) {
	case nil:
		w.buf.WriteString("null")
	case bool:
		w.buf.WriteString(strconv.FormatBool(t))
	case int64:
		w.buf.WriteString(strconv.FormatInt(t, 10))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return codec.UnsupportedValue(name, path, v)
		}
		s := strconv.FormatFloat(t, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		w.buf.WriteString(s)
	case string:
		w.str(t)
	case *docmap.Document:
		if t == nil {
			w.buf.WriteString("null")
			return nil
		}
		w.buf.WriteByte('{')
		for i, el := range t.Elements() {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.newline(depth + 1)
			w.str(el.Key)
			w.buf.WriteByte(':')
			if w.indent != "" {
				w.buf.WriteByte(' ')
			}
			if err := w.value(el.Value, depth+1, append(path, el.Key)); err != nil {
				return err
			}
		}
		if t.Len() > 0 {
			w.newline(depth)
		}
		w.buf.WriteByte('}')
	case []any:
		w.buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.newline(depth + 1)
			if err := w.value(e, depth+1, append(path, "["+strconv.Itoa(i)+"]")); err != nil {
				return err
			}
		}
		if len(t) > 0 {
			w.newline(depth)
		}
		w.buf.WriteByte(']')
	default:
		return codec.UnsupportedValue(name, path, v)
	}
	return nil
}

func (w *writer) str(s string) {
	// marshaling a string cannot fail
	b, _ := json.Marshal(s)
	w.buf.Write(b)
}

// Decode parses a JSON object. Numbers without a fraction or exponent
// become int64 when they fit, everything else float64.
func (c *Codec) Decode(data []byte) (*docmap.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, codec.Malformed(name, err)
	}
	if tok != json.Delim('{') {
		return nil, codec.NotADocument(name, kindOfToken(tok))
	}
	doc, err := readObject(dec)
	if err != nil {
		return nil, codec.Malformed(name, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errTrailing
		}
		return nil, codec.Malformed(name, err)
	}
	return doc, nil
}

type decodeError string

func (e decodeError) Error() string { return string(e) }

const (
	errTrailing = decodeError("trailing data after top level object")
	errKey      = decodeError("object key is not a string")
)

func readObject(dec *json.Decoder) (*docmap.Document, error) {
	doc := docmap.NewDocument()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errKey
		}
		v, err := readValue(dec)
		if err != nil {
			return nil, err
		}
		doc.Set(key, v)
	}
	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return doc, nil
}

func readArray(dec *json.Decoder) ([]any, error) {
	seq := []any{}
	for dec.More() {
		v, err := readValue(dec)
		if err != nil {
			return nil, err
		}
		seq = append(seq, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return seq, nil
}

func readValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		if t == '{' {
			return readObject(dec)
		}
		return readArray(dec)
	case json.Number:
		return number(t)
	default:
		// nil, bool and string are already document values
		return t, nil
	}
}

func number(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
	}
	return strconv.ParseFloat(s, 64)
}

func kindOfToken(tok json.Token) string {
	switch tok.(type) {
	case json.Delim:
		return docmap.KindSequence.String()
	case json.Number:
		return docmap.KindFloat.String()
	default:
		return docmap.KindOf(tok).String()
	}
}
