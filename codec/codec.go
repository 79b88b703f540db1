package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/errors"
)

// Codec converts documents to and from a byte representation.
// Implementations include JSON, MessagePack, YAML and protobuf codecs.
type Codec interface {
	// Name is the short identifier the codec is registered under.
	Name() string

	// ContentType is the MIME type of the encoded form.
	ContentType() string

	// Encode serializes doc, keeping key order where the format allows.
	Encode(doc *docmap.Document) ([]byte, error)

	// Decode parses data whose top level value is a mapping.
	Decode(data []byte) (*docmap.Document, error)
}

var (
	mu     sync.RWMutex
	codecs = make(map[string]Codec)
)

// Register makes c available under its name.
func Register(c Codec) error {
	if c == nil {
		return errors.InvalidInput(errors.PhaseCodec, "codec is nil")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := codecs[c.Name()]; exists {
		return errors.Exists(errors.PhaseCodec, "codec", c.Name())
	}
	codecs[c.Name()] = c
	return nil
}

// MustRegister is Register for package init functions.
func MustRegister(c Codec) {
	if err := Register(c); err != nil {
		panic(err)
	}
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, error) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := codecs[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseCodec, "codec", name)
	}
	return c, nil
}

// Names lists the registered codecs in lexical order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnsupportedValue reports a value outside the document value model.
func UnsupportedValue(codec string, path []string, v any) error {
	return errors.New(errors.PhaseCodec, errors.KindUnsupported).
		Path(path...).
		GoType(fmt.Sprintf("%T", v)).
		Detail("%s cannot encode this value", codec).
		Build()
}

// NotADocument reports encoded data whose top level is not a mapping.
func NotADocument(codec, got string) error {
	return errors.New(errors.PhaseCodec, errors.KindInvalidData).
		DocType(got).
		Detail("%s top level value must be a mapping", codec).
		Build()
}

// Malformed wraps a parser failure.
func Malformed(codec string, cause error) error {
	return errors.Wrap(errors.PhaseCodec, errors.KindInvalidData, cause, codec+" decode")
}
