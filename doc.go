// Package docmap maps Go values to and from schemaless, ordered documents.
//
// A Document is the storage-side representation used by document databases:
// an ordered set of string keys, each holding a dynamically typed value. The
// mapper package turns Go structs into Documents and back, including nested
// structs, collections, identifier fields, references to other persisted
// entities, and injection of shared services into reconstructed values.
//
// # Architecture Overview
//
//	docmap/              Document, value kinds, ID and capability interfaces
//	├── mapper/          Field introspection, descriptor cache, encode, decode
//	├── registry/        Service registry used for factory injection
//	├── codec/           Document <-> bytes (JSON, MessagePack, YAML, protobuf, zstd)
//	├── store/           Storage collaborator interfaces, in-memory and NATS stores
//	├── entity/          Embeddable reference-capable base type and loaders
//	├── errors/          Structured error types and per-field diagnostics
//	└── cmd/docmap/      Conversion and inspection tool
//
// # Quick Start
//
//	type Address struct {
//	    City string
//	}
//
//	type Person struct {
//	    Name    string
//	    Age     int
//	    Tags    []string
//	    Address *Address
//	    Cache   map[string]string `doc:",ignore"`
//	}
//
//	m := mapper.New()
//	doc, err := m.Encode(Person{Name: "Alice", Age: 30, Tags: []string{"a", "b"}})
//	// {"name":"Alice","age":30,"tags":["a","b"]}
//
//	p, err := mapper.Decode[Person](m, doc, nil)
//
// # Value Model
//
// Document values are one of:
//
//	nil        absent value inside a sequence
//	bool
//	int64      every Go integer kind
//	float64    float32 and float64
//	string     strings and identifier-like values (ID, time.Time)
//	*Document  nested structs and map[string]T
//	[]any      slices and arrays
//
// A missing key, not a nil value, is how a nil field is represented.
//
// # Capabilities
//
// Structs are mapped by reflection. Types can take over their own mapping
// with DocumentMarshaler and DocumentUnmarshaler, provide method-strategy
// conversions with ValueMarshaler and ValueUnmarshaler, and become
// reference-capable by implementing Referenceable (see the entity package).
//
// # Thread Safety
//
// Document is not safe for concurrent mutation. Mappers, registries and the
// stores in this module are safe for concurrent use.
package docmap
