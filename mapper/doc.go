// Package mapper converts Go values to and from docmap documents.
//
// A Mapper describes each struct type once, caching its field descriptors,
// and uses them to encode values into documents and to construct values
// from documents.
//
// # Field Declarations
//
// Exported fields participate by default under their name with the leading
// upper-case run lowered (Name -> "name", ID -> "id"). The doc struct tag
// changes that:
//
//	Name    string          `doc:"full_name"`          // custom key
//	Cache   map[string]int  `doc:"-"`                  // transient, never described
//	Scratch []byte          `doc:",ignore"`            // described, never mapped
//	Owner   *Account        `doc:",method,cascade"`    // converter + blocking save
//	Shape   Shape           `doc:",target=circle"`     // decode as a named type
//
// Options:
//
//	object            structural conversion (default)
//	method            registered converter or ValueMarshaler/ValueUnmarshaler
//	ignore            keep the field out of documents in both directions
//	cascade[=sync]    save reference-capable elements before encoding them
//	cascade=async     schedule the save without waiting for it
//	target=<name>     element type registered with RegisterType
//
// Fields of embedded structs are promoted, ancestors first. Shallower fields
// shadow deeper ones with the same key.
//
// # Arity
//
// Slices and arrays become sequences, map[string]T becomes a nested document
// with sorted keys, everything else is a single value. Types implementing
// encoding.TextMarshaler (docmap.ID, time.Time) are single text values even
// when their kind is a collection.
//
// # Encoding
//
//	doc, err := m.Encode(person)
//	doc, diag, err := m.EncodeWithDiagnostics(ctx, person)
//
// Nil fields are omitted. A field that fails to convert is omitted and
// reported in the diagnostics; with WithStrict(true) it fails the call.
//
// # Decoding
//
//	p, err := mapper.Decode[Person](m, doc, services)
//	err := m.Populate(doc, &existing, services)
//
// Construction uses the factory registered for the type, or allocates a
// zero value. Factory parameters are bound once at registration:
//
//	m.RegisterFactory(func(reg *registry.Registry, clock Clock) *Session {
//	    return &Session{clock: clock}
//	})
//
// Construction failures are returned as errors. Field failures leave the
// field at its constructed value.
//
// # Converters
//
//	mapper.RegisterConverter(m, encodeRank, decodeRank)
//	mapper.RegisterReference(m, entity.Resolver[*Account]("accounts"))
//
// Field descriptors are computed once per type and cached. Registering a
// converter or a named type drops the cache; do it during setup, before
// concurrent use.
//
// # Thread Safety
//
// A Mapper is safe for concurrent encode and decode calls once
// registration is finished.
package mapper
