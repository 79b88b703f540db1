// Package registry provides the service registry used when constructing
// values from documents.
//
// The hosting application owns the registry and its services; the mapper
// only reads it, binding factory parameters by type:
//
//	reg := registry.New()
//	registry.Provide[Clock](reg, systemClock{})
//	reg.Register(db, reflect.TypeFor[store.Store]())
//
//	p, err := mapper.Decode[Person](m, doc, reg)
//
// A Registry is safe for concurrent use.
package registry
