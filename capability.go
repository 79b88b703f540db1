package docmap

import (
	"context"
	"reflect"
)

// DocumentMarshaler is implemented by types that build their own document.
type DocumentMarshaler interface {
	MarshalDocument() (*Document, error)
}

// DocumentUnmarshaler is implemented by pointer types that populate
// themselves from a document.
type DocumentUnmarshaler interface {
	UnmarshalDocument(doc *Document) error
}

// ValueMarshaler marks a type as eligible for method-strategy encoding.
// The returned value must be a document value.
type ValueMarshaler interface {
	MarshalDocValue() (any, error)
}

// ValueUnmarshaler marks a pointer type as eligible for method-strategy
// decoding. It receives the services available to the decode call.
type ValueUnmarshaler interface {
	UnmarshalDocValue(services Services, raw any) error
}

// Services is the read-only view of a service registry.
type Services interface {
	// Lookup returns the service registered for t.
	Lookup(t reflect.Type) (any, bool)
}

// Referenceable is a mapping-capable entity with a stable identity that
// can persist itself to its backing collection.
type Referenceable interface {
	UniqueID() ID
	Save(ctx context.Context, opts ...SaveOption) bool
}

// SaveOptions controls a single Save call.
type SaveOptions struct {
	// OnComplete fires exactly once with the outcome.
	OnComplete func(saved bool)
	// Async schedules the write and returns without waiting for it.
	Async bool
	// Upsert creates the record when it does not exist yet.
	Upsert bool
}

// SaveOption configures SaveOptions.
type SaveOption func(*SaveOptions)

// WithAsync makes the save fire-and-forget relative to the caller.
func WithAsync(async bool) SaveOption {
	return func(o *SaveOptions) { o.Async = async }
}

// WithUpsert creates the record if it is absent.
func WithUpsert(upsert bool) SaveOption {
	return func(o *SaveOptions) { o.Upsert = upsert }
}

// OnComplete registers a callback receiving the outcome of the save.
func OnComplete(fn func(saved bool)) SaveOption {
	return func(o *SaveOptions) { o.OnComplete = fn }
}

// ApplySaveOptions folds opts into a SaveOptions value.
func ApplySaveOptions(opts ...SaveOption) SaveOptions {
	var o SaveOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
