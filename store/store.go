package store

import (
	"context"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/errors"
)

// Sentinels for errors.Is. Errors returned by stores carry more detail but
// match these by phase and kind.
var (
	ErrNotFound = &errors.Error{Phase: errors.PhaseStore, Kind: errors.KindNotFound}
	ErrExists   = &errors.Error{Phase: errors.PhaseStore, Kind: errors.KindExists}
	ErrClosed   = &errors.Error{Phase: errors.PhaseStore, Kind: errors.KindClosed}
)

// Store is a set of named document collections.
type Store interface {
	// Collection returns the collection called name, creating it on first use.
	Collection(name string) Collection

	// Close releases the store. Later operations fail with ErrClosed.
	Close() error
}

// Collection holds documents keyed by identifier. Documents are copied on
// the way in and out; callers never share storage with the collection.
type Collection interface {
	Name() string

	// Find returns the document stored under id, or ErrNotFound.
	Find(ctx context.Context, id string) (*docmap.Document, error)

	// Insert stores a new document, failing with ErrExists when id is taken.
	Insert(ctx context.Context, id string, doc *docmap.Document) error

	// Replace overwrites the document under id. A missing id is ErrNotFound
	// unless upsert is set, in which case the document is created and
	// created reports true.
	Replace(ctx context.Context, id string, doc *docmap.Document, upsert bool) (created bool, err error)

	// Delete removes the document under id and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// IDs lists the stored identifiers.
	IDs(ctx context.Context) ([]string, error)
}

// NotFound builds the error returned for a missing document.
func NotFound(collection, id string) error {
	return errors.NotFound(errors.PhaseStore, "document", collection+"/"+id)
}

// Exists builds the error returned for a duplicate insert.
func Exists(collection, id string) error {
	return errors.Exists(errors.PhaseStore, "document", collection+"/"+id)
}

// Closed builds the error returned by a closed store.
func Closed(what string) error {
	return errors.Closed(errors.PhaseStore, what)
}

// CheckID rejects empty identifiers.
func CheckID(id string) error {
	if id == "" {
		return errors.InvalidInput(errors.PhaseStore, "document id is empty")
	}
	return nil
}

// CheckDocument rejects nil documents.
func CheckDocument(doc *docmap.Document) error {
	if doc == nil {
		return errors.InvalidInput(errors.PhaseStore, "document is nil")
	}
	return nil
}
