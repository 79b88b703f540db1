package natsstore

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/wippyai/docmap/errors"
)

// DefaultSubjectPrefix is the subject namespace requests are sent under.
const DefaultSubjectPrefix = "docmap.store"

// DefaultTimeout bounds a request when the caller's context has no deadline.
const DefaultTimeout = 5 * time.Second

// Operations carried in request subjects and bodies.
const (
	OpFind    = "find"
	OpInsert  = "insert"
	OpReplace = "replace"
	OpDelete  = "delete"
	OpIDs     = "ids"
)

// Request is the msgpack body of a store request. Doc holds a document
// encoded with the configured codec.
type Request struct {
	Op         string `msgpack:"op"`
	Collection string `msgpack:"collection"`
	ID         string `msgpack:"id,omitempty"`
	Upsert     bool   `msgpack:"upsert,omitempty"`
	Doc        []byte `msgpack:"doc,omitempty"`
}

// Reply is the msgpack body of a store reply. Failures carry the error
// kind so clients can rebuild errors matching the store sentinels.
type Reply struct {
	OK      bool     `msgpack:"ok"`
	Found   bool     `msgpack:"found,omitempty"`
	Created bool     `msgpack:"created,omitempty"`
	Doc     []byte   `msgpack:"doc,omitempty"`
	IDs     []string `msgpack:"ids,omitempty"`
	Kind    string   `msgpack:"kind,omitempty"`
	Err     string   `msgpack:"err,omitempty"`
}

func subject(prefix, collection, op string) string {
	return prefix + "." + collection + "." + op
}

// checkCollection rejects names that would change the subject structure.
func checkCollection(name string) error {
	if name == "" || strings.ContainsAny(name, ".*> \t\r\n") {
		return errors.InvalidInput(errors.PhaseStore, fmt.Sprintf("collection name %q is not a valid subject token", name))
	}
	return nil
}

func failure(err error) *Reply {
	r := &Reply{Err: err.Error(), Kind: string(errors.KindInvalidData)}
	var e *errors.Error
	if stderrors.As(err, &e) {
		r.Kind = string(e.Kind)
		if e.Detail != "" {
			r.Err = e.Detail
		}
	}
	return r
}

// remoteError rebuilds an error reported by the server.
func remoteError(r *Reply) error {
	return errors.New(errors.PhaseStore, errors.Kind(r.Kind)).
		Detail("%s", r.Err).
		Build()
}
