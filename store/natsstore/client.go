package natsstore

import (
	"context"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/wippyai/docmap"
	"github.com/wippyai/docmap/errors"
	"github.com/wippyai/docmap/store"
)

// Requester sends a request and waits for its reply. *nats.Conn
// implements it.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// Store is a store.Store whose collections live behind a Server.
// The connection is owned by the caller; Close does not close it.
type Store struct {
	conn   Requester
	opts   options
	closed atomic.Bool
}

var _ store.Store = (*Store)(nil)

// New creates a client store sending requests over conn.
func New(conn Requester, opts ...Option) *Store {
	return &Store{conn: conn, opts: buildOptions(opts)}
}

// Collection returns a handle to the remote collection called name.
func (s *Store) Collection(name string) store.Collection {
	return &Collection{store: s, name: name}
}

// Close stops the store from sending further requests.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// Collection is a remote collection.
type Collection struct {
	store *Store
	name  string
}

var _ store.Collection = (*Collection)(nil)

func (c *Collection) Name() string { return c.name }

func (c *Collection) call(ctx context.Context, req *Request) (*Reply, error) {
	s := c.store
	if s.closed.Load() {
		return nil, store.Closed("natsstore")
	}
	if err := checkCollection(c.name); err != nil {
		return nil, err
	}
	req.Collection = c.name

	data, err := msgpack.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindInvalidInput, err, "encode request")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.timeout)
		defer cancel()
	}

	subj := subject(s.opts.prefix, c.name, req.Op)
	msg, err := s.conn.RequestWithContext(ctx, subj, data)
	if err != nil {
		s.opts.logger.Debug("store request failed",
			zap.String("subject", subj),
			zap.Error(err))
		return nil, err
	}

	var reply Reply
	if err := msgpack.Unmarshal(msg.Data, &reply); err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, "decode reply")
	}
	if !reply.OK {
		return nil, remoteError(&reply)
	}
	return &reply, nil
}

func (c *Collection) encode(doc *docmap.Document) ([]byte, error) {
	if err := store.CheckDocument(doc); err != nil {
		return nil, err
	}
	return c.store.opts.codec.Encode(doc)
}

// Find fetches the document stored under id.
func (c *Collection) Find(ctx context.Context, id string) (*docmap.Document, error) {
	if err := store.CheckID(id); err != nil {
		return nil, err
	}
	reply, err := c.call(ctx, &Request{Op: OpFind, ID: id})
	if err != nil {
		return nil, err
	}
	if !reply.Found {
		return nil, store.NotFound(c.name, id)
	}
	return c.store.opts.codec.Decode(reply.Doc)
}

// Insert stores doc under a new id.
func (c *Collection) Insert(ctx context.Context, id string, doc *docmap.Document) error {
	if err := store.CheckID(id); err != nil {
		return err
	}
	data, err := c.encode(doc)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, &Request{Op: OpInsert, ID: id, Doc: data})
	return err
}

// Replace overwrites the document under id, creating it when upsert is set.
func (c *Collection) Replace(ctx context.Context, id string, doc *docmap.Document, upsert bool) (bool, error) {
	if err := store.CheckID(id); err != nil {
		return false, err
	}
	data, err := c.encode(doc)
	if err != nil {
		return false, err
	}
	reply, err := c.call(ctx, &Request{Op: OpReplace, ID: id, Upsert: upsert, Doc: data})
	if err != nil {
		return false, err
	}
	return reply.Created, nil
}

// Delete removes the document under id.
func (c *Collection) Delete(ctx context.Context, id string) (bool, error) {
	if err := store.CheckID(id); err != nil {
		return false, err
	}
	reply, err := c.call(ctx, &Request{Op: OpDelete, ID: id})
	if err != nil {
		return false, err
	}
	return reply.Found, nil
}

// IDs lists the identifiers stored in the remote collection.
func (c *Collection) IDs(ctx context.Context) ([]string, error) {
	reply, err := c.call(ctx, &Request{Op: OpIDs})
	if err != nil {
		return nil, err
	}
	if reply.IDs == nil {
		return []string{}, nil
	}
	return reply.IDs, nil
}
