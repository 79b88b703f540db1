package natsstore

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/wippyai/docmap/errors"
	"github.com/wippyai/docmap/store"
)

// Conn is the server side of a NATS connection. *nats.Conn implements it.
type Conn interface {
	QueueSubscribe(subj, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
	Publish(subj string, data []byte) error
}

// Server answers store requests from a backing store. Several servers
// sharing a prefix form a queue group and split the requests.
type Server struct {
	conn    Conn
	backend store.Store
	opts    options

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewServer creates a server for backend. Call Start to begin serving.
func NewServer(conn Conn, backend store.Store, opts ...Option) *Server {
	return &Server{conn: conn, backend: backend, opts: buildOptions(opts)}
}

// Start subscribes to every subject under the prefix.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, err := s.conn.QueueSubscribe(s.opts.prefix+".>", s.opts.prefix, s.handle)
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindInvalidInput, err, "subscribe")
	}
	s.sub = sub
	s.opts.logger.Info("store server started", zap.String("prefix", s.opts.prefix))
	return nil
}

// Close unsubscribes. The backing store is left open.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub == nil {
		return nil
	}
	err := s.sub.Unsubscribe()
	s.sub = nil
	return err
}

func (s *Server) handle(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.timeout)
	defer cancel()

	reply := s.Dispatch(ctx, msg.Data)
	data, err := msgpack.Marshal(reply)
	if err != nil {
		s.opts.logger.Error("encode reply", zap.Error(err))
		return
	}
	if err := s.conn.Publish(msg.Reply, data); err != nil {
		s.opts.logger.Warn("publish reply",
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

// Dispatch decodes a request, runs it against the backing store and
// returns the reply.
func (s *Server) Dispatch(ctx context.Context, data []byte) *Reply {
	var req Request
	if err := msgpack.Unmarshal(data, &req); err != nil {
		return failure(errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, "decode request"))
	}
	if err := checkCollection(req.Collection); err != nil {
		return failure(err)
	}

	coll := s.backend.Collection(req.Collection)
	reply, err := s.run(ctx, coll, &req)
	if err != nil {
		s.opts.logger.Debug("store request rejected",
			zap.String("op", req.Op),
			zap.String("collection", req.Collection),
			zap.String("id", req.ID),
			zap.Error(err))
		return failure(err)
	}
	reply.OK = true
	return reply
}

func (s *Server) run(ctx context.Context, coll store.Collection, req *Request) (*Reply, error) {
	switch req.Op {
	case OpFind:
		doc, err := coll.Find(ctx, req.ID)
		if stderrors.Is(err, store.ErrNotFound) {
			return &Reply{}, nil
		}
		if err != nil {
			return nil, err
		}
		data, err := s.opts.codec.Encode(doc)
		if err != nil {
			return nil, err
		}
		return &Reply{Found: true, Doc: data}, nil

	case OpInsert:
		doc, err := s.opts.codec.Decode(req.Doc)
		if err != nil {
			return nil, err
		}
		if err := coll.Insert(ctx, req.ID, doc); err != nil {
			return nil, err
		}
		return &Reply{Created: true}, nil

	case OpReplace:
		doc, err := s.opts.codec.Decode(req.Doc)
		if err != nil {
			return nil, err
		}
		created, err := coll.Replace(ctx, req.ID, doc, req.Upsert)
		if err != nil {
			return nil, err
		}
		return &Reply{Created: created}, nil

	case OpDelete:
		found, err := coll.Delete(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		return &Reply{Found: found}, nil

	case OpIDs:
		ids, err := coll.IDs(ctx)
		if err != nil {
			return nil, err
		}
		return &Reply{IDs: ids}, nil

	default:
		return nil, errors.Unsupported(errors.PhaseStore, "operation "+req.Op)
	}
}
