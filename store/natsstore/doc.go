// Package natsstore carries store operations over NATS request/reply.
//
// A Server subscribes to "<prefix>.>" in a queue group and answers
// requests from any store.Store. The client Store sends one request per
// operation on "<prefix>.<collection>.<op>":
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	srv := natsstore.NewServer(nc, memstore.New())
//	_ = srv.Start()
//
//	people := natsstore.New(nc).Collection("people")
//	err := people.Insert(ctx, id, doc)
//
// Request and reply envelopes are msgpack. Documents inside them are
// encoded with the configured codec, msgpack unless WithCodec says
// otherwise. Errors keep their kind across the wire, so errors.Is against
// store.ErrNotFound and friends works on the client.
package natsstore
