// Package store defines the storage collaborator documents are saved to
// and loaded from.
//
// Stores hold named collections of documents keyed by string identifiers.
// They do not query, cache or transact; the mapper and entity packages only
// need find, insert, replace and delete by identifier. Two implementations
// are provided: memstore keeps collections in process, natsstore reaches a
// store served over NATS request/reply.
package store
