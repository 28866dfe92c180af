// Package docstore implements a file-backed document store that emulates a
// document database's basic contract on top of per-collection JSON files.
//
// Each declared collection is persisted as a single JSON array of documents.
// Writes replace the whole file atomically (write to a temp file in the same
// directory, then rename), so readers never observe a partial write and a
// crash mid-write leaves the prior contents intact. Mutations on the same
// collection are serialized through a per-collection mutex; reads load a
// fresh snapshot without taking the lock.
//
// The store targets single-process deployments where collections fit in
// memory: every mutation is a read-everything, mutate, write-everything
// cycle. It is not a general-purpose database (no multi-collection
// transactions, no secondary indexes, no cross-process coordination) and the
// process must be the sole writer of its data directory.
package docstore
