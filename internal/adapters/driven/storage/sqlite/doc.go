// Package sqlite provides the SQLite-based implementation of the run
// store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation. Runs and their
// clustering results are stored relationally: clusters, responses,
// similarity pairs, statistics, and timesteps each have their own table,
// with foreign keys cascading deletes from the owning run downward.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in
// the migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.psycluster/data/psycluster.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode. A clustering result is written in a
// single transaction and is never partially visible to readers.
package sqlite
