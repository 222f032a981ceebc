// Package rdb is the top-level facade over a single on-disk (or
// in-memory) database: it owns the exclusive lock file, the commit log,
// and the locking datastore, and exposes the transaction scopes
// application code actually calls.
package rdb
