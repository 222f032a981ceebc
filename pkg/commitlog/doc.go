/*
Package commitlog implements the append-only, segmented commit log: the
durability layer underneath pkg/datastore (spec.md section 4.4/6).

A CommitLog is a sequence of segment files under a root directory, each
named by the offset of its first commit (%020d.clog). Every Commit
records the hash of its predecessor, forming a chain that replay
verifies; a Commit holds one or more Transactions, each a list of
inserted and deleted (table_id, row_bytes) mutations.

Replay applies mutations directly without re-checking constraints (the
constraints were already satisfied when the commit was first made);
pkg/datastore is responsible for rebuilding derived state (secondary
indexes, sequence high-water marks) once replay completes.
*/
package commitlog
