package rdb

import "github.com/cuemby/rdb/pkg/commitlog"

// StorageKind selects whether a database persists to disk or lives only
// for the process's lifetime.
type StorageKind int

const (
	// Disk persists every committed transaction to a commit log under
	// Options.Dir and replays it on Open.
	Disk StorageKind = iota
	// Memory keeps all state in the pkg/flat tables only; nothing is
	// written to disk and Open never replays anything.
	Memory
)

// FsyncPolicy re-exports commitlog.FsyncPolicy so callers of pkg/rdb
// don't need to import pkg/commitlog directly for Options.
type FsyncPolicy = commitlog.FsyncPolicy

const (
	EveryTx = commitlog.EveryTx
	Never   = commitlog.Never
)

// Options configures Open.
type Options struct {
	// Storage selects Disk or Memory. Disk requires Dir.
	Storage StorageKind
	// Dir is the database's root directory (Disk storage only). It
	// holds db.lock, mlog/ (the commit log segments) and odb/ (the
	// content-addressed object store).
	Dir string
	// Fsync controls how aggressively commit log segments are synced
	// to stable storage (Disk storage only). Defaults to EveryTx.
	Fsync FsyncPolicy
	// SegmentBytesBudget overrides commitlog.DefaultSegmentBytesBudget
	// when non-zero.
	SegmentBytesBudget int64
}
