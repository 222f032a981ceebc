package rdb

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/cuemby/rdb/pkg/commitlog"
	"github.com/cuemby/rdb/pkg/datastore"
	"github.com/cuemby/rdb/pkg/log"
	"github.com/cuemby/rdb/pkg/objstore"
)

const (
	lockFileName = "db.lock"
	logDirName   = "mlog"
	objDirName   = "odb"
)

// RelationalDB is one open database: an exclusive lock on its directory
// (Disk storage), a replayed commit log, a locking datastore, and a
// content-addressed object store for large/blob values.
type RelationalDB struct {
	opts  Options
	store *datastore.Locking
	log   *commitlog.CommitLog
	objs  *objstore.Store
	lock  *flock.Flock
}

// Open bootstraps a database according to opts: for Disk storage it
// acquires db.lock exclusively (returning datastore.ErrDatabaseOpened if
// another process holds it), replays mlog/ into a fresh Locking
// datastore, and opens odb/ as the object store; Memory storage skips
// all of that and starts from an empty datastore with no log.
func Open(opts Options) (*RelationalDB, error) {
	db := &RelationalDB{opts: opts}

	store, err := datastore.NewLocking()
	if err != nil {
		return nil, err
	}
	db.store = store

	if opts.Storage == Memory {
		objs, err := objstore.OpenMemory()
		if err != nil {
			return nil, err
		}
		db.objs = objs
		log.Logger.Info().Msg("opened in-memory database")
		return db, nil
	}

	if opts.Dir == "" {
		return nil, datastore.ErrIO
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}

	lk := flock.New(filepath.Join(opts.Dir, lockFileName))
	locked, err := lk.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, datastore.ErrDatabaseOpened
	}
	db.lock = lk

	logDir := filepath.Join(opts.Dir, logDirName)
	budget := opts.SegmentBytesBudget
	if budget == 0 {
		budget = commitlog.DefaultSegmentBytesBudget
	}
	cl, err := commitlog.Open(commitlog.Options{Dir: logDir, Fsync: opts.Fsync, SegmentBytesBudget: budget})
	if err != nil {
		_ = lk.Unlock()
		return nil, err
	}
	db.log = cl

	if err := store.Replay(logDir); err != nil {
		_ = cl.Close()
		_ = lk.Unlock()
		return nil, err
	}

	objs, err := objstore.OpenDisk(filepath.Join(opts.Dir, objDirName))
	if err != nil {
		_ = cl.Close()
		_ = lk.Unlock()
		return nil, err
	}
	db.objs = objs

	log.WithDB(opts.Dir).Info().Msg("database opened")
	return db, nil
}

// Store returns the underlying locking datastore, for callers that need
// direct access to schema/DDL operations beyond the transaction scopes.
func (db *RelationalDB) Store() *datastore.Locking { return db.store }

// Objects returns the content-addressed object store.
func (db *RelationalDB) Objects() *objstore.Store { return db.objs }

// SegmentCount returns the number of commit log segment files, or an
// error if this is a Memory-storage database with no log.
func (db *RelationalDB) SegmentCount() (int, error) {
	if db.log == nil {
		return 0, datastore.ErrIO
	}
	return db.log.SegmentCount()
}

// Close releases the commit log and the exclusive lock file, if held.
func (db *RelationalDB) Close() error {
	var firstErr error
	if db.log != nil {
		if err := db.log.Close(); err != nil {
			firstErr = err
		}
	}
	if db.lock != nil {
		if err := db.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
