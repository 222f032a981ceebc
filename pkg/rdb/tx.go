package rdb

import (
	"github.com/cuemby/rdb/pkg/commitlog"
	"github.com/cuemby/rdb/pkg/datastore"
	"github.com/cuemby/rdb/pkg/log"
	"github.com/cuemby/rdb/pkg/metrics"
)

// Tx is a handle to one in-flight transaction, returned by BeginTx.
type Tx struct {
	db  *RelationalDB
	mut *datastore.MutTx
}

// Raw exposes the underlying datastore.MutTx for DDL/DML calls (e.g.
// db.Store().Insert/CreateTable/...), which all take a *datastore.MutTx
// as their first argument.
func (tx *Tx) Raw() *datastore.MutTx { return tx.mut }

// BeginTx acquires the datastore's mutex and returns a new transaction
// handle. Every BeginTx must be paired with exactly one Commit or
// Rollback.
func (db *RelationalDB) BeginTx() *Tx {
	return &Tx{db: db, mut: db.store.BeginTx()}
}

// Commit finishes tx, appending its net row mutations to the commit log
// (Disk storage only) before releasing the datastore mutex.
func (tx *Tx) Commit() error {
	data := tx.db.store.CommitTx(tx.mut)
	return tx.db.appendToLog(data)
}

// Rollback undoes every operation tx performed and releases the
// datastore mutex. Nothing is appended to the commit log.
func (tx *Tx) Rollback() {
	tx.db.store.RollbackTx(tx.mut)
}

// appendToLog converts a committed transaction's net row mutations into
// a commitlog.Transaction and appends it, for Disk-storage databases.
func (db *RelationalDB) appendToLog(data datastore.TxData) error {
	if db.log == nil {
		return nil
	}
	ctx := commitlog.Transaction{
		Inserts: make([]commitlog.Mutation, len(data.Inserts)),
		Deletes: make([]commitlog.Mutation, len(data.Deletes)),
	}
	for i, m := range data.Inserts {
		ctx.Inserts[i] = commitlog.Mutation{TableID: m.TableID, Row: m.Row}
	}
	for i, m := range data.Deletes {
		ctx.Deletes[i] = commitlog.Mutation{TableID: m.TableID, Row: m.Row}
	}
	if len(ctx.Inserts) == 0 && len(ctx.Deletes) == 0 {
		return nil
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CommitDuration)
	offset, err := db.log.Append([]commitlog.Transaction{ctx})
	if err != nil {
		log.WithTx(offset).Error().Err(err).Msg("append to commit log failed")
		return err
	}
	return nil
}

// WithAutoCommit runs fn within a transaction, committing on a nil
// return and rolling back otherwise.
func (db *RelationalDB) WithAutoCommit(fn func(tx *Tx) error) error {
	tx := db.BeginTx()
	data, err := db.store.FinishTx(tx.mut, fn(tx))
	if err != nil {
		return err
	}
	return db.appendToLog(data)
}

// WithAutoRollback runs fn against an already-open tx, rolling tx back
// only when fn returns a non-nil error; on success tx is left open for
// the caller to Commit or inspect further. Unlike WithAutoCommit/
// WithReadOnly, it does not begin or end tx's lifetime itself.
func (db *RelationalDB) WithAutoRollback(tx *Tx, fn func(tx *Tx) error) error {
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return nil
}

// WithReadOnly runs fn within its own transaction, rolling back
// afterward regardless of outcome; fn is expected not to mutate
// anything, but WithReadOnly does not itself enforce that.
func (db *RelationalDB) WithReadOnly(fn func(tx *Tx) error) error {
	tx := db.BeginTx()
	defer tx.Rollback()
	return fn(tx)
}
