package datastore

// txOp is one reversible action performed during a transaction, recorded
// so RollbackTx can undo it (in reverse order) and CommitTx can
// serialize the row mutations to the commit log. Most ops are physical
// row mutations against a catalog or user table; DDL operations that
// also mutate Go-level catalog caches (ds.tables, ds.schemas,
// ds.indexes/ds.indexesByTable, and their sequence/constraint
// equivalents) additionally push an undo closure, since those caches sit
// beside the catalog's row storage rather than inside it and would
// otherwise survive a rollback that un-inserts the row describing them
// (spec.md section 4.5, "DDL atomicity").
type txOp struct {
	tableID uint32
	row     []byte
	insert  bool // true: this op inserted row; false: this op deleted row
	undo    func()
}

// MutTx is a mutable transaction handle. It carries no lock: Locking's
// mutex is held for MutTx's entire lifetime by the caller of BeginTx,
// and released by CommitTx/RollbackTx (spec.md section 5).
type MutTx struct {
	ds  *Locking
	ops []txOp
}

func newMutTx(ds *Locking) *MutTx {
	return &MutTx{ds: ds}
}

func (tx *MutTx) record(tableID uint32, row []byte, insert bool) {
	tx.ops = append(tx.ops, txOp{tableID: tableID, row: row, insert: insert})
}

// recordUndo appends a pure undo action, with no row mutation of its
// own, that RollbackTx runs at the same point in its reverse-order walk
// as a row op recorded at this position would be. DDL operations use
// this to unwind the Go-level catalog caches they maintain alongside
// their catalog rows.
func (tx *MutTx) recordUndo(undo func()) {
	tx.ops = append(tx.ops, txOp{undo: undo})
}
