package datastore

import (
	"sync"

	"github.com/cuemby/rdb/pkg/flat"
	"github.com/cuemby/rdb/pkg/log"
	"github.com/cuemby/rdb/pkg/metrics"
	"github.com/cuemby/rdb/pkg/sats"
)

// Locking is the transactional facade over a set of pkg/flat tables: it
// resolves names, enforces constraints, maintains secondary indexes and
// sequences, and serializes all access behind one mutex (spec.md
// section 4.5).
//
// Iteration currently holds the same mutex as writes: there is no
// snapshot-tagged read path in this version. A future version wanting
// concurrent readers would need to replace this single sync.Mutex with
// a reader/writer scheme that still gives MutTx a consistent view of
// its own uncommitted writes.
type Locking struct {
	mu sync.Mutex

	tables   map[uint32]*flat.Table
	schemas  map[uint32]*TableSchema
	nameToID map[string]uint32

	indexes        map[uint32]*secondaryIndex
	indexesByTable map[uint32][]uint32
	indexNameToID  map[string]uint32

	sequences        map[uint32]*Sequence
	sequencesByTable map[uint32][]uint32
	sequenceNameToID map[string]uint32
	// sequenceRowBytes caches each sequence's current st_sequences row
	// encoding, so a reallocation can find-and-replace it without a
	// linear scan of st_sequences.
	sequenceRowBytes map[uint32][]byte

	constraints        map[uint32]*ConstraintDef
	constraintsByTable map[uint32][]uint32
	constraintNameToID map[string]uint32

	nextTableID      uint32
	nextIndexID      uint32
	nextSequenceID   uint32
	nextConstraintID uint32

	programHash []byte
}

// NewLocking returns a Locking datastore containing only the empty
// system catalogs - callers bootstrapping from an existing commit log
// should use Replay (see replay.go) before serving traffic.
func NewLocking() (*Locking, error) {
	ds := &Locking{
		tables:             make(map[uint32]*flat.Table),
		schemas:            make(map[uint32]*TableSchema),
		nameToID:           make(map[string]uint32),
		indexes:            make(map[uint32]*secondaryIndex),
		indexesByTable:     make(map[uint32][]uint32),
		indexNameToID:      make(map[string]uint32),
		sequences:          make(map[uint32]*Sequence),
		sequencesByTable:   make(map[uint32][]uint32),
		sequenceNameToID:   make(map[string]uint32),
		sequenceRowBytes:   make(map[uint32][]byte),
		constraints:        make(map[uint32]*ConstraintDef),
		constraintsByTable: make(map[uint32][]uint32),
		constraintNameToID: make(map[string]uint32),
		nextTableID:        FirstUserTableID,
		nextIndexID:        1,
		nextSequenceID:     1,
		nextConstraintID:   1,
	}

	for _, schema := range []*TableSchema{stTableSchema(), stColumnsSchema(), stIndexesSchema(), stSequencesSchema(), stConstraintsSchema()} {
		t, err := flat.NewTable(schema.RowType, nil)
		if err != nil {
			return nil, ioErrorf(err, "create system table %s", schema.Name)
		}
		ds.tables[schema.ID] = t
		ds.schemas[schema.ID] = schema
		ds.nameToID[schema.Name] = schema.ID
	}

	return ds, nil
}

// BeginTx acquires the datastore's mutex and returns a fresh MutTx.
// Every BeginTx must be paired with exactly one CommitTx or RollbackTx.
func (ds *Locking) BeginTx() *MutTx {
	ds.mu.Lock()
	return newMutTx(ds)
}

// CommitTx releases the mutex and returns the Transaction describing
// tx's net inserts/deletes, for the caller (pkg/rdb) to append to the
// commit log.
func (ds *Locking) CommitTx(tx *MutTx) TxData {
	defer ds.mu.Unlock()
	return tx.toTxData()
}

// RollbackTx undoes every operation tx performed, in reverse order, then
// releases the mutex. Row mutations are undone by the converse raw op;
// ops with an undo closure (DDL's catalog-cache maintenance) run that
// closure instead.
func (ds *Locking) RollbackTx(tx *MutTx) {
	defer ds.mu.Unlock()
	for i := len(tx.ops) - 1; i >= 0; i-- {
		op := tx.ops[i]
		if op.undo != nil {
			op.undo()
			continue
		}
		if op.insert {
			ds.rawDeleteRow(op.tableID, op.row)
		} else {
			ds.rawInsertRow(op.tableID, op.row)
		}
	}
}

// FinishTx commits tx if err is nil, otherwise rolls it back. It is the
// primitive that pkg/rdb's auto-commit scope (RelationalDB.WithAutoCommit)
// is built from.
func (ds *Locking) FinishTx(tx *MutTx, err error) (TxData, error) {
	if err != nil {
		ds.RollbackTx(tx)
		metrics.TransactionsTotal.WithLabelValues("rollback").Inc()
		return TxData{}, err
	}
	data := ds.CommitTx(tx)
	metrics.TransactionsTotal.WithLabelValues("commit").Inc()
	return data, nil
}

// TxData is what a committed transaction contributes to the commit log:
// its net inserts and deletes, per table.
type TxData struct {
	Inserts []RowMutation
	Deletes []RowMutation
}

// RowMutation names one physical row mutation by table and encoded
// bytes, the unit pkg/commitlog persists.
type RowMutation struct {
	TableID uint32
	Row     []byte
}

func (tx *MutTx) toTxData() TxData {
	var data TxData
	for _, op := range tx.ops {
		if op.undo != nil {
			continue
		}
		m := RowMutation{TableID: op.tableID, Row: op.row}
		if op.insert {
			data.Inserts = append(data.Inserts, m)
		} else {
			data.Deletes = append(data.Deletes, m)
		}
	}
	return data
}

// rawInsertRow inserts row into tableID's flat.Table and mirrors the
// change into any secondary indexes covering that table. It does not
// check constraints or record an undo entry - callers needing either
// use Insert (DML) or go through rollback undo (which calls this
// directly, since the insert it undoes already passed constraint
// checking once).
func (ds *Locking) rawInsertRow(tableID uint32, row []byte) {
	t := ds.tables[tableID]
	off, inserted, err := t.Insert(row)
	if err != nil || !inserted {
		return
	}
	ds.mirrorIndexInsert(tableID, row, off)
}

func (ds *Locking) rawDeleteRow(tableID uint32, row []byte) {
	t := ds.tables[tableID]
	hash := flat.HashRow(row)
	off, ok := t.Locate(hash, row)
	if !ok {
		return
	}
	ds.mirrorIndexDelete(tableID, row, off)
	_, _ = t.Delete(hash, off)
}

func (ds *Locking) mirrorIndexInsert(tableID uint32, row []byte, off flat.BufferOffset) {
	schema := ds.schemas[tableID]
	if schema == nil {
		return
	}
	val, err := sats.Decode(nil, sats.AlgebraicType{Kind: sats.KindProduct, Product: schema.RowType}, row)
	if err != nil {
		return
	}
	for _, idxID := range ds.indexesByTable[tableID] {
		idx := ds.indexes[idxID]
		idx.insert(indexKeyOf(idx, val), off)
	}
}

func (ds *Locking) mirrorIndexDelete(tableID uint32, row []byte, off flat.BufferOffset) {
	schema := ds.schemas[tableID]
	if schema == nil {
		return
	}
	val, err := sats.Decode(nil, sats.AlgebraicType{Kind: sats.KindProduct, Product: schema.RowType}, row)
	if err != nil {
		return
	}
	for _, idxID := range ds.indexesByTable[tableID] {
		idx := ds.indexes[idxID]
		idx.remove(indexKeyOf(idx, val), off)
	}
}

func indexKeyOf(idx *secondaryIndex, row sats.AlgebraicValue) []sats.AlgebraicValue {
	key := make([]sats.AlgebraicValue, len(idx.def.Columns))
	for i, c := range idx.def.Columns {
		key[i] = row.Product[c]
	}
	return key
}

// --- Table DDL ---

// CreateTable creates a user table with the given columns, allocating
// the next user table id and recording it (and its columns) in
// st_table/st_columns within tx.
func (ds *Locking) CreateTable(tx *MutTx, name string, columns []ColumnDef) (uint32, error) {
	if _, exists := ds.nameToID[name]; exists {
		return 0, duplicatef("table %q already exists", name)
	}

	id := ds.nextTableID
	ds.nextTableID++

	elems := make([]sats.ProductElem, len(columns))
	for i, c := range columns {
		elems[i] = sats.ProductElem{Name: c.Name, Ty: c.Type}
	}
	rowType := sats.ProductType(elems)

	t, err := flat.NewTable(rowType, nil)
	if err != nil {
		return 0, typeErrorf("create table %q: %v", name, err)
	}

	schema := &TableSchema{ID: id, Name: name, Columns: columns, RowType: rowType}
	ds.tables[id] = t
	ds.schemas[id] = schema
	ds.nameToID[name] = id
	tx.recordUndo(func() {
		delete(ds.tables, id)
		delete(ds.schemas, id)
		delete(ds.nameToID, name)
	})

	ds.insertCatalogRow(tx, TableIDStTable, stTableSchema(), sats.ProductVal(
		sats.U32Val(id), sats.StrVal(name),
	))
	for pos, c := range columns {
		ds.insertCatalogRow(tx, TableIDStColumns, stColumnsSchema(), sats.ProductVal(
			sats.U32Val(id), sats.U32Val(uint32(pos)), sats.StrVal(c.Name), sats.StrVal(typeTag(c.Type)),
		))
	}

	log.WithTable(id).Debug().Str("table_name", name).Int("columns", len(columns)).Msg("table created")
	return id, nil
}

// DropTable removes a user table and, per spec.md section 4.5's drop
// cascade, every st_indexes/st_sequences/st_constraints row (and
// in-memory index/sequence/constraint) referencing it, before the table
// itself disappears.
func (ds *Locking) DropTable(tx *MutTx, tableID uint32) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DropTableDuration)

	schema, ok := ds.schemas[tableID]
	if !ok {
		return notFoundf("table id %d", tableID)
	}

	for _, idxID := range append([]uint32{}, ds.indexesByTable[tableID]...) {
		if err := ds.DropIndex(tx, idxID); err != nil {
			return err
		}
	}
	for _, seqID := range append([]uint32{}, ds.sequencesByTable[tableID]...) {
		if err := ds.DropSequence(tx, seqID); err != nil {
			return err
		}
	}
	for _, consID := range append([]uint32{}, ds.constraintsByTable[tableID]...) {
		if err := ds.DropConstraint(tx, consID); err != nil {
			return err
		}
	}

	// Remove every st_columns row for this table.
	colsSchema := stColumnsSchema()
	_ = ds.tables[TableIDStColumns].Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, sats.AlgebraicType{Kind: sats.KindProduct, Product: colsSchema.RowType}, row)
		if err != nil {
			return err
		}
		if v.Product[0].U32 == tableID {
			rowCopy := append([]byte(nil), row...)
			ds.rawDeleteRow(TableIDStColumns, rowCopy)
			tx.record(TableIDStColumns, rowCopy, false)
		}
		return nil
	})

	// Remove the st_table row.
	tblSchema := stTableSchema()
	_ = ds.tables[TableIDStTable].Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, sats.AlgebraicType{Kind: sats.KindProduct, Product: tblSchema.RowType}, row)
		if err != nil {
			return err
		}
		if v.Product[0].U32 == tableID {
			rowCopy := append([]byte(nil), row...)
			ds.rawDeleteRow(TableIDStTable, rowCopy)
			tx.record(TableIDStTable, rowCopy, false)
		}
		return nil
	})

	capturedTable := ds.tables[tableID]
	capturedSchema := schema
	delete(ds.tables, tableID)
	delete(ds.schemas, tableID)
	delete(ds.nameToID, schema.Name)
	tx.recordUndo(func() {
		ds.tables[tableID] = capturedTable
		ds.schemas[tableID] = capturedSchema
		ds.nameToID[capturedSchema.Name] = tableID
	})

	log.WithTable(tableID).Debug().Str("table_name", schema.Name).Msg("table dropped")
	return nil
}

// RenameTable modifies only the st_table row; no row data moves
// (spec.md section 4.5).
func (ds *Locking) RenameTable(tx *MutTx, tableID uint32, newName string) error {
	schema, ok := ds.schemas[tableID]
	if !ok {
		return notFoundf("table id %d", tableID)
	}
	if _, exists := ds.nameToID[newName]; exists {
		return duplicatef("table %q already exists", newName)
	}

	tblSchema := stTableSchema()
	var oldRow []byte
	_ = ds.tables[TableIDStTable].Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, sats.AlgebraicType{Kind: sats.KindProduct, Product: tblSchema.RowType}, row)
		if err != nil {
			return err
		}
		if v.Product[0].U32 == tableID {
			oldRow = append([]byte(nil), row...)
		}
		return nil
	})
	if oldRow != nil {
		ds.rawDeleteRow(TableIDStTable, oldRow)
		tx.record(TableIDStTable, oldRow, false)
	}

	oldName := schema.Name
	delete(ds.nameToID, schema.Name)
	schema.Name = newName
	ds.nameToID[newName] = tableID
	tx.recordUndo(func() {
		delete(ds.nameToID, newName)
		schema.Name = oldName
		ds.nameToID[oldName] = tableID
	})

	ds.insertCatalogRow(tx, TableIDStTable, tblSchema, sats.ProductVal(sats.U32Val(tableID), sats.StrVal(newName)))
	return nil
}

func (ds *Locking) TableIDFromName(name string) (uint32, error) {
	id, ok := ds.nameToID[name]
	if !ok {
		return 0, notFoundf("table %q", name)
	}
	return id, nil
}

func (ds *Locking) TableNameFromID(tableID uint32) (string, error) {
	schema, ok := ds.schemas[tableID]
	if !ok {
		return "", notFoundf("table id %d", tableID)
	}
	return schema.Name, nil
}

func (ds *Locking) SchemaForTable(tableID uint32) (*TableSchema, error) {
	schema, ok := ds.schemas[tableID]
	if !ok {
		return nil, notFoundf("table id %d", tableID)
	}
	return schema, nil
}

func (ds *Locking) RowTypeForTable(tableID uint32) (sats.ProductType, error) {
	schema, err := ds.SchemaForTable(tableID)
	if err != nil {
		return nil, err
	}
	return schema.RowType, nil
}

func (ds *Locking) insertCatalogRow(tx *MutTx, catalogID uint32, schema *TableSchema, val sats.AlgebraicValue) {
	row := make([]byte, mustFixedSize(schema.RowType))
	ty := sats.AlgebraicType{Kind: sats.KindProduct, Product: schema.RowType}
	_ = sats.Encode(nil, ty, val, row)
	ds.rawInsertRow(catalogID, row)
	tx.record(catalogID, row, true)
}

func mustFixedSize(p sats.ProductType) int {
	n, err := p.FixedSizeOf(nil)
	if err != nil {
		panic(err)
	}
	return n
}

// typeTag renders ty as a short descriptive string for st_columns. The
// catalog representation is limited to primitive and simple container
// kinds (it does not attempt to round-trip nested sum/product schemas
// through the 28-byte inline string budget); every one of spec.md
// section 8's literal scenarios only needs primitive column types.
func typeTag(ty sats.AlgebraicType) string {
	switch ty.Kind {
	case sats.KindBool:
		return "bool"
	case sats.KindI8:
		return "i8"
	case sats.KindI16:
		return "i16"
	case sats.KindI32:
		return "i32"
	case sats.KindI64:
		return "i64"
	case sats.KindI128:
		return "i128"
	case sats.KindU8:
		return "u8"
	case sats.KindU16:
		return "u16"
	case sats.KindU32:
		return "u32"
	case sats.KindU64:
		return "u64"
	case sats.KindU128:
		return "u128"
	case sats.KindF32:
		return "f32"
	case sats.KindF64:
		return "f64"
	case sats.KindString:
		return "string"
	default:
		return "unknown"
	}
}
