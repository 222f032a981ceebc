package datastore

import (
	"github.com/cuemby/rdb/pkg/commitlog"
	"github.com/cuemby/rdb/pkg/flat"
	"github.com/cuemby/rdb/pkg/log"
	"github.com/cuemby/rdb/pkg/sats"
)

// Replay rebuilds ds's full state (user tables, secondary indexes,
// sequences, constraints) from the commit log segments found in dir.
// It applies every physical row mutation directly through
// rawInsertRow/rawDeleteRow - bypassing constraint checks, since a
// historical commit already passed them once (spec.md section 4.4) -
// then reconstructs derived state (indexes, sequences, constraints)
// from the final catalog contents in one pass.
func (ds *Locking) Replay(dir string) error {
	err := commitlog.Replay(dir, func(c *commitlog.Commit) error {
		for _, tx := range c.Transactions {
			for _, m := range tx.Inserts {
				ds.ensureUserTable(m.TableID)
				ds.rawInsertRow(m.TableID, m.Row)
			}
			for _, m := range tx.Deletes {
				ds.rawDeleteRow(m.TableID, m.Row)
			}
		}
		return nil
	})
	if err != nil {
		return ioErrorf(err, "replay commit log")
	}
	ds.rebuildDerivedState()
	log.Logger.Info().Int("tables", len(ds.tables)).Msg("commit log replay complete")
	return nil
}

// ensureUserTable materializes tableID's flat.Table from the current
// contents of st_table/st_columns, if it hasn't been already. DDL
// always commits the catalog rows for a table before any data row
// referencing it, so by the time a data mutation for tableID appears
// in the log, its schema is already present in the system tables.
func (ds *Locking) ensureUserTable(tableID uint32) {
	if _, ok := ds.tables[tableID]; ok {
		return
	}

	name, ok := ds.lookupTableName(tableID)
	if !ok {
		return
	}
	columns := ds.lookupTableColumns(tableID)

	elems := make([]sats.ProductElem, len(columns))
	for i, c := range columns {
		elems[i] = sats.ProductElem{Name: c.Name, Ty: c.Type}
	}
	rowType := sats.ProductType(elems)

	t, err := flat.NewTable(rowType, nil)
	if err != nil {
		log.Logger.Error().Err(err).Str("table_name", name).Msg("replay: rebuild table failed")
		return
	}

	ds.tables[tableID] = t
	ds.schemas[tableID] = &TableSchema{ID: tableID, Name: name, Columns: columns, RowType: rowType}
	ds.nameToID[name] = tableID
	if tableID >= ds.nextTableID {
		ds.nextTableID = tableID + 1
	}
}

func (ds *Locking) lookupTableName(tableID uint32) (string, bool) {
	tblSchema := stTableSchema()
	ty := sats.AlgebraicType{Kind: sats.KindProduct, Product: tblSchema.RowType}
	name, found := "", false
	_ = ds.tables[TableIDStTable].Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, ty, row)
		if err != nil {
			return err
		}
		if v.Product[0].U32 == tableID {
			name, found = v.Product[1].Str, true
		}
		return nil
	})
	return name, found
}

func (ds *Locking) lookupTableColumns(tableID uint32) []ColumnDef {
	colsSchema := stColumnsSchema()
	ty := sats.AlgebraicType{Kind: sats.KindProduct, Product: colsSchema.RowType}
	type posCol struct {
		pos int
		col ColumnDef
	}
	var found []posCol
	_ = ds.tables[TableIDStColumns].Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, ty, row)
		if err != nil {
			return err
		}
		if v.Product[0].U32 != tableID {
			return nil
		}
		found = append(found, posCol{
			pos: int(v.Product[1].U32),
			col: ColumnDef{Name: v.Product[2].Str, Type: typeFromTag(v.Product[3].Str)},
		})
		return nil
	})

	columns := make([]ColumnDef, len(found))
	for _, fc := range found {
		if fc.pos >= 0 && fc.pos < len(columns) {
			columns[fc.pos] = fc.col
		}
	}
	return columns
}

// typeFromTag reverses typeTag for the primitive kinds the catalog
// round-trips (see typeTag's doc comment on the representation limit).
func typeFromTag(tag string) sats.AlgebraicType {
	switch tag {
	case "bool":
		return sats.Bool()
	case "i8":
		return sats.I8()
	case "i16":
		return sats.I16()
	case "i32":
		return sats.I32()
	case "i64":
		return sats.I64()
	case "i128":
		return sats.I128()
	case "u8":
		return sats.U8()
	case "u16":
		return sats.U16()
	case "u32":
		return sats.U32()
	case "u64":
		return sats.U64()
	case "u128":
		return sats.U128()
	case "f32":
		return sats.F32()
	case "f64":
		return sats.F64()
	default:
		return sats.Str()
	}
}

// rebuildDerivedState reconstructs indexes, sequences and constraints
// from the final contents of their catalogs, after every physical
// mutation in the commit log has been applied. Secondary indexes are
// backfilled against the now-fully-populated user tables, the same way
// CreateIndex does for a live table.
func (ds *Locking) rebuildDerivedState() {
	ds.rebuildIndexes()
	ds.rebuildSequences()
	ds.rebuildConstraints()
}

func (ds *Locking) rebuildIndexes() {
	idxSchema := stIndexesSchema()
	ty := sats.AlgebraicType{Kind: sats.KindProduct, Product: idxSchema.RowType}
	_ = ds.tables[TableIDStIndexes].Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, ty, row)
		if err != nil {
			return err
		}
		id := v.Product[0].U32
		tableID := v.Product[1].U32
		columns := valueToColumns(v.Product[2])
		name := v.Product[3].Str
		unique := v.Product[4].Bool

		schema, ok := ds.schemas[tableID]
		if !ok {
			return nil
		}
		colType := make([]sats.AlgebraicType, len(columns))
		for i, c := range columns {
			colType[i] = schema.Columns[c].Type
		}
		def := IndexDef{ID: id, TableID: tableID, Name: name, Columns: columns, IsUnique: unique}
		idx := newSecondaryIndex(def, nil, colType)

		rowTy := sats.AlgebraicType{Kind: sats.KindProduct, Product: schema.RowType}
		_ = ds.tables[tableID].Iterate(func(dataRow []byte) error {
			val, err := sats.Decode(nil, rowTy, dataRow)
			if err != nil {
				return err
			}
			hash := flat.HashRow(dataRow)
			off, ok := ds.tables[tableID].Locate(hash, dataRow)
			if !ok {
				return nil
			}
			idx.insert(indexKeyOf(idx, val), off)
			return nil
		})

		ds.indexes[id] = idx
		ds.indexesByTable[tableID] = append(ds.indexesByTable[tableID], id)
		ds.indexNameToID[name] = id
		if id >= ds.nextIndexID {
			ds.nextIndexID = id + 1
		}
		return nil
	})
}

func (ds *Locking) rebuildSequences() {
	seqSchema := stSequencesSchema()
	ty := sats.AlgebraicType{Kind: sats.KindProduct, Product: seqSchema.RowType}
	_ = ds.tables[TableIDStSequences].Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, ty, row)
		if err != nil {
			return err
		}
		def := SequenceDef{
			ID:        v.Product[0].U32,
			TableID:   v.Product[1].U32,
			ColPos:    int(v.Product[2].U32),
			Name:      v.Product[3].Str,
			Start:     v.Product[4].I64,
			Increment: v.Product[5].I64,
			Allocated: v.Product[6].I64,
		}
		ds.sequences[def.ID] = loadedSequence(def)
		ds.sequencesByTable[def.TableID] = append(ds.sequencesByTable[def.TableID], def.ID)
		ds.sequenceNameToID[def.Name] = def.ID
		ds.sequenceRowBytes[def.ID] = append([]byte(nil), row...)
		if def.ID >= ds.nextSequenceID {
			ds.nextSequenceID = def.ID + 1
		}
		return nil
	})
}

func (ds *Locking) rebuildConstraints() {
	consSchema := stConstraintsSchema()
	ty := sats.AlgebraicType{Kind: sats.KindProduct, Product: consSchema.RowType}
	_ = ds.tables[TableIDStConstraints].Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, ty, row)
		if err != nil {
			return err
		}
		def := &ConstraintDef{
			ID:      v.Product[0].U32,
			TableID: v.Product[1].U32,
			Columns: valueToColumns(v.Product[2]),
			Name:    v.Product[3].Str,
			Kind:    ConstraintKind(v.Product[4].U8),
		}
		ds.constraints[def.ID] = def
		ds.constraintsByTable[def.TableID] = append(ds.constraintsByTable[def.TableID], def.ID)
		ds.constraintNameToID[def.Name] = def.ID
		if def.ID >= ds.nextConstraintID {
			ds.nextConstraintID = def.ID + 1
		}
		return nil
	})
}
