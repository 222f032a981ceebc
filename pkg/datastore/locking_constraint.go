package datastore

import "github.com/cuemby/rdb/pkg/sats"

// CreateConstraint records a standalone constraint in st_constraints.
// UNIQUE and INDEXED constraints are expected to have a backing
// secondary index created alongside them via CreateIndex, and a
// PRIMARY_KEY_AUTO constraint a sequence on its column created via
// CreateSequence (Insert's IDENTITY substitution draws from it);
// CreateConstraint itself only maintains the catalog bookkeeping and
// creates no index or sequence, matching the original's factoring where
// DDL helpers compose rather than one call doing everything.
func (ds *Locking) CreateConstraint(tx *MutTx, tableID uint32, name string, columns []int, kind ConstraintKind) (uint32, error) {
	if _, ok := ds.schemas[tableID]; !ok {
		return 0, notFoundf("table id %d", tableID)
	}
	if _, exists := ds.constraintNameToID[name]; exists {
		return 0, duplicatef("constraint %q already exists", name)
	}
	if kind == ConstraintPrimaryKey || kind == ConstraintPrimaryKeyAuto {
		for _, id := range ds.constraintsByTable[tableID] {
			if k := ds.constraints[id].Kind; k == ConstraintPrimaryKey || k == ConstraintPrimaryKeyAuto {
				return 0, duplicatef("table id %d already has a primary key", tableID)
			}
		}
	}

	id := ds.nextConstraintID
	ds.nextConstraintID++
	def := &ConstraintDef{ID: id, TableID: tableID, Name: name, Columns: columns, Kind: kind}
	ds.constraints[id] = def
	ds.constraintsByTable[tableID] = append(ds.constraintsByTable[tableID], id)
	ds.constraintNameToID[name] = id
	tx.recordUndo(func() {
		delete(ds.constraints, id)
		delete(ds.constraintNameToID, name)
		remaining := ds.constraintsByTable[tableID][:0]
		for _, existing := range ds.constraintsByTable[tableID] {
			if existing != id {
				remaining = append(remaining, existing)
			}
		}
		ds.constraintsByTable[tableID] = remaining
	})

	schema := stConstraintsSchema()
	val := sats.ProductVal(
		sats.U32Val(id), sats.U32Val(tableID), columnsToValue(columns), sats.StrVal(name), sats.U8Val(uint8(kind)),
	)
	row := make([]byte, mustFixedSize(schema.RowType))
	_ = sats.Encode(nil, sats.AlgebraicType{Kind: sats.KindProduct, Product: schema.RowType}, val, row)
	ds.rawInsertRow(TableIDStConstraints, row)
	tx.record(TableIDStConstraints, row, true)

	return id, nil
}

// DropConstraint removes a constraint and its st_constraints row.
func (ds *Locking) DropConstraint(tx *MutTx, constraintID uint32) error {
	cons, ok := ds.constraints[constraintID]
	if !ok {
		return notFoundf("constraint id %d", constraintID)
	}

	consSchema := stConstraintsSchema()
	_ = ds.tables[TableIDStConstraints].Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, sats.AlgebraicType{Kind: sats.KindProduct, Product: consSchema.RowType}, row)
		if err != nil {
			return err
		}
		if v.Product[0].U32 == constraintID {
			rowCopy := append([]byte(nil), row...)
			ds.rawDeleteRow(TableIDStConstraints, rowCopy)
			tx.record(TableIDStConstraints, rowCopy, false)
		}
		return nil
	})

	delete(ds.constraints, constraintID)
	delete(ds.constraintNameToID, cons.Name)
	remaining := ds.constraintsByTable[cons.TableID][:0]
	for _, id := range ds.constraintsByTable[cons.TableID] {
		if id != constraintID {
			remaining = append(remaining, id)
		}
	}
	ds.constraintsByTable[cons.TableID] = remaining

	tx.recordUndo(func() {
		ds.constraints[constraintID] = cons
		ds.constraintNameToID[cons.Name] = constraintID
		ds.constraintsByTable[cons.TableID] = append(ds.constraintsByTable[cons.TableID], constraintID)
	})
	return nil
}

func (ds *Locking) ConstraintIDFromName(name string) (uint32, error) {
	id, ok := ds.constraintNameToID[name]
	if !ok {
		return 0, notFoundf("constraint %q", name)
	}
	return id, nil
}
