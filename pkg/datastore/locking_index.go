package datastore

import (
	"github.com/cuemby/rdb/pkg/flat"
	"github.com/cuemby/rdb/pkg/sats"
)

// CreateIndex creates a secondary B-tree index over columns of tableID,
// backfilling it from any rows already present.
func (ds *Locking) CreateIndex(tx *MutTx, tableID uint32, name string, columns []int, unique bool) (uint32, error) {
	schema, ok := ds.schemas[tableID]
	if !ok {
		return 0, notFoundf("table id %d", tableID)
	}
	if _, exists := ds.indexNameToID[name]; exists {
		return 0, duplicatef("index %q already exists", name)
	}

	colType := make([]sats.AlgebraicType, len(columns))
	for i, c := range columns {
		colType[i] = schema.Columns[c].Type
	}

	id := ds.nextIndexID
	ds.nextIndexID++
	def := IndexDef{ID: id, TableID: tableID, Name: name, Columns: columns, IsUnique: unique}
	idx := newSecondaryIndex(def, nil, colType)

	backfillErr := ds.tables[tableID].Iterate(func(row []byte) error {
		val, err := sats.Decode(nil, sats.AlgebraicType{Kind: sats.KindProduct, Product: schema.RowType}, row)
		if err != nil {
			return err
		}
		hash := flat.HashRow(row)
		off, ok := ds.tables[tableID].Locate(hash, row)
		if !ok {
			return nil
		}
		key := indexKeyOf(idx, val)
		if unique {
			if _, exists := idx.probe(key); exists {
				return uniqueViolation(name, "")
			}
		}
		idx.insert(key, off)
		return nil
	})
	if backfillErr != nil {
		if e, ok := backfillErr.(*Error); ok {
			return 0, e
		}
		return 0, typeErrorf("create index %q: %v", name, backfillErr)
	}

	ds.indexes[id] = idx
	ds.indexesByTable[tableID] = append(ds.indexesByTable[tableID], id)
	ds.indexNameToID[name] = id
	tx.recordUndo(func() {
		delete(ds.indexes, id)
		delete(ds.indexNameToID, name)
		remaining := ds.indexesByTable[tableID][:0]
		for _, existing := range ds.indexesByTable[tableID] {
			if existing != id {
				remaining = append(remaining, existing)
			}
		}
		ds.indexesByTable[tableID] = remaining
	})

	ds.insertCatalogRow(tx, TableIDStIndexes, stIndexesSchema(), sats.ProductVal(
		sats.U32Val(id), sats.U32Val(tableID), columnsToValue(columns), sats.StrVal(name), sats.BoolVal(unique),
	))

	return id, nil
}

// DropIndex removes a secondary index and its st_indexes row.
func (ds *Locking) DropIndex(tx *MutTx, indexID uint32) error {
	idx, ok := ds.indexes[indexID]
	if !ok {
		return notFoundf("index id %d", indexID)
	}

	idxSchema := stIndexesSchema()
	_ = ds.tables[TableIDStIndexes].Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, sats.AlgebraicType{Kind: sats.KindProduct, Product: idxSchema.RowType}, row)
		if err != nil {
			return err
		}
		if v.Product[0].U32 == indexID {
			rowCopy := append([]byte(nil), row...)
			ds.rawDeleteRow(TableIDStIndexes, rowCopy)
			tx.record(TableIDStIndexes, rowCopy, false)
		}
		return nil
	})

	delete(ds.indexes, indexID)
	delete(ds.indexNameToID, idx.def.Name)
	remaining := ds.indexesByTable[idx.def.TableID][:0]
	for _, id := range ds.indexesByTable[idx.def.TableID] {
		if id != indexID {
			remaining = append(remaining, id)
		}
	}
	ds.indexesByTable[idx.def.TableID] = remaining

	tx.recordUndo(func() {
		ds.indexes[indexID] = idx
		ds.indexNameToID[idx.def.Name] = indexID
		ds.indexesByTable[idx.def.TableID] = append(ds.indexesByTable[idx.def.TableID], indexID)
	})
	return nil
}

func (ds *Locking) IndexIDFromName(name string) (uint32, error) {
	id, ok := ds.indexNameToID[name]
	if !ok {
		return 0, notFoundf("index %q", name)
	}
	return id, nil
}

// indexCoveringExactly returns the index on tableID whose columns equal
// cols exactly (order-sensitive), if any.
func (ds *Locking) indexCoveringExactly(tableID uint32, cols []int) *secondaryIndex {
	for _, id := range ds.indexesByTable[tableID] {
		idx := ds.indexes[id]
		if len(idx.def.Columns) != len(cols) {
			continue
		}
		match := true
		for i := range cols {
			if idx.def.Columns[i] != cols[i] {
				match = false
				break
			}
		}
		if match {
			return idx
		}
	}
	return nil
}
