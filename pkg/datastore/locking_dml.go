package datastore

import (
	"fmt"

	"github.com/cuemby/rdb/pkg/flat"
	"github.com/cuemby/rdb/pkg/metrics"
	"github.com/cuemby/rdb/pkg/sats"
)

// Insert encodes row against tableID's schema and inserts it, after
// substituting any IDENTITY (PRIMARY_KEY_AUTO) column whose supplied
// value is the numeric zero with a freshly allocated sequence value,
// and probing every UNIQUE-backed index for a colliding key.
func (ds *Locking) Insert(tx *MutTx, tableID uint32, row sats.AlgebraicValue) (sats.AlgebraicValue, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.InsertDuration, fmt.Sprint(tableID))

	schema, ok := ds.schemas[tableID]
	if !ok {
		return row, notFoundf("table id %d", tableID)
	}

	row, err := ds.applyIdentity(tx, tableID, row)
	if err != nil {
		return row, err
	}

	for _, consID := range ds.constraintsByTable[tableID] {
		cons := ds.constraints[consID]
		if cons.Kind != ConstraintUnique && cons.Kind != ConstraintPrimaryKey && cons.Kind != ConstraintPrimaryKeyAuto {
			continue
		}
		idx := ds.indexCoveringExactly(tableID, cons.Columns)
		if idx == nil {
			continue
		}
		key := indexKeyOf(idx, row)
		if _, exists := idx.probe(key); exists {
			return row, uniqueViolation(cons.Name, formatKey(key))
		}
	}

	encoded := make([]byte, mustFixedSize(schema.RowType))
	ty := sats.AlgebraicType{Kind: sats.KindProduct, Product: schema.RowType}
	if err := sats.Encode(nil, ty, row, encoded); err != nil {
		return row, typeErrorf("insert into %q: %v", schema.Name, err)
	}

	t := ds.tables[tableID]
	hash := flat.HashRow(encoded)
	if t.Contains(hash, encoded) {
		return row, nil
	}

	ds.rawInsertRow(tableID, encoded)
	tx.record(tableID, encoded, true)
	return row, nil
}

func formatKey(key []sats.AlgebraicValue) string {
	return fmt.Sprintf("%v", key)
}

// applyIdentity substitutes the numeric-zero placeholder in an IDENTITY
// column with the table's bound sequence's next value (spec.md section
// 8, "value supplied 0 -> becomes 1").
func (ds *Locking) applyIdentity(tx *MutTx, tableID uint32, row sats.AlgebraicValue) (sats.AlgebraicValue, error) {
	for _, consID := range ds.constraintsByTable[tableID] {
		cons := ds.constraints[consID]
		if cons.Kind != ConstraintPrimaryKeyAuto || len(cons.Columns) != 1 {
			continue
		}
		col := cons.Columns[0]
		if !isNumericZero(row.Product[col]) {
			continue
		}
		var seqID uint32
		found := false
		for _, sid := range ds.sequencesByTable[tableID] {
			if ds.sequences[sid].def.ColPos == col {
				seqID = sid
				found = true
				break
			}
		}
		if !found {
			continue
		}
		next, err := ds.GetNextSequenceValue(tx, seqID)
		if err != nil {
			return row, err
		}
		row.Product[col] = setNumeric(row.Product[col], next)
	}
	return row, nil
}

func isNumericZero(v sats.AlgebraicValue) bool {
	switch v.Kind {
	case sats.KindI8:
		return v.I8 == 0
	case sats.KindI16:
		return v.I16 == 0
	case sats.KindI32:
		return v.I32 == 0
	case sats.KindI64:
		return v.I64 == 0
	case sats.KindU8:
		return v.U8 == 0
	case sats.KindU16:
		return v.U16 == 0
	case sats.KindU32:
		return v.U32 == 0
	case sats.KindU64:
		return v.U64 == 0
	default:
		return false
	}
}

func setNumeric(v sats.AlgebraicValue, n int64) sats.AlgebraicValue {
	switch v.Kind {
	case sats.KindI8:
		v.I8 = int8(n)
	case sats.KindI16:
		v.I16 = int16(n)
	case sats.KindI32:
		v.I32 = int32(n)
	case sats.KindI64:
		v.I64 = n
	case sats.KindU8:
		v.U8 = uint8(n)
	case sats.KindU16:
		v.U16 = uint16(n)
	case sats.KindU32:
		v.U32 = uint32(n)
	case sats.KindU64:
		v.U64 = uint64(n)
	}
	return v
}

// Delete removes one row from tableID identified by id: either its
// primary key value (resolved through that table's PRIMARY_KEY index)
// or its full physical row bytes (content-addressed delete). This is
// the single delete_by_rel entry point spec.md section 9's Open
// Question asks for.
func (ds *Locking) Delete(tx *MutTx, tableID uint32, id RowIdentity) (bool, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.DeleteByRelDuration, fmt.Sprint(tableID))

	t, ok := ds.tables[tableID]
	if !ok {
		return false, notFoundf("table id %d", tableID)
	}

	var row []byte
	if id.HasPrimaryKey {
		idx := ds.primaryKeyIndex(tableID)
		if idx == nil {
			return false, notFoundf("table id %d has no primary key index", tableID)
		}
		off, exists := idx.probe([]sats.AlgebraicValue{id.PrimaryKeyVal})
		if !exists {
			return false, nil
		}
		row = append([]byte(nil), t.RowAt(off)...)
	} else if id.HasPhysical {
		row = id.PhysicalRow
	} else {
		return false, typeErrorf("RowIdentity has neither a primary key value nor physical row bytes")
	}

	hash := flat.HashRow(row)
	if !t.Contains(hash, row) {
		return false, nil
	}
	ds.rawDeleteRow(tableID, row)
	tx.record(tableID, row, false)
	return true, nil
}

func (ds *Locking) primaryKeyIndex(tableID uint32) *secondaryIndex {
	for _, consID := range ds.constraintsByTable[tableID] {
		cons := ds.constraints[consID]
		if cons.Kind == ConstraintPrimaryKey || cons.Kind == ConstraintPrimaryKeyAuto {
			return ds.indexCoveringExactly(tableID, cons.Columns)
		}
	}
	return nil
}

// ClearTable deletes every row of tableID, via the same Delete path
// used for a single row (spec.md section 9's Open Question: no
// materialize-then-delete-by-offset path is preserved).
func (ds *Locking) ClearTable(tx *MutTx, tableID uint32) error {
	t, ok := ds.tables[tableID]
	if !ok {
		return notFoundf("table id %d", tableID)
	}
	var rows [][]byte
	_ = t.Iterate(func(row []byte) error {
		rows = append(rows, append([]byte(nil), row...))
		return nil
	})
	for _, row := range rows {
		if _, err := ds.Delete(tx, tableID, RowIdentity{HasPhysical: true, PhysicalRow: row}); err != nil {
			return err
		}
	}
	return nil
}

// Iter calls fn with every live row of tableID, decoded against its
// schema.
func (ds *Locking) Iter(tableID uint32, fn func(sats.AlgebraicValue) error) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.IterDuration, fmt.Sprint(tableID))

	schema, ok := ds.schemas[tableID]
	if !ok {
		return notFoundf("table id %d", tableID)
	}
	ty := sats.AlgebraicType{Kind: sats.KindProduct, Product: schema.RowType}
	return ds.tables[tableID].Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, ty, row)
		if err != nil {
			return typeErrorf("decode row of %q: %v", schema.Name, err)
		}
		return fn(v)
	})
}

// IterByColEq calls fn with every row of tableID whose columns (in the
// given order) equal value, preferring a covering index when one
// exists on exactly cols, falling back to a full scan otherwise
// (spec.md section 4.5).
func (ds *Locking) IterByColEq(tableID uint32, cols []int, value []sats.AlgebraicValue, fn func(sats.AlgebraicValue) error) error {
	schema, ok := ds.schemas[tableID]
	if !ok {
		return notFoundf("table id %d", tableID)
	}
	ty := sats.AlgebraicType{Kind: sats.KindProduct, Product: schema.RowType}
	t := ds.tables[tableID]

	if idx := ds.indexCoveringExactly(tableID, cols); idx != nil {
		var ferr error
		idx.scanEq(value, func(off flat.BufferOffset) bool {
			v, err := sats.Decode(nil, ty, t.RowAt(off))
			if err != nil {
				ferr = err
				return false
			}
			if err := fn(v); err != nil {
				ferr = err
				return false
			}
			return true
		})
		return ferr
	}

	return t.Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, ty, row)
		if err != nil {
			return err
		}
		for i, c := range cols {
			if sats.Compare(nil, schema.Columns[c].Type, v.Product[c], value[i]) != 0 {
				return nil
			}
		}
		return fn(v)
	})
}

// ColRange is a half-open-or-unbounded range on a single column's total
// order: [Lo, Hi) when HasHi, [Lo, +inf) otherwise.
type ColRange struct {
	Lo    sats.AlgebraicValue
	Hi    sats.AlgebraicValue
	HasHi bool
}

// IterByColRange calls fn with every row of tableID whose single
// column col falls within r, preferring a covering single-column index,
// falling back to a full scan otherwise.
func (ds *Locking) IterByColRange(tableID uint32, col int, r ColRange, fn func(sats.AlgebraicValue) error) error {
	schema, ok := ds.schemas[tableID]
	if !ok {
		return notFoundf("table id %d", tableID)
	}
	ty := sats.AlgebraicType{Kind: sats.KindProduct, Product: schema.RowType}
	t := ds.tables[tableID]
	colType := schema.Columns[col].Type

	inRange := func(v sats.AlgebraicValue) bool {
		if sats.Compare(nil, colType, v, r.Lo) < 0 {
			return false
		}
		if r.HasHi && sats.Compare(nil, colType, v, r.Hi) >= 0 {
			return false
		}
		return true
	}

	if idx := ds.indexCoveringExactly(tableID, []int{col}); idx != nil {
		var ferr error
		idx.scanRange([]sats.AlgebraicValue{r.Lo}, func(off flat.BufferOffset) bool {
			v, err := sats.Decode(nil, ty, t.RowAt(off))
			if err != nil {
				ferr = err
				return false
			}
			if r.HasHi && sats.Compare(nil, colType, v.Product[col], r.Hi) >= 0 {
				return false
			}
			if err := fn(v); err != nil {
				ferr = err
				return false
			}
			return true
		})
		return ferr
	}

	return t.Iterate(func(row []byte) error {
		v, err := sats.Decode(nil, ty, row)
		if err != nil {
			return err
		}
		if !inRange(v.Product[col]) {
			return nil
		}
		return fn(v)
	})
}

// RowCount returns the number of live rows in tableID, for inspection
// tools (e.g. cmd/rdbctl) that don't need the rows themselves.
func (ds *Locking) RowCount(tableID uint32) (int, error) {
	t, ok := ds.tables[tableID]
	if !ok {
		return 0, notFoundf("table id %d", tableID)
	}
	return t.RowCount(), nil
}

// ProgramHash returns the last hash set by SetProgramHash, or nil if
// none has been set.
func (ds *Locking) ProgramHash() []byte { return ds.programHash }

// SetProgramHash records the hash of the module/program bound to this
// database, for callers that version the schema against application
// code (spec.md section 4.5).
func (ds *Locking) SetProgramHash(hash []byte) { ds.programHash = hash }
