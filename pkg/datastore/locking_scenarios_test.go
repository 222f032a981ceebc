package datastore

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/rdb/pkg/sats"
)

func newTestDS(t *testing.T) *Locking {
	t.Helper()
	ds, err := NewLocking()
	require.NoError(t, err)
	return ds
}

// Scenario 1: Empty-after-rollback.
func TestScenarioEmptyAfterRollback(t *testing.T) {
	ds := newTestDS(t)

	tx := ds.BeginTx()
	tableID, err := ds.CreateTable(tx, "MyTable", []ColumnDef{{Name: "my_col", Type: sats.I32()}})
	require.NoError(t, err)
	_, err = ds.FinishTx(tx, nil)
	require.NoError(t, err)

	tx = ds.BeginTx()
	for _, v := range []int32{-1, 0, 1} {
		_, err := ds.Insert(tx, tableID, sats.ProductVal(sats.I32Val(v)))
		require.NoError(t, err)
	}
	ds.RollbackTx(tx)

	tx = ds.BeginTx()
	var rows []sats.AlgebraicValue
	err = ds.Iter(tableID, func(v sats.AlgebraicValue) error {
		rows = append(rows, v)
		return nil
	})
	require.NoError(t, err)
	ds.RollbackTx(tx)

	assert.Empty(t, rows)
}

// DDL rollback atomicity: a table (plus an index and a sequence) created
// inside a transaction that then rolls back must disappear completely,
// including the Go-level catalog caches that sit beside st_table/st_indexes/
// st_sequences, not just the catalog rows themselves (spec.md section 4.5).
func TestScenarioDDLRollbackAtomicity(t *testing.T) {
	ds := newTestDS(t)

	tx := ds.BeginTx()
	tableID, err := ds.CreateTable(tx, "Ephemeral", []ColumnDef{{Name: "a", Type: sats.U64()}})
	require.NoError(t, err)
	indexID, err := ds.CreateIndex(tx, tableID, "ephemeral_idx", []int{0}, false)
	require.NoError(t, err)
	sequenceID, err := ds.CreateSequence(tx, tableID, 0, "ephemeral_seq", 1, 1)
	require.NoError(t, err)
	ds.RollbackTx(tx)

	_, err = ds.TableIDFromName("Ephemeral")
	require.Error(t, err)

	_, err = ds.IndexIDFromName("ephemeral_idx")
	require.Error(t, err)

	_, err = ds.SequenceIDFromName("ephemeral_seq")
	require.Error(t, err)

	assert.NotPanics(t, func() {
		err := ds.Iter(tableID, func(sats.AlgebraicValue) error { return nil })
		assert.Error(t, err)
	})
	assert.NotPanics(t, func() {
		tx := ds.BeginTx()
		_, err := ds.Insert(tx, tableID, sats.ProductVal(sats.U64Val(1)))
		ds.RollbackTx(tx)
		assert.Error(t, err)
	})
	assert.NotPanics(t, func() {
		tx := ds.BeginTx()
		_, err := ds.GetNextSequenceValue(tx, sequenceID)
		ds.RollbackTx(tx)
		assert.Error(t, err)
	})
	assert.NotPanics(t, func() {
		tx := ds.BeginTx()
		err := ds.DropIndex(tx, indexID)
		ds.RollbackTx(tx)
		assert.Error(t, err)
	})
}

// Scenario 2: Filter range post-commit.
func TestScenarioFilterRangePostCommit(t *testing.T) {
	ds := newTestDS(t)

	tx := ds.BeginTx()
	tableID, err := ds.CreateTable(tx, "MyTable", []ColumnDef{{Name: "my_col", Type: sats.I32()}})
	require.NoError(t, err)
	for _, v := range []int32{-1, 0, 1} {
		_, err := ds.Insert(tx, tableID, sats.ProductVal(sats.I32Val(v)))
		require.NoError(t, err)
	}
	_, err = ds.FinishTx(tx, nil)
	require.NoError(t, err)

	var got []int32
	err = ds.IterByColRange(tableID, 0, ColRange{Lo: sats.I32Val(0)}, func(v sats.AlgebraicValue) error {
		got = append(got, v.Product[0].I32)
		return nil
	})
	require.NoError(t, err)

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	assert.Equal(t, []int32{0, 1}, got)
}

// Scenario 3: Unique violation.
func TestScenarioUniqueViolation(t *testing.T) {
	ds := newTestDS(t)

	tx := ds.BeginTx()
	tableID, err := ds.CreateTable(tx, "MyTable", []ColumnDef{{Name: "my_col", Type: sats.I64()}})
	require.NoError(t, err)
	_, err = ds.CreateConstraint(tx, tableID, "my_col_unique", []int{0}, ConstraintUnique)
	require.NoError(t, err)
	_, err = ds.CreateIndex(tx, tableID, "my_col_idx", []int{0}, true)
	require.NoError(t, err)
	_, err = ds.FinishTx(tx, nil)
	require.NoError(t, err)

	tx = ds.BeginTx()
	_, err = ds.Insert(tx, tableID, sats.ProductVal(sats.I64Val(1)))
	require.NoError(t, err)
	_, err = ds.FinishTx(tx, nil)
	require.NoError(t, err)

	tx = ds.BeginTx()
	_, insertErr := ds.Insert(tx, tableID, sats.ProductVal(sats.I64Val(1)))
	ds.RollbackTx(tx)

	require.Error(t, insertErr)
	dsErr, ok := insertErr.(*Error)
	require.True(t, ok, "expected *datastore.Error, got %T", insertErr)
	assert.Equal(t, KindUniqueConstraintViolation, dsErr.Kind)
}

// Scenario 5: Cascade drop.
func TestScenarioCascadeDrop(t *testing.T) {
	ds := newTestDS(t)

	tx := ds.BeginTx()
	tableID, err := ds.CreateTable(tx, "MyTable", []ColumnDef{
		{Name: "a", Type: sats.U64()},
		{Name: "b", Type: sats.U64()},
		{Name: "c", Type: sats.U64()},
	})
	require.NoError(t, err)
	_, err = ds.CreateIndex(tx, tableID, "idx_a", []int{0}, false)
	require.NoError(t, err)
	_, err = ds.CreateIndex(tx, tableID, "idx_b", []int{1}, false)
	require.NoError(t, err)
	_, err = ds.CreateIndex(tx, tableID, "idx_c", []int{2}, false)
	require.NoError(t, err)
	_, err = ds.CreateSequence(tx, tableID, 0, "a_seq", 1, 1)
	require.NoError(t, err)
	_, err = ds.CreateConstraint(tx, tableID, "standalone_cons", []int{1}, ConstraintIndexed)
	require.NoError(t, err)
	_, err = ds.FinishTx(tx, nil)
	require.NoError(t, err)

	tx = ds.BeginTx()
	require.NoError(t, ds.DropTable(tx, tableID))
	_, err = ds.FinishTx(tx, nil)
	require.NoError(t, err)

	cols := []int{1} // table_id is column 1 in st_indexes/st_sequences/st_constraints
	value := []sats.AlgebraicValue{sats.U32Val(tableID)}
	for _, catalogID := range []uint32{TableIDStIndexes, TableIDStSequences, TableIDStConstraints} {
		n := 0
		err := ds.IterByColEq(catalogID, cols, value, func(sats.AlgebraicValue) error {
			n++
			return nil
		})
		require.NoError(t, err)
		assert.Zero(t, n, "catalog %d still has rows for dropped table %d", catalogID, tableID)
	}
}

// Scenario 6: Multi-column index.
func TestScenarioMultiColumnIndex(t *testing.T) {
	ds := newTestDS(t)

	tx := ds.BeginTx()
	tableID, err := ds.CreateTable(tx, "MyTable", []ColumnDef{
		{Name: "a", Type: sats.U64()},
		{Name: "b", Type: sats.U64()},
		{Name: "c", Type: sats.U64()},
	})
	require.NoError(t, err)
	_, err = ds.CreateIndex(tx, tableID, "idx_ab", []int{0, 1}, false)
	require.NoError(t, err)

	rows := [][3]uint64{{0, 0, 1}, {0, 1, 2}, {1, 2, 2}}
	for _, r := range rows {
		_, err := ds.Insert(tx, tableID, sats.ProductVal(sats.U64Val(r[0]), sats.U64Val(r[1]), sats.U64Val(r[2])))
		require.NoError(t, err)
	}
	_, err = ds.FinishTx(tx, nil)
	require.NoError(t, err)

	var got []sats.AlgebraicValue
	err = ds.IterByColEq(tableID, []int{0, 1}, []sats.AlgebraicValue{sats.U64Val(0), sats.U64Val(1)}, func(v sats.AlgebraicValue) error {
		got = append(got, v)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, uint64(0), got[0].Product[0].U64)
	assert.Equal(t, uint64(1), got[0].Product[1].U64)
	assert.Equal(t, uint64(2), got[0].Product[2].U64)
}
