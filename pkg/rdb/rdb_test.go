package rdb

import (
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/rdb/pkg/datastore"
	"github.com/cuemby/rdb/pkg/sats"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "rdb-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// Scenario 4: Auto-sequence reload.
func TestScenarioAutoSequenceReload(t *testing.T) {
	dir := tempDir(t)

	db, err := Open(Options{Storage: Disk, Dir: dir, Fsync: EveryTx})
	require.NoError(t, err)

	var tableID uint32
	err = db.WithAutoCommit(func(tx *Tx) error {
		id, err := db.Store().CreateTable(tx.Raw(), "MyTable", []datastore.ColumnDef{{Name: "my_col", Type: sats.I64()}})
		if err != nil {
			return err
		}
		tableID = id
		if _, err := db.Store().CreateConstraint(tx.Raw(), tableID, "my_col_identity", []int{0}, datastore.ConstraintPrimaryKeyAuto); err != nil {
			return err
		}
		if _, err := db.Store().CreateIndex(tx.Raw(), tableID, "my_col_idx", []int{0}, true); err != nil {
			return err
		}
		if _, err := db.Store().CreateSequence(tx.Raw(), tableID, 0, "my_col_seq", 1, 1); err != nil {
			return err
		}
		_, err = db.Store().Insert(tx.Raw(), tableID, sats.ProductVal(sats.I64Val(0)))
		return err
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db2, err := Open(Options{Storage: Disk, Dir: dir, Fsync: EveryTx})
	require.NoError(t, err)
	defer db2.Close()

	tableID2, err := db2.Store().TableIDFromName("MyTable")
	require.NoError(t, err)

	err = db2.WithAutoCommit(func(tx *Tx) error {
		_, err := db2.Store().Insert(tx.Raw(), tableID2, sats.ProductVal(sats.I64Val(0)))
		return err
	})
	require.NoError(t, err)

	var values []int64
	err = db2.Store().Iter(tableID2, func(v sats.AlgebraicValue) error {
		values = append(values, v.Product[0].I64)
		return nil
	})
	require.NoError(t, err)
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	require.Equal(t, []int64{1, 4098}, values)
}

// Scenario 7: Reopen conflict.
func TestScenarioReopenConflict(t *testing.T) {
	dir := tempDir(t)

	db, err := Open(Options{Storage: Disk, Dir: dir})
	require.NoError(t, err)
	defer db.Close()

	_, err = Open(Options{Storage: Disk, Dir: dir})
	require.Error(t, err)
	dsErr, ok := err.(*datastore.Error)
	require.True(t, ok, "expected *datastore.Error, got %T", err)
	require.Equal(t, datastore.KindDatabaseOpened, dsErr.Kind)
}
