package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/rdb/pkg/datastore"
	"github.com/cuemby/rdb/pkg/rdb"
)

var statCmd = &cobra.Command{
	Use:   "stat DIR",
	Short: "Print summary counts for a database directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := rdb.Open(rdb.Options{Storage: rdb.Disk, Dir: args[0]})
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer db.Close()

		store := db.Store()
		names, err := listTableNames(store)
		if err != nil {
			return err
		}

		userTables := 0
		totalRows := 0
		for id := range names {
			if id >= datastore.FirstUserTableID {
				userTables++
			}
			n, err := store.RowCount(id)
			if err != nil {
				return err
			}
			totalRows += n
		}

		indexCount, _ := store.RowCount(datastore.TableIDStIndexes)
		sequenceCount, _ := store.RowCount(datastore.TableIDStSequences)
		constraintCount, _ := store.RowCount(datastore.TableIDStConstraints)

		fmt.Printf("User tables:  %d\n", userTables)
		fmt.Printf("Total rows:   %d\n", totalRows)
		fmt.Printf("Indexes:      %d\n", indexCount)
		fmt.Printf("Sequences:    %d\n", sequenceCount)
		fmt.Printf("Constraints:  %d\n", constraintCount)
		if segments, err := db.SegmentCount(); err == nil {
			fmt.Printf("Log segments: %d\n", segments)
		}
		return nil
	},
}
