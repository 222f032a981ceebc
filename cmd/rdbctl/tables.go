package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cuemby/rdb/pkg/datastore"
	"github.com/cuemby/rdb/pkg/rdb"
	"github.com/cuemby/rdb/pkg/sats"
)

var tablesCmd = &cobra.Command{
	Use:   "tables DIR",
	Short: "List every table in a database directory, with row counts",
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

		type row struct {
			id    uint32
			name  string
			count int
		}
		var rows []row
		for id, name := range names {
			count, err := store.RowCount(id)
			if err != nil {
				return err
			}
			rows = append(rows, row{id: id, name: name, count: count})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })

		fmt.Printf("%-8s %-24s %s\n", "ID", "NAME", "ROWS")
		for _, r := range rows {
			fmt.Printf("%-8d %-24s %d\n", r.id, r.name, r.count)
		}
		return nil
	},
}

// listTableNames returns every table id -> name pair, system and user
// tables alike: the system catalogs from the datastore's schemas, the
// user tables by scanning st_table directly.
func listTableNames(store *datastore.Locking) (map[uint32]string, error) {
	names := make(map[uint32]string)
	for id := datastore.TableIDStTable; id < datastore.FirstUserTableID; id++ {
		if name, err := store.TableNameFromID(id); err == nil {
			names[id] = name
		}
	}
	err := store.Iter(datastore.TableIDStTable, func(v sats.AlgebraicValue) error {
		names[v.Product[0].U32] = v.Product[1].Str
		return nil
	})
	return names, err
}
