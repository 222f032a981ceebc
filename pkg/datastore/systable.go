package datastore

import "github.com/cuemby/rdb/pkg/sats"

// Reserved low range of table ids for the five system catalogs
// (spec.md section 3.5). User tables are assigned ids starting at
// FirstUserTableID.
const (
	TableIDStTable       uint32 = 0
	TableIDStColumns     uint32 = 1
	TableIDStIndexes     uint32 = 2
	TableIDStSequences   uint32 = 3
	TableIDStConstraints uint32 = 4
	FirstUserTableID     uint32 = 5
)

func stTableSchema() *TableSchema {
	return &TableSchema{
		ID:   TableIDStTable,
		Name: "st_table",
		Columns: []ColumnDef{
			{Name: "table_id", Type: sats.U32()},
			{Name: "table_name", Type: sats.Str()},
		},
		RowType: sats.Product(
			sats.ProductElem{Name: "table_id", Ty: sats.U32()},
			sats.ProductElem{Name: "table_name", Ty: sats.Str()},
		),
	}
}

func stColumnsSchema() *TableSchema {
	return &TableSchema{
		ID:   TableIDStColumns,
		Name: "st_columns",
		Columns: []ColumnDef{
			{Name: "table_id", Type: sats.U32()},
			{Name: "col_pos", Type: sats.U32()},
			{Name: "col_name", Type: sats.Str()},
			{Name: "col_type", Type: sats.Str()},
		},
		RowType: sats.Product(
			sats.ProductElem{Name: "table_id", Ty: sats.U32()},
			sats.ProductElem{Name: "col_pos", Ty: sats.U32()},
			sats.ProductElem{Name: "col_name", Ty: sats.Str()},
			sats.ProductElem{Name: "col_type", Ty: sats.Str()},
		),
	}
}

// stIndexColumnsType is the array type used for st_indexes.columns and
// st_constraints.columns: up to (InlineBudget-4)/4 = 7 column positions,
// ample for the multi-column indexes spec.md section 8 scenario 6
// exercises.
var stIndexColumnsType = sats.ArrayOf(sats.U32())

func stIndexesSchema() *TableSchema {
	return &TableSchema{
		ID:   TableIDStIndexes,
		Name: "st_indexes",
		Columns: []ColumnDef{
			{Name: "index_id", Type: sats.U32()},
			{Name: "table_id", Type: sats.U32()},
			{Name: "columns", Type: stIndexColumnsType},
			{Name: "index_name", Type: sats.Str()},
			{Name: "is_unique", Type: sats.Bool()},
		},
		RowType: sats.Product(
			sats.ProductElem{Name: "index_id", Ty: sats.U32()},
			sats.ProductElem{Name: "table_id", Ty: sats.U32()},
			sats.ProductElem{Name: "columns", Ty: stIndexColumnsType},
			sats.ProductElem{Name: "index_name", Ty: sats.Str()},
			sats.ProductElem{Name: "is_unique", Ty: sats.Bool()},
		),
	}
}

func stSequencesSchema() *TableSchema {
	return &TableSchema{
		ID:   TableIDStSequences,
		Name: "st_sequences",
		Columns: []ColumnDef{
			{Name: "sequence_id", Type: sats.U32()},
			{Name: "table_id", Type: sats.U32()},
			{Name: "col_pos", Type: sats.U32()},
			{Name: "sequence_name", Type: sats.Str()},
			{Name: "start", Type: sats.I64()},
			{Name: "increment", Type: sats.I64()},
			{Name: "allocated", Type: sats.I64()},
		},
		RowType: sats.Product(
			sats.ProductElem{Name: "sequence_id", Ty: sats.U32()},
			sats.ProductElem{Name: "table_id", Ty: sats.U32()},
			sats.ProductElem{Name: "col_pos", Ty: sats.U32()},
			sats.ProductElem{Name: "sequence_name", Ty: sats.Str()},
			sats.ProductElem{Name: "start", Ty: sats.I64()},
			sats.ProductElem{Name: "increment", Ty: sats.I64()},
			sats.ProductElem{Name: "allocated", Ty: sats.I64()},
		),
	}
}

func stConstraintsSchema() *TableSchema {
	return &TableSchema{
		ID:   TableIDStConstraints,
		Name: "st_constraints",
		Columns: []ColumnDef{
			{Name: "constraint_id", Type: sats.U32()},
			{Name: "table_id", Type: sats.U32()},
			{Name: "columns", Type: stIndexColumnsType},
			{Name: "constraint_name", Type: sats.Str()},
			{Name: "kind", Type: sats.U8()},
		},
		RowType: sats.Product(
			sats.ProductElem{Name: "constraint_id", Ty: sats.U32()},
			sats.ProductElem{Name: "table_id", Ty: sats.U32()},
			sats.ProductElem{Name: "columns", Ty: stIndexColumnsType},
			sats.ProductElem{Name: "constraint_name", Ty: sats.Str()},
			sats.ProductElem{Name: "kind", Ty: sats.U8()},
		),
	}
}

func columnsToValue(cols []int) sats.AlgebraicValue {
	elems := make([]sats.AlgebraicValue, len(cols))
	for i, c := range cols {
		elems[i] = sats.U32Val(uint32(c))
	}
	return sats.ArrVal(elems...)
}

func valueToColumns(v sats.AlgebraicValue) []int {
	out := make([]int, len(v.Arr))
	for i, e := range v.Arr {
		out[i] = int(e.U32)
	}
	return out
}
