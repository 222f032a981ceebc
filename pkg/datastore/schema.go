package datastore

import "github.com/cuemby/rdb/pkg/sats"

// ColumnDef is one column of a user table.
type ColumnDef struct {
	Name string
	Type sats.AlgebraicType
}

// ConstraintKind enumerates the constraint kinds of spec.md section 4.5.
type ConstraintKind int

const (
	ConstraintUnique ConstraintKind = iota
	ConstraintIndexed
	ConstraintPrimaryKey
	ConstraintPrimaryKeyAuto
)

// IndexDef describes one secondary index.
type IndexDef struct {
	ID       uint32
	TableID  uint32
	Name     string
	Columns  []int // positions into the table's ColumnDef slice, in index order
	IsUnique bool
}

// SequenceDef describes one sequence bound to a single column.
type SequenceDef struct {
	ID        uint32
	TableID   uint32
	ColPos    int
	Name      string
	Start     int64
	Increment int64
	Allocated int64 // persisted high-water mark; see Sequence.Next
}

// ConstraintDef describes one constraint.
type ConstraintDef struct {
	ID      uint32
	TableID uint32
	Name    string
	Columns []int
	Kind    ConstraintKind
}

// TableSchema is the full, in-memory schema of one user or system table.
type TableSchema struct {
	ID      uint32
	Name    string
	Columns []ColumnDef
	RowType sats.ProductType
}

// RowIdentity names a single row for delete, either by its full encoded
// row bytes (PhysicalRow, selected by HasPhysical; Delete hashes them to
// find the row) or by the value of a table's primary key column
// (PrimaryKeyVal, selected by HasPrimaryKey, which wins when both are
// set; Delete resolves it through the primary key index). A
// (RowHash, BufferOffset) pair is not accepted as an identity. It is the
// one identity type of the single delete entry point; there is no
// separate delete_pk path.
type RowIdentity struct {
	HasPrimaryKey bool
	PrimaryKeyCol int
	PrimaryKeyVal sats.AlgebraicValue
	HasPhysical   bool
	PhysicalRow   []byte
}
