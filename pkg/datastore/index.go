package datastore

import (
	"github.com/google/btree"

	"github.com/cuemby/rdb/pkg/flat"
	"github.com/cuemby/rdb/pkg/sats"
)

// indexEntry is one B-tree item: the indexed columns' values (in index
// column order) plus the row's physical offset as a tiebreaker, so that
// a non-unique index can hold many rows sharing the same key without
// btree.ReplaceOrInsert treating them as the same item.
type indexEntry struct {
	ts      sats.Typespace
	colType []sats.AlgebraicType
	key     []sats.AlgebraicValue
	offset  flat.BufferOffset
}

func (e *indexEntry) less(other *indexEntry) bool {
	for i := range e.key {
		c := sats.Compare(e.ts, e.colType[i], e.key[i], other.key[i])
		if c != 0 {
			return c < 0
		}
	}
	if e.offset.PageIndex != other.offset.PageIndex {
		return e.offset.PageIndex < other.offset.PageIndex
	}
	return e.offset.OffsetInPage < other.offset.OffsetInPage
}

// secondaryIndex is a B-tree secondary index over one or more columns of
// a user table, ordered by sats.Compare's total order (spec.md section
// 4.5).
type secondaryIndex struct {
	def     IndexDef
	ts      sats.Typespace
	colType []sats.AlgebraicType
	tree    *btree.BTreeG[*indexEntry]
}

func newSecondaryIndex(def IndexDef, ts sats.Typespace, colType []sats.AlgebraicType) *secondaryIndex {
	idx := &secondaryIndex{def: def, ts: ts, colType: colType}
	idx.tree = btree.NewG[*indexEntry](32, func(a, b *indexEntry) bool { return a.less(b) })
	return idx
}

func (idx *secondaryIndex) entry(key []sats.AlgebraicValue, offset flat.BufferOffset) *indexEntry {
	return &indexEntry{ts: idx.ts, colType: idx.colType, key: key, offset: offset}
}

// probe looks up the first entry whose key equals key, reporting its
// offset and whether one was found. Callers use this read-only check
// ahead of an insert into a unique index to reject the write with
// UniqueConstraintViolation before ever touching the table.
func (idx *secondaryIndex) probe(key []sats.AlgebraicValue) (flat.BufferOffset, bool) {
	var found flat.BufferOffset
	ok := false
	probe := idx.entry(key, flat.BufferOffset{})
	idx.tree.AscendGreaterOrEqual(probe, func(item *indexEntry) bool {
		if !sameKey(idx, item.key, key) {
			return false
		}
		found = item.offset
		ok = true
		return false
	})
	return found, ok
}

func sameKey(idx *secondaryIndex, a, b []sats.AlgebraicValue) bool {
	for i := range a {
		if sats.Compare(idx.ts, idx.colType[i], a[i], b[i]) != 0 {
			return false
		}
	}
	return true
}

func (idx *secondaryIndex) insert(key []sats.AlgebraicValue, offset flat.BufferOffset) {
	idx.tree.ReplaceOrInsert(idx.entry(key, offset))
}

func (idx *secondaryIndex) remove(key []sats.AlgebraicValue, offset flat.BufferOffset) {
	idx.tree.Delete(idx.entry(key, offset))
}

// scanEq calls fn with the offset of every entry whose key equals key,
// in ascending offset order, stopping early if fn returns false.
func (idx *secondaryIndex) scanEq(key []sats.AlgebraicValue, fn func(flat.BufferOffset) bool) {
	probe := idx.entry(key, flat.BufferOffset{})
	idx.tree.AscendGreaterOrEqual(probe, func(item *indexEntry) bool {
		if !sameKey(idx, item.key, key) {
			return false
		}
		return fn(item.offset)
	})
}

// scanRange calls fn with the offset of every entry whose single-column
// key is >= lo, in ascending key order, stopping early if fn returns
// false. It has no upper bound of its own: callers end the scan from fn.
func (idx *secondaryIndex) scanRange(lo []sats.AlgebraicValue, fn func(flat.BufferOffset) bool) {
	probe := idx.entry(lo, flat.BufferOffset{})
	idx.tree.AscendGreaterOrEqual(probe, func(item *indexEntry) bool {
		return fn(item.offset)
	})
}
