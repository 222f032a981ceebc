package flat

import (
	"testing"

	"github.com/cuemby/rdb/pkg/sats"
)

var u32Row = sats.Product(sats.ProductElem{Name: "v", Ty: sats.U32()})

func encodeU32(t *testing.T, v uint32) []byte {
	t.Helper()
	size, err := u32Row.FixedSizeOf(nil)
	if err != nil {
		t.Fatalf("FixedSizeOf: %v", err)
	}
	buf := make([]byte, size)
	if err := sats.Encode(nil, sats.AlgebraicType{Kind: sats.KindProduct, Product: u32Row}, sats.ProductVal(sats.U32Val(v)), buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf
}

func newU32Table(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(u32Row, nil)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func TestTableInsertDedupesContentIdentity(t *testing.T) {
	tbl := newU32Table(t)
	row := encodeU32(t, 42)

	off1, inserted1, err := tbl.Insert(row)
	if err != nil || !inserted1 {
		t.Fatalf("first insert: off=%v inserted=%v err=%v", off1, inserted1, err)
	}
	off2, inserted2, err := tbl.Insert(row)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted2 {
		t.Fatalf("duplicate row was inserted again")
	}
	if off2 != off1 {
		t.Fatalf("duplicate insert returned different offset: %v != %v", off2, off1)
	}
	if !tbl.Contains(HashRow(row), row) {
		t.Fatalf("table does not contain inserted row")
	}
}

func TestTableDeleteThenReinsertSucceeds(t *testing.T) {
	tbl := newU32Table(t)
	row := encodeU32(t, 7)

	off, _, err := tbl.Insert(row)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	hash := HashRow(row)
	ok, err := tbl.Delete(hash, off)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if tbl.Contains(hash, row) {
		t.Fatalf("row still present after delete")
	}

	_, inserted, err := tbl.Insert(row)
	if err != nil || !inserted {
		t.Fatalf("reinsert after delete: inserted=%v err=%v", inserted, err)
	}
}

func TestTableSwapRemoveFixesUpMovedRow(t *testing.T) {
	tbl := newU32Table(t)
	rowA := encodeU32(t, 1)
	rowB := encodeU32(t, 2)
	rowC := encodeU32(t, 3)

	offA, _, err := tbl.Insert(rowA)
	if err != nil {
		t.Fatalf("insert A: %v", err)
	}
	_, _, err = tbl.Insert(rowB)
	if err != nil {
		t.Fatalf("insert B: %v", err)
	}
	offC, _, err := tbl.Insert(rowC)
	if err != nil {
		t.Fatalf("insert C: %v", err)
	}

	// Deleting A swap-removes C (the tail of the working page) into A's
	// old slot; the offset map must be fixed up so C is still findable.
	ok, err := tbl.Delete(HashRow(rowA), offA)
	if err != nil || !ok {
		t.Fatalf("delete A: ok=%v err=%v", ok, err)
	}

	if !tbl.Contains(HashRow(rowC), rowC) {
		t.Fatalf("row C not found after the swap-remove that relocated it")
	}
	if tbl.Contains(HashRow(rowA), rowA) {
		t.Fatalf("deleted row A still present")
	}

	// C's old offset must no longer resolve to C.
	if found, ok := tbl.find(HashRow(rowC), rowC); !ok || found == offC {
		t.Fatalf("C's offset map entry was not repointed: found=%v ok=%v", found, ok)
	}
}

func TestTableDeleteLastRowNoFixupNeeded(t *testing.T) {
	tbl := newU32Table(t)
	row := encodeU32(t, 99)
	off, _, err := tbl.Insert(row)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Deleting the only (hence last) row: swap-remove copies the hole
	// over itself (movedFrom == offset), which Delete must special-case
	// rather than try to rehash dead bytes.
	ok, err := tbl.Delete(HashRow(row), off)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if tbl.Contains(HashRow(row), row) {
		t.Fatalf("row still present after deleting the only row")
	}
}

func TestTableRejectsWrongSizedRow(t *testing.T) {
	tbl := newU32Table(t)
	if _, _, err := tbl.Insert([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error inserting wrong-sized row")
	}
}

func TestPageRollsOverAtBoundary(t *testing.T) {
	p := NewPages()
	full := make([]byte, PageSize)
	if _, err := p.Append(full); err != nil {
		t.Fatalf("append full page: %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 page, got %d", p.Len())
	}
	off, err := p.Append([]byte{1})
	if err != nil {
		t.Fatalf("append overflow byte: %v", err)
	}
	if off.PageIndex != 1 {
		t.Fatalf("expected roll to page 1, got page %d", off.PageIndex)
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 pages after roll, got %d", p.Len())
	}
}

func TestPagesRejectsOversizeData(t *testing.T) {
	p := NewPages()
	if _, err := p.Append(make([]byte, PageSize+1)); err == nil {
		t.Fatalf("expected ErrDataWontFit")
	}
}

func TestOffsetMapColliderPromotionAndDemotion(t *testing.T) {
	m := NewOffsetMap()
	hash := RowHash(1)
	a := BufferOffset{PageIndex: 0, OffsetInPage: 0}
	b := BufferOffset{PageIndex: 0, OffsetInPage: 4}
	c := BufferOffset{PageIndex: 0, OffsetInPage: 8}

	m.Insert(hash, a)
	if got := m.OffsetsFor(hash); len(got) != 1 || got[0] != a {
		t.Fatalf("expected inline single offset, got %v", got)
	}

	m.Insert(hash, b) // promotes to collider slot
	got := m.OffsetsFor(hash)
	if len(got) != 2 {
		t.Fatalf("expected collider slot of 2, got %v", got)
	}

	m.Insert(hash, c)
	if len(m.OffsetsFor(hash)) != 3 {
		t.Fatalf("expected collider slot of 3")
	}

	if !m.Remove(hash, c) {
		t.Fatalf("remove c failed")
	}
	if len(m.OffsetsFor(hash)) != 2 {
		t.Fatalf("expected 2 remaining after removing c")
	}

	if !m.Remove(hash, b) {
		t.Fatalf("remove b failed")
	}
	// Demoted back to inline: exactly one offset (a) remains, and the
	// freed slot must be available for reuse.
	got = m.OffsetsFor(hash)
	if len(got) != 1 || got[0] != a {
		t.Fatalf("expected demotion to inline [a], got %v", got)
	}
	if len(m.emptied) != 1 {
		t.Fatalf("expected the one collider slot freed by the demote-to-1 to be tracked in emptied, got %d", len(m.emptied))
	}

	if !m.Remove(hash, a) {
		t.Fatalf("remove a failed")
	}
	if got := m.OffsetsFor(hash); got != nil {
		t.Fatalf("expected no entry left, got %v", got)
	}
}

func TestOffsetMapSlotReuse(t *testing.T) {
	m := NewOffsetMap()
	h1, h2 := RowHash(1), RowHash(2)
	o1a := BufferOffset{OffsetInPage: 0}
	o1b := BufferOffset{OffsetInPage: 4}
	o2a := BufferOffset{OffsetInPage: 8}
	o2b := BufferOffset{OffsetInPage: 12}

	m.Insert(h1, o1a)
	m.Insert(h1, o1b) // slot 0 created
	m.Remove(h1, o1b) // demotes, frees slot 0

	m.Insert(h2, o2a)
	m.Insert(h2, o2b) // should reuse slot 0 rather than growing colliders
	if len(m.colliders) != 1 {
		t.Fatalf("expected collider slot to be reused, have %d slots", len(m.colliders))
	}
	if got := m.OffsetsFor(h2); len(got) != 2 {
		t.Fatalf("expected h2 to have 2 offsets, got %v", got)
	}
}
