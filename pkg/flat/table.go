package flat

import (
	"github.com/pkg/errors"

	"github.com/cuemby/rdb/pkg/sats"
)

// ErrRowTooLarge is returned when a row's fixed encoding does not match
// the table's declared fixed row size.
var ErrRowTooLarge = errors.New("flat: row size does not match table's fixed row size")

// Table is a content-addressed, deduplicating container of fixed-size
// rows: two byte-identical rows never coexist. Row identity is the pair
// (RowHash, byte equality); callers that need a stable identity across
// mutation must keep their own primary key, since a swap-remove moves the
// last row of the working page into the deleted row's slot, changing
// that row's BufferOffset (spec.md section 4.3).
type Table struct {
	rowType      sats.ProductType
	ts           sats.Typespace
	fixedRowSize int
	pages        *Pages
	offsets      *OffsetMap
}

// NewTable returns an empty Table for rows of rowType, resolved against
// ts for size computation.
func NewTable(rowType sats.ProductType, ts sats.Typespace) (*Table, error) {
	size, err := rowType.FixedSizeOf(ts)
	if err != nil {
		return nil, errors.Wrap(err, "flat: compute fixed row size")
	}
	return &Table{
		rowType:      rowType,
		ts:           ts,
		fixedRowSize: size,
		pages:        NewPages(),
		offsets:      NewOffsetMap(),
	}, nil
}

// FixedRowSize returns the byte length every row in this table occupies.
func (t *Table) FixedRowSize() int { return t.fixedRowSize }

// Contains reports whether row (already encoded) is present, comparing
// byte-for-byte against every candidate sharing row's RowHash.
func (t *Table) Contains(hash RowHash, row []byte) bool {
	_, ok := t.find(hash, row)
	return ok
}

// Locate returns the BufferOffset of row (already encoded) if present.
// It is the public counterpart of find, for callers (pkg/datastore)
// that need the offset to pass to Delete.
func (t *Table) Locate(hash RowHash, row []byte) (BufferOffset, bool) {
	return t.find(hash, row)
}

// RowAt returns the fixedRowSize bytes stored at offset.
func (t *Table) RowAt(offset BufferOffset) []byte {
	return t.pages.Slice(offset, t.fixedRowSize)
}

// Iterate calls fn with every live row's bytes, in storage order. fn
// must not retain the slice past its call.
func (t *Table) Iterate(fn func(row []byte) error) error {
	for page := 0; page <= t.pages.curr && page < len(t.pages.pages); page++ {
		p := t.pages.pages[page]
		for off := 0; off+t.fixedRowSize <= p.UsedBytes(); off += t.fixedRowSize {
			if err := fn(p.buf[off : off+t.fixedRowSize]); err != nil {
				return err
			}
		}
	}
	return nil
}

// RowCount returns the number of live rows in the table.
func (t *Table) RowCount() int {
	n := 0
	_ = t.Iterate(func(row []byte) error { n++; return nil })
	return n
}

func (t *Table) find(hash RowHash, row []byte) (BufferOffset, bool) {
	for _, off := range t.offsets.OffsetsFor(hash) {
		if candidateEq(t.pages.Slice(off, len(row)), row) {
			return off, true
		}
	}
	return BufferOffset{}, false
}

func candidateEq(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Insert adds row if no byte-identical row is already present. It
// returns the row's BufferOffset and true on insertion, or the existing
// row's offset and false if row was already present (spec.md section
// 4.3, "insert is a no-op for an already-present row").
func (t *Table) Insert(row []byte) (BufferOffset, bool, error) {
	if len(row) != t.fixedRowSize {
		return BufferOffset{}, false, ErrRowTooLarge
	}
	hash := HashRow(row)
	if existing, ok := t.find(hash, row); ok {
		return existing, false, nil
	}
	off, err := t.pages.Append(row)
	if err != nil {
		return BufferOffset{}, false, errors.Wrap(err, "flat: append row")
	}
	t.offsets.Insert(hash, off)
	return off, true, nil
}

// Delete removes the row at offset (with content hash), swap-remove
// compacting its page. If that compaction relocated a different live
// row, Delete rehashes the bytes now sitting at offset and repoints the
// OffsetMap entry for that row from its old location to offset. Returns
// whether a row was actually removed.
func (t *Table) Delete(hash RowHash, offset BufferOffset) (bool, error) {
	if !t.offsets.Remove(hash, offset) {
		return false, nil
	}

	movedFrom, moved := t.pages.SwapRemove(offset, t.fixedRowSize)
	if !moved {
		return true, nil
	}
	if movedFrom == offset {
		// The removed row was already the last row of the working page:
		// swap-remove copied the hole over itself. Nothing to fix up.
		return true, nil
	}

	relocated := t.pages.Slice(offset, t.fixedRowSize)
	relocatedHash := HashRow(relocated)
	if !t.offsets.Remove(relocatedHash, movedFrom) {
		return true, errors.Errorf("flat: moved row at %+v not found in offset map under hash %d", movedFrom, relocatedHash)
	}
	t.offsets.Insert(relocatedHash, offset)
	return true, nil
}

// ShrinkToFit releases trailing empty pages.
func (t *Table) ShrinkToFit() { t.pages.ShrinkToFit() }

// PageCount returns the number of pages backing the table, for metrics.
func (t *Table) PageCount() int { return t.pages.Len() }
