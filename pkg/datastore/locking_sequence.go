package datastore

import "github.com/cuemby/rdb/pkg/sats"

// CreateSequence creates a sequence bound to one column of tableID and
// records it in st_sequences with allocated=0. start is stored in the
// catalog row but Sequence.Next does not read it: a new sequence's first
// value is increment, the first value of its first preallocation block.
func (ds *Locking) CreateSequence(tx *MutTx, tableID uint32, colPos int, name string, start, increment int64) (uint32, error) {
	if _, ok := ds.schemas[tableID]; !ok {
		return 0, notFoundf("table id %d", tableID)
	}
	if _, exists := ds.sequenceNameToID[name]; exists {
		return 0, duplicatef("sequence %q already exists", name)
	}

	id := ds.nextSequenceID
	ds.nextSequenceID++
	def := SequenceDef{ID: id, TableID: tableID, ColPos: colPos, Name: name, Start: start, Increment: increment, Allocated: 0}

	ds.sequences[id] = newSequence(def)
	ds.sequencesByTable[tableID] = append(ds.sequencesByTable[tableID], id)
	ds.sequenceNameToID[name] = id
	tx.recordUndo(func() {
		delete(ds.sequences, id)
		delete(ds.sequenceNameToID, name)
		delete(ds.sequenceRowBytes, id)
		remaining := ds.sequencesByTable[tableID][:0]
		for _, existing := range ds.sequencesByTable[tableID] {
			if existing != id {
				remaining = append(remaining, existing)
			}
		}
		ds.sequencesByTable[tableID] = remaining
	})

	row := ds.encodeSequenceRow(def)
	ds.rawInsertRow(TableIDStSequences, row)
	tx.record(TableIDStSequences, row, true)
	ds.sequenceRowBytes[id] = row

	return id, nil
}

// DropSequence removes a sequence and its st_sequences row.
func (ds *Locking) DropSequence(tx *MutTx, sequenceID uint32) error {
	seq, ok := ds.sequences[sequenceID]
	if !ok {
		return notFoundf("sequence id %d", sequenceID)
	}

	savedRow, hadRow := ds.sequenceRowBytes[sequenceID]
	if hadRow {
		ds.rawDeleteRow(TableIDStSequences, savedRow)
		tx.record(TableIDStSequences, savedRow, false)
	}

	delete(ds.sequences, sequenceID)
	delete(ds.sequenceRowBytes, sequenceID)
	delete(ds.sequenceNameToID, seq.def.Name)
	remaining := ds.sequencesByTable[seq.def.TableID][:0]
	for _, id := range ds.sequencesByTable[seq.def.TableID] {
		if id != sequenceID {
			remaining = append(remaining, id)
		}
	}
	ds.sequencesByTable[seq.def.TableID] = remaining

	tx.recordUndo(func() {
		ds.sequences[sequenceID] = seq
		ds.sequenceNameToID[seq.def.Name] = sequenceID
		if hadRow {
			ds.sequenceRowBytes[sequenceID] = savedRow
		}
		ds.sequencesByTable[seq.def.TableID] = append(ds.sequencesByTable[seq.def.TableID], sequenceID)
	})
	return nil
}

func (ds *Locking) SequenceIDFromName(name string) (uint32, error) {
	id, ok := ds.sequenceNameToID[name]
	if !ok {
		return 0, notFoundf("sequence %q", name)
	}
	return id, nil
}

// GetNextSequenceValue returns the next value of sequenceID, persisting
// a new preallocation block to st_sequences within tx when the current
// block is exhausted (spec.md section 4.5).
func (ds *Locking) GetNextSequenceValue(tx *MutTx, sequenceID uint32) (int64, error) {
	seq, ok := ds.sequences[sequenceID]
	if !ok {
		return 0, notFoundf("sequence id %d", sequenceID)
	}

	value, newAllocated, changed := seq.Next()
	if changed {
		seq.def.Allocated = newAllocated
		if oldRow, ok := ds.sequenceRowBytes[sequenceID]; ok {
			ds.rawDeleteRow(TableIDStSequences, oldRow)
			tx.record(TableIDStSequences, oldRow, false)
		}
		newRow := ds.encodeSequenceRow(seq.def)
		ds.rawInsertRow(TableIDStSequences, newRow)
		tx.record(TableIDStSequences, newRow, true)
		ds.sequenceRowBytes[sequenceID] = newRow
	}
	return value, nil
}

func (ds *Locking) encodeSequenceRow(def SequenceDef) []byte {
	schema := stSequencesSchema()
	val := sats.ProductVal(
		sats.U32Val(def.ID), sats.U32Val(def.TableID), sats.U32Val(uint32(def.ColPos)),
		sats.StrVal(def.Name), sats.I64Val(def.Start), sats.I64Val(def.Increment), sats.I64Val(def.Allocated),
	)
	row := make([]byte, mustFixedSize(schema.RowType))
	_ = sats.Encode(nil, sats.AlgebraicType{Kind: sats.KindProduct, Product: schema.RowType}, val, row)
	return row
}
