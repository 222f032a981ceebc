package datastore

// SequencePreallocationBlockSize is the number of values reserved per
// catalog write, per spec.md section 4.5 ("choose 4096").
const SequencePreallocationBlockSize = 4096

// Sequence is the live, in-process generator behind one SequenceDef. Only
// Allocated is ever persisted (as a column of the sequence's st_sequences
// row); the in-flight counter (next) lives only in memory and is never
// trusted across a restart.
type Sequence struct {
	def         SequenceDef
	next        int64
	initialized bool
	reloaded    bool
}

// newSequence constructs a freshly created (never-persisted) sequence.
func newSequence(def SequenceDef) *Sequence {
	return &Sequence{def: def}
}

// loadedSequence constructs a Sequence from a catalog row recovered
// during replay/reopen: reloaded is set so the first Next() call forces
// a fresh preallocation block rather than trusting the old block's
// remaining room.
func loadedSequence(def SequenceDef) *Sequence {
	return &Sequence{def: def, reloaded: true}
}

// Next returns the next value this sequence generates. When the current
// preallocation block is exhausted (or this is the very first call after
// either creation or a reload), it advances def.Allocated by
// SequencePreallocationBlockSize and reports allocatedChanged so the
// caller persists the new Allocated value to st_sequences in the same
// transaction as the row that consumed it.
//
// A sequence reloaded from the catalog always forces a new block on its
// first post-reload call, and additionally skips exactly one value
// (def.Allocated - blockSize + increment, the first candidate of that
// forced new block) as a margin against a value the previous process
// might have handed out without ever persisting the advance. This is why
// a table with a single committed insert at value 1 and preallocation
// block size 4096 returns 4098, not 4097, as its first post-reopen
// value (spec.md section 4.5, test_auto_inc_reload).
func (s *Sequence) Next() (value int64, newAllocated int64, allocatedChanged bool) {
	if !s.initialized {
		s.def.Allocated += SequencePreallocationBlockSize
		allocatedChanged = true
		s.next = s.def.Allocated - SequencePreallocationBlockSize + s.def.Increment
		if s.reloaded {
			s.next += s.def.Increment
		}
		s.initialized = true
	} else if s.next > s.def.Allocated {
		s.def.Allocated += SequencePreallocationBlockSize
		allocatedChanged = true
	}
	newAllocated = s.def.Allocated
	value = s.next
	s.next += s.def.Increment
	return value, newAllocated, allocatedChanged
}

// Allocated returns the sequence's current persisted high-water mark.
func (s *Sequence) Allocated() int64 { return s.def.Allocated }
