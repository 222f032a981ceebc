package flat

// colliderSlotIndex indexes into OffsetMap.colliders. Slot indices are
// stable: once assigned to a live collider list, they are never
// reassigned while live - only pushed onto emptied once the slot falls
// to zero or one entry.
type colliderSlotIndex uint32

// offsetOrCollider is the tagged union spec.md section 3.3 describes:
// either the single BufferOffset for a hash with no collisions, or a
// slot index into OffsetMap.colliders for a hash with two or more.
type offsetOrCollider struct {
	collider bool
	offset   BufferOffset
	slot     colliderSlotIndex
}

// OffsetMap maps RowHash to one or more BufferOffset, optimized for the
// overwhelmingly common case of zero collisions: that case stores the
// offset inline in the primary map with no extra allocation.
type OffsetMap struct {
	primary   map[RowHash]offsetOrCollider
	colliders [][]BufferOffset
	emptied   []colliderSlotIndex
}

// NewOffsetMap returns an empty OffsetMap.
func NewOffsetMap() *OffsetMap {
	return &OffsetMap{primary: make(map[RowHash]offsetOrCollider)}
}

// OffsetsFor returns the offsets associated with hash: nil, a
// one-element slice (the common case), or the collider slot's contents.
// The returned slice must not be mutated by the caller.
func (m *OffsetMap) OffsetsFor(hash RowHash) []BufferOffset {
	v, ok := m.primary[hash]
	if !ok {
		return nil
	}
	if !v.collider {
		return []BufferOffset{v.offset}
	}
	return m.colliders[v.slot]
}

// Insert associates hash with offset, promoting an existing inline
// entry to a collider slot if hash already maps to something.
func (m *OffsetMap) Insert(hash RowHash, offset BufferOffset) {
	v, ok := m.primary[hash]
	if !ok {
		m.primary[hash] = offsetOrCollider{offset: offset}
		return
	}
	if !v.collider {
		existing := v.offset
		var slot colliderSlotIndex
		if n := len(m.emptied); n > 0 {
			slot = m.emptied[n-1]
			m.emptied = m.emptied[:n-1]
			m.colliders[slot] = append(m.colliders[slot][:0], existing, offset)
		} else {
			slot = colliderSlotIndex(len(m.colliders))
			m.colliders = append(m.colliders, []BufferOffset{existing, offset})
		}
		m.primary[hash] = offsetOrCollider{collider: true, slot: slot}
		return
	}
	m.colliders[v.slot] = append(m.colliders[v.slot], offset)
}

// Remove deletes the association hash -> offset, demoting a collider
// slot back to an inline Offset when it falls to one entry, and freeing
// the slot for reuse when it falls to zero. Returns whether a removal
// happened.
func (m *OffsetMap) Remove(hash RowHash, offset BufferOffset) bool {
	v, ok := m.primary[hash]
	if !ok {
		return false
	}

	if !v.collider {
		if v.offset != offset {
			return false
		}
		delete(m.primary, hash)
		return true
	}

	slot := v.slot
	list := m.colliders[slot]
	idx := -1
	for i, o := range list {
		if o == offset {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}
	last := len(list) - 1
	list[idx] = list[last]
	list = list[:last]

	switch len(list) {
	case 0:
		m.colliders[slot] = list
		delete(m.primary, hash)
		m.emptied = append(m.emptied, slot)
	case 1:
		m.primary[hash] = offsetOrCollider{offset: list[0]}
		m.colliders[slot] = list[:0]
		m.emptied = append(m.emptied, slot)
	default:
		m.colliders[slot] = list
	}
	return true
}
