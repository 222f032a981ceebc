package commitlog

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// HashSize is the width of a commit hash: 32 bytes, per spec.md section 6.
const HashSize = 32

// CommitHash identifies a Commit for parent-chain verification. Unlike
// flat.RowHash, a CommitHash is persisted, so it must be stable across
// processes - it is computed with SHA-256 over the commit's canonical
// bytes (excluding the parent-hash field itself), not the process-local
// RowHash algorithm used for in-memory row identity.
type CommitHash [HashSize]byte

// Mutation names one row inserted or deleted by a transaction.
type Mutation struct {
	TableID uint32
	Row     []byte
}

// Transaction is one unit of work within a Commit: the rows it inserted
// and the rows it deleted.
type Transaction struct {
	Inserts []Mutation
	Deletes []Mutation
}

// Commit is the durable record of one or more transactions, chained to
// its predecessor by hash.
type Commit struct {
	HasParent    bool
	ParentHash   CommitHash
	CommitOffset uint64
	MinTxOffset  uint64
	Transactions []Transaction
}

// Hash computes this commit's CommitHash for use as the next commit's
// ParentHash.
func (c *Commit) Hash() (CommitHash, error) {
	var buf []byte
	buf = appendCommitBody(buf, c)
	return CommitHash(sha256.Sum256(buf)), nil
}

// encode appends the canonical byte layout of c to dst:
//
//	(parent-present byte || parent_hash[32] if present)
//	|| commit_offset u64be || min_tx_offset u64be
//	|| tx_count varint || per tx {inserts_count varint, deletes_count varint, inserts, deletes}
//
// Each mutation is table_id u32be || row_len varint || row bytes.
func encode(c *Commit) []byte {
	var dst []byte
	if c.HasParent {
		dst = append(dst, 1)
		dst = append(dst, c.ParentHash[:]...)
	} else {
		dst = append(dst, 0)
	}
	dst = appendCommitBody(dst, c)
	return dst
}

func appendCommitBody(dst []byte, c *Commit) []byte {
	dst = appendU64BE(dst, c.CommitOffset)
	dst = appendU64BE(dst, c.MinTxOffset)
	dst = appendUvarint(dst, uint64(len(c.Transactions)))
	for _, tx := range c.Transactions {
		dst = appendUvarint(dst, uint64(len(tx.Inserts)))
		dst = appendUvarint(dst, uint64(len(tx.Deletes)))
		for _, m := range tx.Inserts {
			dst = appendMutation(dst, m)
		}
		for _, m := range tx.Deletes {
			dst = appendMutation(dst, m)
		}
	}
	return dst
}

func appendMutation(dst []byte, m Mutation) []byte {
	dst = appendU32BE(dst, m.TableID)
	dst = appendUvarint(dst, uint64(len(m.Row)))
	dst = append(dst, m.Row...)
	return dst
}

func appendU32BE(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendU64BE(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func appendUvarint(dst []byte, v uint64) []byte {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], v)
	return append(dst, b[:n]...)
}

// byteReader adapts a []byte plus a cursor to the small set of read
// operations decode needs, returning io.ErrUnexpectedEOF on truncation
// so a half-written trailing commit (a crash mid-append) is detectable
// and distinguishable from a genuine decode error.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) readByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) ReadByte() (byte, error) { return r.readByte() }

func (r *byteReader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) u32be() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *byteReader) u64be() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *byteReader) uvarint() (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		if err == io.EOF {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
	return v, nil
}

// decode reads one Commit from the front of buf, returning the commit
// and the number of bytes consumed.
func decode(buf []byte) (*Commit, int, error) {
	r := &byteReader{buf: buf}

	presentFlag, err := r.readByte()
	if err != nil {
		return nil, 0, errors.Wrap(err, "commitlog: read parent-present flag")
	}
	c := &Commit{}
	if presentFlag == 1 {
		c.HasParent = true
		hb, err := r.take(HashSize)
		if err != nil {
			return nil, 0, errors.Wrap(err, "commitlog: read parent hash")
		}
		copy(c.ParentHash[:], hb)
	} else if presentFlag != 0 {
		return nil, 0, errors.Errorf("commitlog: invalid parent-present flag %d", presentFlag)
	}

	if c.CommitOffset, err = r.u64be(); err != nil {
		return nil, 0, errors.Wrap(err, "commitlog: read commit_offset")
	}
	if c.MinTxOffset, err = r.u64be(); err != nil {
		return nil, 0, errors.Wrap(err, "commitlog: read min_tx_offset")
	}

	txCount, err := r.uvarint()
	if err != nil {
		return nil, 0, errors.Wrap(err, "commitlog: read tx_count")
	}
	c.Transactions = make([]Transaction, txCount)
	for i := range c.Transactions {
		tx := &c.Transactions[i]
		insCount, err := r.uvarint()
		if err != nil {
			return nil, 0, errors.Wrap(err, "commitlog: read inserts_count")
		}
		delCount, err := r.uvarint()
		if err != nil {
			return nil, 0, errors.Wrap(err, "commitlog: read deletes_count")
		}
		tx.Inserts = make([]Mutation, insCount)
		for j := range tx.Inserts {
			if tx.Inserts[j], err = decodeMutation(r); err != nil {
				return nil, 0, errors.Wrap(err, "commitlog: read insert mutation")
			}
		}
		tx.Deletes = make([]Mutation, delCount)
		for j := range tx.Deletes {
			if tx.Deletes[j], err = decodeMutation(r); err != nil {
				return nil, 0, errors.Wrap(err, "commitlog: read delete mutation")
			}
		}
	}

	return c, r.pos, nil
}

func decodeMutation(r *byteReader) (Mutation, error) {
	tableID, err := r.u32be()
	if err != nil {
		return Mutation{}, err
	}
	rowLen, err := r.uvarint()
	if err != nil {
		return Mutation{}, err
	}
	row, err := r.take(int(rowLen))
	if err != nil {
		return Mutation{}, err
	}
	// Copy out of buf: row must outlive the segment buffer it was
	// decoded from if the caller retains it past the read call.
	owned := make([]byte, len(row))
	copy(owned, row)
	return Mutation{TableID: tableID, Row: owned}, nil
}
