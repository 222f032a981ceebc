package commitlog

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FsyncPolicy controls when a CommitLog durably flushes an appended
// commit to disk (spec.md section 6).
type FsyncPolicy int

const (
	// EveryTx fsyncs the segment file after every appended commit.
	EveryTx FsyncPolicy = iota
	// Never never calls fsync; the OS page cache decides when data
	// reaches disk. Faster, but a crash can lose recently appended
	// commits that were never flushed.
	Never
)

// DefaultSegmentBytesBudget is the size at which a segment rolls over
// to a new file, absent an explicit Options.SegmentBytesBudget.
const DefaultSegmentBytesBudget = 16 * 1024 * 1024

// Options configures a CommitLog.
type Options struct {
	Dir                string
	Fsync              FsyncPolicy
	SegmentBytesBudget int64
}

// CommitLog is the append-only, segmented, hash-chained durability log
// underneath a Locking datastore.
type CommitLog struct {
	dir      string
	fsync    FsyncPolicy
	budget   int64
	cur      *segment
	lastHash CommitHash
	hasLast  bool
	nextOff  uint64
	nextTx   uint64
}

// Open opens (creating if absent) the commit log rooted at opts.Dir,
// replaying existing segments to recover the tail hash and the next
// commit/tx offsets to append after.
func Open(opts Options) (*CommitLog, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "commitlog: create dir %s", opts.Dir)
	}
	budget := opts.SegmentBytesBudget
	if budget <= 0 {
		budget = DefaultSegmentBytesBudget
	}

	cl := &CommitLog{dir: opts.Dir, fsync: opts.Fsync, budget: budget}

	if err := Replay(opts.Dir, func(c *Commit) error {
		h, err := c.Hash()
		if err != nil {
			return err
		}
		cl.lastHash = h
		cl.hasLast = true
		cl.nextOff = c.CommitOffset + 1
		txCount := uint64(len(c.Transactions))
		cl.nextTx = c.MinTxOffset + txCount
		return nil
	}); err != nil {
		return nil, err
	}

	offsets, err := listSegments(opts.Dir)
	if err != nil {
		return nil, err
	}
	var firstOffset uint64
	if len(offsets) > 0 {
		firstOffset = offsets[len(offsets)-1]
	}
	seg, err := openSegmentForAppend(opts.Dir, firstOffset)
	if err != nil {
		return nil, err
	}
	cl.cur = seg
	return cl, nil
}

// Append durably records txs as a new Commit, chained to the previous
// commit's hash, and returns the commit's offset.
func (cl *CommitLog) Append(txs []Transaction) (uint64, error) {
	c := &Commit{
		HasParent:    cl.hasLast,
		ParentHash:   cl.lastHash,
		CommitOffset: cl.nextOff,
		MinTxOffset:  cl.nextTx,
		Transactions: txs,
	}
	encoded := encode(c)

	if cl.cur.size > 0 && cl.cur.size+int64(len(encoded)) > cl.budget {
		if err := cl.roll(); err != nil {
			return 0, err
		}
	}

	if err := cl.cur.append(encoded, cl.fsync == EveryTx); err != nil {
		return 0, err
	}

	hash, err := c.Hash()
	if err != nil {
		return 0, err
	}
	cl.lastHash = hash
	cl.hasLast = true
	cl.nextOff = c.CommitOffset + 1
	cl.nextTx = c.MinTxOffset + uint64(len(txs))
	return c.CommitOffset, nil
}

func (cl *CommitLog) roll() error {
	if err := cl.cur.close(); err != nil {
		return errors.Wrap(err, "commitlog: close segment before roll")
	}
	seg, err := openSegmentForAppend(cl.dir, cl.nextOff)
	if err != nil {
		return err
	}
	cl.cur = seg
	return nil
}

// Close flushes and closes the current segment file.
func (cl *CommitLog) Close() error {
	if cl.fsync == EveryTx {
		if err := cl.cur.f.Sync(); err != nil {
			return errors.Wrap(err, "commitlog: final fsync")
		}
	}
	return cl.cur.close()
}

// SegmentCount returns the number of segment files on disk, as reported
// by RelationalDB.SegmentCount (and so by rdbctl stat).
func (cl *CommitLog) SegmentCount() (int, error) {
	offsets, err := listSegments(cl.dir)
	if err != nil {
		return 0, err
	}
	return len(offsets), nil
}

// Replay walks every segment file in dir in commit order, calling fn
// once per decoded Commit. It verifies the parent-hash chain: a commit
// whose ParentHash does not match the hash of the immediately preceding
// commit aborts replay with an error, since a broken chain means the
// log was corrupted or segments are missing (spec.md section 7,
// "replay errors abort startup").
func Replay(dir string, fn func(*Commit) error) error {
	offsets, err := listSegments(dir)
	if err != nil {
		return err
	}

	var prevHash CommitHash
	hasPrev := false

	for _, firstOffset := range offsets {
		buf, err := os.ReadFile(filepath.Join(dir, segmentFileName(firstOffset)))
		if err != nil {
			return errors.Wrapf(err, "commitlog: read segment at offset %d", firstOffset)
		}
		pos := 0
		for pos < len(buf) {
			c, n, err := decode(buf[pos:])
			if err != nil {
				return errors.Wrapf(err, "commitlog: decode commit in segment at offset %d, byte %d", firstOffset, pos)
			}
			if hasPrev {
				if !c.HasParent || c.ParentHash != prevHash {
					return errors.Errorf("commitlog: parent-hash chain broken at commit_offset %d", c.CommitOffset)
				}
			} else if c.HasParent {
				return errors.Errorf("commitlog: first commit (offset %d) unexpectedly has a parent hash", c.CommitOffset)
			}

			if err := fn(c); err != nil {
				return err
			}

			h, err := c.Hash()
			if err != nil {
				return err
			}
			prevHash = h
			hasPrev = true
			pos += n
		}
	}
	return nil
}
