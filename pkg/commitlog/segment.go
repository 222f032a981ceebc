package commitlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// segmentFileName returns the canonical name for a segment whose first
// commit is at firstOffset: a 20-digit zero-padded decimal, sortable by
// plain string comparison and by `ls` (spec.md section 4.4 expansion).
func segmentFileName(firstOffset uint64) string {
	return fmt.Sprintf("%020d.clog", firstOffset)
}

// segment is one open segment file: an append-only sequence of encoded
// Commits, tracked by its first commit offset and its current size.
type segment struct {
	firstOffset uint64
	path        string
	f           *os.File
	size        int64
}

func openSegmentForAppend(dir string, firstOffset uint64) (*segment, error) {
	path := filepath.Join(dir, segmentFileName(firstOffset))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "commitlog: open segment %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "commitlog: stat segment %s", path)
	}
	return &segment{firstOffset: firstOffset, path: path, f: f, size: st.Size()}, nil
}

func (s *segment) append(b []byte, fsync bool) error {
	n, err := s.f.Write(b)
	if err != nil {
		return errors.Wrapf(err, "commitlog: write segment %s", s.path)
	}
	s.size += int64(n)
	if fsync {
		if err := s.f.Sync(); err != nil {
			return errors.Wrapf(err, "commitlog: fsync segment %s", s.path)
		}
	}
	return nil
}

func (s *segment) close() error {
	return s.f.Close()
}

// listSegments returns the first-commit-offsets of every segment file
// in dir, sorted ascending.
func listSegments(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "commitlog: read dir %s", dir)
	}
	var offsets []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".clog" {
			continue
		}
		base := name[:len(name)-len(".clog")]
		var offset uint64
		if _, err := fmt.Sscanf(base, "%020d", &offset); err != nil {
			continue
		}
		offsets = append(offsets, offset)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets, nil
}
