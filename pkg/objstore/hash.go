package objstore

import (
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Hash is the content address of a stored object: the xxhash of its raw
// bytes, with no process-local salt. Unlike flat.RowHash (process-local,
// never persisted), object hashes are written to disk and must compare
// equal across process restarts and machines, so they carry no salt.
type Hash uint64

// HashBytes computes the content address of b.
func HashBytes(b []byte) Hash {
	return Hash(xxhash.Sum64(b))
}

// String renders h as the lowercase hex filename objstore uses on disk.
func (h Hash) String() string {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(h >> (8 * (7 - i)))
	}
	return hex.EncodeToString(buf[:])
}

// ParseHash parses the hex form String produces.
func ParseHash(s string) (Hash, bool) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 8 {
		return 0, false
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return Hash(v), true
}
