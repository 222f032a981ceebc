package flat

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// RowHash is a 64-bit content hash of a row's canonical encoding. It is
// not cryptographically secure and not stable across processes or
// machines: the seed is drawn fresh per process. Never persist a
// RowHash and never return one outside the process (spec.md section
// 3.3).
type RowHash uint64

// processSalt is XORed into every row hash so that RowHash values from
// two different process runs of the same rows do not coincide, making
// it impossible to accidentally treat a RowHash as a stable identifier
// across restarts.
var processSalt = randomSalt()

func randomSalt() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the OS entropy source is broken;
		// a fixed fallback keeps the process usable (at the cost of
		// the cross-process instability guarantee) instead of panicking
		// inside a hot path caller never expects to fail.
		return 0x9e3779b97f4a7c15
	}
	return binary.LittleEndian.Uint64(b[:])
}

// HashRow computes the RowHash of row's canonical byte encoding.
func HashRow(row []byte) RowHash {
	return RowHash(xxhash.Sum64(row) ^ processSalt)
}
