// Package objstore is the content-addressed blob store backing odb/
// (SPEC_FULL.md section 6): blobs are named by the xxhash of their
// contents under a namespace distinct from flat.RowHash, since object
// hashes are persisted to disk and RowHash values are not. RelationalDB
// opens one and exposes it through Objects(); row encoding does not use
// it - a row field too large for the fixed-size inline encoding is
// rejected by pkg/sats, not stored here.
package objstore
