/*
Package flat implements the row store: fixed-size pages, a content-hash
offset index, and the Table that combines them into a deduplicating,
content-addressed row container (spec.md section 4.1-4.3).

A Table never contains two byte-identical rows. Row identity is its
64-bit RowHash, a fast, non-cryptographic, process-local hash of the
row's canonical fixed-size encoding (see package sats); RowHash is never
persisted and is not stable across processes.

Rows live in Pages, an ordered sequence of fixed-size byte buffers filled
left to right. Deleting a row is an O(1) swap-remove: the last data_len
bytes of the current working page are copied into the hole, and if that
moved a different live row, the OffsetMap entry for that row is fixed up
to point at its new location.
*/
package flat
