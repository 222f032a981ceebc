/*
Package sats defines rdb's algebraic value model: the typed universe of
values that can be stored in a row.

An AlgebraicType is one of a handful of shapes - a tagged sum, an ordered
product (struct-like), a built-in primitive, a homogeneous array, a
map, or a reference into a shared typespace. An AlgebraicValue is the
corresponding value. Every type has a memoized fixed size used by the
flat row store (see package flat): primitives use their natural width,
sums use 1 + the largest variant, products sum their fields, and
strings/arrays/maps use a fixed 32-byte inline budget.

The package also provides the canonical encoder used both for the row
store's content-addressing and for commit log persistence, and a total
order over values used by secondary index lookups.
*/
package sats
