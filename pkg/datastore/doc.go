/*
Package datastore implements the locking, single-writer transactional
facade over pkg/flat tables: table/index/sequence/constraint DDL, insert
and delete with constraint enforcement, and indexed or scanned
iteration (spec.md section 4.5).

System catalogs (st_table, st_columns, st_indexes, st_sequences,
st_constraints) are themselves ordinary flat.Table values holding a
reserved range of low table ids; DDL is just DML against these tables,
which is what gives it transactional atomicity for free.

A single sync.Mutex serializes all access: BeginTx acquires it, and
CommitTx/RollbackTx release it. MutTx carries no lock of its own.
*/
package datastore
