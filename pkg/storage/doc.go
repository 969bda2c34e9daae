/*
Package storage provides BoltDB-backed persistence for ppppl's two durable
cells: the loaded program's source text and the root memory value.

# Architecture

A single bbolt file (default $HOME/.pppl.db, overridable) holds three
buckets:

	clocks  (schema_version -> int)   schema bookkeeping, mirrors the
	                                  original SQLite-backed store's clocks
	                                  table
	code    (fixed key -> source text)  the currently loaded program
	mem     (fixed key -> canonical CBOR of the root Value)

Open runs a schema migration loop against the clocks bucket exactly once
(schema_version 0 -> 1 creates the code/mem buckets); unknown future versions
are a hard error rather than a silent downgrade.

# Transactions

Begin wraps a *bbolt.Tx in a Tx that decodes the root Value once up front
and holds it in memory for the transaction's lifetime, re-encoding only at
Commit and only if a write actually happened. This mirrors the original's
"decode at begin, re-encode at commit, skip the write if nothing changed"
strategy. bbolt itself serializes writers via an OS file lock, so there is
no user-level busy-retry loop the way the original SQLite backend needed.
*/
package storage
