// Package store provides a SQLite-backed fact store.
//
// A fact is an id plus an ordered list of attribute values. Values are
// typed (string, integer, float, time) and stored one row per value in an
// entity-attribute-value layout:
//   - facts: one row per fact, AUTOINCREMENT id
//   - attrs: one row per value, cascading with its fact
//
// # Critical Patterns
//
// Deterministic results:
//   - Query returns facts ordered by id, values in insertion order
//
// Atomicity:
//   - Txn on the Store opens a SQL transaction; Txn on a view opens a
//     SAVEPOINT, so a nested block can be discarded without losing the
//     enclosing work
//   - ErrRollback discards a block without failing the caller
//
// Parameterized SQL:
//   - Predicates are compiled by package predsql; values are never
//     interpolated into statements
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Attribute rows are deleted with their fact
package store
