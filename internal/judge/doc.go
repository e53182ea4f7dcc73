// Package judge implements the runtime core shared by every judge.
//
// A judge is a named procedure that reads facts and derives new ones. The
// core gives judges five primitives, all driven through a Runtime that
// carries the fact store, logger, judge name, quota and clock explicitly:
//
//   - UpsertIfAbsent: insert a fact only if no fact with the same
//     attribute values exists
//   - FilterUnseen / MarkSeen: exclude facts a judge already processed
//     and tag them after processing
//   - JoinOnce: drive a callback over each unseen tuple of an N-way join,
//     at most once per judge, inside one transaction
//   - Iterate: resume per-partition cursors and advance them until
//     caught up or out of quota
//   - Incremate: run independent metric providers against one fact in
//     random order within a time budget
//
// Award is the pure score calculator judges use to compute point deltas.
//
// EXECUTION MODEL:
//
// Single goroutine per judge run, blocking I/O. Quota and budget checks
// happen between units of work, never inside an open transaction, so
// stopping early preserves everything already committed.
//
// Control results are values, not panics: JoinOnce callbacks return a
// Verdict, Txn blocks return store.ErrRollback to discard their work.
package judge
