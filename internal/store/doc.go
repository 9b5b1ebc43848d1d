// Package store provides SQLite-backed durable storage for the canonical
// conversation store.
//
// Tables:
//   - conversations: canonical records, content-hash indexed. Superseded
//     records are marked, never deleted, preserving merge history.
//   - machines: per-machine sync cursors, mutated only by commits.
//   - sync_log: append-only audit trail, ordered by logical seq.
//   - partitions: keyed blob staging (the put/get/list storage contract).
//
// Invariants:
//   - At most one non-superseded record per content hash (partial unique
//     index). Exact-duplicate detection is an O(1) index lookup.
//   - All mutations land through ApplyCommit in a single transaction:
//     a commit either fully applies or leaves the store unchanged.
//   - All queries order by seq/id for deterministic results.
//
// Database configuration follows the single-writer SQLite discipline:
// WAL mode, synchronous=NORMAL, busy_timeout=5000, foreign_keys=ON, and a
// connection pool capped at one writer.
package store
