// Package store provides SQLite-backed durable storage for pipeline
// snapshots.
//
// The store is an append-only log with:
//   - Runs: one row per pipeline run, with its parameters and outcome
//   - Snapshots: named datasets committed by a stage within a run
//   - Snapshot rows: the rows of each snapshot, in dataset order
//
// # Critical Patterns
//
// Logical time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - "Latest snapshot named X" means highest seq, not newest file
//
// Atomic stage commits
//   - Every snapshot a stage emits is written in one transaction
//   - A failed stage leaves no snapshot behind
//
// Content digests
//   - Rows are stored as canonical JSON (dataset.EncodeRow)
//   - Each snapshot carries dataset.Digest so reads can be verified
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
