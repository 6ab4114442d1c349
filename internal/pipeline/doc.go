// Package pipeline implements the stage graph and the single-writer engine
// that executes it.
//
// ARCHITECTURE:
//
// Stages declare the snapshot names they read and the snapshot names they
// write. Plan resolves an execution order from those declarations (Kahn's
// algorithm, ties broken by declaration order) and rejects graphs with
// cycles, duplicate producers or inputs nobody produces.
//
// Single-Writer Execution:
// Engine.Run executes stages one at a time in planned order:
// 1. Inputs come from the in-memory handoff or, when a stage was skipped,
// from the snapshot store
// 2. The stage transforms its inputs into outputs
// 3. All outputs are committed to the store in one transaction, stamped
// with the next logical clock value
// 4. The stage's AfterCommit hook (if any) writes external artifacts; if it
// fails, the stage's snapshots are retracted
//
// A failing stage commits nothing. The run is marked failed with the cause
// and the error is returned as a *StageError.
//
// CRITICAL PATTERNS:
//
// Logical Clock
// Runs and snapshots are stamped with Clock.Next(). NEVER use wall-clock
// time for ordering; "latest snapshot" means highest seq.
//
// Deterministic Scheduling
// Stages run in resolved order, one at a time. Cancellation is observed
// only between stages: a transform that finished is still committed.
package pipeline
