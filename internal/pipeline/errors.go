package pipeline

import (
	"errors"
	"fmt"
)

// StageError represents a failure detected while planning or running the
// pipeline.
//
// Stage errors include:
//   - Graph errors: cycles, duplicate producers, inputs nobody produces
//   - Missing snapshots: a skipped stage's output is not in the store
//   - Stage failures: the transform itself returned an error
//   - Snapshot I/O: the commit or a load failed
type StageError struct {
	// Code identifies the error category.
	Code StageErrorCode

	// Stage names the affected stage, if any.
	Stage string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// StageErrorCode categorizes stage errors.
type StageErrorCode string

const (
	// ErrCodeCycle indicates stages depend on each other in a loop.
	ErrCodeCycle StageErrorCode = "CYCLE_DETECTED"

	// ErrCodeDuplicateOutput indicates two stages write the same snapshot.
	ErrCodeDuplicateOutput StageErrorCode = "DUPLICATE_OUTPUT"

	// ErrCodeUnresolvedInput indicates no stage produces a declared input.
	ErrCodeUnresolvedInput StageErrorCode = "UNRESOLVED_INPUT"

	// ErrCodeUnknownStage indicates a stage name that is not in the plan.
	ErrCodeUnknownStage StageErrorCode = "UNKNOWN_STAGE"

	// ErrCodeMissingSnapshot indicates a required snapshot is not committed.
	ErrCodeMissingSnapshot StageErrorCode = "MISSING_SNAPSHOT"

	// ErrCodeStageFailed indicates the stage transform returned an error.
	ErrCodeStageFailed StageErrorCode = "STAGE_FAILED"

	// ErrCodeMissingOutput indicates a stage did not return a declared output.
	ErrCodeMissingOutput StageErrorCode = "MISSING_OUTPUT"

	// ErrCodeSnapshotIO indicates the snapshot store failed.
	ErrCodeSnapshotIO StageErrorCode = "SNAPSHOT_IO"

	// ErrCodeCancelled indicates the context was cancelled between stages.
	ErrCodeCancelled StageErrorCode = "CANCELLED"
)

// Error implements the error interface.
func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s (stage=%s)", msg, e.Stage)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first StageError in err's chain, or "".
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) StageErrorCode {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCycleError returns true if the error is a cycle detection error.
func IsCycleError(err error) bool {
	return CodeOf(err) == ErrCodeCycle
}

// IsMissingSnapshot returns true if a required snapshot was not found.
func IsMissingSnapshot(err error) bool {
	return CodeOf(err) == ErrCodeMissingSnapshot
}

func newStageError(code StageErrorCode, stage, message string, err error) *StageError {
	return &StageError{Code: code, Stage: stage, Message: message, Err: err}
}
