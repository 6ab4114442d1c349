package cli

import (
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/roach88/recset/internal/pipeline"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Pipeline, validation or scenario failure, non-deterministic replay
	ExitCommandError = 2 // Command error (bad config, invalid paths, database not found, etc.)
)

// ExitError carries the process exit code for a command failure.
type ExitError struct {
	Code    int // ExitFailure or ExitCommandError
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure for
// errors that carry none.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope every command writes in --format json.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error part of a CLIResponse. Pipeline failures carry the
// stage error code (UNKNOWN_STAGE, STAGE_FAILED, ...); command-level
// failures use E_* codes.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrCodePipeline marks run failures without a stage error code.
const ErrCodePipeline = "E_PIPELINE"

// pipelineError converts a run failure into a CLIError, keeping the failed
// stage as a detail.
func pipelineError(err error) *CLIError {
	out := &CLIError{Code: ErrCodePipeline, Message: err.Error()}
	var se *pipeline.StageError
	if errors.As(err, &se) {
		out.Code = string(se.Code)
		if se.Stage != "" {
			out.Details = map[string]string{"stage": se.Stage}
		}
	}
	return out
}

// OutputFormatter writes command results as text or as a CLIResponse.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// Success writes data. Text output prints data with fmt.Println, so values
// should implement fmt.Stringer.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return writeJSON(f.Writer, CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes a coded error. Details are printed in text mode only when
// verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return writeJSON(f.Writer, CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Failure writes a pipeline failure envelope in JSON mode. Text mode writes
// nothing: the returned error is reported by the caller.
func (f *OutputFormatter) Failure(runID string, err error) error {
	if f.Format != "json" {
		return nil
	}
	return writeJSON(f.Writer, CLIResponse{Status: "error", Error: pipelineError(err), RunID: runID})
}

// VerboseLog writes a diagnostic line when verbose. It goes to ErrWriter
// when set so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
