// Package errors provides the error taxonomy for splatpipe. It defines the
// domain error types raised by pipeline stages, the sentinels they wrap, and
// helpers that classify errors into process exit codes.
//
// # Error Types
//
//   - ConfigurationError: a required configuration value is missing or unusable
//   - ExternalProcessError: a command in the foreign or local environment exited non-zero
//   - IOError: a file could not be read, written, moved or removed
//   - SchemaInvariantError: a point-cloud schema violates the transcoder's layout rules
//   - StageError: wraps any of the above with the name of the failing pipeline stage
//
// # Usage
//
//	err := errors.NewExternalProcessError("reconstruction failed", cause).
//	    WithCommand("wsl.exe --exec bash ...").
//	    WithExitCode(1)
//
//	if errors.Is(err, errors.ErrProcessFailed) { ... }
//
//	var schemaErr *errors.SchemaInvariantError
//	if errors.As(err, &schemaErr) { ... }
//
//	os.Exit(errors.ExitCode(err))
//
// None of these errors is retryable: every fatal condition ends the run.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for conditions worth reporting that do not stop a run.
	SeverityWarning Severity = iota
	// SeverityError is for conditions that abort the current run.
	SeverityError
	// SeverityCritical is for conditions that leave on-disk state inconsistent.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Process exit codes returned by ExitCode.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitProcess       = 3
	ExitIO            = 4
	ExitSchema        = 5
	ExitCanceled      = 130
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrMissingValue indicates that a required configuration value is empty.
	ErrMissingValue = New("required value is not set")
	// ErrProcessFailed indicates that an external command exited non-zero.
	ErrProcessFailed = New("external process failed")
	// ErrEmptyOutput indicates that an external command succeeded but printed nothing.
	ErrEmptyOutput = New("external process produced no output")
	// ErrAnchorNotFound indicates that the insertion anchor is absent from a schema.
	ErrAnchorNotFound = New("anchor field not found")
	// ErrDuplicateField indicates that a field name occurs more than once.
	ErrDuplicateField = New("duplicate field")
	// ErrStrideMismatch indicates that the computed record stride differs from the expected one.
	ErrStrideMismatch = New("record stride mismatch")
	// ErrUnsupportedFormat indicates an asset encoding the transcoder cannot handle.
	ErrUnsupportedFormat = New("unsupported asset format")
	// ErrMalformedHeader indicates a point-cloud header that cannot be parsed.
	ErrMalformedHeader = New("malformed header")
	// ErrOutputMissing indicates that a stage reported success without producing its file.
	ErrOutputMissing = New("expected output file is missing")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// format renders "<kind> [k=v, ...]: message[: cause]".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// ConfigurationError
// -----------------------------------------------------------------------------

// ConfigurationError represents a required external value that is missing or unusable.
//
// Example:
//
//	err := errors.NewConfigurationError("watch directory is required", errors.ErrMissingValue).
//	    WithKey("input.watch_dir")
type ConfigurationError struct {
	baseError
	Key string
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		baseError: baseError{message: message, cause: cause, severity: SeverityError},
	}
}

// WithKey adds the configuration key to the error context.
func (e *ConfigurationError) WithKey(key string) *ConfigurationError {
	e.Key = key
	return e
}

// Error returns the formatted error message.
func (e *ConfigurationError) Error() string {
	var parts []string
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}
	return e.format("configuration error", parts)
}

// Is checks if this error matches the target.
func (e *ConfigurationError) Is(target error) bool {
	if _, ok := target.(*ConfigurationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// ExternalProcessError
// -----------------------------------------------------------------------------

// ExternalProcessError represents a command that could not be run or exited non-zero.
//
// Example:
//
//	err := errors.NewExternalProcessError("reconstruction failed", cause).
//	    WithCommand("bash --login -c ...").WithExitCode(1).WithOutput(tail)
type ExternalProcessError struct {
	baseError
	Command  string
	ExitCode int // -1 when the process never started
	Output   string
}

// NewExternalProcessError creates a new ExternalProcessError.
func NewExternalProcessError(message string, cause error) *ExternalProcessError {
	return &ExternalProcessError{
		baseError: baseError{message: message, cause: cause, severity: SeverityError},
		ExitCode:  -1,
	}
}

// WithCommand adds the command line to the error context.
func (e *ExternalProcessError) WithCommand(command string) *ExternalProcessError {
	e.Command = command
	return e
}

// WithExitCode adds the process exit status to the error context.
func (e *ExternalProcessError) WithExitCode(code int) *ExternalProcessError {
	e.ExitCode = code
	return e
}

// WithOutput adds captured process output to the error context.
func (e *ExternalProcessError) WithOutput(output string) *ExternalProcessError {
	e.Output = output
	return e
}

// Error returns the formatted error message.
func (e *ExternalProcessError) Error() string {
	var parts []string
	if e.Command != "" {
		parts = append(parts, fmt.Sprintf("command=%q", e.Command))
	}
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}
	msg := e.format("process error", parts)
	if e.Output != "" {
		msg = fmt.Sprintf("%s\noutput: %s", msg, e.Output)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *ExternalProcessError) Is(target error) bool {
	if _, ok := target.(*ExternalProcessError); ok {
		return true
	}
	if target == ErrProcessFailed && e.ExitCode > 0 {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// IOError
// -----------------------------------------------------------------------------

// IOError represents a filesystem operation that failed.
//
// Example:
//
//	err := errors.NewIOError("open", path, cause)
//	fmt.Println(err) // "io error [op=open, path=/tmp/x.ply]: open failed: ..."
type IOError struct {
	baseError
	Op   string
	Path string
}

// NewIOError creates a new IOError for the given operation and path.
func NewIOError(op, path string, cause error) *IOError {
	return &IOError{
		baseError: baseError{message: op + " failed", cause: cause, severity: SeverityError},
		Op:        op,
		Path:      path,
	}
}

// WithSeverity sets the error severity.
func (e *IOError) WithSeverity(s Severity) *IOError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *IOError) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	return e.format("io error", parts)
}

// Is checks if this error matches the target.
func (e *IOError) Is(target error) bool {
	if _, ok := target.(*IOError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// SchemaInvariantError
// -----------------------------------------------------------------------------

// SchemaInvariantError represents a point-cloud schema that breaks a layout rule.
// It is always raised before any output bytes are written.
//
// Example:
//
//	err := errors.NewSchemaInvariantError("stride mismatch", errors.ErrStrideMismatch).
//	    WithExpected(248).WithActual(252)
type SchemaInvariantError struct {
	baseError
	Field    string
	Expected any
	Actual   any
}

// NewSchemaInvariantError creates a new SchemaInvariantError.
func NewSchemaInvariantError(message string, cause error) *SchemaInvariantError {
	return &SchemaInvariantError{
		baseError: baseError{message: message, cause: cause, severity: SeverityCritical},
	}
}

// WithField adds the offending field name to the error context.
func (e *SchemaInvariantError) WithField(field string) *SchemaInvariantError {
	e.Field = field
	return e
}

// WithExpected adds the expected value to the error context.
func (e *SchemaInvariantError) WithExpected(v any) *SchemaInvariantError {
	e.Expected = v
	return e
}

// WithActual adds the observed value to the error context.
func (e *SchemaInvariantError) WithActual(v any) *SchemaInvariantError {
	e.Actual = v
	return e
}

// Error returns the formatted error message.
func (e *SchemaInvariantError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Expected != nil {
		parts = append(parts, fmt.Sprintf("expected=%v", e.Expected))
	}
	if e.Actual != nil {
		parts = append(parts, fmt.Sprintf("actual=%v", e.Actual))
	}
	return e.format("schema error", parts)
}

// Is checks if this error matches the target.
func (e *SchemaInvariantError) Is(target error) bool {
	if _, ok := target.(*SchemaInvariantError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// StageError
// -----------------------------------------------------------------------------

// StageError attributes a failure to the pipeline stage that raised it.
type StageError struct {
	Stage string
	Err   error
}

// NewStageError wraps err with the failing stage name.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// Error returns the formatted error message.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// StageOf returns the stage name attached to err, or "" if there is none.
func StageOf(err error) string {
	var stageErr *StageError
	if As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

// ExitCode maps an error to the process exit status reported by the CLI.
// Cancellation takes precedence over the error type that carried it.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if Is(err, context.Canceled) {
		return ExitCanceled
	}

	var (
		configErr  *ConfigurationError
		processErr *ExternalProcessError
		ioErr      *IOError
		schemaErr  *SchemaInvariantError
	)
	switch {
	case As(err, &configErr):
		return ExitConfiguration
	case As(err, &processErr):
		return ExitProcess
	case As(err, &schemaErr):
		return ExitSchema
	case As(err, &ioErr):
		return ExitIO
	default:
		return ExitFailure
	}
}

// SeverityOf returns the severity carried by err, defaulting to SeverityError.
func SeverityOf(err error) Severity {
	var s interface{ Severity() Severity }
	if As(err, &s) {
		return s.Severity()
	}
	return SeverityError
}
