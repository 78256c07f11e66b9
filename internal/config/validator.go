package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "poll.interval")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidModes returns the list of valid foreign execution modes
func ValidModes() []string {
	return []string{ModeWSL, ModeLocal}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateInput()...)
	errors = append(errors, c.validateReconstruction()...)
	errors = append(errors, c.validateForeign()...)
	errors = append(errors, c.validateAssets()...)
	errors = append(errors, c.validateTranscode()...)
	errors = append(errors, c.validateSignal()...)
	errors = append(errors, c.validatePoll()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func required(field, value string) []ValidationError {
	if strings.TrimSpace(value) == "" {
		return []ValidationError{{Field: field, Value: value, Message: "is required"}}
	}
	return nil
}

// validatePath rejects values that cannot name a file system location.
func validatePath(field, value string) []ValidationError {
	if strings.ContainsRune(value, '\x00') {
		return []ValidationError{{Field: field, Value: value, Message: "path contains invalid null character"}}
	}
	return nil
}

// validateFileName requires a bare file name: no directory components.
func validateFileName(field, value string) []ValidationError {
	if errs := required(field, value); errs != nil {
		return errs
	}
	if value == "." || value == ".." || strings.ContainsAny(value, `/\`) || filepath.Base(value) != value {
		return []ValidationError{{Field: field, Value: value, Message: "must be a file name without directory components"}}
	}
	return validatePath(field, value)
}

func (c *Config) validateInput() []ValidationError {
	var errors []ValidationError

	errors = append(errors, required("input.watch_dir", c.Input.WatchDir)...)
	errors = append(errors, validatePath("input.watch_dir", c.Input.WatchDir)...)
	errors = append(errors, validateFileName("input.target_name", c.Input.TargetName)...)

	if c.Input.MaxDimension < 0 {
		errors = append(errors, ValidationError{
			Field:   "input.max_dimension",
			Value:   c.Input.MaxDimension,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateReconstruction() []ValidationError {
	var errors []ValidationError

	errors = append(errors, required("reconstruction.input_dir", c.Reconstruction.InputDir)...)
	errors = append(errors, validatePath("reconstruction.input_dir", c.Reconstruction.InputDir)...)

	if len(c.Reconstruction.Command) == 0 || strings.TrimSpace(c.Reconstruction.Command[0]) == "" {
		errors = append(errors, ValidationError{
			Field:   "reconstruction.command",
			Value:   c.Reconstruction.Command,
			Message: "is required",
		})
	}

	// {script} without a script would run the interpreter with no program
	for _, arg := range c.Reconstruction.Command {
		if strings.Contains(arg, "{script}") && c.Reconstruction.Script == "" {
			errors = append(errors, ValidationError{
				Field:   "reconstruction.script",
				Value:   c.Reconstruction.Script,
				Message: "is required when reconstruction.command uses {script}",
			})
			break
		}
	}

	return errors
}

func (c *Config) validateForeign() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidModes(), c.Foreign.Mode) {
		errors = append(errors, ValidationError{
			Field:   "foreign.mode",
			Value:   c.Foreign.Mode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidModes(), ", ")),
		})
	}

	if c.Foreign.Distro != "" && c.Foreign.Mode == ModeLocal {
		errors = append(errors, ValidationError{
			Field:   "foreign.distro",
			Value:   c.Foreign.Distro,
			Message: "only applies in wsl mode",
		})
	}

	errors = append(errors, required("foreign.output_dir", c.Foreign.OutputDir)...)
	errors = append(errors, validatePath("foreign.output_dir", c.Foreign.OutputDir)...)

	return errors
}

func (c *Config) validateAssets() []ValidationError {
	var errors []ValidationError

	errors = append(errors, required("assets.reconstruction_dir", c.Assets.ReconstructionDir)...)
	errors = append(errors, validatePath("assets.reconstruction_dir", c.Assets.ReconstructionDir)...)
	errors = append(errors, required("assets.render_dir", c.Assets.RenderDir)...)
	errors = append(errors, validatePath("assets.render_dir", c.Assets.RenderDir)...)

	return errors
}

func (c *Config) validateTranscode() []ValidationError {
	var errors []ValidationError

	errors = append(errors, validateFileName("transcode.output_name", c.Transcode.OutputName)...)
	errors = append(errors, required("transcode.anchor", c.Transcode.Anchor)...)

	if c.Transcode.ExpectedStride < 0 {
		errors = append(errors, ValidationError{
			Field:   "transcode.expected_stride",
			Value:   c.Transcode.ExpectedStride,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateSignal() []ValidationError {
	return validateFileName("signal.name", c.Signal.Name)
}

func (c *Config) validatePoll() []ValidationError {
	var errors []ValidationError

	if c.Poll.Interval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "poll.interval",
			Value:   c.Poll.Interval,
			Message: "must be positive",
		})
	}

	// Sub-10ms intervals turn the foreign listing into a busy loop of wsl.exe spawns
	const minInterval = 10 * time.Millisecond
	if c.Poll.Interval > 0 && c.Poll.Interval < minInterval {
		errors = append(errors, ValidationError{
			Field:   "poll.interval",
			Value:   c.Poll.Interval,
			Message: fmt.Sprintf("must be at least %s", minInterval),
		})
	}

	if c.Poll.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "poll.timeout",
			Value:   c.Poll.Timeout,
			Message: "must be non-negative (0 waits indefinitely)",
		})
	}

	if c.Poll.SettleChecks < 0 {
		errors = append(errors, ValidationError{
			Field:   "poll.settle_checks",
			Value:   c.Poll.SettleChecks,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
