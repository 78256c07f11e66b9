// Package runner invokes external processes in the local or foreign (WSL)
// environment and turns non-zero exits into typed errors.
package runner

import (
	"context"
	"strings"

	apperrors "github.com/splatpipe/splatpipe/internal/errors"
	"github.com/splatpipe/splatpipe/internal/logging"
)

// WSLExecutable is the Windows launcher for WSL distributions.
const WSLExecutable = "wsl.exe"

// DefaultTailLines is how many trailing output lines an ExternalProcessError keeps.
const DefaultTailLines = 20

// Environment identifies where commands execute.
type Environment struct {
	// WSL routes every command through wsl.exe when true.
	WSL bool
	// Distro selects a WSL distribution; empty uses the default one.
	Distro string
}

// Wrap returns the host-side argv that runs argv inside the environment.
func (e Environment) Wrap(argv []string) []string {
	if !e.WSL {
		return append([]string(nil), argv...)
	}
	out := []string{WSLExecutable}
	if e.Distro != "" {
		out = append(out, "-d", e.Distro)
	}
	out = append(out, "--exec")
	return append(out, argv...)
}

// Invocation describes one reconstruction run.
type Invocation struct {
	// Activation is the trusted shell snippet run before the command (may be empty).
	Activation string
	// Argv is the command and its arguments, passed without shell parsing.
	Argv []string
}

// Runner executes commands synchronously in one Environment.
type Runner struct {
	builder   Builder
	env       Environment
	logger    *logging.Logger
	tailLines int
}

// New creates a Runner. A nil logger discards output.
func New(builder Builder, env Environment, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Runner{
		builder:   builder,
		env:       env,
		logger:    logger,
		tailLines: DefaultTailLines,
	}
}

// Environment returns the environment commands run in.
func (r *Runner) Environment() Environment {
	return r.env
}

// Run executes inv inside a login shell and blocks until it exits. Output is
// logged line by line. A non-zero exit returns an *errors.ExternalProcessError
// carrying the exit code and the last lines of output.
func (r *Runner) Run(ctx context.Context, inv Invocation) error {
	if len(inv.Argv) == 0 {
		return apperrors.NewConfigurationError("reconstruction command is empty", apperrors.ErrMissingValue).
			WithKey("reconstruction.command")
	}

	argv := r.env.Wrap(LoginShellArgv(inv.Activation, inv.Argv))
	display := strings.Join(argv, " ")
	r.logger.Info("starting process", "command", display)

	tail := newTailBuffer(r.tailLines)
	err := r.builder.Build(ctx, argv[0], argv[1:]...).Stream(func(line string) {
		tail.add(line)
		r.logger.Info("process output", "line", line)
	})
	if err == nil {
		r.logger.Info("process exited", "exit_code", 0)
		return nil
	}

	return r.processError(ctx, "reconstruction process failed", display, tail.String(), err)
}

// Output runs name with args inside the environment without a login shell
// and returns trimmed standard output.
func (r *Runner) Output(ctx context.Context, name string, args ...string) (string, error) {
	argv := r.env.Wrap(append([]string{name}, args...))
	display := strings.Join(argv, " ")
	r.logger.Debug("running command", "command", display)

	out, err := r.builder.Build(ctx, argv[0], argv[1:]...).Output()
	if err != nil {
		return "", r.processError(ctx, "command failed", display, strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *Runner) processError(ctx context.Context, msg, command, output string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperrors.NewExternalProcessError("process interrupted", ctxErr).WithCommand(command)
	}

	perr := apperrors.NewExternalProcessError(msg, err).WithCommand(command).WithOutput(output)
	if code, ok := ExitCodeOf(err); ok {
		perr = perr.WithExitCode(code)
		r.logger.Error("process exited", "command", command, "exit_code", code)
	} else {
		r.logger.Error("process could not be started", "command", command, "error", err.Error())
	}
	return perr
}

// ExitCodeOf extracts the exit status from err. ok is false when the
// process never ran to completion (for example the binary is missing).
func ExitCodeOf(err error) (code int, ok bool) {
	var coder ExitCoder
	if apperrors.As(err, &coder) {
		return coder.ExitCode(), true
	}
	return 0, false
}

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	lines []string
	n     int
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (b *tailBuffer) add(line string) {
	if b.n <= 0 {
		return
	}
	if len(b.lines) == b.n {
		copy(b.lines, b.lines[1:])
		b.lines = b.lines[:b.n-1]
	}
	b.lines = append(b.lines, line)
}

func (b *tailBuffer) String() string {
	return strings.Join(b.lines, "\n")
}
