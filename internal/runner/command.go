package runner

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
)

// maxLineBytes is the longest line Stream delivers in one piece. Longer
// runs without a line ending are delivered in chunks of this size.
const maxLineBytes = 1024 * 1024

// Command is a single process invocation prepared by a Builder.
type Command interface {
	// Output runs the command and returns its standard output.
	Output() ([]byte, error)

	// Stream runs the command and calls fn for every line of combined
	// stdout and stderr, in arrival order. fn may be nil.
	Stream(fn func(line string)) error
}

// Builder prepares commands. Tests substitute MockBuilder.
type Builder interface {
	Build(ctx context.Context, name string, args ...string) Command
}

// ExitCoder is implemented by errors that carry a process exit status,
// such as *exec.ExitError.
type ExitCoder interface {
	ExitCode() int
}

// ExecBuilder implements Builder using os/exec.
type ExecBuilder struct{}

// NewExecBuilder creates a new ExecBuilder.
func NewExecBuilder() *ExecBuilder {
	return &ExecBuilder{}
}

// Build creates a Command bound to ctx; cancelling ctx kills the process.
func (b *ExecBuilder) Build(ctx context.Context, name string, args ...string) Command {
	return &execCommand{cmd: exec.CommandContext(ctx, name, args...)}
}

type execCommand struct {
	cmd *exec.Cmd
}

func (c *execCommand) Output() ([]byte, error) {
	return c.cmd.Output()
}

func (c *execCommand) Stream(fn func(line string)) error {
	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	// stderr shares the stdout pipe
	c.cmd.Stderr = c.cmd.Stdout

	if err := c.cmd.Start(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	scanner.Split(scanOutputLines)
	for scanner.Scan() {
		if fn != nil {
			fn(scanner.Text())
		}
	}
	// The child blocks on a full pipe until it is read to the end
	_, _ = io.Copy(io.Discard, stdout)

	waitErr := c.cmd.Wait()
	if waitErr == nil && scanner.Err() != nil {
		return scanner.Err()
	}
	return waitErr
}

// scanOutputLines is a bufio.SplitFunc that ends lines at "\n", "\r\n" or a
// bare "\r", so progress bars redrawn in place arrive as separate lines.
// A run without any line ending is cut at maxLineBytes.
func scanOutputLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		// A trailing \r may be the first half of \r\n
		if atEOF || len(data) >= maxLineBytes {
			return i + 1, data[:i], nil
		}
		return 0, nil, nil
	}
	if atEOF || len(data) >= maxLineBytes {
		return len(data), data, nil
	}
	return 0, nil, nil
}
