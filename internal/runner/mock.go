package runner

import (
	"context"
	"fmt"
	"sync"
)

// MockCommand implements Command for testing.
type MockCommand struct {
	// Stdout is returned from Output.
	Stdout []byte
	// Lines are delivered to the Stream callback.
	Lines []string
	// ExitCode, when non-zero, makes the command fail with a *MockExitError.
	ExitCode int
	// Err simulates a command that could not be started. It takes precedence over ExitCode.
	Err error
	// OnRun is invoked when the command runs, before it reports its result.
	OnRun func()

	mu     sync.Mutex
	called bool
}

// Output returns the configured stdout and result.
func (m *MockCommand) Output() ([]byte, error) {
	m.markCalled()
	if m.OnRun != nil {
		m.OnRun()
	}
	return m.Stdout, m.result()
}

// Stream delivers the configured lines and returns the configured result.
func (m *MockCommand) Stream(fn func(line string)) error {
	m.markCalled()
	if m.OnRun != nil {
		m.OnRun()
	}
	if fn != nil {
		for _, line := range m.Lines {
			fn(line)
		}
	}
	return m.result()
}

// Called reports whether the command was run.
func (m *MockCommand) Called() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.called
}

func (m *MockCommand) markCalled() {
	m.mu.Lock()
	m.called = true
	m.mu.Unlock()
}

func (m *MockCommand) result() error {
	if m.Err != nil {
		return m.Err
	}
	if m.ExitCode != 0 {
		return &MockExitError{Code: m.ExitCode}
	}
	return nil
}

// MockExitError mimics *exec.ExitError for a process that exited non-zero.
type MockExitError struct {
	Code int
}

func (e *MockExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the simulated exit status.
func (e *MockExitError) ExitCode() int {
	return e.Code
}

// MockBuiltCommand records a command built by MockBuilder.
type MockBuiltCommand struct {
	Name string
	Args []string
}

// Argv returns the name followed by the arguments.
func (c MockBuiltCommand) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// MockBuilder implements Builder for testing. It is safe for concurrent use.
type MockBuilder struct {
	mu sync.Mutex

	commands []MockBuiltCommand
	// NextCommand is returned by the next Build call. If nil, a successful MockCommand is returned.
	NextCommand *MockCommand
	// CommandFactory, when set, decides the command for every Build call.
	CommandFactory func(name string, args []string) *MockCommand
}

// NewMockBuilder creates a new MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{}
}

// Build records the command and returns the configured MockCommand.
func (b *MockBuilder) Build(_ context.Context, name string, args ...string) Command {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.commands = append(b.commands, MockBuiltCommand{Name: name, Args: append([]string(nil), args...)})

	if b.CommandFactory != nil {
		return b.CommandFactory(name, args)
	}
	if b.NextCommand != nil {
		cmd := b.NextCommand
		b.NextCommand = nil
		return cmd
	}
	return &MockCommand{}
}

// SetNextCommand sets the command to return for the next Build call.
func (b *MockBuilder) SetNextCommand(cmd *MockCommand) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.NextCommand = cmd
}

// Commands returns a copy of every command built so far.
func (b *MockBuilder) Commands() []MockBuiltCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]MockBuiltCommand(nil), b.commands...)
}

// LastCommand returns the most recently built command, or nil if none.
func (b *MockBuilder) LastCommand() *MockBuiltCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.commands) == 0 {
		return nil
	}
	last := b.commands[len(b.commands)-1]
	return &last
}

// Reset clears all recorded commands.
func (b *MockBuilder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = nil
	b.NextCommand = nil
}
