package reel

import (
	"context"
	"fmt"
	"sync"
)

// Violation is one failed precondition of a pending command.
type Violation struct {
	Index       int // position in the pending queue
	Description string
	Err         error
}

func (v Violation) Error() string {
	return fmt.Sprintf("#%d %s: %v", v.Index+1, v.Description, v.Err)
}

func (v Violation) Unwrap() error { return v.Err }

// CommandBuffer holds a FIFO queue of staged commands and a LIFO history of
// executed ones. A command is never in both at once: it moves from pending to
// history only when it executes successfully.
type CommandBuffer struct {
	mu      sync.Mutex
	pending []Command
	history []Command
	logger  Logger
}

func NewCommandBuffer(logger Logger) *CommandBuffer {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &CommandBuffer{logger: logger}
}

// Stage appends cmd to the pending queue. Nil commands, commands that are
// not in the staged state, and commands already queued are rejected with
// ErrInvalidCommand.
func (b *CommandBuffer) Stage(cmd Command) error {
	if cmd == nil {
		return fmt.Errorf("%w: nil command", ErrInvalidCommand)
	}
	if cmd.State() != StateStaged {
		return fmt.Errorf("%w: command %q is %s, not staged", ErrInvalidCommand, cmd.Describe(), cmd.State())
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.pending {
		if p == cmd {
			return fmt.Errorf("%w: command %q is already staged", ErrInvalidCommand, cmd.Describe())
		}
	}
	b.pending = append(b.pending, cmd)
	return nil
}

// Preview describes the pending commands in execution order without side
// effects.
func (b *CommandBuffer) Preview() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.pending))
	for i, c := range b.pending {
		out[i] = c.Describe()
	}
	return out
}

// ValidatePending runs every pending command's exec validation and collects
// all violations. Nothing is executed.
func (b *CommandBuffer) ValidatePending() []Violation {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Violation
	for i, c := range b.pending {
		for _, err := range c.ValidateExec() {
			out = append(out, Violation{Index: i, Description: c.Describe(), Err: err})
		}
	}
	return out
}

// Commit executes pending commands in FIFO order, pushing each success onto
// the history. It halts at the first failure: the failed command and all
// later ones stay pending, earlier ones stay undoable. It returns the
// commands executed by this call. An empty queue is a no-op.
func (b *CommandBuffer) Commit(ctx context.Context) ([]Command, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var executed []Command
	for len(b.pending) > 0 {
		if err := ctx.Err(); err != nil {
			return executed, err
		}
		cmd := b.pending[0]
		desc := cmd.Describe()
		if err := cmd.Execute(ctx); err != nil {
			b.logger.Error("command failed", "index", len(executed), "command", desc, "error", err)
			return executed, &CommitError{Index: len(executed), Description: desc, Err: err}
		}
		b.pending = b.pending[1:]
		b.history = append(b.history, cmd)
		executed = append(executed, cmd)
		b.logger.Info("command executed", "command", desc)
	}
	return executed, nil
}

// UndoLast pops the most recent command and undoes it. If the undo fails the
// command is not pushed back, since its state can no longer be trusted.
func (b *CommandBuffer) UndoLast(ctx context.Context) (Command, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.undoLast(ctx)
}

func (b *CommandBuffer) undoLast(ctx context.Context) (Command, error) {
	if len(b.history) == 0 {
		return nil, ErrNothingToUndo
	}
	cmd := b.history[len(b.history)-1]
	b.history = b.history[:len(b.history)-1]

	desc := cmd.Describe()
	if err := cmd.Undo(ctx); err != nil {
		b.logger.Error("undo failed, command dropped from history", "command", desc, "error", err)
		return cmd, fmt.Errorf("undoing %s: %w", desc, err)
	}
	b.logger.Info("command undone", "command", desc)
	return cmd, nil
}

// UndoAll undoes history newest first until it is empty or an undo fails.
// It returns the commands undone successfully.
func (b *CommandBuffer) UndoAll(ctx context.Context) ([]Command, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var undone []Command
	for len(b.history) > 0 {
		if err := ctx.Err(); err != nil {
			return undone, err
		}
		cmd, err := b.undoLast(ctx)
		if err != nil {
			return undone, err
		}
		undone = append(undone, cmd)
	}
	return undone, nil
}

// ClearPending drops the pending queue without executing it and returns how
// many commands were discarded. History is untouched.
func (b *CommandBuffer) ClearPending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.pending)
	b.pending = nil
	return n
}

// ResetHistory forgets executed commands without undoing them.
func (b *CommandBuffer) ResetHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}

func (b *CommandBuffer) Pending() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Command(nil), b.pending...)
}

func (b *CommandBuffer) History() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Command(nil), b.history...)
}

// Load replaces both sequences, typically with commands rebuilt from
// persisted specs. Pending commands must be staged and history commands
// executed.
func (b *CommandBuffer) Load(pending, history []Command) error {
	for _, c := range pending {
		if c == nil || c.State() != StateStaged {
			return fmt.Errorf("%w: pending command not in staged state", ErrInvalidCommand)
		}
	}
	for _, c := range history {
		if c == nil || c.State() != StateExecuted {
			return fmt.Errorf("%w: history command not in executed state", ErrInvalidCommand)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append([]Command(nil), pending...)
	b.history = append([]Command(nil), history...)
	return nil
}
