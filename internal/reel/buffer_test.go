package reel_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"reel-go/internal/reel"
)

// fakeCommand records the order of executions and undos in a shared log.
type fakeCommand struct {
	name    string
	log     *[]string
	execErr error
	undoErr error
	state   reel.CommandState
}

func newFake(name string, log *[]string) *fakeCommand {
	return &fakeCommand{name: name, log: log, state: reel.StateStaged}
}

func (f *fakeCommand) Describe() string         { return f.name }
func (f *fakeCommand) State() reel.CommandState { return f.state }
func (f *fakeCommand) Spec() reel.CommandSpec   { return reel.CommandSpec{State: f.state} }
func (f *fakeCommand) ValidateUndo() []error    { return nil }

func (f *fakeCommand) ValidateExec() []error {
	if f.execErr != nil {
		return []error{f.execErr}
	}
	return nil
}

func (f *fakeCommand) Execute(context.Context) error {
	if f.execErr != nil {
		return f.execErr
	}
	*f.log = append(*f.log, "exec "+f.name)
	f.state = reel.StateExecuted
	return nil
}

func (f *fakeCommand) Undo(context.Context) error {
	if f.undoErr != nil {
		return f.undoErr
	}
	*f.log = append(*f.log, "undo "+f.name)
	f.state = reel.StateUndone
	return nil
}

func TestCommandBuffer_CommitIsFIFO_UndoIsLIFO(t *testing.T) {
	ctx := context.Background()
	var log []string
	b := reel.NewCommandBuffer(nil)
	for _, name := range []string{"a", "b", "c"} {
		if err := b.Stage(newFake(name, &log)); err != nil {
			t.Fatalf("Stage(%s) error = %v", name, err)
		}
	}

	if got := b.Preview(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Preview() = %v", got)
	}
	if len(log) != 0 {
		t.Fatalf("Preview() had side effects: %v", log)
	}

	executed, err := b.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(executed) != 3 || len(b.Pending()) != 0 || len(b.History()) != 3 {
		t.Fatalf("after Commit() executed=%d pending=%d history=%d", len(executed), len(b.Pending()), len(b.History()))
	}

	if _, err := b.UndoLast(ctx); err != nil {
		t.Fatalf("UndoLast() error = %v", err)
	}
	undone, err := b.UndoAll(ctx)
	if err != nil {
		t.Fatalf("UndoAll() error = %v", err)
	}
	if len(undone) != 2 {
		t.Errorf("UndoAll() undid %d, want 2", len(undone))
	}

	want := []string{"exec a", "exec b", "exec c", "undo c", "undo b", "undo a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}

	if _, err := b.UndoLast(ctx); !errors.Is(err, reel.ErrNothingToUndo) {
		t.Errorf("UndoLast() on empty history error = %v, want ErrNothingToUndo", err)
	}
}

func TestCommandBuffer_CommitHaltsOnFailure(t *testing.T) {
	var log []string
	b := reel.NewCommandBuffer(nil)
	failing := newFake("b", &log)
	failing.execErr = errors.New("disk full")
	b.Stage(newFake("a", &log))
	b.Stage(failing)
	b.Stage(newFake("c", &log))

	executed, err := b.Commit(context.Background())
	var cerr *reel.CommitError
	if !errors.As(err, &cerr) {
		t.Fatalf("Commit() error = %v, want *CommitError", err)
	}
	if cerr.Index != 1 || cerr.Description != "b" {
		t.Errorf("CommitError = %+v, want index 1 for b", cerr)
	}
	if len(executed) != 1 {
		t.Errorf("executed = %d, want 1", len(executed))
	}

	pending := b.Pending()
	if len(pending) != 2 || pending[0] != failing {
		t.Errorf("pending = %d commands, want the failed one first", len(pending))
	}
	if len(b.History()) != 1 {
		t.Errorf("history = %d, want 1", len(b.History()))
	}
}

func TestCommandBuffer_FailedUndoIsDropped(t *testing.T) {
	ctx := context.Background()
	var log []string
	b := reel.NewCommandBuffer(nil)
	a, bad, c := newFake("a", &log), newFake("b", &log), newFake("c", &log)
	bad.undoErr = errors.New("moved by hand")
	for _, cmd := range []*fakeCommand{a, bad, c} {
		b.Stage(cmd)
	}
	if _, err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	undone, err := b.UndoAll(ctx)
	if err == nil {
		t.Fatal("UndoAll() expected error")
	}
	if len(undone) != 1 {
		t.Errorf("undone = %d, want 1", len(undone))
	}
	history := b.History()
	if len(history) != 1 || history[0] != a {
		t.Errorf("history = %v, want only a", history)
	}
}

func TestCommandBuffer_StageRejects(t *testing.T) {
	var log []string
	b := reel.NewCommandBuffer(nil)

	if err := b.Stage(nil); !errors.Is(err, reel.ErrInvalidCommand) {
		t.Errorf("Stage(nil) error = %v", err)
	}

	cmd := newFake("a", &log)
	if err := b.Stage(cmd); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if err := b.Stage(cmd); !errors.Is(err, reel.ErrInvalidCommand) {
		t.Errorf("Stage() duplicate error = %v", err)
	}

	done := newFake("done", &log)
	done.state = reel.StateExecuted
	if err := b.Stage(done); !errors.Is(err, reel.ErrInvalidCommand) {
		t.Errorf("Stage() executed command error = %v", err)
	}
}

func TestCommandBuffer_ValidateAndClear(t *testing.T) {
	var log []string
	b := reel.NewCommandBuffer(nil)
	bad := newFake("b", &log)
	bad.execErr = errors.New("source missing")
	b.Stage(newFake("a", &log))
	b.Stage(bad)

	violations := b.ValidatePending()
	if len(violations) != 1 || violations[0].Index != 1 {
		t.Errorf("ValidatePending() = %v, want one violation at index 1", violations)
	}

	if n := b.ClearPending(); n != 2 {
		t.Errorf("ClearPending() = %d, want 2", n)
	}
	if len(b.Pending()) != 0 {
		t.Error("pending not cleared")
	}
	if len(log) != 0 {
		t.Errorf("validation or clear executed commands: %v", log)
	}
}

func TestCommandBuffer_CommitEmptyIsNoop(t *testing.T) {
	b := reel.NewCommandBuffer(nil)
	executed, err := b.Commit(context.Background())
	if err != nil || len(executed) != 0 {
		t.Errorf("Commit() = %v, %v; want no-op", executed, err)
	}
}

func TestCommandBuffer_CommitStopsOnCancel(t *testing.T) {
	var log []string
	b := reel.NewCommandBuffer(nil)
	b.Stage(newFake("a", &log))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Commit(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Commit() error = %v, want context.Canceled", err)
	}
	if len(b.Pending()) != 1 {
		t.Error("canceled commit consumed pending commands")
	}
}

func TestCommandBuffer_Load(t *testing.T) {
	var log []string
	b := reel.NewCommandBuffer(nil)

	executed := newFake("x", &log)
	executed.state = reel.StateExecuted
	if err := b.Load([]reel.Command{newFake("a", &log)}, []reel.Command{executed}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := b.Load([]reel.Command{executed}, nil); !errors.Is(err, reel.ErrInvalidCommand) {
		t.Errorf("Load() executed as pending error = %v", err)
	}
}
