package reel_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"reel-go/internal/reel"
	"reel-go/internal/testutil"
)

func newMoveFixture(t *testing.T) (*testutil.MockFilesystemManager, *reel.MediaRecord) {
	t.Helper()
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/incoming/alien.mkv", []byte("alien"))
	fsmgr.AddDirectory("/library")

	r, err := reel.NewMediaRecord(fsmgr, "/incoming/alien.mkv", nil)
	if err != nil {
		t.Fatalf("NewMediaRecord() error = %v", err)
	}
	r.AttachSourceData("guess", reel.NewMetadataBlock(map[string]any{"title": "Alien", "year": 1979}))
	return fsmgr, r
}

func TestMoveFile_ExecuteAndUndo(t *testing.T) {
	ctx := context.Background()
	fsmgr, r := newMoveFixture(t)

	m := reel.NewMoveFile(fsmgr, r, reel.DefaultTemplate, "/library")
	if errs := m.ValidateExec(); len(errs) != 0 {
		t.Fatalf("ValidateExec() = %v, want none", errs)
	}
	if err := m.Execute(ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	dst := "/library/Alien (1979)/Alien (1979).mkv"
	if !fsmgr.Exists(dst) || fsmgr.Exists("/incoming/alien.mkv") {
		t.Fatal("file was not moved")
	}
	if r.Path() != dst {
		t.Errorf("record path = %q, want %q", r.Path(), dst)
	}
	if got := m.CreatedDirs(); len(got) != 1 || got[0] != "/library/Alien (1979)" {
		t.Errorf("CreatedDirs() = %v", got)
	}
	if m.State() != reel.StateExecuted {
		t.Errorf("State() = %s, want executed", m.State())
	}

	if errs := m.ValidateUndo(); len(errs) != 0 {
		t.Fatalf("ValidateUndo() = %v, want none", errs)
	}
	if err := m.Undo(ctx); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if !fsmgr.Exists("/incoming/alien.mkv") {
		t.Error("file not returned to source")
	}
	if fsmgr.Exists("/library/Alien (1979)") {
		t.Error("created directory not removed")
	}
	if r.Path() != "/incoming/alien.mkv" {
		t.Errorf("record path = %q after undo", r.Path())
	}
	if m.State() != reel.StateUndone {
		t.Errorf("State() = %s, want undone", m.State())
	}
}

func TestMoveFile_StateErrors(t *testing.T) {
	ctx := context.Background()
	fsmgr, r := newMoveFixture(t)
	m := reel.NewMoveFile(fsmgr, r, reel.DefaultTemplate, "/library")

	if err := m.Undo(ctx); !errors.Is(err, reel.ErrInvalidState) {
		t.Errorf("Undo() before Execute error = %v, want ErrInvalidState", err)
	}
	if err := m.Execute(ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := m.Execute(ctx); !errors.Is(err, reel.ErrInvalidState) {
		t.Errorf("second Execute() error = %v, want ErrInvalidState", err)
	}
	if err := m.Undo(ctx); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if err := m.Undo(ctx); !errors.Is(err, reel.ErrInvalidState) {
		t.Errorf("second Undo() error = %v, want ErrInvalidState", err)
	}
}

func TestMoveFile_DestinationExists(t *testing.T) {
	fsmgr, r := newMoveFixture(t)
	fsmgr.AddFile("/library/Alien.mkv", []byte("other"))

	m := reel.NewMoveFile(fsmgr, r, "%title%ext", "/library")
	errs := m.ValidateExec()
	if len(errs) != 1 || !errors.Is(errs[0], reel.ErrAlreadyExists) {
		t.Errorf("ValidateExec() = %v, want one AlreadyExists", errs)
	}
	err := m.Execute(context.Background())
	if !errors.Is(err, reel.ErrAlreadyExists) {
		t.Fatalf("Execute() error = %v, want ErrAlreadyExists", err)
	}
	if content, _ := fsmgr.Content("/library/Alien.mkv"); string(content) != "other" {
		t.Error("existing destination was overwritten")
	}
	if m.State() != reel.StateStaged {
		t.Errorf("State() = %s, want staged after failure", m.State())
	}
}

func TestMoveFile_ValidateReportsEveryViolation(t *testing.T) {
	fsmgr, r := newMoveFixture(t)
	fsmgr.Deny("/incoming/alien.mkv", reel.AccessRead)
	fsmgr.Deny("/incoming/alien.mkv", reel.AccessWrite)
	fsmgr.Deny("/library", reel.AccessWrite)

	errs := reel.NewMoveFile(fsmgr, r, reel.DefaultTemplate, "/library").ValidateExec()
	if len(errs) != 3 {
		t.Fatalf("ValidateExec() = %v, want 3 violations", errs)
	}
	for _, err := range errs {
		var perr *reel.PermissionError
		if !errors.As(err, &perr) {
			t.Errorf("violation %v is not a *PermissionError", err)
		}
	}
}

func TestMoveFile_FailedMoveRemovesCreatedDirs(t *testing.T) {
	fsmgr, r := newMoveFixture(t)
	fsmgr.FailMove("/incoming/alien.mkv", errors.New("device busy"))

	m := reel.NewMoveFile(fsmgr, r, reel.DefaultTemplate, "/library")
	if err := m.Execute(context.Background()); err == nil {
		t.Fatal("Execute() expected error")
	}
	if fsmgr.Exists("/library/Alien (1979)") {
		t.Error("directory created for failed move was left behind")
	}
}

func TestMoveFile_UndoKeepsOccupiedDirectory(t *testing.T) {
	ctx := context.Background()
	fsmgr, r := newMoveFixture(t)

	m := reel.NewMoveFile(fsmgr, r, reel.DefaultTemplate, "/library")
	if err := m.Execute(ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	fsmgr.AddFile("/library/Alien (1979)/poster.jpg", []byte("jpg"))

	err := m.Undo(ctx)
	if !errors.Is(err, reel.ErrNotEmpty) {
		t.Fatalf("Undo() error = %v, want ErrNotEmpty", err)
	}
	if !fsmgr.Exists("/incoming/alien.mkv") {
		t.Error("file was not moved back")
	}
	if !fsmgr.Exists("/library/Alien (1979)/poster.jpg") {
		t.Error("directory contents were touched")
	}
}

func TestUpdateMetadata(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches block and restores prior on undo", func(t *testing.T) {
		_, r := newMoveFixture(t)
		r.AttachSourceData("web", reel.NewMetadataBlock(map[string]any{"title": "Old"}))
		src := testutil.NewStubSource("web", map[string]any{"title": "Alien", "director": "Ridley Scott"}, "title")

		u, err := reel.NewUpdateMetadata(r, src)
		if err != nil {
			t.Fatalf("NewUpdateMetadata() error = %v", err)
		}
		if err := u.Execute(ctx); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if v, _ := r.Resolve("director"); v != "Ridley Scott" {
			t.Errorf("director = %v", v)
		}
		if len(src.Calls) != 1 || src.Calls[0]["title"] != "Alien" {
			t.Errorf("source calls = %v", src.Calls)
		}

		if err := u.Undo(ctx); err != nil {
			t.Fatalf("Undo() error = %v", err)
		}
		b, ok := r.SourceData("web")
		if !ok {
			t.Fatal("prior web block missing after undo")
		}
		if v, _ := b.Get("title"); v != "Old" {
			t.Errorf("web title = %v, want Old", v)
		}
	})

	t.Run("undo removes block that did not exist", func(t *testing.T) {
		_, r := newMoveFixture(t)
		src := testutil.NewStubSource("nfo", map[string]any{"plot": "In space"})

		u, err := reel.NewUpdateMetadata(r, src)
		if err != nil {
			t.Fatalf("NewUpdateMetadata() error = %v", err)
		}
		if err := u.Execute(ctx); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if err := u.Undo(ctx); err != nil {
			t.Fatalf("Undo() error = %v", err)
		}
		if _, ok := r.SourceData("nfo"); ok {
			t.Error("nfo block still attached after undo")
		}
	})

	t.Run("missing required parameter fails at staging", func(t *testing.T) {
		_, r := newMoveFixture(t)
		src := testutil.NewStubSource("web", nil, "imdb_id")

		_, err := reel.NewUpdateMetadata(r, src)
		var merr *reel.MissingParameterError
		if !errors.As(err, &merr) {
			t.Fatalf("NewUpdateMetadata() error = %v, want *MissingParameterError", err)
		}
		if len(merr.Params) != 1 || merr.Params[0] != "imdb_id" {
			t.Errorf("missing params = %v", merr.Params)
		}
	})

	t.Run("fetch failure leaves record untouched", func(t *testing.T) {
		_, r := newMoveFixture(t)
		src := testutil.NewStubSource("web", nil)
		src.Err = errors.New("catalog down")

		u, err := reel.NewUpdateMetadata(r, src)
		if err != nil {
			t.Fatalf("NewUpdateMetadata() error = %v", err)
		}
		if err := u.Execute(ctx); err == nil {
			t.Fatal("Execute() expected error")
		}
		if u.State() != reel.StateStaged {
			t.Errorf("State() = %s, want staged", u.State())
		}
		if _, ok := r.SourceData("web"); ok {
			t.Error("web block attached despite failure")
		}
	})

	t.Run("user data merges into overrides", func(t *testing.T) {
		_, r := newMoveFixture(t)
		r.SetUserData("title", "Alien (1979)")

		u := reel.NewSetUserData(r, map[string]any{"year": 1980})
		if err := u.Execute(ctx); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if v, _ := r.Resolve("title"); v != "Alien (1979)" {
			t.Errorf("title = %v, existing override lost", v)
		}
		if v, _ := r.Resolve("year"); v != 1980 {
			t.Errorf("year = %v, want override 1980", v)
		}

		if err := u.Undo(ctx); err != nil {
			t.Fatalf("Undo() error = %v", err)
		}
		if v, _ := r.Resolve("year"); v != 1979 {
			t.Errorf("year after undo = %v, want 1979", v)
		}
	})
}

func TestCreateDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and removes", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/library")

		c, err := reel.NewCreateDirectory(fsmgr, "/library/Westerns")
		if err != nil {
			t.Fatalf("NewCreateDirectory() error = %v", err)
		}
		if err := c.Execute(ctx); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !fsmgr.Exists("/library/Westerns") {
			t.Fatal("directory not created")
		}
		if err := c.Undo(ctx); err != nil {
			t.Fatalf("Undo() error = %v", err)
		}
		if fsmgr.Exists("/library/Westerns") {
			t.Error("directory not removed")
		}
	})

	t.Run("validation reports existing path and missing parent", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/library/Westerns")

		exists, _ := reel.NewCreateDirectory(fsmgr, "/library/Westerns")
		if errs := exists.ValidateExec(); len(errs) != 1 || !errors.Is(errs[0], reel.ErrAlreadyExists) {
			t.Errorf("ValidateExec() = %v, want AlreadyExists", errs)
		}

		orphan, _ := reel.NewCreateDirectory(fsmgr, "/nowhere/deep")
		if errs := orphan.ValidateExec(); len(errs) != 1 || !errors.Is(errs[0], reel.ErrNotFound) {
			t.Errorf("ValidateExec() = %v, want NotFound parent", errs)
		}
		if err := orphan.Execute(ctx); !errors.Is(err, reel.ErrNotFound) {
			t.Errorf("Execute() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("undo refuses non-empty directory", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/library")

		c, _ := reel.NewCreateDirectory(fsmgr, "/library/Westerns")
		if err := c.Execute(ctx); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		fsmgr.AddFile("/library/Westerns/high.noon.mkv", []byte("x"))

		err := c.Undo(ctx)
		var nerr *reel.DirectoryNotEmptyError
		if !errors.As(err, &nerr) {
			t.Fatalf("Undo() error = %v, want *DirectoryNotEmptyError", err)
		}
		if c.State() != reel.StateExecuted {
			t.Errorf("State() = %s, want executed", c.State())
		}
	})
}

func TestRebuild_PreservesUndoState(t *testing.T) {
	ctx := context.Background()
	fsmgr, r := newMoveFixture(t)
	coll := reel.NewCollection()
	coll.Add(r)

	m := reel.NewMoveFile(fsmgr, r, reel.DefaultTemplate, "/library")
	if err := m.Execute(ctx); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	data, err := json.Marshal(m.Spec())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var spec reel.CommandSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	rebuilt, err := reel.Rebuild(spec, reel.RebuildEnv{Collection: coll, FS: fsmgr})
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if rebuilt.State() != reel.StateExecuted {
		t.Errorf("rebuilt State() = %s, want executed", rebuilt.State())
	}
	if err := rebuilt.Undo(ctx); err != nil {
		t.Fatalf("rebuilt Undo() error = %v", err)
	}
	if !fsmgr.Exists("/incoming/alien.mkv") || fsmgr.Exists("/library/Alien (1979)") {
		t.Error("rebuilt undo did not restore the original layout")
	}
}

func TestRebuild_Errors(t *testing.T) {
	env := reel.RebuildEnv{Collection: reel.NewCollection(), FS: testutil.NewMockFilesystemManager()}

	if _, err := reel.Rebuild(reel.CommandSpec{Kind: "teleport"}, env); err == nil {
		t.Error("Rebuild() of unknown kind expected error")
	}
	_, err := reel.Rebuild(reel.CommandSpec{Kind: reel.KindMoveFile, Fingerprint: "gone"}, env)
	if !errors.Is(err, reel.ErrNotFound) {
		t.Errorf("Rebuild() of unknown record error = %v, want ErrNotFound", err)
	}
}

// warnLogger keeps the messages logged at warn level.
type warnLogger struct {
	reel.NopLogger
	warnings []string
}

func (l *warnLogger) Warn(msg string, args ...any) { l.warnings = append(l.warnings, msg) }

func TestMoveFile_LogsUnrefreshedAttributes(t *testing.T) {
	fsmgr, r := newMoveFixture(t)
	dst := "/library/Alien (1979)/Alien (1979).mkv"
	fsmgr.FailStat(dst, errors.New("input/output error"))
	logger := &warnLogger{}

	m := reel.NewMoveFile(fsmgr, r, reel.DefaultTemplate, "/library").WithLogger(logger)
	if err := m.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if r.Path() != dst {
		t.Errorf("record path = %q, want %q", r.Path(), dst)
	}
	if len(logger.warnings) != 1 {
		t.Errorf("warnings = %v, want one for the failed refresh", logger.warnings)
	}
}
