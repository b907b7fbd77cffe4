package staging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reel-go/internal/config"
	"reel-go/internal/reel"
)

func sampleSpecs() []reel.CommandSpec {
	return []reel.CommandSpec{
		{Kind: reel.KindMoveFile, State: reel.StateStaged, Fingerprint: "aaaa", Template: reel.DefaultTemplate},
		{Kind: reel.KindUpdateMetadata, State: reel.StateStaged, Fingerprint: "aaaa", SourceName: "web",
			Params: reel.Params{"title": "Alien"}},
		{Kind: reel.KindCreateDirectory, Path: "/library/new"},
	}
}

// newAreas returns one staging area per backend.
func newAreas(t *testing.T) map[string]reel.StagingArea {
	t.Helper()
	fsArea, err := NewFileSystemStagingArea(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewFileSystemStagingArea() error = %v", err)
	}
	return map[string]reel.StagingArea{
		"memory":     &stagingArea{store: &memoryStore{}, maxCommands: 10},
		"filesystem": fsArea,
	}
}

func TestStagingArea_ReplaceAndList(t *testing.T) {
	for name, sa := range newAreas(t) {
		t.Run(name, func(t *testing.T) {
			specs, err := sa.List()
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(specs) != 0 {
				t.Fatalf("List() on empty area = %d specs", len(specs))
			}

			if err := sa.Replace(sampleSpecs()); err != nil {
				t.Fatalf("Replace() error = %v", err)
			}

			got, err := sa.List()
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("List() = %d specs, want 3", len(got))
			}
			if got[0].Kind != reel.KindMoveFile || got[1].SourceName != "web" || got[2].Path != "/library/new" {
				t.Errorf("List() order/content = %+v", got)
			}
			if got[1].Params["title"] != "Alien" {
				t.Errorf("params = %v", got[1].Params)
			}

			n, err := sa.Count()
			if err != nil || n != 3 {
				t.Errorf("Count() = %d, %v; want 3", n, err)
			}

			if err := sa.Replace(nil); err != nil {
				t.Fatalf("Replace(nil) error = %v", err)
			}
			if n, _ := sa.Count(); n != 0 {
				t.Errorf("Count() after clear = %d", n)
			}
		})
	}
}

func TestStagingArea_ReplaceRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		spec reel.CommandSpec
	}{
		{"unknown kind", reel.CommandSpec{Kind: "delete_file", Path: "/x"}},
		{"move without fingerprint", reel.CommandSpec{Kind: reel.KindMoveFile}},
		{"mkdir without path", reel.CommandSpec{Kind: reel.KindCreateDirectory}},
		{"executed command", reel.CommandSpec{Kind: reel.KindCreateDirectory, Path: "/x", State: reel.StateExecuted}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sa := &stagingArea{store: &memoryStore{}, maxCommands: 10}
			if err := sa.Replace(sampleSpecs()); err != nil {
				t.Fatalf("Replace() error = %v", err)
			}

			err := sa.Replace(append(sampleSpecs(), tt.spec))
			if !errors.Is(err, reel.ErrInvalidCommand) {
				t.Fatalf("Replace() error = %v, want ErrInvalidCommand", err)
			}
			var ve *reel.ValidationError
			if !errors.As(err, &ve) || len(ve.Violations) != 1 {
				t.Errorf("Replace() error = %v, want one violation", err)
			}
			if n, _ := sa.Count(); n != 3 {
				t.Errorf("queue changed after rejected Replace: %d", n)
			}
		})
	}
}

func TestStagingArea_MaxCommands(t *testing.T) {
	sa := &stagingArea{store: &memoryStore{}, maxCommands: 2}
	if err := sa.Replace(sampleSpecs()); err == nil {
		t.Error("Replace() over limit expected error")
	}
}

func TestFileSystemStagingArea_Persists(t *testing.T) {
	dir := t.TempDir()
	first, err := NewFileSystemStagingArea(dir, 10)
	if err != nil {
		t.Fatalf("NewFileSystemStagingArea() error = %v", err)
	}
	if err := first.Replace(sampleSpecs()); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	second, err := NewFileSystemStagingArea(dir, 10)
	if err != nil {
		t.Fatalf("NewFileSystemStagingArea() error = %v", err)
	}
	specs, err := second.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(specs) != 3 {
		t.Errorf("reopened queue has %d specs, want 3", len(specs))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "queue.json" {
		t.Errorf("staging dir entries = %v, want only queue.json", entries)
	}
}

func TestFileSystemStagingArea_BadQueueFile(t *testing.T) {
	t.Run("corrupt", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "queue.json"), []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		sa, _ := NewFileSystemStagingArea(dir, 10)
		if _, err := sa.List(); err == nil {
			t.Error("List() on corrupt queue expected error")
		}
	})

	t.Run("unknown version", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "queue.json"), []byte(`{"version": 99, "commands": []}`), 0o644); err != nil {
			t.Fatal(err)
		}
		sa, _ := NewFileSystemStagingArea(dir, 10)
		if _, err := sa.List(); err == nil {
			t.Error("List() on future queue version expected error")
		}
	})
}

func TestNewStagingAreaFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StagingConfig
		wantErr bool
	}{
		{"memory", config.StagingConfig{Type: "memory"}, false},
		{"filesystem", config.StagingConfig{Type: "filesystem", StagingDir: t.TempDir()}, false},
		{"filesystem without dir", config.StagingConfig{Type: "filesystem"}, true},
		{"unknown", config.StagingConfig{Type: "redis"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStagingAreaFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStagingAreaFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got == nil {
				t.Error("NewStagingAreaFromConfig() returned nil")
			}
		})
	}
}
