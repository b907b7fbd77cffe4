//go:build unix

package fs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestOSFilesystemManager_Move(t *testing.T) {
	m := NewOSFilesystemManager(nil)

	t.Run("renames", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "a.mkv")
		dst := filepath.Join(dir, "b.mkv")
		writeFile(t, src, "data")

		if err := m.Move(src, dst); err != nil {
			t.Fatalf("Move() error = %v", err)
		}
		if _, err := os.Stat(src); !os.IsNotExist(err) {
			t.Errorf("source still present")
		}
		if data, _ := os.ReadFile(dst); string(data) != "data" {
			t.Errorf("destination content = %q", data)
		}
	})

	t.Run("never overwrites", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "a.mkv")
		dst := filepath.Join(dir, "b.mkv")
		writeFile(t, src, "new")
		writeFile(t, dst, "old")

		if err := m.Move(src, dst); !errors.Is(err, fs.ErrExist) {
			t.Fatalf("Move() error = %v, want ErrExist", err)
		}
		if data, _ := os.ReadFile(dst); string(data) != "old" {
			t.Errorf("destination overwritten: %q", data)
		}
		if _, err := os.Stat(src); err != nil {
			t.Errorf("source lost: %v", err)
		}
	})

	t.Run("missing parent leaves source", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "a.mkv")
		writeFile(t, src, "x")
		if err := m.Move(src, filepath.Join(dir, "no", "b.mkv")); err == nil {
			t.Fatal("Move() expected error")
		}
		if _, err := os.Stat(src); err != nil {
			t.Errorf("source lost: %v", err)
		}
	})
}

func TestOSFilesystemManager_MoveCrossDevice(t *testing.T) {
	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameFunc = old }()

	dir := t.TempDir()
	src := filepath.Join(dir, "a.mkv")
	dst := filepath.Join(dir, "b.mkv")
	writeFile(t, src, "payload")
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	m := NewOSFilesystemManager(nil)
	if err := m.Move(src, dst); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source still present after copy fallback")
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat destination: %v", err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}
	if data, _ := os.ReadFile(dst); string(data) != "payload" {
		t.Errorf("destination content = %q", data)
	}
}

func TestRename_CrossDevice(t *testing.T) {
	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameFunc = old }()

	err := rename("/a", "/b")
	var cde *CrossDeviceError
	if !errors.As(err, &cde) {
		t.Fatalf("rename() error = %T %v, want CrossDeviceError", err, err)
	}
	if !errors.Is(err, syscall.EXDEV) {
		t.Error("CrossDeviceError should unwrap to EXDEV")
	}
}
