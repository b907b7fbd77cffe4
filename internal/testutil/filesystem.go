package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"reel-go/internal/reel"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing. The root
// directory always exists; adding a file creates its parent directories.
type MockFilesystemManager struct {
	files   map[string]*MockFile
	denied  map[string]map[reel.AccessMode]bool
	moveErr map[string]error
	rmErr   map[string]error
	statErr map[string]error
	now     time.Time
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:   map[string]*MockFile{"/": {Permissions: fs.ModeDir | 0o755, IsDirectory: true}},
		denied:  make(map[string]map[reel.AccessMode]bool),
		moveErr: make(map[string]error),
		rmErr:   make(map[string]error),
		statErr: make(map[string]error),
		now:     time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

// AddFile adds a file to the mock filesystem, creating parent directories.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	path = filepath.Clean(path)
	m.AddDirectory(filepath.Dir(path))
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0o644,
		ModTime:     m.now,
	}
}

// AddDirectory adds a directory and its missing parents.
func (m *MockFilesystemManager) AddDirectory(path string) {
	path = filepath.Clean(path)
	for p := path; ; p = filepath.Dir(p) {
		if _, ok := m.files[p]; !ok {
			m.files[p] = &MockFile{Permissions: fs.ModeDir | 0o755, ModTime: m.now, IsDirectory: true}
		}
		if p == filepath.Dir(p) {
			return
		}
	}
}

// SetContent rewrites a file's content, as if edited outside reel.
func (m *MockFilesystemManager) SetContent(path string, content []byte) {
	if f, ok := m.files[filepath.Clean(path)]; ok {
		f.Content = content
		f.ModTime = f.ModTime.Add(time.Minute)
	}
}

// Remove deletes a file or directory entry without any checks.
func (m *MockFilesystemManager) Remove(path string) {
	delete(m.files, filepath.Clean(path))
}

// Exists reports whether path is present.
func (m *MockFilesystemManager) Exists(path string) bool {
	_, ok := m.files[filepath.Clean(path)]
	return ok
}

// Content returns a file's content.
func (m *MockFilesystemManager) Content(path string) ([]byte, bool) {
	f, ok := m.files[filepath.Clean(path)]
	if !ok || f.IsDirectory {
		return nil, false
	}
	return f.Content, true
}

// Deny makes Access fail for path and mode.
func (m *MockFilesystemManager) Deny(path string, mode reel.AccessMode) {
	path = filepath.Clean(path)
	if m.denied[path] == nil {
		m.denied[path] = make(map[reel.AccessMode]bool)
	}
	m.denied[path][mode] = true
}

// FailMove makes the next moves out of src fail with err.
func (m *MockFilesystemManager) FailMove(src string, err error) {
	m.moveErr[filepath.Clean(src)] = err
}

// FailRemoveDir makes removal of path fail with err.
func (m *MockFilesystemManager) FailRemoveDir(path string, err error) {
	m.rmErr[filepath.Clean(path)] = err
}

// FailStat makes Stat of path fail with err. The file itself is untouched.
func (m *MockFilesystemManager) FailStat(path string, err error) {
	m.statErr[filepath.Clean(path)] = err
}

func notExist(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*reel.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}
	info, err := m.Stat(absPath)
	if err != nil {
		return nil, err
	}
	return reel.NewPath(absPath, info.IsDir(), info), nil
}

func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	file, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, notExist("open", path)
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path)
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	path = filepath.Clean(path)
	if err, ok := m.statErr[path]; ok {
		return nil, err
	}
	file, ok := m.files[path]
	if !ok {
		return nil, notExist("stat", path)
	}
	return &mockFileInfo{
		name:     filepath.Base(path),
		size:     int64(len(file.Content)),
		mode:     file.Permissions,
		modTime:  file.ModTime,
		isDir:    file.IsDirectory,
		mockFile: file,
	}, nil
}

func (m *MockFilesystemManager) FindFiles(root *reel.Path, recursive bool) ([]*reel.Path, error) {
	if !root.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root.String())
	}
	prefix := strings.TrimSuffix(root.String(), "/") + "/"
	var names []string
	for p, f := range m.files {
		if f.IsDirectory || !strings.HasPrefix(p, prefix) {
			continue
		}
		if !recursive && filepath.Dir(p) != filepath.Clean(root.String()) {
			continue
		}
		names = append(names, p)
	}
	sort.Strings(names)

	paths := make([]*reel.Path, 0, len(names))
	for _, p := range names {
		info, _ := m.Stat(p)
		paths = append(paths, reel.NewPath(p, false, info))
	}
	return paths, nil
}

func (m *MockFilesystemManager) Move(src, dst string) error {
	src, dst = filepath.Clean(src), filepath.Clean(dst)
	if err, ok := m.moveErr[src]; ok {
		return err
	}
	file, ok := m.files[src]
	if !ok {
		return notExist("move", src)
	}
	if _, ok := m.files[dst]; ok {
		return &fs.PathError{Op: "move", Path: dst, Err: fs.ErrExist}
	}
	if parent, ok := m.files[filepath.Dir(dst)]; !ok || !parent.IsDirectory {
		return notExist("move", filepath.Dir(dst))
	}
	if file.IsDirectory {
		return fmt.Errorf("mock cannot move directories: %s", src)
	}
	m.files[dst] = file
	delete(m.files, src)
	return nil
}

func (m *MockFilesystemManager) Mkdir(path string) error {
	path = filepath.Clean(path)
	if _, ok := m.files[path]; ok {
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrExist}
	}
	if parent, ok := m.files[filepath.Dir(path)]; !ok || !parent.IsDirectory {
		return notExist("mkdir", path)
	}
	m.files[path] = &MockFile{Permissions: fs.ModeDir | 0o755, ModTime: m.now, IsDirectory: true}
	return nil
}

func (m *MockFilesystemManager) RemoveDir(path string) error {
	path = filepath.Clean(path)
	if err, ok := m.rmErr[path]; ok {
		return err
	}
	file, ok := m.files[path]
	if !ok {
		return notExist("remove", path)
	}
	if !file.IsDirectory {
		return fmt.Errorf("not a directory: %s", path)
	}
	prefix := strings.TrimSuffix(path, "/") + "/"
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			return &reel.DirectoryNotEmptyError{Path: path}
		}
	}
	delete(m.files, path)
	return nil
}

func (m *MockFilesystemManager) Access(path string, mode reel.AccessMode) error {
	path = filepath.Clean(path)
	if _, ok := m.files[path]; !ok {
		return notExist("access", path)
	}
	if m.denied[path][mode] {
		return &reel.PermissionError{Path: path, Mode: mode}
	}
	return nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name     string
	size     int64
	mode     fs.FileMode
	modTime  time.Time
	isDir    bool
	mockFile *MockFile
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return m.mockFile }

// Compile-time check
var _ reel.FilesystemManager = (*MockFilesystemManager)(nil)
