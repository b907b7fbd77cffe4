package reel

import (
	"io"
	"io/fs"
	"path/filepath"
	"strings"
)

// FilesystemManager is the filesystem collaborator consumed by records,
// commands and the service. Implementations report missing paths with errors
// matching fs.ErrNotExist, existing ones with fs.ErrExist, and non-empty
// directory removal with ErrNotEmpty.
type FilesystemManager interface {
	// Resolve makes rawPath absolute, stats it, and rejects special files.
	Resolve(rawPath string) (*Path, error)

	// Open opens a regular file for streaming reads.
	Open(path string) (io.ReadCloser, error)

	// Stat returns fresh info for path.
	Stat(path string) (fs.FileInfo, error)

	// FindFiles lists regular files under root, skipping ignored entries.
	FindFiles(root *Path, recursive bool) ([]*Path, error)

	// Move relocates src to dst. It never overwrites dst. A failed move
	// leaves the file at src.
	Move(src, dst string) error

	// Mkdir creates a single directory. The parent must exist.
	Mkdir(path string) error

	// RemoveDir removes an empty directory.
	RemoveDir(path string) error

	// Access probes whether the current user has the given access to path.
	// A denial is reported as *PermissionError.
	Access(path string, mode AccessMode) error
}

// Path is a resolved absolute path with the file info captured when it was
// resolved.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath is used by FilesystemManager implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{absPath: absPath, isDir: isDir, info: info}
}

func (p *Path) String() string    { return p.absPath }
func (p *Path) IsDir() bool       { return p.isDir }
func (p *Path) Info() fs.FileInfo { return p.info }

// Ext returns the lowercased extension including the dot.
func (p *Path) Ext() string { return strings.ToLower(filepath.Ext(p.absPath)) }

// exists reports whether path can be stat'ed.
func exists(fsmgr FilesystemManager, path string) bool {
	_, err := fsmgr.Stat(path)
	return err == nil
}

// nearestExisting walks up from dir until it finds a path that exists.
func nearestExisting(fsmgr FilesystemManager, dir string) string {
	for {
		if exists(fsmgr, dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
