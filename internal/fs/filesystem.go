package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"reel-go/internal/reel"
)

// IgnoreFileName is read from the root of every scanned directory.
const IgnoreFileName = ".reelignore"

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct {
	ignore []string
}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
// ignore holds patterns applied to every scan in addition to the scanned
// directory's .reelignore file.
func NewOSFilesystemManager(ignore []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignore}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*reel.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	// Check for special file types we don't support
	mode := info.Mode()
	if mode&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlinks not supported: %s", absPath)
	}
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return reel.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("cannot open directory as file: %s", path)
	}
	return f, nil
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// FindFiles discovers regular files under the given directory path. Entries
// matching the configured patterns or the directory's .reelignore are
// skipped; an ignored directory is not descended into.
func (m *OSFilesystemManager) FindFiles(path *reel.Path, recursive bool) ([]*reel.Path, error) {
	if !path.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", path.String())
	}

	matcher, err := m.matcherFor(path.String())
	if err != nil {
		return nil, err
	}

	var paths []*reel.Path

	if recursive {
		root := path.String()
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p == root {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			if d.IsDir() {
				if matcher.MatchDir(rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || matcher.Match(rel) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", p, err)
			}
			paths = append(paths, reel.NewPath(p, false, info))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking directory: %w", err)
		}
	} else {
		entries, err := os.ReadDir(path.String())
		if err != nil {
			return nil, fmt.Errorf("reading directory: %w", err)
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() || matcher.Match(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
			}
			fullPath := filepath.Join(path.String(), entry.Name())
			paths = append(paths, reel.NewPath(fullPath, false, info))
		}
	}

	return paths, nil
}

func (m *OSFilesystemManager) matcherFor(dir string) (*IgnoreMatcher, error) {
	patterns := append([]string(nil), defaultIgnorePatterns...)
	patterns = append(patterns, m.ignore...)
	fromFile, err := ParseIgnoreFile(filepath.Join(dir, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	return NewIgnoreMatcher(append(patterns, fromFile...)), nil
}

// Mkdir creates a single directory.
func (m *OSFilesystemManager) Mkdir(path string) error {
	return os.Mkdir(path, 0o755)
}

// RemoveDir removes an empty directory. A directory that still has entries
// is reported as *reel.DirectoryNotEmptyError and left alone.
func (m *OSFilesystemManager) RemoveDir(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	if err := os.Remove(path); err != nil {
		if isNotEmpty(err) {
			return &reel.DirectoryNotEmptyError{Path: path}
		}
		return err
	}
	return nil
}

// exists reports whether anything, including a dangling symlink, is at path.
func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Compile-time check that OSFilesystemManager implements reel.FilesystemManager interface
var _ reel.FilesystemManager = (*OSFilesystemManager)(nil)
