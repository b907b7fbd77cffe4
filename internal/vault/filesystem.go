package vault

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"reel-go/internal/reel"
)

// FileSystemVault stores snapshots as files in a directory structure:
//
//	<root>/
//	  snapshots/
//	    <collectionID>/
//	      <name>           (snapshot data)
//	      <name>.version   (version marker)
//
// A mounted network share or external drive works as a vault root.
type FileSystemVault struct {
	name         string
	root         string
	snapshotsDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	snapshotsDir := filepath.Join(root, "snapshots")
	if err := os.MkdirAll(snapshotsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &FileSystemVault{
		name:         name,
		root:         root,
		snapshotsDir: snapshotsDir,
	}, nil
}

func (v *FileSystemVault) snapshotPath(collectionID, name string) (string, error) {
	for _, part := range []string{collectionID, name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid snapshot path component %q", part)
		}
	}
	return filepath.Join(v.snapshotsDir, collectionID, name), nil
}

// PutSnapshot writes the snapshot first and the version marker second, so a
// reader never sees a version for data that was not fully written.
func (v *FileSystemVault) PutSnapshot(collectionID string, name string, r io.Reader, size int64, version int64) error {
	dest, err := v.snapshotPath(collectionID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create collection directory: %w", err)
	}
	if err := writeFileAtomic(dest, r, size); err != nil {
		return err
	}

	versionData := strconv.FormatInt(version, 10)
	return writeFileAtomic(dest+".version", strings.NewReader(versionData), int64(len(versionData)))
}

// GetSnapshotVersion returns 0 if no version file exists.
func (v *FileSystemVault) GetSnapshotVersion(collectionID string, name string) (int64, error) {
	path, err := v.snapshotPath(collectionID, name)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(path + ".version")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// GetSnapshot copies the named snapshot to w.
func (v *FileSystemVault) GetSnapshot(collectionID string, name string, w io.Writer) error {
	path, err := v.snapshotPath(collectionID, name)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("snapshot %q for collection %s: %w", name, collectionID, reel.ErrNotFound)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the vault root is a directory and that the
// snapshots directory accepts new files.
func (v *FileSystemVault) ValidateSetup() error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	probe, err := os.CreateTemp(v.snapshotsDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("vault not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// writeFileAtomic writes r to destPath through a temp file in the same
// directory and renames it into place once the size checks out.
func writeFileAtomic(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ reel.Vault = (*FileSystemVault)(nil)
