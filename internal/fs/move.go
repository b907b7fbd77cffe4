package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// renameFunc is swapped in tests to simulate EXDEV.
var renameFunc = os.Rename

// CrossDeviceError marks a rename that failed because source and destination
// are on different filesystems.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cross-device rename %q -> %q: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// rename wraps renameFunc and marks EXDEV failures as CrossDeviceError.
func rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// Move relocates src to dst without ever replacing an existing dst. Across
// filesystems the file is copied, synced and then removed from src; if any
// step before the removal fails the partial copy is deleted and src is left
// as it was.
func (m *OSFilesystemManager) Move(src, dst string) error {
	ok, err := exists(dst)
	if err != nil {
		return fmt.Errorf("checking destination: %w", err)
	}
	if ok {
		return &fs.PathError{Op: "move", Path: dst, Err: fs.ErrExist}
	}

	err = rename(src, dst)
	var cde *CrossDeviceError
	if err == nil || !errors.As(err, &cde) {
		return err
	}
	return copyAndRemove(src, dst)
}

func copyAndRemove(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("cross-device move of non-regular file: %s", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", dst, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	if err = os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("preserving mtime: %w", err)
	}
	if err = os.Remove(src); err != nil {
		return fmt.Errorf("removing source after copy: %w", err)
	}
	return nil
}
