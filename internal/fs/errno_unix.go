//go:build unix

package fs

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"reel-go/internal/reel"
)

func isEXDEV(err error) bool {
	if errors.Is(err, syscall.EXDEV) {
		return true
	}
	var le *os.LinkError
	if errors.As(err, &le) && errors.Is(le.Err, syscall.EXDEV) {
		return true
	}
	return false
}

// isNotEmpty covers both errnos rmdir(2) may use for a populated directory.
func isNotEmpty(err error) bool {
	return errors.Is(err, unix.ENOTEMPTY) || errors.Is(err, unix.EEXIST)
}

// Access probes path with access(2) using the real uid. Denials become
// *reel.PermissionError; other failures keep their errno so a missing path
// still matches fs.ErrNotExist.
func (m *OSFilesystemManager) Access(path string, mode reel.AccessMode) error {
	var how uint32
	switch mode {
	case reel.AccessRead:
		how = unix.R_OK
	case reel.AccessWrite:
		how = unix.W_OK
	default:
		return &os.PathError{Op: "access", Path: path, Err: unix.EINVAL}
	}

	err := unix.Access(path, how)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM), errors.Is(err, unix.EROFS):
		return &reel.PermissionError{Path: path, Mode: mode}
	default:
		return &os.PathError{Op: "access", Path: path, Err: err}
	}
}
