package reel

import "io"

// Vault stores exported collection snapshots off the machine. All transfers
// stream through io.Reader/io.Writer.
type Vault interface {
	// PutSnapshot stores a named snapshot for a collection along with a
	// version marker. size is the number of bytes that will be read from r.
	PutSnapshot(collectionID string, name string, r io.Reader, size int64, version int64) error

	// GetSnapshot writes the named snapshot to w.
	GetSnapshot(collectionID string, name string, w io.Writer) error

	// GetSnapshotVersion returns the stored version, or 0 when none exists.
	GetSnapshotVersion(collectionID string, name string) (int64, error)

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup() error
}
