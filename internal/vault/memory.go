package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"reel-go/internal/reel"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It is useful for testing and is safe for concurrent use.
type MemoryVault struct {
	name     string
	data     map[string][]byte // "collectionID/name" -> snapshot
	versions map[string]int64  // "collectionID/name" -> version
	mu       sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		data:     make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

func snapshotKey(collectionID, name string) string {
	return collectionID + "/" + name
}

// PutSnapshot stores a named snapshot for a collection.
func (m *MemoryVault) PutSnapshot(collectionID string, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := snapshotKey(collectionID, name)
	m.data[key] = data
	m.versions[key] = version
	return nil
}

// GetSnapshotVersion returns 0 if nothing has been stored for the pair.
func (m *MemoryVault) GetSnapshotVersion(collectionID string, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.versions[snapshotKey(collectionID, name)], nil
}

// GetSnapshot writes a named snapshot to w.
func (m *MemoryVault) GetSnapshot(collectionID string, name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[snapshotKey(collectionID, name)]
	if !ok {
		return fmt.Errorf("snapshot %q for collection %s: %w", name, collectionID, reel.ErrNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

var _ reel.Vault = (*MemoryVault)(nil)
