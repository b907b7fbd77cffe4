package staging

// stagingStore abstracts the storage mechanics for a staging area.
// Implementations persist the whole queue at once. Concurrency is managed
// by the caller (stagingArea.mu), so stores do not need to be safe for
// concurrent use.
type stagingStore interface {
	// Load returns the queue in staging order. An absent queue is empty.
	Load() ([]*stagedOperation, error)

	// Save replaces the stored queue.
	Save(ops []*stagedOperation) error
}
