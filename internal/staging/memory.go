package staging

import "reel-go/internal/reel"

// memoryStore keeps the queue in memory, making it useful for testing.
type memoryStore struct {
	ops []*stagedOperation
}

// NewMemoryStagingArea creates a new in-memory staging area with the
// default command limit.
func NewMemoryStagingArea() reel.StagingArea {
	return &stagingArea{store: &memoryStore{}, maxCommands: DefaultMaxCommands}
}

func (m *memoryStore) Load() ([]*stagedOperation, error) {
	out := make([]*stagedOperation, len(m.ops))
	for i, op := range m.ops {
		cp := *op
		out[i] = &cp
	}
	return out, nil
}

func (m *memoryStore) Save(ops []*stagedOperation) error {
	m.ops = make([]*stagedOperation, len(ops))
	for i, op := range ops {
		cp := *op
		m.ops[i] = &cp
	}
	return nil
}
