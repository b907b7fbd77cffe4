package reel

import "time"

// Batch is the set of commands executed by one commit, archived as a unit
// that can be undone together. Commands are stored in execution order with
// their captured undo state.
type Batch struct {
	ID        string
	CreatedAt time.Time
	Commands  []CommandSpec
}

// Operation is one CLI invocation that mutated the collection.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Database persists the collection, the batch history and the operation log.
type Database interface {
	// LoadRecords returns every stored record in insertion order, using
	// order as their source preference.
	LoadRecords(order SourceOrder) ([]*MediaRecord, error)

	// SaveRecords inserts or updates records by fingerprint.
	SaveRecords(records []*MediaRecord) error

	// DeleteRecords removes records by fingerprint. Unknown ones are ignored.
	DeleteRecords(fps []Fingerprint) error

	// CreateBatch archives a committed batch.
	CreateBatch(b *Batch) error

	// UpdateBatch replaces the commands of an archived batch.
	UpdateBatch(b *Batch) error

	// DeleteBatch removes an archived batch.
	DeleteBatch(id string) error

	// LatestBatch returns the most recently archived batch, or nil.
	LatestBatch() (*Batch, error)

	// ListBatches returns archived batches, newest first.
	ListBatches(limit int) ([]*Batch, error)

	// CreateOperation records the start of a mutating operation.
	CreateOperation(operation string, parameters string) (*Operation, error)

	// FinishOperation records the outcome of an operation.
	FinishOperation(id int64, status string) error

	// ListOperations returns operations, newest first.
	ListOperations(limit int) ([]*Operation, error)

	// MaxOperationID returns the highest operation ID, or 0.
	MaxOperationID() (int64, error)

	// AdvanceOperationID makes the next operation ID greater than floor.
	// Used after restoring a snapshot taken at operation floor.
	AdvanceOperationID(floor int64) error

	// CheckMigrations verifies the schema is current.
	CheckMigrations() error

	Close() error
}
