package app

// Operation names recorded in the operations table.
const (
	OpScan         = "Scan"
	OpList         = "List"
	OpStage        = "Stage"
	OpPreview      = "Preview"
	OpCommit       = "Commit"
	OpUndo         = "Undo"
	OpClear        = "Clear"
	OpHistory      = "History"
	OpPrune        = "Prune"
	OpExport       = "Export"
	OpImport       = "Import"
	OpSnapshotPush = "SnapshotPush"
	OpSnapshotPull = "SnapshotPull"
)

// Operation tracks a CLI operation that may mutate the database.
// Operations are created in memory with ID=0. Only DB-mutating commands
// persist them (giving them an auto-increment ID from the database).
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewOperation creates a new in-memory operation.
func NewOperation(operation, parameters string) *Operation {
	return &Operation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed when err is non-nil and returns err.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}
