package reel

// StagingArea persists the pending command queue between invocations. Specs
// are kept in staging order.
type StagingArea interface {
	// List returns the staged specs in order.
	List() ([]CommandSpec, error)

	// Replace overwrites the queue with specs.
	Replace(specs []CommandSpec) error

	// Count returns the number of staged specs.
	Count() (int, error)
}
