package staging

import (
	"fmt"

	"reel-go/internal/reel"
)

// stagedOperation is one queue entry as persisted. Only commands that have
// not run yet are staged, so undo state is never present.
type stagedOperation struct {
	Position int              `json:"position"`
	Spec     reel.CommandSpec `json:"spec"`
}

// validateSpec rejects specs that could not be rebuilt into a pending
// command.
func validateSpec(spec reel.CommandSpec) error {
	switch spec.Kind {
	case reel.KindMoveFile, reel.KindUpdateMetadata:
		if spec.Fingerprint == "" {
			return fmt.Errorf("%s command without fingerprint: %w", spec.Kind, reel.ErrInvalidCommand)
		}
	case reel.KindCreateDirectory:
		if spec.Path == "" {
			return fmt.Errorf("%s command without path: %w", spec.Kind, reel.ErrInvalidCommand)
		}
	default:
		return fmt.Errorf("unknown command kind %q: %w", spec.Kind, reel.ErrInvalidCommand)
	}
	if spec.State != "" && spec.State != reel.StateStaged {
		return fmt.Errorf("only staged commands can be queued, got %s: %w", spec.State, reel.ErrInvalidCommand)
	}
	return nil
}
