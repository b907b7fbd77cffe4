package reel

import (
	"context"
	"fmt"
)

// CommandState is the lifecycle position of a command.
type CommandState string

const (
	StateStaged   CommandState = "staged"
	StateExecuted CommandState = "executed"
	StateUndone   CommandState = "undone"
)

// Command is a reversible unit of work. Execute may run once from STAGED and
// Undo once from EXECUTED; anything else fails with *StateError.
type Command interface {
	// Describe renders a one-line human readable description.
	Describe() string

	Execute(ctx context.Context) error
	Undo(ctx context.Context) error

	// ValidateExec and ValidateUndo report every violated precondition.
	ValidateExec() []error
	ValidateUndo() []error

	State() CommandState

	// Spec captures the command as a plain serializable value.
	Spec() CommandSpec
}

// CommandKind tags the variant held by a CommandSpec.
type CommandKind string

const (
	KindMoveFile        CommandKind = "move_file"
	KindUpdateMetadata  CommandKind = "update_metadata"
	KindCreateDirectory CommandKind = "create_directory"
)

// CommandSpec is the serializable form of a command: a tagged variant with
// plain data fields plus the undo state captured during execution.
type CommandSpec struct {
	Kind  CommandKind  `json:"kind"`
	State CommandState `json:"state"`

	// Record target, used by move_file and update_metadata.
	Fingerprint Fingerprint `json:"fingerprint,omitempty"`

	// move_file
	Template    string   `json:"template,omitempty"`
	Root        string   `json:"root,omitempty"`
	Source      string   `json:"source,omitempty"`
	Destination string   `json:"destination,omitempty"`
	CreatedDirs []string `json:"created_dirs,omitempty"`

	// update_metadata
	SourceName string         `json:"source_name,omitempty"`
	Params     Params         `json:"params,omitempty"`
	Prior      *MetadataBlock `json:"prior,omitempty"`
	HadPrior   bool           `json:"had_prior,omitempty"`
	Merge      bool           `json:"merge,omitempty"`

	// create_directory
	Path string `json:"path,omitempty"`
}

// RebuildEnv holds the live references a spec is rebuilt against.
type RebuildEnv struct {
	Collection *Collection
	Sources    *SourceRegistry
	FS         FilesystemManager
	Logger     Logger // optional
}

// Rebuild reconstructs a live command from its spec, including captured undo
// state, so history survives process restarts.
func Rebuild(spec CommandSpec, env RebuildEnv) (Command, error) {
	state := spec.State
	if state == "" {
		state = StateStaged
	}

	logger := env.Logger
	if logger == nil {
		logger = NewNopLogger()
	}

	switch spec.Kind {
	case KindMoveFile:
		rec, err := lookupRecord(env.Collection, spec.Fingerprint)
		if err != nil {
			return nil, err
		}
		return &MoveFile{
			fsmgr:       env.FS,
			logger:      logger,
			record:      rec,
			template:    spec.Template,
			root:        spec.Root,
			source:      spec.Source,
			destination: spec.Destination,
			createdDirs: append([]string(nil), spec.CreatedDirs...),
			state:       state,
		}, nil

	case KindUpdateMetadata:
		rec, err := lookupRecord(env.Collection, spec.Fingerprint)
		if err != nil {
			return nil, err
		}
		var src MetadataSource = UserDataSource{}
		if spec.SourceName != UserSource {
			s, ok := env.Sources.Get(spec.SourceName)
			if !ok {
				return nil, fmt.Errorf("rebuilding update_metadata: unknown source %q", spec.SourceName)
			}
			src = s
		}
		return &UpdateMetadata{
			record:   rec,
			source:   src,
			params:   spec.Params,
			merge:    spec.Merge,
			prior:    spec.Prior.Clone(),
			hadPrior: spec.HadPrior,
			state:    state,
		}, nil

	case KindCreateDirectory:
		return &CreateDirectory{fsmgr: env.FS, path: spec.Path, state: state}, nil

	default:
		return nil, fmt.Errorf("unknown command kind %q", spec.Kind)
	}
}

func lookupRecord(c *Collection, fp Fingerprint) (*MediaRecord, error) {
	if c == nil {
		return nil, fmt.Errorf("no collection to resolve record %s", fp.Short())
	}
	rec, ok := c.Get(fp)
	if !ok {
		return nil, fmt.Errorf("record %s is no longer in the collection: %w", fp.Short(), ErrNotFound)
	}
	return rec, nil
}
