package staging

import (
	"fmt"

	"reel-go/internal/config"
	"reel-go/internal/reel"
)

// DefaultMaxCommands is the default limit on queued commands.
const DefaultMaxCommands = 10000

// NewStagingAreaFromConfig creates a StagingArea implementation based on the config type.
func NewStagingAreaFromConfig(cfg config.StagingConfig) (reel.StagingArea, error) {
	maxCommands := cfg.MaxCommands
	if maxCommands <= 0 {
		maxCommands = DefaultMaxCommands
	}

	switch cfg.Type {
	case "memory":
		return &stagingArea{store: &memoryStore{}, maxCommands: maxCommands}, nil
	case "filesystem":
		if cfg.StagingDir == "" {
			return nil, fmt.Errorf("filesystem staging area requires staging_dir to be set")
		}
		return NewFileSystemStagingArea(cfg.StagingDir, maxCommands)
	default:
		return nil, fmt.Errorf("unknown staging area type: %s", cfg.Type)
	}
}
