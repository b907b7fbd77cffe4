package testutil

import (
	"reel-go/internal/reel"
	"reel-go/internal/staging"
)

// NewTestStagingArea creates a new in-memory staging area for testing.
func NewTestStagingArea() reel.StagingArea {
	return staging.NewMemoryStagingArea()
}
