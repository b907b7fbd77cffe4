package testutil

import (
	"reel-go/internal/reel"
	"reel-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() reel.Vault {
	return vault.NewMemoryVault("test-vault")
}
