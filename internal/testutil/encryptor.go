package testutil

import (
	"reel-go/internal/encryption"
	"reel-go/internal/reel"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() reel.Encryptor {
	return encryption.NewTestEncryptor()
}
