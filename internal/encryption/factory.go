package encryption

import (
	"fmt"

	"reel-go/internal/config"
	"reel-go/internal/reel"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" returns a nil Encryptor; snapshots are then stored in plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (reel.Encryptor, error) {
	switch cfg.Type {
	case "age":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
