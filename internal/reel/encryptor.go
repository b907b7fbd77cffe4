package reel

import "io"

// Encryptor encrypts snapshots with a public key and unlocks the matching
// private key with a passphrase for decryption.
type Encryptor interface {
	// Setup generates a key pair, stores the public key in plaintext and the
	// private key encrypted with passphrase. Called by `reel config init`.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a context able to decrypt
	// snapshots. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
