package encryption

import (
	"bytes"
	"fmt"
	"io"

	"reel-go/internal/reel"
)

// testHeader marks data written by TestEncryptor.
var testHeader = []byte("REELENC\x00")

// TestEncryptor is a deterministic, reversible encryptor for tests. It
// prepends a fixed 8-byte header and strips it again on decryption. Unlock
// accepts any passphrase unless WrongPassphrase is set.
type TestEncryptor struct {
	setupCalled bool

	// WrongPassphrase makes Unlock fail when it receives this value.
	WrongPassphrase string
}

var _ reel.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (reel.DecryptionContext, error) {
	if e.WrongPassphrase != "" && passphrase == e.WrongPassphrase {
		return nil, fmt.Errorf("decrypting private key: incorrect passphrase")
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext strips the test header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ reel.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
