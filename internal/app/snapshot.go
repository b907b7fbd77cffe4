package app

import (
	"bytes"
	"errors"
	"fmt"
)

// Snapshot object names in the vault.
const (
	SnapshotName          = "collection.json"
	EncryptedSnapshotName = "collection.json.age"
)

// ErrNoVault is returned by snapshot operations when no vault is configured.
var ErrNoVault = errors.New("no vault configured")

func (a *ReelApp) snapshotName() string {
	if a.encryptor != nil {
		return EncryptedSnapshotName
	}
	return SnapshotName
}

// PushSnapshot exports the collection and stores it in the vault. It returns
// the snapshot version, which is the ID of this operation.
func (a *ReelApp) PushSnapshot() (int64, error) {
	if a.vault == nil {
		return 0, ErrNoVault
	}
	if err := a.persistOperation(a.cfg.Vaults[0].Name); err != nil {
		return 0, err
	}
	if err := a.op.Fail(a.pushSnapshot(a.op.ID)); err != nil {
		return 0, err
	}
	a.snapshotDone = true
	return a.op.ID, nil
}

// PullSnapshot fetches the newest snapshot, decrypts it with passphrase when
// encryption is configured, and imports it. Afterwards the local operation
// log is ahead of the snapshot version so the version check passes again.
func (a *ReelApp) PullSnapshot(passphrase string) (int, int64, error) {
	if a.vault == nil {
		return 0, 0, ErrNoVault
	}
	name := a.snapshotName()
	version, err := a.vault.GetSnapshotVersion(a.cfg.CollectionID, name)
	if err != nil {
		return 0, 0, fmt.Errorf("reading snapshot version: %w", err)
	}

	var payload bytes.Buffer
	if err := a.vault.GetSnapshot(a.cfg.CollectionID, name, &payload); err != nil {
		return 0, 0, fmt.Errorf("fetching snapshot: %w", err)
	}

	plain := &payload
	if a.encryptor != nil {
		dc, err := a.encryptor.Unlock(passphrase)
		if err != nil {
			return 0, 0, fmt.Errorf("unlocking private key: %w", err)
		}
		plain = &bytes.Buffer{}
		if err := dc.Decrypt(&payload, plain); err != nil {
			return 0, 0, fmt.Errorf("decrypting snapshot: %w", err)
		}
	}

	if err := a.db.AdvanceOperationID(version); err != nil {
		return 0, 0, err
	}
	if err := a.persistOperation(fmt.Sprintf("version %d", version)); err != nil {
		return 0, 0, err
	}
	n, err := a.service.Import(plain)
	if err != nil {
		return 0, 0, a.op.Fail(fmt.Errorf("importing snapshot: %w", err))
	}
	// The vault already holds exactly what was imported.
	a.snapshotDone = true
	a.logger.Info("snapshot pulled", "version", version, "records", n)
	return n, version, nil
}

// pushSnapshot uploads the exported collection with the given version.
func (a *ReelApp) pushSnapshot(version int64) error {
	var plain bytes.Buffer
	if err := a.service.Export(&plain); err != nil {
		return fmt.Errorf("exporting snapshot: %w", err)
	}

	payload := &plain
	if a.encryptor != nil {
		payload = &bytes.Buffer{}
		if err := a.encryptor.Encrypt(&plain, payload); err != nil {
			return fmt.Errorf("encrypting snapshot: %w", err)
		}
	}

	size := int64(payload.Len())
	if err := a.vault.PutSnapshot(a.cfg.CollectionID, a.snapshotName(), payload, size, version); err != nil {
		return fmt.Errorf("uploading snapshot to vault: %w", err)
	}
	a.logger.Info("snapshot pushed", "version", version, "bytes", size)
	return nil
}

// ValidateVault checks that the configured vault is reachable and writable.
func (a *ReelApp) ValidateVault() error {
	if a.vault == nil {
		return ErrNoVault
	}
	return a.vault.ValidateSetup()
}
