package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"reel-go/internal/config"
	"reel-go/internal/database"
	"reel-go/internal/encryption"
	"reel-go/internal/fs"
	"reel-go/internal/reel"
	"reel-go/internal/sources"
	"reel-go/internal/staging"
	"reel-go/internal/vault"
)

// ReelApp is the application layer between the CLI and reel.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the DB lifecycle on Close.
type ReelApp struct {
	cfg       *config.Config
	db        reel.Database
	vault     reel.Vault // nil when no vault is configured
	staging   reel.StagingArea
	fsmgr     reel.FilesystemManager
	encryptor reel.Encryptor // nil stores snapshots in plaintext
	service   *reel.Service
	op        *Operation
	lock      *flock.Flock
	logger    *slog.Logger
	logFile   *os.File

	// snapshotDone skips the snapshot upload on Close.
	snapshotDone bool
}

// NewReelApp creates a fully wired ReelApp from the given config.
// operation identifies the CLI command being run (e.g. OpScan, OpCommit).
// The caller must call Close when done.
func NewReelApp(cfg *config.Config, operation string) (*ReelApp, error) {
	lock, err := acquireLock(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	a := &ReelApp{cfg: cfg, lock: lock, op: NewOperation(operation, "")}
	ok := false
	defer func() {
		if !ok {
			a.release()
		}
	}()

	a.fsmgr = fs.NewOSFilesystemManager(cfg.Filesystem.Ignore)

	if len(cfg.Vaults) > 0 {
		if a.vault, err = vault.NewVaultFromConfig(cfg.Vaults[0]); err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	if a.staging, err = staging.NewStagingAreaFromConfig(cfg.Staging); err != nil {
		return nil, fmt.Errorf("creating staging area: %w", err)
	}

	if a.db, err = database.NewDatabaseFromConfig(cfg.Database, cfg.CollectionID); err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := a.db.CheckMigrations(); err != nil {
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	if a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption); err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	// Pulling is how a stale local database catches up, so it skips the check.
	if a.vault != nil && operation != OpSnapshotPull {
		if err := a.checkRemoteVersion(); err != nil {
			return nil, err
		}
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a.logger, a.logFile = logger, logFile

	registry, err := sources.NewRegistryFromConfig(cfg.Sources, a.fsmgr)
	if err != nil {
		return nil, fmt.Errorf("registering sources: %w", err)
	}

	a.service = reel.NewService(a.db, a.staging, a.fsmgr, registry, &slogAdapter{l: logger},
		reel.RealClock{}, reel.UUIDGenerator{}, settingsFromConfig(cfg.Library))

	ok = true
	return a, nil
}

func settingsFromConfig(lib config.LibraryConfig) reel.Settings {
	s := reel.Settings{
		Extensions:  lib.Extensions,
		ScanSources: lib.ScanSources,
		Template:    lib.Template,
		Root:        lib.Root,
	}
	if len(lib.Order) > 0 {
		s.Order = reel.SourceOrder(lib.Order)
	}
	return s
}

// checkRemoteVersion refuses to run against a database older than the
// newest snapshot in the vault.
func (a *ReelApp) checkRemoteVersion() error {
	remoteVersion, err := a.vault.GetSnapshotVersion(a.cfg.CollectionID, a.snapshotName())
	if err != nil {
		return fmt.Errorf("checking remote snapshot version: %w", err)
	}

	localMax, err := a.db.MaxOperationID()
	if err != nil {
		return fmt.Errorf("checking local operation version: %w", err)
	}

	if remoteVersion > localMax {
		return fmt.Errorf("local database is behind remote (local=%d, remote=%d): run `reel snapshot pull`", localMax, remoteVersion)
	}
	return nil
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for DB-mutating commands.
func (a *ReelApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Config returns the configuration the app was built from.
func (a *ReelApp) Config() *config.Config {
	return a.cfg
}

// Scan resolves the given path and adds the media files under it to the
// collection. When recursive is true, subdirectories are included.
func (a *ReelApp) Scan(ctx context.Context, rawPath string, recursive bool) (*reel.ScanResult, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if err := a.persistOperation(p.String()); err != nil {
		return nil, err
	}
	res, err := a.service.Scan(ctx, p, recursive)
	return res, a.op.Fail(err)
}

// Records returns the records matching every filter.
func (a *ReelApp) Records(filters []string) ([]*reel.MediaRecord, error) {
	return a.service.Records(filters)
}

// StageMoves stages moves for the matching records. A relative root is
// taken relative to the working directory.
func (a *ReelApp) StageMoves(filters []string, template, root string) (int, error) {
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return 0, fmt.Errorf("resolving root: %w", err)
		}
		root = abs
	}
	return a.service.StageMoves(filters, template, root)
}

// StageUpdates stages a metadata update from source for the matching records.
func (a *ReelApp) StageUpdates(source string, filters []string) (int, error) {
	return a.service.StageUpdates(source, filters)
}

// StageUserData stages override values for the matching records.
func (a *ReelApp) StageUserData(filters []string, values map[string]any) (int, error) {
	return a.service.StageUserData(filters, values)
}

// StageDirectory stages creation of a directory. The path need not exist.
func (a *ReelApp) StageDirectory(rawPath string) (string, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return abs, a.service.StageDirectory(abs)
}

// Preview describes the pending queue and its violations.
func (a *ReelApp) Preview() ([]reel.PreviewEntry, error) {
	return a.service.Preview()
}

// Commit executes the pending queue as one batch.
func (a *ReelApp) Commit(ctx context.Context) (*reel.CommitResult, error) {
	n, err := a.service.PendingCount()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return &reel.CommitResult{}, nil
	}
	if err := a.persistOperation(fmt.Sprintf("%d command(s)", n)); err != nil {
		return nil, err
	}
	res, err := a.service.Commit(ctx)
	return res, a.op.Fail(err)
}

// Undo reverts the most recent batch.
func (a *ReelApp) Undo(ctx context.Context) (*reel.UndoResult, error) {
	last, err := a.service.History(1)
	if err != nil {
		return nil, err
	}
	if len(last) == 0 {
		return nil, reel.ErrNothingToUndo
	}
	if err := a.persistOperation(last[0].ID); err != nil {
		return nil, err
	}
	res, err := a.service.UndoLastBatch(ctx)
	return res, a.op.Fail(err)
}

// ClearPending discards the pending queue.
func (a *ReelApp) ClearPending() (int, error) {
	return a.service.ClearPending()
}

// PendingCount returns the number of staged commands.
func (a *ReelApp) PendingCount() (int, error) {
	return a.service.PendingCount()
}

// History returns the most recent batches.
func (a *ReelApp) History(limit int) ([]*reel.Batch, error) {
	return a.service.History(limit)
}

// Operations returns the most recent mutating operations.
func (a *ReelApp) Operations(limit int) ([]*reel.Operation, error) {
	return a.service.Operations(limit)
}

// Prune drops records whose files are gone.
func (a *ReelApp) Prune() ([]*reel.MediaRecord, error) {
	if err := a.persistOperation(""); err != nil {
		return nil, err
	}
	removed, err := a.service.Prune()
	return removed, a.op.Fail(err)
}

// Export writes the collection JSON to w.
func (a *ReelApp) Export(w io.Writer) error {
	return a.service.Export(w)
}

// Import merges the collection JSON read from r. source names the input in
// the operation log.
func (a *ReelApp) Import(r io.Reader, source string) (int, error) {
	if err := a.persistOperation(source); err != nil {
		return 0, err
	}
	n, err := a.service.Import(r)
	return n, a.op.Fail(err)
}

// HasVault reports whether a vault is configured.
func (a *ReelApp) HasVault() bool {
	return a.vault != nil
}

// NeedsPassphrase reports whether pulling a snapshot requires a passphrase.
func (a *ReelApp) NeedsPassphrase() bool {
	return a.encryptor != nil
}

// release undoes everything NewReelApp acquired.
func (a *ReelApp) release() {
	if a.db != nil {
		a.db.Close()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	if a.lock != nil {
		a.lock.Unlock()
	}
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record and, when a vault
// is configured, uploads a snapshot with version = operation ID.
// For non-persisted operations: just closes the database.
func (a *ReelApp) Close() error {
	var errs []string

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			errs = append(errs, fmt.Sprintf("finishing operation: %v", err))
		}
		if a.vault != nil && !a.snapshotDone {
			if err := a.pushSnapshot(a.op.ID); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Sprintf("closing database: %v", err))
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	if err := a.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Sprintf("releasing lock: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
