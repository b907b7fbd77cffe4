package reel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultExtensions are the media file extensions picked up by a scan.
var DefaultExtensions = []string{".mp4", ".mkv", ".avi", ".mov", ".m4v", ".wmv"}

// Settings carries the tunable values of a Service.
type Settings struct {
	// Order is the source preference order injected into every record.
	Order SourceOrder

	// Extensions limits scans to these file extensions (with dot).
	Extensions []string

	// ScanSources are fetched and attached directly while scanning.
	ScanSources []string

	// Template and Root are the defaults for staged moves.
	Template string
	Root     string
}

// Service ties the collection, the command buffer and their persistence
// together. It assumes a single owner; the app layer holds a lock.
type Service struct {
	database Database
	staging  StagingArea
	fsmgr    FilesystemManager
	sources  *SourceRegistry
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	settings Settings
	exts     map[string]bool

	collection *Collection
	buffer     *CommandBuffer
	loaded     bool
}

// NewService creates a Service. Nil logger, clock and idgen fall back to
// NopLogger, RealClock and UUIDGenerator.
func NewService(database Database, staging StagingArea, fsmgr FilesystemManager, sources *SourceRegistry, logger Logger, clock Clock, idgen IDGenerator, settings Settings) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	if sources == nil {
		sources, _ = NewSourceRegistry()
	}
	if settings.Order == nil {
		settings.Order = DefaultSourceOrder()
	}
	if len(settings.Extensions) == 0 {
		settings.Extensions = DefaultExtensions
	}
	if settings.Template == "" {
		settings.Template = DefaultTemplate
	}
	exts := make(map[string]bool, len(settings.Extensions))
	for _, e := range settings.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return &Service{
		database: database,
		staging:  staging,
		fsmgr:    fsmgr,
		sources:  sources,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		settings: settings,
		exts:     exts,
		buffer:   NewCommandBuffer(logger),
	}
}

// load reads the collection and the pending queue on first use.
func (s *Service) load() error {
	if s.loaded {
		return nil
	}
	records, err := s.database.LoadRecords(s.settings.Order)
	if err != nil {
		return fmt.Errorf("loading collection: %w", err)
	}
	c := NewCollection()
	for _, r := range records {
		c.Add(r)
	}
	s.collection = c

	specs, err := s.staging.List()
	if err != nil {
		return fmt.Errorf("loading staged commands: %w", err)
	}
	pending := make([]Command, 0, len(specs))
	for i, spec := range specs {
		cmd, err := Rebuild(spec, s.env())
		if err != nil {
			s.logger.Warn("dropping staged command", "index", i+1, "kind", spec.Kind, "error", err)
			continue
		}
		pending = append(pending, cmd)
	}
	if err := s.buffer.Load(pending, nil); err != nil {
		return fmt.Errorf("loading staged commands: %w", err)
	}
	s.loaded = true
	if len(pending) != len(specs) {
		return s.savePending()
	}
	return nil
}

func (s *Service) env() RebuildEnv {
	return RebuildEnv{Collection: s.collection, Sources: s.sources, FS: s.fsmgr, Logger: s.logger}
}

// Collection returns the loaded collection.
func (s *Service) Collection() (*Collection, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	return s.collection, nil
}

// Records returns the records matching every filter expression.
func (s *Service) Records(filters []string) ([]*MediaRecord, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	return s.collection.Select(filters...)
}

// Preview describes each pending command together with its violations.
type PreviewEntry struct {
	Description string
	Violations  []error
}

// Preview renders the pending queue and validates it without executing.
func (s *Service) Preview() ([]PreviewEntry, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	descs := s.buffer.Preview()
	entries := make([]PreviewEntry, len(descs))
	for i, d := range descs {
		entries[i].Description = d
	}
	for _, v := range s.buffer.ValidatePending() {
		entries[v.Index].Violations = append(entries[v.Index].Violations, v.Err)
	}
	return entries, nil
}

// Validate returns every violation in the pending queue.
func (s *Service) Validate() ([]Violation, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	return s.buffer.ValidatePending(), nil
}

// CommitResult summarizes a commit.
type CommitResult struct {
	Batch     *Batch // nil when nothing was executed
	Executed  int
	Remaining int
}

// Commit executes the pending queue. Executed commands are archived as one
// batch even when the commit halts partway; the failed command and the rest
// stay staged. The staged queue is rewritten whatever else fails, so executed
// commands are never run twice. When the batch cannot be archived the
// returned *ArchiveError carries its specs.
func (s *Service) Commit(ctx context.Context) (*CommitResult, error) {
	if err := s.load(); err != nil {
		return nil, err
	}

	executed, commitErr := s.buffer.Commit(ctx)
	result := &CommitResult{Executed: len(executed), Remaining: len(s.buffer.Pending())}

	var errs []error
	if err := s.savePending(); err != nil {
		errs = append(errs, err)
	}

	if len(executed) > 0 {
		batch := &Batch{ID: s.idgen.New(), CreatedAt: s.clock.Now()}
		for _, c := range executed {
			batch.Commands = append(batch.Commands, c.Spec())
		}
		s.buffer.ResetHistory()

		if err := s.database.CreateBatch(batch); err != nil {
			for i, c := range executed {
				s.logger.Error("executed command not archived", "batch", batch.ID, "index", i+1, "command", c.Describe())
			}
			errs = append(errs, &ArchiveError{Batch: batch, Err: err})
		} else {
			result.Batch = batch
			s.logger.Info("batch committed", "batch", batch.ID, "commands", len(executed))
		}

		if err := s.database.SaveRecords(touchedRecords(executed)); err != nil {
			errs = append(errs, fmt.Errorf("saving records: %w", err))
		}
	}

	if commitErr != nil {
		errs = append(errs, fmt.Errorf("commit halted: %w", commitErr))
	}
	return result, errors.Join(errs...)
}

// UndoResult summarizes an undo of the last batch.
type UndoResult struct {
	BatchID string
	Undone  int
	Left    int // commands still in the batch after a failed undo
}

// UndoLastBatch undoes every command of the most recent batch, last executed
// first. Undone commands leave the batch. A command whose undo failed, or
// that can no longer be rebuilt because its record is gone, is dropped from
// it and the failure is returned; older commands stay for the next undo.
func (s *Service) UndoLastBatch(ctx context.Context) (*UndoResult, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	batch, err := s.database.LatestBatch()
	if err != nil {
		return nil, fmt.Errorf("loading last batch: %w", err)
	}
	if batch == nil {
		return nil, ErrNothingToUndo
	}

	// Commands are rebuilt newest first. Only the suffix after the newest one
	// that can no longer be rebuilt is undone; that command is then treated
	// like a failed undo.
	start := 0
	var rebuildErr error
	rebuilt := make([]Command, len(batch.Commands))
	for i := len(batch.Commands) - 1; i >= 0; i-- {
		cmd, err := Rebuild(batch.Commands[i], s.env())
		if err != nil {
			rebuildErr = fmt.Errorf("rebuilding command %d of batch %s: %w", i+1, batch.ID, err)
			start = i + 1
			break
		}
		rebuilt[i] = cmd
	}
	history := rebuilt[start:]

	buf := NewCommandBuffer(s.logger)
	if err := buf.Load(nil, history); err != nil {
		return nil, err
	}
	undone, undoErr := buf.UndoAll(ctx)

	touched := undone
	remaining := buf.History()
	keep := start + len(remaining)
	switch {
	case undoErr != nil:
		// The failed command was popped and not pushed back; its record may
		// still have changed.
		touched = history[len(remaining):]
	case rebuildErr != nil:
		s.logger.Error("command cannot be undone, dropped from batch", "batch", batch.ID, "index", start, "error", rebuildErr)
		keep = start - 1
		undoErr = rebuildErr
	}
	result := &UndoResult{BatchID: batch.ID, Undone: len(undone), Left: keep}

	if keep == 0 {
		if err := s.database.DeleteBatch(batch.ID); err != nil {
			return result, fmt.Errorf("removing undone batch: %w", err)
		}
	} else {
		batch.Commands = batch.Commands[:keep]
		if err := s.database.UpdateBatch(batch); err != nil {
			return result, fmt.Errorf("updating batch: %w", err)
		}
	}

	if err := s.database.SaveRecords(touchedRecords(touched)); err != nil {
		return result, fmt.Errorf("saving records: %w", err)
	}

	if undoErr != nil {
		return result, undoErr
	}
	s.logger.Info("batch undone", "batch", batch.ID, "commands", len(undone))
	return result, nil
}

// ClearPending discards the pending queue and returns how many commands were
// dropped.
func (s *Service) ClearPending() (int, error) {
	if err := s.load(); err != nil {
		return 0, err
	}
	n := s.buffer.ClearPending()
	if err := s.savePending(); err != nil {
		return 0, err
	}
	return n, nil
}

// PendingCount returns the number of staged commands.
func (s *Service) PendingCount() (int, error) {
	if err := s.load(); err != nil {
		return 0, err
	}
	return len(s.buffer.Pending()), nil
}

// Prune removes records whose file no longer exists and returns them.
func (s *Service) Prune() ([]*MediaRecord, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	missing := s.collection.Missing(s.fsmgr)
	if len(missing) == 0 {
		return nil, nil
	}
	fps := make([]Fingerprint, len(missing))
	for i, r := range missing {
		fps[i] = r.Fingerprint()
	}
	if err := s.database.DeleteRecords(fps); err != nil {
		return nil, fmt.Errorf("deleting records: %w", err)
	}
	s.collection.Remove(missing...)
	return missing, nil
}

// Export writes the collection as JSON.
func (s *Service) Export(w io.Writer) error {
	if err := s.load(); err != nil {
		return err
	}
	return ExportCollection(w, s.collection)
}

// Import merges records read from r into the collection, replacing records
// with the same fingerprint. It returns the number of records read.
func (s *Service) Import(r io.Reader) (int, error) {
	if err := s.load(); err != nil {
		return 0, err
	}
	imported, err := ImportCollection(r, s.settings.Order)
	if err != nil {
		return 0, err
	}
	records := imported.Records()
	for _, rec := range records {
		s.collection.Add(rec)
	}
	if err := s.database.SaveRecords(records); err != nil {
		return 0, fmt.Errorf("saving imported records: %w", err)
	}
	// Staged commands point at the replaced records.
	if err := s.rebindPending(); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *Service) stage(cmds []Command) error {
	for _, c := range cmds {
		if err := s.buffer.Stage(c); err != nil {
			return err
		}
	}
	return s.savePending()
}

func (s *Service) savePending() error {
	pending := s.buffer.Pending()
	specs := make([]CommandSpec, len(pending))
	for i, c := range pending {
		specs[i] = c.Spec()
	}
	if err := s.staging.Replace(specs); err != nil {
		return fmt.Errorf("saving staged commands: %w", err)
	}
	return nil
}

func (s *Service) rebindPending() error {
	pending := s.buffer.Pending()
	rebuilt := make([]Command, 0, len(pending))
	for _, c := range pending {
		cmd, err := Rebuild(c.Spec(), s.env())
		if err != nil {
			return fmt.Errorf("rebinding staged command: %w", err)
		}
		rebuilt = append(rebuilt, cmd)
	}
	return s.buffer.Load(rebuilt, s.buffer.History())
}

// recordCommand is implemented by commands that target a record.
type recordCommand interface {
	Record() *MediaRecord
}

func touchedRecords(cmds []Command) []*MediaRecord {
	seen := make(map[Fingerprint]bool)
	var out []*MediaRecord
	for _, c := range cmds {
		rc, ok := c.(recordCommand)
		if !ok {
			continue
		}
		r := rc.Record()
		if seen[r.Fingerprint()] {
			continue
		}
		seen[r.Fingerprint()] = true
		out = append(out, r)
	}
	return out
}

// IsNothingToDo reports whether err only signals an empty history.
func IsNothingToDo(err error) bool {
	return errors.Is(err, ErrNothingToUndo)
}
