package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"reel-go/internal/database/migrations"
	"reel-go/internal/reel"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	clock reel.Clock
	path  string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
// A nil clock uses the wall clock.
func NewSQLiteDatabase(path string, clock reel.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	s := NewSQLiteDatabaseFromDB(db, clock)
	s.path = path
	return s, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock reel.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = reel.RealClock{}
	}
	return &SQLiteDatabase{db: db, clock: clock}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: PRAGMAs are per connection and every connection to
	// ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Record operations

func (s *SQLiteDatabase) LoadRecords(order reel.SourceOrder) ([]*reel.MediaRecord, error) {
	rows, err := s.db.Query("SELECT fingerprint, data FROM records ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []*reel.MediaRecord
	for rows.Next() {
		var fp, data string
		if err := rows.Scan(&fp, &data); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r, err := reel.UnmarshalRecord(reel.Fingerprint(fp), []byte(data), order)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// SaveRecords upserts every record in one transaction. New records are
// appended to the insertion order; existing ones keep their position.
func (s *SQLiteDatabase) SaveRecords(records []*reel.MediaRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.clock.Now().UTC()
	for _, r := range records {
		data, err := reel.MarshalRecord(r)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO records (fingerprint, seq, path, data, updated_at)
			VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records), ?, ?, ?)
			ON CONFLICT(fingerprint) DO UPDATE SET
				path = excluded.path,
				data = excluded.data,
				updated_at = excluded.updated_at`,
			string(r.Fingerprint()), r.Path(), string(data), now)
		if err != nil {
			return fmt.Errorf("saving record %s: %w", r.Fingerprint().Short(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteRecords(fps []reel.Fingerprint) error {
	if len(fps) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, fp := range fps {
		if _, err := tx.Exec("DELETE FROM records WHERE fingerprint = ?", string(fp)); err != nil {
			return fmt.Errorf("deleting record %s: %w", fp.Short(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Batch operations

func (s *SQLiteDatabase) CreateBatch(b *reel.Batch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT INTO batches (id, created_at) VALUES (?, ?)", b.ID, b.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("creating batch: %w", err)
	}
	if err := insertBatchCommands(tx, b); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateBatch(b *reel.Batch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM batches WHERE id = ?", b.ID).Scan(&exists); err != nil {
		return fmt.Errorf("finding batch: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("batch %s: %w", b.ID, reel.ErrNotFound)
	}
	if _, err := tx.Exec("DELETE FROM batch_commands WHERE batch_id = ?", b.ID); err != nil {
		return fmt.Errorf("clearing batch commands: %w", err)
	}
	if err := insertBatchCommands(tx, b); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertBatchCommands(tx *sql.Tx, b *reel.Batch) error {
	for i, spec := range b.Commands {
		data, err := json.Marshal(spec)
		if err != nil {
			return fmt.Errorf("encoding command %d: %w", i+1, err)
		}
		_, err = tx.Exec("INSERT INTO batch_commands (batch_id, position, kind, spec) VALUES (?, ?, ?, ?)",
			b.ID, i, string(spec.Kind), string(data))
		if err != nil {
			return fmt.Errorf("saving command %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *SQLiteDatabase) DeleteBatch(id string) error {
	if _, err := s.db.Exec("DELETE FROM batches WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting batch: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) LatestBatch() (*reel.Batch, error) {
	batches, err := s.ListBatches(1)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, nil
	}
	return batches[0], nil
}

// ListBatches returns batches newest first. A limit <= 0 returns all.
func (s *SQLiteDatabase) ListBatches(limit int) ([]*reel.Batch, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query("SELECT id, created_at FROM batches ORDER BY seq DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	var batches []*reel.Batch
	for rows.Next() {
		b := &reel.Batch{}
		if err := rows.Scan(&b.ID, &b.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		batches = append(batches, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batches: %w", err)
	}

	for _, b := range batches {
		if err := s.loadBatchCommands(b); err != nil {
			return nil, err
		}
	}
	return batches, nil
}

func (s *SQLiteDatabase) loadBatchCommands(b *reel.Batch) error {
	rows, err := s.db.Query("SELECT spec FROM batch_commands WHERE batch_id = ? ORDER BY position", b.ID)
	if err != nil {
		return fmt.Errorf("loading commands of batch %s: %w", b.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("scanning command: %w", err)
		}
		var spec reel.CommandSpec
		if err := json.Unmarshal([]byte(data), &spec); err != nil {
			return fmt.Errorf("decoding command of batch %s: %w", b.ID, err)
		}
		b.Commands = append(b.Commands, spec)
	}
	return rows.Err()
}

// Operation tracking

func (s *SQLiteDatabase) CreateOperation(operation string, parameters string) (*reel.Operation, error) {
	op := &reel.Operation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
		StartedAt:  s.clock.Now().UTC(),
	}
	res, err := s.db.Exec("INSERT INTO operations (operation, parameters, status, started_at) VALUES (?, ?, ?, ?)",
		op.Operation, op.Parameters, op.Status, op.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	op.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return op, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	res, err := s.db.Exec("UPDATE operations SET status = ?, finished_at = ? WHERE id = ?",
		status, s.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("operation %d: %w", id, reel.ErrNotFound)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*reel.Operation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, operation, parameters, status, started_at, finished_at
		FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*reel.Operation
	for rows.Next() {
		op := &reel.Operation{}
		var finished sql.NullTime
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Status, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (s *SQLiteDatabase) MaxOperationID() (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(id) FROM operations").Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting max operation ID: %w", err)
	}
	return id.Int64, nil
}

// AdvanceOperationID moves the operations sequence forward so the next
// operation ID is greater than floor. It never moves the sequence back.
func (s *SQLiteDatabase) AdvanceOperationID(floor int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRow("SELECT seq FROM sqlite_sequence WHERE name = 'operations'").Scan(&seq)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.Exec("INSERT INTO sqlite_sequence (name, seq) VALUES ('operations', ?)", floor); err != nil {
			return fmt.Errorf("seeding operation sequence: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading operation sequence: %w", err)
	case seq < floor:
		if _, err := tx.Exec("UPDATE sqlite_sequence SET seq = ? WHERE name = 'operations'", floor); err != nil {
			return fmt.Errorf("advancing operation sequence: %w", err)
		}
	}
	return tx.Commit()
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements reel.Database interface
var _ reel.Database = (*SQLiteDatabase)(nil)
