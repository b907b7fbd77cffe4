package database

import (
	"fmt"
	"os"
	"path/filepath"

	"reel-go/internal/config"
	"reel-go/internal/reel"
)

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// The schema is migrated to the latest version before the database is returned.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, collectionID string) (reel.Database, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		path = filepath.Join(cfg.DataDir, collectionID+".db")
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return db, nil
}
