// Package db stores recorded simulation runs in sqlite: one row per dataset
// plus one row per frame, with the frame payload serialised as JSON. The
// store backs the chunk-serving file API, so frame rows are keyed by
// (dataset, frame index) for cheap contiguous range reads.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sql handle for the dataset store.
type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the sqlite database at path. Schema management is
// handled separately via MigrateUp.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// sqlite is single-writer; serialise access through one connection.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}
	return &DB{sqlDB}, nil
}
