package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the database connection and provides initialization
type DB struct {
	*sql.DB
}

// NewDB creates and initializes a new database connection
func NewDB(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single writer avoids SQLITE_BUSY between concurrent check batches
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB}

	if err := db.initSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the database tables and indexes
func (db *DB) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS proxies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    host TEXT NOT NULL,
    port INTEGER NOT NULL,
    proxy_type TEXT NOT NULL,
    country TEXT,

    -- Health tracking
    status TEXT NOT NULL DEFAULT 'unknown', -- healthy, unhealthy, timeout, error, unknown
    status_code INTEGER,
    response_time_ms INTEGER,
    fail_count INTEGER NOT NULL DEFAULT 0,

    -- Timestamps
    first_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_checked_at DATETIME,
    last_healthy_at DATETIME,

    UNIQUE(host, port)
);

CREATE INDEX IF NOT EXISTS idx_proxies_last_checked ON proxies(last_checked_at);
CREATE INDEX IF NOT EXISTS idx_proxies_status ON proxies(status);

-- One row per probe
CREATE TABLE IF NOT EXISTS proxy_checks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    proxy_id INTEGER NOT NULL,
    status TEXT NOT NULL,
    status_code INTEGER,
    response_time_ms INTEGER,
    error_message TEXT,
    checked_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,

    FOREIGN KEY (proxy_id) REFERENCES proxies (id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_proxy_checks_proxy_id ON proxy_checks(proxy_id);`

	_, err := db.Exec(schema)
	return err
}
