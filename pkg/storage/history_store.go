package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dougsko/audioroute/pkg/logging"
	"github.com/dougsko/audioroute/pkg/protocol"
)

// HistoryStore keeps a bounded log of handled routing commands in SQLite
type HistoryStore struct {
	mu         sync.Mutex
	db         *sql.DB
	dbPath     string
	maxRecords int
}

// NewHistoryStore creates a new history store with SQLite backend
func NewHistoryStore(dbPath string, maxRecords int) (*HistoryStore, error) {
	store := &HistoryStore{
		dbPath:     dbPath,
		maxRecords: maxRecords,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}

	return store, nil
}

func (hs *HistoryStore) initialize() error {
	if hs.dbPath == "" {
		hs.dbPath = "./routed.db"
	}

	if err := os.MkdirAll(filepath.Dir(hs.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := hs.dbPath + "?_busy_timeout=10000&_journal_mode=WAL"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	hs.db = db

	if err := hs.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := hs.createIndexes(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logging.Infof("storage", "history store initialized: %s (max %d records)", hs.dbPath, hs.maxRecords)
	return nil
}

func (hs *HistoryStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL UNIQUE,
		command TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		result BOOLEAN NOT NULL DEFAULT FALSE,
		error_code TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		has_external BOOLEAN NOT NULL DEFAULT FALSE,
		devices TEXT NOT NULL DEFAULT '[]',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS command_stats (
		id INTEGER PRIMARY KEY,
		total_commands INTEGER NOT NULL DEFAULT 0,
		total_failures INTEGER NOT NULL DEFAULT 0,
		last_cleanup DATETIME,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO command_stats (id, total_commands, total_failures)
	VALUES (1, 0, 0);
	`

	_, err := hs.db.Exec(schema)
	return err
}

func (hs *HistoryStore) createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_commands_timestamp ON commands(timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_commands_command ON commands(command)",
		"CREATE INDEX IF NOT EXISTS idx_commands_success ON commands(success)",
	}

	for _, indexSQL := range indexes {
		if _, err := hs.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// RecordCommand stores a handled command and trims the oldest rows
// beyond the configured maximum.
func (hs *HistoryStore) RecordCommand(record protocol.CommandRecord) error {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	devices := record.Devices
	if devices == nil {
		devices = []string{}
	}
	devicesJSON, err := json.Marshal(devices)
	if err != nil {
		return fmt.Errorf("failed to encode devices: %w", err)
	}

	tx, err := hs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO commands (
			request_id, command, success, result, error_code, error_message,
			has_external, devices, duration_ms, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		record.ID, record.Command, record.Success, record.Result,
		record.ErrorCode, record.ErrorMessage, record.HasExternalOutput,
		string(devicesJSON), record.DurationMs, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert command: %w", err)
	}

	if err := hs.updateStats(tx, record.Success); err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}

	if err := hs.cleanupOldRecords(tx); err != nil {
		logging.Warnf("storage", "failed to cleanup old records: %v", err)
	}

	return tx.Commit()
}

func (hs *HistoryStore) updateStats(tx *sql.Tx, success bool) error {
	query := `
		UPDATE command_stats SET
			total_commands = total_commands + 1,
			total_failures = CASE WHEN ? THEN total_failures ELSE total_failures + 1 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`

	_, err := tx.Exec(query, success)
	return err
}

// CleanupOldRecords removes records beyond the maximum limit
func (hs *HistoryStore) CleanupOldRecords() error {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	tx, err := hs.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := hs.cleanupOldRecords(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (hs *HistoryStore) cleanupOldRecords(tx *sql.Tx) error {
	if hs.maxRecords <= 0 {
		return nil // No limit
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM commands").Scan(&count); err != nil {
		return err
	}

	if count <= hs.maxRecords {
		return nil
	}

	query := `
		DELETE FROM commands
		WHERE id IN (
			SELECT id FROM commands
			ORDER BY id ASC
			LIMIT ?
		)
	`

	if _, err := tx.Exec(query, count-hs.maxRecords); err != nil {
		return err
	}

	_, err := tx.Exec("UPDATE command_stats SET last_cleanup = CURRENT_TIMESTAMP WHERE id = 1")
	return err
}

// Close closes the database connection
func (hs *HistoryStore) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}
