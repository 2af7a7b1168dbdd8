package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dougsko/audioroute/pkg/protocol"
)

// ErrRecordNotFound is returned by GetRecord for an unknown request id
var ErrRecordNotFound = errors.New("command record not found")

// HistoryQuery represents query parameters for retrieving command records
type HistoryQuery struct {
	Limit        int
	Offset       int
	Since        *time.Time
	Command      string
	FailuresOnly bool
}

// HistoryStats represents database statistics
type HistoryStats struct {
	TotalCommands int        `json:"total_commands"`
	TotalFailures int        `json:"total_failures"`
	Stored        int        `json:"stored"`
	LastCleanup   *time.Time `json:"last_cleanup,omitempty"`
}

// GetRecords retrieves command records, newest first
func (hs *HistoryStore) GetRecords(query HistoryQuery) ([]protocol.CommandRecord, error) {
	var args []interface{}

	sqlQuery := `
		SELECT request_id, command, success, result, error_code, error_message,
			   has_external, devices, duration_ms, timestamp
		FROM commands
		WHERE 1=1
	`

	if query.Since != nil {
		sqlQuery += " AND timestamp >= ?"
		args = append(args, *query.Since)
	}

	if query.Command != "" {
		sqlQuery += " AND command = ?"
		args = append(args, query.Command)
	}

	if query.FailuresOnly {
		sqlQuery += " AND success = FALSE"
	}

	sqlQuery += " ORDER BY id DESC"

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)

		if query.Offset > 0 {
			sqlQuery += " OFFSET ?"
			args = append(args, query.Offset)
		}
	}

	rows, err := hs.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	records := []protocol.CommandRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commands: %w", err)
	}

	return records, nil
}

// GetRecentRecords returns the most recent records
func (hs *HistoryStore) GetRecentRecords(limit int) ([]protocol.CommandRecord, error) {
	return hs.GetRecords(HistoryQuery{Limit: limit})
}

// GetRecord retrieves a single record by request id
func (hs *HistoryStore) GetRecord(requestID string) (*protocol.CommandRecord, error) {
	rows, err := hs.db.Query(`
		SELECT request_id, command, success, result, error_code, error_message,
			   has_external, devices, duration_ms, timestamp
		FROM commands
		WHERE request_id = ?
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query command: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, requestID)
	}

	record, err := scanRecord(rows)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetStats returns command counters
func (hs *HistoryStore) GetStats() (*HistoryStats, error) {
	stats := &HistoryStats{}
	var lastCleanup sql.NullTime

	err := hs.db.QueryRow(`
		SELECT total_commands, total_failures, last_cleanup
		FROM command_stats WHERE id = 1
	`).Scan(&stats.TotalCommands, &stats.TotalFailures, &lastCleanup)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	if lastCleanup.Valid {
		stats.LastCleanup = &lastCleanup.Time
	}

	if err := hs.db.QueryRow("SELECT COUNT(*) FROM commands").Scan(&stats.Stored); err != nil {
		return nil, fmt.Errorf("failed to count commands: %w", err)
	}

	return stats, nil
}

func scanRecord(rows *sql.Rows) (protocol.CommandRecord, error) {
	var record protocol.CommandRecord
	var devices string

	err := rows.Scan(
		&record.ID,
		&record.Command,
		&record.Success,
		&record.Result,
		&record.ErrorCode,
		&record.ErrorMessage,
		&record.HasExternalOutput,
		&devices,
		&record.DurationMs,
		&record.Timestamp,
	)
	if err != nil {
		return record, fmt.Errorf("failed to scan command: %w", err)
	}

	if err := json.Unmarshal([]byte(devices), &record.Devices); err != nil {
		return record, fmt.Errorf("failed to decode devices: %w", err)
	}

	return record, nil
}
