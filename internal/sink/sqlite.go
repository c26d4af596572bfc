package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/export"
)

// SQLiteAppender keeps wide rows in a local SQLite file. The header lives in
// a column registry; each row is stored as a JSON object keyed by column.
type SQLiteAppender struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteAppender opens or creates the database at dbPath.
func NewSQLiteAppender(dbPath string) (*SQLiteAppender, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteAppender{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS wide_row_columns (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS wide_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id TEXT NOT NULL UNIQUE,
		instrument_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_wide_rows_instrument ON wide_rows(instrument_id);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteAppender) Name() string { return TargetSQLite }

// AppendRow registers unseen columns and stores the row. A row whose
// submission id is already stored is ignored.
func (s *SQLiteAppender) AppendRow(ctx context.Context, row domain.WideRow) error {
	payload, err := json.Marshal(row.Values)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, col := range row.Columns {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO wide_row_columns (name) VALUES (?)", col); err != nil {
			return fmt.Errorf("failed to register column %s: %w", col, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO wide_rows (submission_id, instrument_id, payload) VALUES (?, ?, ?)",
		row.Get(export.ColSubmissionID), row.Get(export.ColInstrumentID), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}

	return tx.Commit()
}

// Header returns the registered columns in registration order.
func (s *SQLiteAppender) Header(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM wide_row_columns ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var header []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		header = append(header, name)
	}
	return header, rows.Err()
}

// Rows returns stored rows in insertion order, projected onto the current
// header. Columns a row predates read as "".
func (s *SQLiteAppender) Rows(ctx context.Context, instrumentID string) ([]domain.WideRow, error) {
	header, err := s.Header(ctx)
	if err != nil {
		return nil, err
	}

	query := "SELECT payload FROM wide_rows ORDER BY id"
	args := []interface{}{}
	if instrumentID != "" {
		query = "SELECT payload FROM wide_rows WHERE instrument_id = ? ORDER BY id"
		args = append(args, instrumentID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	var out []domain.WideRow
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var stored map[string]string
		if err := json.Unmarshal([]byte(payload), &stored); err != nil {
			return nil, fmt.Errorf("failed to decode row: %w", err)
		}
		values := make(map[string]string, len(header))
		for _, c := range header {
			values[c] = stored[c]
		}
		out = append(out, domain.WideRow{Columns: header, Values: values})
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteAppender) Close() error {
	return s.db.Close()
}
