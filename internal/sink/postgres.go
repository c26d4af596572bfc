package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/export"
)

// PostgresAppender stores wide rows in PostgreSQL through database/sql. It
// expects the wide_rows and wide_row_columns tables from the migrations.
type PostgresAppender struct {
	db *sql.DB
}

// NewPostgresAppender creates an appender on db.
func NewPostgresAppender(db *sql.DB) *PostgresAppender {
	return &PostgresAppender{db: db}
}

func (p *PostgresAppender) Name() string { return TargetPostgres }

const (
	registerColumnsQuery = `
		INSERT INTO wide_row_columns (name)
		SELECT name FROM unnest($1::text[]) WITH ORDINALITY AS c(name, ord)
		ORDER BY ord
		ON CONFLICT (name) DO NOTHING`

	insertRowQuery = `
		INSERT INTO wide_rows (submission_id, instrument_id, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (submission_id) DO NOTHING`
)

// AppendRow registers unseen columns and stores the row in one transaction.
func (p *PostgresAppender) AppendRow(ctx context.Context, row domain.WideRow) error {
	payload, err := json.Marshal(row.Values)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, registerColumnsQuery, pq.Array(row.Columns)); err != nil {
		return fmt.Errorf("failed to register columns: %w", err)
	}

	_, err = tx.ExecContext(ctx, insertRowQuery,
		row.Get(export.ColSubmissionID), row.Get(export.ColInstrumentID), payload)
	if err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Header returns the registered columns in registration order.
func (p *PostgresAppender) Header(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT name FROM wide_row_columns ORDER BY position")
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
