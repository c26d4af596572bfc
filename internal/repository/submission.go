package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/export"
)

// SubmissionRepository stores the document form of records in PostgreSQL,
// alongside the compact five-column summary.
type SubmissionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *pgxpool.Pool, logger *logrus.Logger) *SubmissionRepository {
	return &SubmissionRepository{
		db:  db,
		log: logger,
	}
}

// SaveRecord inserts a record. A record whose submission id is already
// stored is left unchanged.
func (r *SubmissionRepository) SaveRecord(ctx context.Context, record *domain.ExportRecord) error {
	document, err := export.MarshalDocument(record)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	compact := export.ToCompactRow(record)

	query := `
		INSERT INTO submissions (
			submission_id, session_id, instrument_id, instrument_ver, schema_version,
			total, severity, submitted_at,
			exam_name, consent_col, examinee_col, answers_col, result_col, document
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (submission_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query,
		record.SubmissionID,
		record.Session.ID,
		record.Instrument.ID,
		record.Instrument.Version,
		record.SchemaVersion,
		record.Result.Total,
		record.Result.Severity,
		record.Session.SubmittedAt,
		compact.ExamName,
		compact.Consent,
		compact.Examinee,
		compact.Answers,
		compact.Result,
		document,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"submission_id": record.SubmissionID,
			"error":         err,
		}).Error("Failed to save submission")
		return fmt.Errorf("saving submission: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"submission_id": record.SubmissionID,
		"instrument":    record.Instrument.ID,
		"inserted":      tag.RowsAffected() == 1,
	}).Info("Submission stored")
	return nil
}

// GetBySubmissionID loads a record by its submission id.
func (r *SubmissionRepository) GetBySubmissionID(ctx context.Context, submissionID string) (*domain.ExportRecord, error) {
	var document []byte
	err := r.db.QueryRow(ctx,
		"SELECT document FROM submissions WHERE submission_id = $1", submissionID,
	).Scan(&document)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("submission not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting submission: %w", err)
	}
	return export.UnmarshalDocument(document)
}

// ListByInstrument returns records of an instrument, newest first.
func (r *SubmissionRepository) ListByInstrument(ctx context.Context, instrumentID string, limit, offset int) ([]*domain.ExportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT document FROM submissions
		WHERE instrument_id = $1
		ORDER BY submitted_at DESC, submission_id
		LIMIT $2 OFFSET $3`,
		instrumentID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	var records []*domain.ExportRecord
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		rec, err := export.UnmarshalDocument(document)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
