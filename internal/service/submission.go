package service

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/export"
	"github.com/screening-server/internal/metrics"
)

// Outcome describes what Finalize did with a submission.
type Outcome struct {
	Record    *domain.ExportRecord       `json:"record"`
	Result    *domain.ScoringResult      `json:"result"`
	Persisted bool                       `json:"persisted"`
	Skipped   bool                       `json:"skipped"`
	Disabled  bool                       `json:"disabled"`
	Warning   *domain.PersistenceFailure `json:"-"`
}

// WarningMessage is the respondent-facing text of a persistence failure.
func (o *Outcome) WarningMessage() string {
	if o == nil || o.Warning == nil {
		return ""
	}
	return "Your result could not be saved. You can still download it."
}

// SubmissionConfig holds the persistence collaborators of a SubmissionService.
type SubmissionConfig struct {
	// Enabled is read once at start; a disabled service never calls out.
	Enabled  bool
	Appender domain.RowAppender
	Records  domain.RecordStore
	Metrics  *metrics.Metrics
}

// claimCacheSize bounds the submission ids remembered as already claimed.
const claimCacheSize = 10000

// SubmissionService scores and assembles finished sessions and persists
// each submission at most once.
type SubmissionService struct {
	catalog  domain.InstrumentCatalog
	logger   *logrus.Logger
	enabled  bool
	appender domain.RowAppender
	records  domain.RecordStore
	metrics  *metrics.Metrics

	// claims holds submission ids whose persistence attempt has started,
	// so overlapping Finalize calls on copies of one session append once.
	claims *lru.Cache[string, struct{}]
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(catalog domain.InstrumentCatalog, logger *logrus.Logger, cfg SubmissionConfig) *SubmissionService {
	claims, _ := lru.New[string, struct{}](claimCacheSize)
	return &SubmissionService{
		catalog:  catalog,
		logger:   logger,
		enabled:  cfg.Enabled && (cfg.Appender != nil || cfg.Records != nil),
		appender: cfg.Appender,
		records:  cfg.Records,
		metrics:  cfg.Metrics,
		claims:   claims,
	}
}

// Enabled reports whether submissions are persisted.
func (s *SubmissionService) Enabled() bool {
	return s.enabled
}

// Finalize builds the record of a session on the Result step. The first call
// for a submission id persists it; later calls skip persistence. A
// persistence failure is reported in Outcome.Warning and never turns into an
// error. The returned session carries the persisted submission id.
func (s *SubmissionService) Finalize(ctx context.Context, session domain.Session) (domain.Session, *Outcome, error) {
	inst, err := s.catalog.Get(session.InstrumentID)
	if err != nil {
		return session, nil, err
	}

	result := Score(inst, session.Answers)
	record, err := Assemble(inst, session, result)
	if err != nil {
		return session, nil, err
	}
	outcome := &Outcome{Record: record, Result: result}

	logger := s.logger.WithFields(logrus.Fields{
		"session_id":    session.ID,
		"instrument":    inst.ID,
		"submission_id": record.SubmissionID,
	})

	if session.PersistedSubmissionID == record.SubmissionID {
		outcome.Skipped = true
		logger.Debug("Submission already persisted, skipping")
		return session, outcome, nil
	}
	if s.enabled {
		if claimed, _ := s.claims.ContainsOrAdd(record.SubmissionID, struct{}{}); claimed {
			out := session.Clone()
			out.PersistedSubmissionID = record.SubmissionID
			outcome.Skipped = true
			logger.Debug("Submission claimed by another request, skipping")
			return out, outcome, nil
		}
	}

	s.metrics.IncrementSubmission(inst.ID, result.Severity)
	logger.WithFields(logrus.Fields{
		"total":    result.Total,
		"severity": result.Severity,
	}).Info("Submission finalized")

	if !s.enabled {
		outcome.Disabled = true
		return session, outcome, nil
	}

	out := session.Clone()
	out.PersistedSubmissionID = record.SubmissionID

	if failure := s.persist(ctx, inst, record); failure != nil {
		outcome.Warning = failure
		logger.WithError(failure.Err).WithField("target", failure.Target).Warn("Submission could not be persisted")
		return out, outcome, nil
	}

	outcome.Persisted = true
	logger.Info("Submission persisted")
	return out, outcome, nil
}

func (s *SubmissionService) persist(ctx context.Context, inst *domain.Instrument, record *domain.ExportRecord) *domain.PersistenceFailure {
	if s.appender != nil {
		row := export.ToWideRow(inst, record)
		if err := s.observe(s.appender.Name(), func() error { return s.appender.AppendRow(ctx, row) }); err != nil {
			return &domain.PersistenceFailure{Target: s.appender.Name(), SubmissionID: record.SubmissionID, Err: err}
		}
	}
	if s.records != nil {
		if err := s.observe("records", func() error { return s.records.SaveRecord(ctx, record) }); err != nil {
			return &domain.PersistenceFailure{Target: "records", SubmissionID: record.SubmissionID, Err: err}
		}
	}
	return nil
}

func (s *SubmissionService) observe(target string, fn func() error) error {
	start := time.Now()
	err := fn()
	outcome := "success"
	if err != nil {
		outcome = "failure"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
	}
	s.metrics.ObservePersistence(target, outcome, time.Since(start))
	return err
}
