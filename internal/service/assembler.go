package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/screening-server/internal/domain"
)

// submissionNamespace scopes the name-based UUIDs used as submission ids.
var submissionNamespace = uuid.MustParse("6f1c7a52-3d0e-4b8e-9a51-2f7d1c9e4b30")

// SubmissionID derives a stable id from the session id and its submission
// time, so that re-assembling the same submission yields the same id.
func SubmissionID(sessionID string, submittedAt time.Time) string {
	name := sessionID + "|" + submittedAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(submissionNamespace, []byte(name)).String()
}

// Assemble builds the export record of a finished session. It refuses with
// a *domain.PrematureExportError unless the session is on Result with every
// item answered. Equal inputs give equal records.
func Assemble(inst *domain.Instrument, s domain.Session, result *domain.ScoringResult) (*domain.ExportRecord, error) {
	missing := inst.Missing(s.Answers)
	if s.Step != domain.StepResult || len(missing) > 0 || s.SubmittedAt == nil {
		return nil, &domain.PrematureExportError{Step: s.Step, MissingItems: missing}
	}
	if result == nil || !result.Complete || result.InstrumentID != inst.ID {
		result = Score(inst, s.Answers)
	}

	record := &domain.ExportRecord{
		SchemaVersion: domain.RecordSchemaVersion,
		SubmissionID:  SubmissionID(s.ID, *s.SubmittedAt),
		Instrument: domain.InstrumentRef{
			ID:        inst.ID,
			Version:   inst.Version,
			Title:     inst.Title,
			Reference: inst.Reference,
		},
		Session: domain.SessionMeta{
			ID:          s.ID,
			Consent:     s.Consent,
			SubmittedAt: *s.SubmittedAt,
		},
		Items: make([]domain.ItemAnswer, 0, inst.ItemCount()),
		Result: domain.ResultBlock{
			Total:          result.Total,
			MaxTotal:       result.MaxTotal,
			Severity:       result.Severity,
			SeverityKey:    result.SeverityKey,
			Interpretation: result.Interpretation,
			DomainScores:   copyInts(result.DomainScores),
			Flags:          copyBools(result.Flags),
			Narrative:      ComposeNarrative(inst, result, s.Supplementary),
		},
	}
	if s.ConsentAt != nil {
		record.Session.ConsentAt = *s.ConsentAt
	}
	if s.StartedAt != nil {
		record.Session.StartedAt = *s.StartedAt
	}

	if inst.CollectIdentity && !s.Identity.IsZero() {
		examinee := s.Identity
		record.Examinee = &examinee
	}

	for _, item := range inst.Items {
		score := s.Answers[item.Ordinal]
		ans := domain.ItemAnswer{
			Ordinal: item.Ordinal,
			Score:   score,
			Label:   inst.ScaleLabel(score),
		}
		if a, ok := s.Annotations[item.Ordinal]; ok {
			ans.Functionality = a.Functionality
			ans.Improvement = a.Improvement
			ans.Comment = a.Comment
		}
		record.Items = append(record.Items, ans)
	}

	if len(s.Supplementary) > 0 {
		record.Supplementary = make(map[string]string, len(s.Supplementary))
		for _, q := range inst.Supplementary {
			if v, ok := s.Supplementary[q.Key]; ok {
				record.Supplementary[q.Key] = v
			}
		}
	}

	return record, nil
}

func copyInts(in map[string]int) map[string]int {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyBools(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
