package domain

import (
	"time"
)

// ScoringResult is the outcome of scoring a (possibly partial) response set.
// Severity on an incomplete set is for progress display only.
type ScoringResult struct {
	InstrumentID   string          `json:"instrument_id"`
	Total          int             `json:"total"`
	MaxTotal       int             `json:"max_total"`
	Answered       int             `json:"answered"`
	MissingItems   []int           `json:"missing_items"`
	Complete       bool            `json:"complete"`
	Severity       string          `json:"severity"`
	SeverityKey    string          `json:"severity_key"`
	Interpretation string          `json:"interpretation"`
	Guidance       string          `json:"guidance,omitempty"`
	DomainScores   map[string]int  `json:"domain_scores,omitempty"`
	DomainMax      map[string]int  `json:"domain_max,omitempty"`
	Flags          map[string]bool `json:"flags"`
}

// ProgressPercent returns answered items as an integer percentage.
func (r *ScoringResult) ProgressPercent() int {
	items := r.Answered + len(r.MissingItems)
	if items == 0 {
		return 0
	}
	return r.Answered * 100 / items
}

// RecordSchemaVersion identifies the layout of ExportRecord.
const RecordSchemaVersion = "1"

// InstrumentRef identifies the instrument a record was produced with.
type InstrumentRef struct {
	ID        string `json:"id"`
	Version   string `json:"version"`
	Title     string `json:"title"`
	Reference string `json:"reference,omitempty"`
}

// SessionMeta carries the consent and timing facts of a session.
type SessionMeta struct {
	ID          string    `json:"id"`
	Consent     bool      `json:"consent"`
	ConsentAt   time.Time `json:"consent_ts"`
	StartedAt   time.Time `json:"started_ts"`
	SubmittedAt time.Time `json:"submitted_ts"`
}

// ItemAnswer is one answered item in a record.
type ItemAnswer struct {
	Ordinal       int    `json:"ordinal"`
	Score         int    `json:"score"`
	Label         string `json:"label,omitempty"`
	Functionality string `json:"functionality,omitempty"`
	Improvement   string `json:"improvement,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

// ResultBlock is the scoring outcome stored with a record.
type ResultBlock struct {
	Total          int             `json:"total"`
	MaxTotal       int             `json:"max_total"`
	Severity       string          `json:"severity"`
	SeverityKey    string          `json:"severity_key"`
	Interpretation string          `json:"interpretation"`
	DomainScores   map[string]int  `json:"domain_scores,omitempty"`
	Flags          map[string]bool `json:"flags"`
	Narrative      string          `json:"narrative,omitempty"`
}

// ExportRecord is the canonical, immutable output of a completed session.
type ExportRecord struct {
	SchemaVersion string            `json:"schema_version"`
	SubmissionID  string            `json:"submission_id"`
	Instrument    InstrumentRef     `json:"instrument"`
	Session       SessionMeta       `json:"session"`
	Examinee      *Identity         `json:"examinee,omitempty"`
	Items         []ItemAnswer      `json:"items"`
	Supplementary map[string]string `json:"supplementary,omitempty"`
	Result        ResultBlock       `json:"result"`
}

// Answers rebuilds the ordinal to score mapping.
func (r *ExportRecord) Answers() Responses {
	answers := make(Responses, len(r.Items))
	for _, it := range r.Items {
		answers[it.Ordinal] = it.Score
	}
	return answers
}

// RespondentID is the identifier shown in tabular exports.
func (r *ExportRecord) RespondentID() string {
	return r.Session.ID
}

// WideRow is one flat row: ordered column names plus values keyed by column.
type WideRow struct {
	Columns []string          `json:"columns"`
	Values  map[string]string `json:"values"`
}

// Get returns the value of column, or "" when absent.
func (w WideRow) Get(column string) string {
	return w.Values[column]
}

// Ordered returns the values in the given column order, padding unknown
// columns with "".
func (w WideRow) Ordered(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = w.Values[c]
	}
	return out
}
