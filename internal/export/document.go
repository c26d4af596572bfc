package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/screening-server/internal/domain"
)

// Document is the nested JSON form of a record.
type Document struct {
	SchemaVersion string                       `json:"schema_version"`
	SubmissionID  string                       `json:"submission_id"`
	Instrument    DocumentInstrument           `json:"instrument"`
	Session       domain.SessionMeta           `json:"session"`
	Examinee      *domain.Identity             `json:"examinee,omitempty"`
	Answers       map[string]int               `json:"answers"`
	Annotations   map[string]domain.Annotation `json:"annotations,omitempty"`
	Supplementary map[string]string            `json:"supplementary,omitempty"`
	Result        DocumentResult               `json:"result"`
}

// DocumentInstrument identifies the instrument in a document.
type DocumentInstrument struct {
	ID        string `json:"id"`
	Version   string `json:"version"`
	Title     string `json:"title,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// DocumentResult is the result block of a document.
type DocumentResult struct {
	Total          int             `json:"total"`
	MaxTotal       int             `json:"max_total"`
	Severity       string          `json:"severity"`
	SeverityKey    string          `json:"severity_key,omitempty"`
	Interpretation string          `json:"interpretation,omitempty"`
	DomainScores   map[string]int  `json:"domain_scores,omitempty"`
	Flags          map[string]bool `json:"flags"`
	Narrative      string          `json:"narrative,omitempty"`
}

// ToDocument converts a record to its document form.
func ToDocument(rec *domain.ExportRecord) Document {
	doc := Document{
		SchemaVersion: rec.SchemaVersion,
		SubmissionID:  rec.SubmissionID,
		Instrument: DocumentInstrument{
			ID:        rec.Instrument.ID,
			Version:   rec.Instrument.Version,
			Title:     rec.Instrument.Title,
			Reference: rec.Instrument.Reference,
		},
		Session:       rec.Session,
		Examinee:      rec.Examinee,
		Answers:       make(map[string]int, len(rec.Items)),
		Supplementary: rec.Supplementary,
		Result: DocumentResult{
			Total:          rec.Result.Total,
			MaxTotal:       rec.Result.MaxTotal,
			Severity:       rec.Result.Severity,
			SeverityKey:    rec.Result.SeverityKey,
			Interpretation: rec.Result.Interpretation,
			DomainScores:   rec.Result.DomainScores,
			Flags:          rec.Result.Flags,
			Narrative:      rec.Result.Narrative,
		},
	}

	for _, it := range rec.Items {
		key := strconv.Itoa(it.Ordinal)
		doc.Answers[key] = it.Score
		a := domain.Annotation{Functionality: it.Functionality, Improvement: it.Improvement, Comment: it.Comment}
		if !a.IsZero() {
			if doc.Annotations == nil {
				doc.Annotations = make(map[string]domain.Annotation)
			}
			doc.Annotations[key] = a
		}
	}
	return doc
}

// FromDocument rebuilds a record. Scale labels are not part of the
// document and are left empty.
func FromDocument(doc Document) (*domain.ExportRecord, error) {
	rec := &domain.ExportRecord{
		SchemaVersion: doc.SchemaVersion,
		SubmissionID:  doc.SubmissionID,
		Instrument: domain.InstrumentRef{
			ID:        doc.Instrument.ID,
			Version:   doc.Instrument.Version,
			Title:     doc.Instrument.Title,
			Reference: doc.Instrument.Reference,
		},
		Session:       doc.Session,
		Examinee:      doc.Examinee,
		Supplementary: doc.Supplementary,
		Items:         make([]domain.ItemAnswer, 0, len(doc.Answers)),
		Result: domain.ResultBlock{
			Total:          doc.Result.Total,
			MaxTotal:       doc.Result.MaxTotal,
			Severity:       doc.Result.Severity,
			SeverityKey:    doc.Result.SeverityKey,
			Interpretation: doc.Result.Interpretation,
			DomainScores:   doc.Result.DomainScores,
			Flags:          doc.Result.Flags,
			Narrative:      doc.Result.Narrative,
		},
	}

	for key, score := range doc.Answers {
		ord, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("answer key %q is not an ordinal: %w", key, err)
		}
		a := doc.Annotations[key]
		rec.Items = append(rec.Items, domain.ItemAnswer{
			Ordinal:       ord,
			Score:         score,
			Functionality: a.Functionality,
			Improvement:   a.Improvement,
			Comment:       a.Comment,
		})
	}
	sort.Slice(rec.Items, func(i, j int) bool { return rec.Items[i].Ordinal < rec.Items[j].Ordinal })
	return rec, nil
}

// MarshalDocument renders the document form as indented JSON.
func MarshalDocument(rec *domain.ExportRecord) ([]byte, error) {
	return json.MarshalIndent(ToDocument(rec), "", "  ")
}

// UnmarshalDocument parses document JSON back into a record.
func UnmarshalDocument(data []byte) (*domain.ExportRecord, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return FromDocument(doc)
}

// CompactRow is the five-column summary of a record: the instrument name
// plus consent, examinee, answers and result, each as a key=value join.
type CompactRow struct {
	ExamName string `json:"exam_name"`
	Consent  string `json:"consent_col"`
	Examinee string `json:"examinee_col"`
	Answers  string `json:"answers_col"`
	Result   string `json:"result_col"`
}

// ToCompactRow builds the compact form.
func ToCompactRow(rec *domain.ExportRecord) CompactRow {
	consent := []KV{
		{Key: "consent", Value: strconv.FormatBool(rec.Session.Consent)},
		{Key: "consent_ts", Value: formatTime(rec.Session.ConsentAt)},
		{Key: "started_ts", Value: formatTime(rec.Session.StartedAt)},
		{Key: "submitted_ts", Value: formatTime(rec.Session.SubmittedAt)},
	}

	var examinee []KV
	if rec.Examinee != nil {
		examinee = []KV{
			{Key: "name", Value: rec.Examinee.Name},
			{Key: "phone", Value: rec.Examinee.Phone},
			{Key: "email", Value: rec.Examinee.Email},
		}
	}

	answers := make([]KV, 0, len(rec.Items))
	for _, it := range rec.Items {
		answers = append(answers, KV{Key: fmt.Sprintf("q%d", it.Ordinal), Value: strconv.Itoa(it.Score)})
	}
	supp := make([]string, 0, len(rec.Supplementary))
	for k := range rec.Supplementary {
		supp = append(supp, k)
	}
	sort.Strings(supp)
	for _, k := range supp {
		answers = append(answers, KV{Key: suppPrefix + k, Value: rec.Supplementary[k]})
	}

	result := []KV{
		{Key: "total", Value: strconv.Itoa(rec.Result.Total)},
		{Key: "severity", Value: rec.Result.Severity},
		{Key: "interpretation", Value: rec.Result.Interpretation},
	}
	flags := make([]string, 0, len(rec.Result.Flags))
	for f := range rec.Result.Flags {
		flags = append(flags, f)
	}
	sort.Strings(flags)
	for _, f := range flags {
		result = append(result, KV{Key: flagPrefix + f, Value: strconv.FormatBool(rec.Result.Flags[f])})
	}

	return CompactRow{
		ExamName: rec.Instrument.ID,
		Consent:  JoinKV(consent),
		Examinee: JoinKV(examinee),
		Answers:  JoinKV(answers),
		Result:   JoinKV(result),
	}
}

// ParseTime reads a timestamp written by the tabular forms.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
