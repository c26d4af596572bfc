package export

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/screening-server/internal/domain"
)

// Fixed column names of the wide row.
const (
	ColSubmissionID      = "submission_id"
	ColSubmissionTS      = "submission_ts"
	ColRespondentID      = "respondent_id"
	ColInstrumentID      = "instrument_id"
	ColInstrumentVersion = "instrument_version"
	ColConsent           = "consent"
	ColConsentTS         = "consent_ts"
	ColStartedTS         = "started_ts"
	ColExamineeName      = "examinee_name"
	ColExamineePhone     = "examinee_phone"
	ColExamineeEmail     = "examinee_email"
	ColTotal             = "total"
	ColMaxTotal          = "max_total"
	ColSeverity          = "severity"
	ColInterpretation    = "interpretation"
	ColDomainScores      = "domain_scores"

	flagPrefix = "flag_"
	suppPrefix = "supp_"
)

var scoreColumn = regexp.MustCompile(`^Q([0-9]+)_score$`)

func itemColumn(ordinal int, suffix string) string {
	return fmt.Sprintf("Q%d_%s", ordinal, suffix)
}

// Columns returns the wide-row header for an instrument.
func Columns(inst *domain.Instrument) []string {
	cols := []string{
		ColSubmissionID, ColSubmissionTS, ColRespondentID, ColInstrumentID, ColInstrumentVersion,
		ColConsent, ColConsentTS, ColStartedTS,
	}
	if inst.CollectIdentity {
		cols = append(cols, ColExamineeName, ColExamineePhone, ColExamineeEmail)
	}
	for _, item := range inst.Items {
		cols = append(cols, itemColumn(item.Ordinal, "score"))
	}
	if inst.ItemAnnotations {
		for _, suffix := range []string{"func", "improvement", "comment"} {
			for _, item := range inst.Items {
				cols = append(cols, itemColumn(item.Ordinal, suffix))
			}
		}
	}
	for _, q := range inst.Supplementary {
		cols = append(cols, suppPrefix+q.Key)
	}
	cols = append(cols, ColTotal, ColMaxTotal, ColSeverity, ColInterpretation)
	if len(inst.Domains) > 0 {
		cols = append(cols, ColDomainScores)
	}
	for _, r := range inst.Rules {
		cols = append(cols, flagPrefix+r.Flag)
	}
	return cols
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// ToWideRow flattens a record into one row whose columns follow Columns.
// Flags present in the record but unknown to the instrument are appended.
func ToWideRow(inst *domain.Instrument, rec *domain.ExportRecord) domain.WideRow {
	cols := Columns(inst)
	v := make(map[string]string, len(cols))

	v[ColSubmissionID] = rec.SubmissionID
	v[ColSubmissionTS] = formatTime(rec.Session.SubmittedAt)
	v[ColRespondentID] = rec.RespondentID()
	v[ColInstrumentID] = rec.Instrument.ID
	v[ColInstrumentVersion] = rec.Instrument.Version
	v[ColConsent] = strconv.FormatBool(rec.Session.Consent)
	v[ColConsentTS] = formatTime(rec.Session.ConsentAt)
	v[ColStartedTS] = formatTime(rec.Session.StartedAt)

	if inst.CollectIdentity && rec.Examinee != nil {
		v[ColExamineeName] = Sanitize(rec.Examinee.Name)
		v[ColExamineePhone] = Sanitize(rec.Examinee.Phone)
		v[ColExamineeEmail] = Sanitize(rec.Examinee.Email)
	}

	for _, it := range rec.Items {
		v[itemColumn(it.Ordinal, "score")] = strconv.Itoa(it.Score)
		if inst.ItemAnnotations {
			v[itemColumn(it.Ordinal, "func")] = it.Functionality
			v[itemColumn(it.Ordinal, "improvement")] = Sanitize(it.Improvement)
			v[itemColumn(it.Ordinal, "comment")] = Sanitize(it.Comment)
		}
	}

	for _, q := range inst.Supplementary {
		v[suppPrefix+q.Key] = Sanitize(rec.Supplementary[q.Key])
	}

	v[ColTotal] = strconv.Itoa(rec.Result.Total)
	v[ColMaxTotal] = strconv.Itoa(rec.Result.MaxTotal)
	v[ColSeverity] = Sanitize(rec.Result.Severity)
	v[ColInterpretation] = Sanitize(rec.Result.Interpretation)
	if len(inst.Domains) > 0 {
		v[ColDomainScores] = JoinMap(rec.Result.DomainScores)
	}

	extra := make([]string, 0)
	for flag, raised := range rec.Result.Flags {
		col := flagPrefix + flag
		if !contains(cols, col) {
			extra = append(extra, col)
		}
		v[col] = strconv.FormatBool(raised)
	}
	for _, r := range inst.Rules {
		if _, ok := v[flagPrefix+r.Flag]; !ok {
			v[flagPrefix+r.Flag] = "false"
		}
	}
	sort.Strings(extra)
	cols = append(cols, extra...)

	for _, c := range cols {
		if _, ok := v[c]; !ok {
			v[c] = ""
		}
	}
	return domain.WideRow{Columns: cols, Values: v}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// ParsedRow is what a wide row yields when read back.
type ParsedRow struct {
	SubmissionID string
	RespondentID string
	InstrumentID string
	SubmittedAt  time.Time
	Answers      domain.Responses
	Total        int
	Severity     string
	DomainScores map[string]int
	Flags        map[string]bool
}

// ParseWideRow recovers answers, total, severity, domain scores and flags.
func ParseWideRow(row domain.WideRow) (*ParsedRow, error) {
	p := &ParsedRow{
		SubmissionID: row.Get(ColSubmissionID),
		RespondentID: row.Get(ColRespondentID),
		InstrumentID: row.Get(ColInstrumentID),
		Severity:     row.Get(ColSeverity),
		Answers:      domain.Responses{},
		Flags:        map[string]bool{},
	}

	submitted, err := ParseTime(row.Get(ColSubmissionTS))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ColSubmissionTS, err)
	}
	p.SubmittedAt = submitted

	total, err := strconv.Atoi(row.Get(ColTotal))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ColTotal, err)
	}
	p.Total = total

	for _, col := range row.Columns {
		val := row.Get(col)
		if m := scoreColumn.FindStringSubmatch(col); m != nil {
			if val == "" {
				continue
			}
			ord, _ := strconv.Atoi(m[1])
			score, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", col, err)
			}
			p.Answers[ord] = score
			continue
		}
		if strings.HasPrefix(col, flagPrefix) && val != "" {
			raised, err := strconv.ParseBool(val)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", col, err)
			}
			p.Flags[strings.TrimPrefix(col, flagPrefix)] = raised
		}
	}

	if raw := row.Get(ColDomainScores); raw != "" {
		pairs, err := SplitKV(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", ColDomainScores, err)
		}
		p.DomainScores = make(map[string]int, len(pairs))
		for _, kv := range pairs {
			n, err := strconv.Atoi(kv.Value)
			if err != nil {
				return nil, fmt.Errorf("parsing domain %s: %w", kv.Key, err)
			}
			p.DomainScores[kv.Key] = n
		}
	}

	return p, nil
}

// MergeHeader returns existing extended by the incoming columns it lacks.
// Existing columns keep their position; nothing is dropped.
func MergeHeader(existing, incoming []string) ([]string, bool) {
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c] = true
	}
	merged := append([]string(nil), existing...)
	extended := false
	for _, c := range incoming {
		if !seen[c] {
			merged = append(merged, c)
			seen[c] = true
			extended = true
		}
	}
	return merged, extended
}
