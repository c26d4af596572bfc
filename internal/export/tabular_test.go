package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screening-server/internal/domain"
)

func TestColumns(t *testing.T) {
	t.Run("PHQ-9", func(t *testing.T) {
		cols := Columns(builtin(t, "PHQ-9"))
		assert.Equal(t, ColSubmissionID, cols[0])
		assert.Contains(t, cols, ColExamineeName)
		assert.Contains(t, cols, "Q9_score")
		assert.Contains(t, cols, "supp_functional_impairment")
		assert.Contains(t, cols, ColDomainScores)
		assert.Equal(t, []string{"flag_clinically_significant", "flag_safety_concern"}, cols[len(cols)-2:])
		assert.NotContains(t, cols, "Q1_func")
	})

	t.Run("usability", func(t *testing.T) {
		cols := Columns(builtin(t, "UT-27"))
		assert.NotContains(t, cols, ColExamineeName)
		assert.Contains(t, cols, "Q27_score")
		assert.Contains(t, cols, "Q27_func")
		assert.Contains(t, cols, "Q1_improvement")
		assert.Contains(t, cols, "Q14_comment")
		assert.Equal(t, "flag_meets_target", cols[len(cols)-1])
	})
}

func TestToWideRow(t *testing.T) {
	inst := builtin(t, "PHQ-9")
	rec := phq9Record()

	row := ToWideRow(inst, rec)

	assert.Equal(t, Columns(inst), row.Columns)
	assert.Len(t, row.Values, len(row.Columns))
	assert.Equal(t, rec.SubmissionID, row.Get(ColSubmissionID))
	assert.Equal(t, "session-1", row.Get(ColRespondentID))
	assert.Equal(t, "2024-03-01T10:05:30+09:00", row.Get(ColSubmissionTS))
	assert.Equal(t, "true", row.Get(ColConsent))
	assert.Equal(t, "Kim Minsu", row.Get(ColExamineeName), "delimiter is stripped")
	assert.Equal(t, "2", row.Get("Q2_score"))
	assert.Equal(t, "Somewhat difficult", row.Get("supp_functional_impairment"))
	assert.Equal(t, "11", row.Get(ColTotal))
	assert.Equal(t, "27", row.Get(ColMaxTotal))
	assert.Equal(t, "Moderate depressive symptoms. Follow up.", row.Get(ColInterpretation))
	assert.Equal(t, "cognitive_affective=5,somatic=6", row.Get(ColDomainScores))
	assert.Equal(t, "true", row.Get("flag_safety_concern"))
}

func TestToWideRow_UnknownFlagsAppended(t *testing.T) {
	inst := builtin(t, "PHQ-9")
	rec := phq9Record()
	rec.Result.Flags["zz_extra"] = false
	rec.Result.Flags["aa_extra"] = true

	row := ToWideRow(inst, rec)

	n := len(row.Columns)
	assert.Equal(t, []string{"flag_aa_extra", "flag_zz_extra"}, row.Columns[n-2:])
	assert.Equal(t, "true", row.Get("flag_aa_extra"))
}

func TestToWideRow_MissingFlagDefaultsFalse(t *testing.T) {
	inst := builtin(t, "PHQ-9")
	rec := phq9Record()
	delete(rec.Result.Flags, "safety_concern")

	row := ToWideRow(inst, rec)
	assert.Equal(t, "false", row.Get("flag_safety_concern"))
}

func TestToWideRow_Annotations(t *testing.T) {
	inst := builtin(t, "UT-27")
	rec := &domain.ExportRecord{
		SubmissionID: "s",
		Instrument:   domain.InstrumentRef{ID: "UT-27", Version: "1.0"},
		Session:      domain.SessionMeta{ID: "session-9", Consent: true},
		Items: []domain.ItemAnswer{
			{Ordinal: 1, Score: 5, Functionality: "Y", Improvement: "bigger\nbuttons", Comment: "ok, fine"},
			{Ordinal: 2, Score: 4},
		},
		Result: domain.ResultBlock{Total: 9, MaxTotal: 135, Flags: map[string]bool{"meets_target": false}},
	}

	row := ToWideRow(inst, rec)

	assert.Equal(t, "Y", row.Get("Q1_func"))
	assert.Equal(t, "bigger buttons", row.Get("Q1_improvement"))
	assert.Equal(t, "ok fine", row.Get("Q1_comment"))
	assert.Equal(t, "", row.Get("Q2_func"))
	assert.Equal(t, "", row.Get("Q3_score"))
	assert.Equal(t, "", row.Get(ColSubmissionTS), "zero time renders empty")
}

func TestParseWideRow_RoundTrip(t *testing.T) {
	inst := builtin(t, "PHQ-9")
	rec := phq9Record()

	parsed, err := ParseWideRow(ToWideRow(inst, rec))
	require.NoError(t, err)

	assert.Equal(t, rec.SubmissionID, parsed.SubmissionID)
	assert.Equal(t, "session-1", parsed.RespondentID)
	assert.Equal(t, "PHQ-9", parsed.InstrumentID)
	assert.True(t, rec.Session.SubmittedAt.Equal(parsed.SubmittedAt))
	assert.Equal(t, rec.Answers(), parsed.Answers)
	assert.Equal(t, rec.Result.Total, parsed.Total)
	assert.Equal(t, rec.Result.Severity, parsed.Severity)
	assert.Equal(t, rec.Result.DomainScores, parsed.DomainScores)
	assert.Equal(t, rec.Result.Flags, parsed.Flags)
}

func TestParseWideRow_Errors(t *testing.T) {
	inst := builtin(t, "GAD-7")
	base := func() domain.WideRow {
		rec := phq9Record()
		rec.Instrument.ID = "GAD-7"
		rec.Items = rec.Items[:7]
		rec.Result.DomainScores = nil
		rec.Result.Flags = map[string]bool{"recommend_counseling": true}
		return ToWideRow(inst, rec)
	}

	tests := []struct {
		name   string
		column string
		value  string
	}{
		{"bad total", ColTotal, "eleven"},
		{"bad score", "Q3_score", "x"},
		{"bad flag", "flag_recommend_clinic", "maybe"},
		{"bad time", ColSubmissionTS, "yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := base()
			row.Values[tt.column] = tt.value
			_, err := ParseWideRow(row)
			assert.Error(t, err)
		})
	}
}

func TestParseWideRow_BlankCellsFromWiderHeader(t *testing.T) {
	gad := builtin(t, "GAD-7")
	phq := builtin(t, "PHQ-9")

	header, _ := MergeHeader(Columns(gad), Columns(phq))
	rec := phq9Record()
	rec.Instrument.ID = "GAD-7"
	rec.Items = rec.Items[:7]
	rec.Result.Flags = map[string]bool{"recommend_counseling": true, "recommend_clinic": false}
	row := ToWideRow(gad, rec)

	widened := domain.WideRow{Columns: header, Values: map[string]string{}}
	for _, c := range header {
		widened.Values[c] = row.Get(c)
	}

	parsed, err := ParseWideRow(widened)
	require.NoError(t, err)
	assert.Len(t, parsed.Answers, 7)
	assert.NotContains(t, parsed.Flags, "safety_concern")
	assert.True(t, parsed.Flags["recommend_counseling"])
}

func TestMergeHeader(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		incoming []string
		want     []string
		extended bool
	}{
		{"identical", []string{"a", "b"}, []string{"a", "b"}, []string{"a", "b"}, false},
		{"subset", []string{"a", "b", "c"}, []string{"c", "a"}, []string{"a", "b", "c"}, false},
		{"new columns appended", []string{"a", "b"}, []string{"b", "d", "c"}, []string{"a", "b", "d", "c"}, true},
		{"empty existing", nil, []string{"x"}, []string{"x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, extended := MergeHeader(tt.existing, tt.incoming)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.extended, extended)
		})
	}
}

func TestParseTime(t *testing.T) {
	ts, err := ParseTime("")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	ts, err = ParseTime("2024-03-01T10:05:30+09:00")
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 3, 1, 1, 5, 30, 0, time.UTC)))
}

func TestParseWideRow_SubSecondTimestamp(t *testing.T) {
	inst := builtin(t, "PHQ-9")
	rec := phq9Record()
	rec.Session.SubmittedAt = time.Date(2024, 3, 1, 10, 5, 30, 123456789, time.FixedZone("KST", 9*60*60))

	row := ToWideRow(inst, rec)
	assert.Equal(t, "2024-03-01T10:05:30.123456789+09:00", row.Get(ColSubmissionTS))

	parsed, err := ParseWideRow(row)
	require.NoError(t, err)
	assert.True(t, rec.Session.SubmittedAt.Equal(parsed.SubmittedAt))
}
