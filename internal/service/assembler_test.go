package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screening-server/internal/domain"
)

// finishedPHQ9 walks a PHQ-9 session to the result step.
func finishedPHQ9(t *testing.T, m *SessionMachine, scores ...int) domain.Session {
	t.Helper()
	s, err := m.Start("PHQ-9")
	require.NoError(t, err)
	s, err = m.SetConsent(s, true)
	require.NoError(t, err)
	s, err = m.Next(s)
	require.NoError(t, err)
	s, err = m.UpdateIdentity(s, domain.Identity{Name: "Lee Jiwoo", Email: "jiwoo@example.com"})
	require.NoError(t, err)
	s, err = m.Next(s)
	require.NoError(t, err)
	s = answerAll(t, m, s, scores...)
	s, err = m.Next(s)
	require.NoError(t, err)
	require.Equal(t, domain.StepResult, s.Step)
	return s
}

func TestAssemble_RefusesPrematureExport(t *testing.T) {
	m, _ := newMachine(t)
	gad := loadInstrument(t, "GAD-7")

	s := toSurvey(t, m)
	s = answerAll(t, m, s, 1, 1, 1)

	_, err := Assemble(gad, s, nil)
	var premature *domain.PrematureExportError
	require.True(t, errors.As(err, &premature))
	assert.Equal(t, domain.StepSurvey, premature.Step)
	assert.Equal(t, []int{4, 5, 6, 7}, premature.MissingItems)

	s = answerAll(t, m, s, 1, 1, 1, 1, 1, 1, 1)
	_, err = Assemble(gad, s, Score(gad, s.Answers))
	assert.True(t, errors.As(err, &premature), "complete answers are not enough before the result step")
}

func TestAssemble_GAD7(t *testing.T) {
	m, _ := newMachine(t)
	gad := loadInstrument(t, "GAD-7")

	s := toSurvey(t, m)
	s = answerAll(t, m, s, 2, 2, 2, 2, 1, 1, 0)
	s, err := m.Next(s)
	require.NoError(t, err)

	rec, err := Assemble(gad, s, Score(gad, s.Answers))
	require.NoError(t, err)

	assert.Equal(t, domain.RecordSchemaVersion, rec.SchemaVersion)
	assert.Equal(t, SubmissionID(s.ID, *s.SubmittedAt), rec.SubmissionID)
	assert.Equal(t, "GAD-7", rec.Instrument.ID)
	assert.Equal(t, s.ID, rec.RespondentID())
	assert.True(t, rec.Session.Consent)
	assert.Equal(t, *s.ConsentAt, rec.Session.ConsentAt)
	assert.Equal(t, *s.StartedAt, rec.Session.StartedAt)
	assert.Equal(t, *s.SubmittedAt, rec.Session.SubmittedAt)
	require.NotNil(t, rec.Examinee)
	assert.Equal(t, "Hong Gildong", rec.Examinee.Name)

	require.Len(t, rec.Items, 7)
	assert.Equal(t, domain.ItemAnswer{Ordinal: 1, Score: 2, Label: "More than half the days"}, rec.Items[0])
	assert.Equal(t, s.Answers, rec.Answers())

	assert.Equal(t, 10, rec.Result.Total)
	assert.Equal(t, "Moderate", rec.Result.Severity)
	assert.True(t, rec.Result.Flags["recommend_counseling"])
	assert.False(t, rec.Result.Flags["recommend_clinic"])
	assert.Contains(t, rec.Result.Narrative, "Total score 10 of 21")
}

func TestAssemble_Deterministic(t *testing.T) {
	m, _ := newMachine(t)
	phq := loadInstrument(t, "PHQ-9")
	s := finishedPHQ9(t, m, 1, 1, 1, 1, 1, 1, 1, 1, 0)

	first, err := Assemble(phq, s, nil)
	require.NoError(t, err)
	second, err := Assemble(phq, s.Clone(), Score(phq, s.Answers))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAssemble_RescoresStaleResult(t *testing.T) {
	m, _ := newMachine(t)
	phq := loadInstrument(t, "PHQ-9")
	gad := loadInstrument(t, "GAD-7")
	s := finishedPHQ9(t, m, 3, 3, 3, 3, 3, 3, 3, 3, 3)

	rec, err := Assemble(phq, s, Score(gad, uniform(7, 0)))
	require.NoError(t, err)
	assert.Equal(t, 27, rec.Result.Total)
	assert.Equal(t, "Severe", rec.Result.Severity)
}

func TestAssemble_SafetyNarrative(t *testing.T) {
	m, _ := newMachine(t)
	phq := loadInstrument(t, "PHQ-9")
	s := finishedPHQ9(t, m, 0, 0, 0, 0, 0, 0, 0, 0, 1)

	rec, err := Assemble(phq, s, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.Result.Total)
	assert.Equal(t, "Minimal", rec.Result.Severity)
	assert.True(t, rec.Result.Flags["safety_concern"])
	assert.False(t, rec.Result.Flags["clinically_significant"])
	assert.Contains(t, rec.Result.Narrative, "1393")
	assert.Equal(t, map[string]int{"somatic": 0, "cognitive_affective": 1}, rec.Result.DomainScores)
}

func TestAssemble_Supplementary(t *testing.T) {
	m, _ := newMachine(t)
	phq := loadInstrument(t, "PHQ-9")
	s := finishedPHQ9(t, m, 1, 1, 1, 1, 1, 1, 1, 1, 0)
	s.Supplementary = map[string]string{"functional_impairment": "Very difficult", "stray": "x"}

	rec, err := Assemble(phq, s, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"functional_impairment": "Very difficult"}, rec.Supplementary)
	assert.Contains(t, rec.Result.Narrative, "very difficult")
}

func TestAssemble_UsabilityOmitsExaminee(t *testing.T) {
	m, _ := newMachine(t)
	ut := loadInstrument(t, "UT-27")

	s, err := m.Start("UT-27")
	require.NoError(t, err)
	s, err = m.SetConsent(s, true)
	require.NoError(t, err)
	s, err = m.Next(s)
	require.NoError(t, err)
	scores := make([]int, 27)
	for i := range scores {
		scores[i] = 4
	}
	s = answerAll(t, m, s, scores...)
	s, err = m.Annotate(s, 2, domain.Annotation{Functionality: "Y", Comment: "fast"})
	require.NoError(t, err)
	s, err = m.Next(s)
	require.NoError(t, err)

	rec, err := Assemble(ut, s, nil)
	require.NoError(t, err)
	assert.Nil(t, rec.Examinee)
	assert.Equal(t, 108, rec.Result.Total)
	assert.True(t, rec.Result.Flags["meets_target"])
	assert.Equal(t, "Y", rec.Items[1].Functionality)
	assert.Equal(t, "fast", rec.Items[1].Comment)
}

func TestSubmissionID(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 5, 0, 0, time.FixedZone("KST", 9*60*60))

	id := SubmissionID("session-1", at)
	assert.Len(t, id, 36)
	assert.Equal(t, id, SubmissionID("session-1", at.UTC()), "the zone does not change the id")
	assert.NotEqual(t, id, SubmissionID("session-2", at))
	assert.NotEqual(t, id, SubmissionID("session-1", at.Add(time.Nanosecond)))
}
