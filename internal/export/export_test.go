package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/instrument"
)

var kst = time.FixedZone("KST", 9*60*60)

func builtin(t *testing.T, id string) *domain.Instrument {
	t.Helper()
	reg, err := instrument.LoadBuiltin()
	require.NoError(t, err)
	inst, err := reg.Get(id)
	require.NoError(t, err)
	return inst
}

// phq9Record is a completed PHQ-9 record with item 9 answered.
func phq9Record() *domain.ExportRecord {
	scores := []int{1, 2, 1, 2, 1, 0, 1, 2, 1}
	items := make([]domain.ItemAnswer, 0, len(scores))
	for i, s := range scores {
		items = append(items, domain.ItemAnswer{Ordinal: i + 1, Score: s})
	}
	return &domain.ExportRecord{
		SchemaVersion: domain.RecordSchemaVersion,
		SubmissionID:  "0d9c5a8e-0000-5000-8000-000000000001",
		Instrument:    domain.InstrumentRef{ID: "PHQ-9", Version: "1.0", Title: "Patient Health Questionnaire"},
		Session: domain.SessionMeta{
			ID:          "session-1",
			Consent:     true,
			ConsentAt:   time.Date(2024, 3, 1, 10, 0, 1, 0, kst),
			StartedAt:   time.Date(2024, 3, 1, 10, 0, 1, 0, kst),
			SubmittedAt: time.Date(2024, 3, 1, 10, 5, 30, 0, kst),
		},
		Examinee:      &domain.Identity{Name: "Kim, Minsu", Phone: "010-1234-5678", Email: "minsu@example.com"},
		Items:         items,
		Supplementary: map[string]string{"functional_impairment": "Somewhat difficult"},
		Result: domain.ResultBlock{
			Total:          11,
			MaxTotal:       27,
			Severity:       "Moderate",
			SeverityKey:    "moderate",
			Interpretation: "Moderate depressive symptoms.\nFollow up.",
			DomainScores:   map[string]int{"somatic": 6, "cognitive_affective": 5},
			Flags:          map[string]bool{"clinically_significant": true, "safety_concern": true},
		},
	}
}
