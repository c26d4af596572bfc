package domain

import (
	"time"
)

// Step represents the page a respondent is on
type Step string

const (
	StepIntro    Step = "intro"
	StepIdentity Step = "identity"
	StepSurvey   Step = "survey"
	StepResult   Step = "result"
)

// Steps lists every step in display order.
var Steps = []Step{StepIntro, StepIdentity, StepSurvey, StepResult}

// IsValid reports whether s is a known step.
func (s Step) IsValid() bool {
	switch s {
	case StepIntro, StepIdentity, StepSurvey, StepResult:
		return true
	}
	return false
}

func (s Step) String() string {
	return string(s)
}

// StepStatus is the display state of a step in the progress indicator.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepActive    StepStatus = "active"
	StepTodo      StepStatus = "todo"
)

// StepState pairs a step with its display status.
type StepState struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
}

// Identity holds the optional examinee details.
type Identity struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// IsZero reports whether no field is set.
func (i Identity) IsZero() bool {
	return i.Name == "" && i.Phone == "" && i.Email == ""
}

// Session is the state of one respondent working through one instrument.
// It is mutated only by the session machine, one operation at a time.
type Session struct {
	ID                    string            `json:"id"`
	InstrumentID          string            `json:"instrument_id"`
	Step                  Step              `json:"step"`
	Consent               bool              `json:"consent"`
	ConsentAt             *time.Time        `json:"consent_at,omitempty"`
	StartedAt             *time.Time        `json:"started_at,omitempty"`
	SubmittedAt           *time.Time        `json:"submitted_at,omitempty"`
	Identity              Identity          `json:"identity"`
	Answers               Responses         `json:"answers"`
	Annotations           Annotations       `json:"annotations,omitempty"`
	Supplementary         map[string]string `json:"supplementary,omitempty"`
	PersistedSubmissionID string            `json:"persisted_submission_id,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so that operations never alias the caller's maps.
func (s Session) Clone() Session {
	out := s
	out.ConsentAt = cloneTime(s.ConsentAt)
	out.StartedAt = cloneTime(s.StartedAt)
	out.SubmittedAt = cloneTime(s.SubmittedAt)
	out.Answers = s.Answers.Clone()
	out.Annotations = s.Annotations.Clone()
	out.Supplementary = make(map[string]string, len(s.Supplementary))
	for k, v := range s.Supplementary {
		out.Supplementary[k] = v
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
