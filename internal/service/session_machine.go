package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/metrics"
)

// SessionMachine drives a session through Intro, Identity, Survey and
// Result. Every operation takes a session value and returns a new one; on
// failure the returned session equals the input.
type SessionMachine struct {
	catalog domain.InstrumentCatalog
	logger  *logrus.Logger
	clock   func() time.Time
	newID   func() string
	metrics *metrics.Metrics
}

// MachineOption configures a SessionMachine.
type MachineOption func(*SessionMachine)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) MachineOption {
	return func(m *SessionMachine) {
		m.clock = clock
	}
}

// WithLocation stamps timestamps in loc.
func WithLocation(loc *time.Location) MachineOption {
	return func(m *SessionMachine) {
		m.clock = func() time.Time { return time.Now().In(loc) }
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() string) MachineOption {
	return func(m *SessionMachine) {
		m.newID = gen
	}
}

// WithMetrics records starts, transitions and refusals.
func WithMetrics(mt *metrics.Metrics) MachineOption {
	return func(m *SessionMachine) {
		m.metrics = mt
	}
}

// NewSessionMachine creates a new session machine
func NewSessionMachine(catalog domain.InstrumentCatalog, logger *logrus.Logger, opts ...MachineOption) *SessionMachine {
	m := &SessionMachine{
		catalog: catalog,
		logger:  logger,
		clock:   time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a new session at Intro.
func (m *SessionMachine) Start(instrumentID string) (domain.Session, error) {
	inst, err := m.catalog.Get(instrumentID)
	if err != nil {
		return domain.Session{}, err
	}

	now := m.clock()
	s := domain.Session{
		ID:            m.newID(),
		InstrumentID:  inst.ID,
		Step:          domain.StepIntro,
		Answers:       domain.Responses{},
		Annotations:   domain.Annotations{},
		Supplementary: map[string]string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	m.logger.WithFields(logrus.Fields{
		"session_id": s.ID,
		"instrument": inst.ID,
	}).Info("Session started")
	m.metrics.IncrementSessionStarted(inst.ID)
	return s, nil
}

// Reset discards everything and starts over with a new session id.
func (m *SessionMachine) Reset(s domain.Session) (domain.Session, error) {
	fresh, err := m.Start(s.InstrumentID)
	if err != nil {
		return s, err
	}
	m.logger.WithFields(logrus.Fields{
		"previous_session_id": s.ID,
		"session_id":          fresh.ID,
	}).Info("Session reset")
	return fresh, nil
}

// Enforce restarts a session found past Intro without consent. It reports
// whether a reset happened.
func (m *SessionMachine) Enforce(s domain.Session) (domain.Session, bool, error) {
	if s.Step == domain.StepIntro || s.Consent {
		return s, false, nil
	}
	m.logger.WithFields(logrus.Fields{
		"session_id": s.ID,
		"step":       s.Step,
	}).Warn("Consent missing beyond intro, forcing reset")
	fresh, err := m.Reset(s)
	if err != nil {
		return s, false, err
	}
	return fresh, true, nil
}

// SetConsent records the consent checkbox. It is only accepted on Intro.
// Withdrawing consent clears the consent time.
func (m *SessionMachine) SetConsent(s domain.Session, agreed bool) (domain.Session, error) {
	if s.Step != domain.StepIntro {
		return s, wrongStep(s.Step, "consent can only be changed on the intro step")
	}
	out := s.Clone()
	out.Consent = agreed
	if !agreed {
		out.ConsentAt = nil
	}
	out.UpdatedAt = m.clock()
	return out, nil
}

// UpdateIdentity stores normalized examinee details. Validity is checked
// when leaving the Identity step.
func (m *SessionMachine) UpdateIdentity(s domain.Session, id domain.Identity) (domain.Session, error) {
	if s, reset, err := m.guardConsent(s); reset || err != nil {
		return s, err
	}
	if s.Step != domain.StepIdentity {
		return s, wrongStep(s.Step, "identity can only be edited on the identity step")
	}
	out := s.Clone()
	out.Identity = NormalizeIdentity(id)
	out.UpdatedAt = m.clock()
	return out, nil
}

// Answer records score for an item.
func (m *SessionMachine) Answer(s domain.Session, ordinal, score int) (domain.Session, error) {
	return m.mutateResponses(s, func(store *domain.ResponseStore) error {
		return store.Set(ordinal, score)
	})
}

// ClearAnswer marks an item unanswered.
func (m *SessionMachine) ClearAnswer(s domain.Session, ordinal int) (domain.Session, error) {
	return m.mutateResponses(s, func(store *domain.ResponseStore) error {
		return store.Clear(ordinal)
	})
}

// Annotate records the free-form fields of an item.
func (m *SessionMachine) Annotate(s domain.Session, ordinal int, a domain.Annotation) (domain.Session, error) {
	return m.mutateResponses(s, func(store *domain.ResponseStore) error {
		return store.Annotate(ordinal, a)
	})
}

func (m *SessionMachine) mutateResponses(s domain.Session, fn func(*domain.ResponseStore) error) (domain.Session, error) {
	if s, reset, err := m.guardConsent(s); reset || err != nil {
		return s, err
	}
	if s.Step != domain.StepSurvey {
		return s, wrongStep(s.Step, "answers are only accepted on the survey step")
	}
	inst, err := m.catalog.Get(s.InstrumentID)
	if err != nil {
		return s, err
	}

	store := domain.NewResponseStore(inst, s.Answers, s.Annotations)
	if err := fn(store); err != nil {
		return s, err
	}

	out := s.Clone()
	out.Answers = store.Answers()
	out.Annotations = store.Annotations()
	out.UpdatedAt = m.clock()
	return out, nil
}

// AnswerSupplementary records an answer to an unscored question. An empty
// value clears it.
func (m *SessionMachine) AnswerSupplementary(s domain.Session, key, value string) (domain.Session, error) {
	if s, reset, err := m.guardConsent(s); reset || err != nil {
		return s, err
	}
	if s.Step != domain.StepSurvey {
		return s, wrongStep(s.Step, "answers are only accepted on the survey step")
	}
	inst, err := m.catalog.Get(s.InstrumentID)
	if err != nil {
		return s, err
	}
	q, ok := inst.Supplement(key)
	if !ok {
		return s, domain.NewValidationError("key", fmt.Sprintf("instrument %s has no question %q", inst.ID, key), key)
	}
	if value != "" && !q.HasOption(value) {
		return s, domain.NewValidationError(key, "value is not one of the options", value)
	}

	out := s.Clone()
	if value == "" {
		delete(out.Supplementary, key)
	} else {
		out.Supplementary[key] = value
	}
	out.UpdatedAt = m.clock()
	return out, nil
}

// Next moves forward one step when the guard of the current step holds.
func (m *SessionMachine) Next(s domain.Session) (domain.Session, error) {
	out, err := m.next(s)
	return out, m.observe(err)
}

func (m *SessionMachine) next(s domain.Session) (domain.Session, error) {
	if s, reset, err := m.guardConsent(s); reset || err != nil {
		return s, err
	}
	inst, err := m.catalog.Get(s.InstrumentID)
	if err != nil {
		return s, err
	}

	now := m.clock()
	out := s.Clone()

	switch s.Step {
	case domain.StepIntro:
		to := firstStepAfterIntro(inst)
		if !s.Consent {
			return s, &domain.GuardViolation{From: s.Step, To: to, Code: domain.GuardConsentRequired, Reason: "consent is required to continue"}
		}
		if out.ConsentAt == nil {
			out.ConsentAt = &now
		}
		if out.StartedAt == nil {
			started := now
			out.StartedAt = &started
		}
		out.Step = to

	case domain.StepIdentity:
		if errs := ValidateIdentity(s.Identity); len(errs) > 0 {
			return s, &domain.GuardViolation{From: s.Step, To: domain.StepSurvey, Code: domain.GuardIdentityInvalid, Reason: errs.Error()}
		}
		out.Step = domain.StepSurvey

	case domain.StepSurvey:
		if missing := inst.Missing(s.Answers); len(missing) > 0 {
			return s, &domain.GuardViolation{
				From:         s.Step,
				To:           domain.StepResult,
				Code:         domain.GuardIncomplete,
				Reason:       fmt.Sprintf("%d of %d items are unanswered", len(missing), inst.ItemCount()),
				MissingItems: missing,
			}
		}
		if out.SubmittedAt == nil {
			out.SubmittedAt = &now
		}
		out.Step = domain.StepResult

	default:
		return s, &domain.GuardViolation{From: s.Step, Code: domain.GuardNoTransition, Reason: "no step follows " + s.Step.String()}
	}

	out.UpdatedAt = now
	m.logTransition(s, out)
	return out, nil
}

// Back returns to the previous step. Responses are never touched.
func (m *SessionMachine) Back(s domain.Session) (domain.Session, error) {
	out, err := m.back(s)
	return out, m.observe(err)
}

func (m *SessionMachine) back(s domain.Session) (domain.Session, error) {
	if s, reset, err := m.guardConsent(s); reset || err != nil {
		return s, err
	}
	inst, err := m.catalog.Get(s.InstrumentID)
	if err != nil {
		return s, err
	}

	out := s.Clone()
	switch s.Step {
	case domain.StepIdentity:
		out.Step = domain.StepIntro
	case domain.StepSurvey:
		if inst.CollectIdentity {
			out.Step = domain.StepIdentity
		} else {
			out.Step = domain.StepIntro
		}
	case domain.StepResult:
		out.Step = domain.StepSurvey
	default:
		return s, &domain.GuardViolation{From: s.Step, Code: domain.GuardNoTransition, Reason: "no step precedes " + s.Step.String()}
	}

	out.UpdatedAt = m.clock()
	m.logTransition(s, out)
	return out, nil
}

// Stepper returns the display status of every step the instrument uses.
func (m *SessionMachine) Stepper(s domain.Session) ([]domain.StepState, error) {
	inst, err := m.catalog.Get(s.InstrumentID)
	if err != nil {
		return nil, err
	}
	steps := VisibleSteps(inst)
	current := -1
	for i, st := range steps {
		if st == s.Step {
			current = i
		}
	}

	out := make([]domain.StepState, len(steps))
	for i, st := range steps {
		status := domain.StepTodo
		switch {
		case i < current:
			status = domain.StepCompleted
		case i == current:
			status = domain.StepActive
		}
		out[i] = domain.StepState{Step: st, Status: status}
	}
	return out, nil
}

// VisibleSteps lists the steps an instrument walks through.
func VisibleSteps(inst *domain.Instrument) []domain.Step {
	if inst.CollectIdentity {
		return []domain.Step{domain.StepIntro, domain.StepIdentity, domain.StepSurvey, domain.StepResult}
	}
	return []domain.Step{domain.StepIntro, domain.StepSurvey, domain.StepResult}
}

// guardConsent applies Enforce ahead of an operation. A forced reset is
// reported as a consent violation alongside the fresh session.
func (m *SessionMachine) guardConsent(s domain.Session) (domain.Session, bool, error) {
	fresh, reset, err := m.Enforce(s)
	if err != nil {
		return s, false, err
	}
	if reset {
		return fresh, true, &domain.GuardViolation{From: s.Step, To: domain.StepIntro, Code: domain.GuardConsentRequired, Reason: "consent is missing; the session was restarted"}
	}
	return s, false, nil
}

// observe counts guard refusals and passes err through.
func (m *SessionMachine) observe(err error) error {
	var g *domain.GuardViolation
	if errors.As(err, &g) {
		m.metrics.IncrementGuardViolation(g.Code)
	}
	return err
}

func (m *SessionMachine) logTransition(from, to domain.Session) {
	m.metrics.IncrementTransition(from.Step.String(), to.Step.String())
	m.logger.WithFields(logrus.Fields{
		"session_id": from.ID,
		"instrument": from.InstrumentID,
		"from":       from.Step,
		"to":         to.Step,
	}).Debug("Session transition")
}

func firstStepAfterIntro(inst *domain.Instrument) domain.Step {
	if inst.CollectIdentity {
		return domain.StepIdentity
	}
	return domain.StepSurvey
}

func wrongStep(step domain.Step, reason string) error {
	return &domain.GuardViolation{From: step, Code: domain.GuardWrongStep, Reason: reason}
}
