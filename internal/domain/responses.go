package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Responses maps item ordinal to the selected score. A missing key means the
// item is unanswered; there is no default score.
type Responses map[int]int

// Clone returns an independent copy.
func (r Responses) Clone() Responses {
	out := make(Responses, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Ordinals returns the answered ordinals in ascending order.
func (r Responses) Ordinals() []int {
	ords := make([]int, 0, len(r))
	for k := range r {
		ords = append(ords, k)
	}
	sort.Ints(ords)
	return ords
}

// Functionality values for item annotations
const (
	FunctionalityYes = "Y"
	FunctionalityNo  = "N"
)

// Annotation holds the free-form fields some instruments capture per item.
type Annotation struct {
	Functionality string `json:"functionality,omitempty"`
	Improvement   string `json:"improvement,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

// IsZero reports whether nothing was captured.
func (a Annotation) IsZero() bool {
	return a.Functionality == "" && a.Improvement == "" && a.Comment == ""
}

// Annotations maps item ordinal to its annotation.
type Annotations map[int]Annotation

// Clone returns an independent copy.
func (a Annotations) Clone() Annotations {
	out := make(Annotations, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// ResponseStore records answers for one instrument and rejects anything
// that is not a point on its scale.
type ResponseStore struct {
	instrument  *Instrument
	answers     Responses
	annotations Annotations
}

// NewResponseStore wraps copies of the given answers and annotations.
func NewResponseStore(inst *Instrument, answers Responses, annotations Annotations) *ResponseStore {
	if answers == nil {
		answers = Responses{}
	}
	if annotations == nil {
		annotations = Annotations{}
	}
	return &ResponseStore{
		instrument:  inst,
		answers:     answers.Clone(),
		annotations: annotations.Clone(),
	}
}

// Set records score for ordinal, overwriting any earlier answer.
func (s *ResponseStore) Set(ordinal, score int) error {
	if _, ok := s.instrument.Item(ordinal); !ok {
		return &InvalidScoreError{Ordinal: ordinal, Score: score, Reason: "unknown item"}
	}
	if !s.instrument.HasScore(score) {
		return &InvalidScoreError{Ordinal: ordinal, Score: score, Reason: "score is not on the response scale"}
	}
	s.answers[ordinal] = score
	return nil
}

// Get returns the score for ordinal and whether it was answered.
func (s *ResponseStore) Get(ordinal int) (int, bool) {
	score, ok := s.answers[ordinal]
	return score, ok
}

// Clear marks ordinal as unanswered again.
func (s *ResponseStore) Clear(ordinal int) error {
	if _, ok := s.instrument.Item(ordinal); !ok {
		return &InvalidScoreError{Ordinal: ordinal, Reason: "unknown item"}
	}
	delete(s.answers, ordinal)
	return nil
}

// Missing lists unanswered ordinals in ascending order.
func (s *ResponseStore) Missing() []int {
	return s.instrument.Missing(s.answers)
}

// AnsweredCount returns the number of answered items.
func (s *ResponseStore) AnsweredCount() int {
	return len(s.answers)
}

// Annotate stores the free-form fields of an item. Functionality must be
// empty, "Y" or "N".
func (s *ResponseStore) Annotate(ordinal int, a Annotation) error {
	if !s.instrument.ItemAnnotations {
		return NewValidationError("annotation", fmt.Sprintf("instrument %s does not capture item annotations", s.instrument.ID), ordinal)
	}
	if _, ok := s.instrument.Item(ordinal); !ok {
		return &InvalidScoreError{Ordinal: ordinal, Reason: "unknown item"}
	}
	a.Functionality = strings.ToUpper(strings.TrimSpace(a.Functionality))
	switch a.Functionality {
	case "", FunctionalityYes, FunctionalityNo:
	default:
		return NewValidationError("functionality", "must be Y or N", a.Functionality)
	}
	a.Improvement = strings.TrimSpace(a.Improvement)
	a.Comment = strings.TrimSpace(a.Comment)
	if a.IsZero() {
		delete(s.annotations, ordinal)
		return nil
	}
	s.annotations[ordinal] = a
	return nil
}

// Answers returns a copy of the recorded answers.
func (s *ResponseStore) Answers() Responses {
	return s.answers.Clone()
}

// Annotations returns a copy of the recorded annotations.
func (s *ResponseStore) Annotations() Annotations {
	return s.annotations.Clone()
}
