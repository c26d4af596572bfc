package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput       = "INVALID_INPUT"
	ErrInvalidScore       = "INVALID_SCORE"
	ErrValidation         = "VALIDATION_ERROR"
	ErrGuardViolation     = "GUARD_VIOLATION"
	ErrNotFoundCode       = "NOT_FOUND"
	ErrConfiguration      = "CONFIGURATION_ERROR"
	ErrPrematureExport    = "PREMATURE_EXPORT"
	ErrPersistence        = "PERSISTENCE_FAILURE"
	ErrDatabaseError      = "DATABASE_ERROR"
	ErrRateLimit          = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrSessionStoreFailed = "SESSION_STORE_ERROR"
)

// Sentinel errors
var (
	ErrNotFound           = errors.New("not found")
	ErrInstrumentNotFound = fmt.Errorf("instrument %w", ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("session %w", ErrNotFound)
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors collects field errors reported together.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// ConfigurationError reports a malformed instrument definition or
// configuration. Instruments failing with it are never served.
type ConfigurationError struct {
	Instrument string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	if e.Instrument == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error in instrument %q: %s", e.Instrument, e.Reason)
}

// InvalidScoreError is returned when a response is not a point on the
// instrument's scale or targets an unknown item.
type InvalidScoreError struct {
	Ordinal int
	Score   int
	Reason  string
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("invalid score %d for item %d: %s", e.Score, e.Ordinal, e.Reason)
}

// GuardViolation reports a refused transition. The session is unchanged.
type GuardViolation struct {
	From         Step   `json:"from"`
	To           Step   `json:"to,omitempty"`
	Code         string `json:"code"`
	Reason       string `json:"reason"`
	MissingItems []int  `json:"missing_items,omitempty"`
}

// Guard violation codes
const (
	GuardConsentRequired  = "consent_required"
	GuardIdentityInvalid  = "identity_invalid"
	GuardIncomplete       = "incomplete_responses"
	GuardWrongStep        = "wrong_step"
	GuardNoTransition     = "no_transition"
	GuardAnnotationsUnset = "annotations_unsupported"
)

func (g *GuardViolation) Error() string {
	if g.To == "" {
		return fmt.Sprintf("guard violation at %s: %s", g.From, g.Reason)
	}
	return fmt.Sprintf("guard violation %s -> %s: %s", g.From, g.To, g.Reason)
}

// PrematureExportError is returned when a record is assembled before the
// session reached Result with a complete response set.
type PrematureExportError struct {
	Step         Step
	MissingItems []int
}

func (e *PrematureExportError) Error() string {
	if len(e.MissingItems) > 0 {
		return fmt.Sprintf("cannot export session at step %s: %d items unanswered", e.Step, len(e.MissingItems))
	}
	return fmt.Sprintf("cannot export session at step %s", e.Step)
}

// PersistenceFailure wraps a failed append. It is reported, never fatal.
type PersistenceFailure struct {
	Target       string
	SubmissionID string
	Err          error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("persisting submission %s to %s failed: %v", e.SubmissionID, e.Target, e.Err)
}

func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
