package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Guard violation",
			code:      ErrGuardViolation,
			message:   "consent is required",
			details:   "intro -> identity",
			requestID: "req-123",
		},
		{
			name:      "Database error",
			code:      ErrDatabaseError,
			message:   "Database connection failed",
			details:   "Unable to connect to PostgreSQL",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationErrors(t *testing.T) {
	errs := ValidationErrors{
		NewValidationError("name", "name is required", ""),
		NewValidationError("email", "email must contain '@' and '.'", "nope"),
	}

	expected := "validation error for field 'name': name is required; validation error for field 'email': email must contain '@' and '.'"
	if errs.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, errs.Error())
	}
}

func TestPersistenceFailureUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("finalize: %w", &PersistenceFailure{Target: "csv", SubmissionID: "s-1", Err: cause})

	var pf *PersistenceFailure
	if !errors.As(err, &pf) {
		t.Fatal("expected PersistenceFailure in chain")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}

func TestSentinelNotFound(t *testing.T) {
	if !errors.Is(ErrSessionNotFound, ErrNotFound) {
		t.Error("ErrSessionNotFound should wrap ErrNotFound")
	}
	if !errors.Is(ErrInstrumentNotFound, ErrNotFound) {
		t.Error("ErrInstrumentNotFound should wrap ErrNotFound")
	}
}

func TestGuardViolationMessage(t *testing.T) {
	g := &GuardViolation{From: StepSurvey, To: StepResult, Code: GuardIncomplete, Reason: "2 items unanswered"}
	if g.Error() != "guard violation survey -> result: 2 items unanswered" {
		t.Errorf("unexpected message %q", g.Error())
	}

	g = &GuardViolation{From: StepIntro, Code: GuardWrongStep, Reason: "answers are only accepted on the survey step"}
	if g.Error() != "guard violation at intro: answers are only accepted on the survey step" {
		t.Errorf("unexpected message %q", g.Error())
	}
}
