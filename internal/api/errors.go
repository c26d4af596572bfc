package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/middleware"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   *domain.APIError        `json:"error"`
	Guard   *domain.GuardViolation  `json:"guard,omitempty"`
	Fields  domain.ValidationErrors `json:"fields,omitempty"`
	Session *sessionView            `json:"session,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP status codes and API codes.
func statusFor(err error) (int, string) {
	var (
		guard     *domain.GuardViolation
		invalid   *domain.InvalidScoreError
		field     *domain.ValidationError
		fields    domain.ValidationErrors
		premature *domain.PrematureExportError
		cfgErr    *domain.ConfigurationError
	)
	switch {
	case errors.As(err, &guard):
		return http.StatusConflict, domain.ErrGuardViolation
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, domain.ErrInvalidScore
	case errors.As(err, &field), errors.As(err, &fields):
		return http.StatusUnprocessableEntity, domain.ErrValidation
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrNotFoundCode
	case errors.As(err, &premature):
		return http.StatusConflict, domain.ErrPrematureExport
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, domain.ErrConfiguration
	default:
		return http.StatusInternalServerError, domain.ErrInternalServer
	}
}

func (s *Server) respondError(c *gin.Context, err error, view *sessionView) {
	status, code := statusFor(err)
	requestID := c.GetString(middleware.CorrelationIDKey)

	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("correlation_id", requestID).Error("Request failed")
		message = "internal error"
	}

	body := errorBody{
		Error:   domain.NewAPIError(code, message, "", requestID),
		Session: view,
	}
	var guard *domain.GuardViolation
	if errors.As(err, &guard) {
		body.Guard = guard
	}
	var fields domain.ValidationErrors
	if errors.As(err, &fields) {
		body.Fields = fields
	}
	var field *domain.ValidationError
	if errors.As(err, &field) {
		body.Fields = domain.ValidationErrors{field}
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody{
		Error: domain.NewAPIError(domain.ErrInvalidInput, message, "", c.GetString(middleware.CorrelationIDKey)),
	})
}
