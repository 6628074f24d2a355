package handlers

import (
	"errors"
	"net/http"

	"busease/internal/domain"
	"busease/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	Details   any    `json:"details,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any, err error) {
	resp := ErrorResponse{
		Message:   message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(status, resp)
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	var seats domain.SeatsAlreadyBookedError
	switch {
	case errors.As(err, &seats):
		respondError(c, http.StatusBadRequest, domain.CodeSeatsAlreadyBooked, err.Error(), gin.H{"seats": seats.Seats}, nil)
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil, nil)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil, nil)
	case domain.IsPolicy(err):
		respondError(c, http.StatusBadRequest, policyCode(err), err.Error(), nil, nil)
	case domain.IsUnauthorized(err):
		respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil, nil)
	case domain.IsForbidden(err):
		respondError(c, http.StatusForbidden, "forbidden", err.Error(), nil, nil)
	case domain.IsConflict(err):
		code := domain.ConflictCode(err)
		status := http.StatusConflict
		if code == domain.CodeAlreadyCancelled || code == domain.CodeAlreadyCompleted {
			status = http.StatusBadRequest
		}
		if code == "" {
			code = "conflict"
		}
		respondError(c, status, code, err.Error(), nil, nil)
	case domain.IsExternal(err):
		respondError(c, http.StatusServiceUnavailable, "external_service_error", "Service temporarily unavailable", nil, err)
	default:
		respondError(c, http.StatusInternalServerError, "internal_error", "Internal Server Error", nil, err)
	}
}

func policyCode(err error) string {
	var p domain.PolicyViolationError
	if errors.As(err, &p) && p.Code != "" {
		return p.Code
	}
	return "policy_violation"
}
