package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"safetynet/pkg/domain"
)

// statusFor maps service errors onto HTTP status codes and stable error codes.
func statusFor(err error) (int, string) {
	var violation domain.RuleViolationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "invalid_entity"
	case errors.As(err, &violation):
		return http.StatusConflict, "rule_violation"
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, "persistence_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *Handler) fail(c echo.Context, err error) error {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("request failed", "path", c.Path(), "error", err, "request_id", requestID(c))
	}
	return c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}

func badRequest(c echo.Context, code, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: code, Message: message})
}
