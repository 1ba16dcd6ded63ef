package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/handyfix/marketplace-engine/internal/api/handler"
	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/pkg/logger"
)

// domainError maps one sentinel to its HTTP rendering.
type domainError struct {
	target error
	status int
	code   string
}

// Order matters: the first match wins, so specific errors precede ErrNotFound.
var domainErrors = []domainError{
	{domain.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{domain.ErrInvalidTransition, http.StatusUnprocessableEntity, "invalid_transition"},
	{domain.ErrInvalidFee, http.StatusUnprocessableEntity, "invalid_fee"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrSessionMismatch, http.StatusUnprocessableEntity, "session_mismatch"},
	{domain.ErrGatewayUnavailable, http.StatusServiceUnavailable, "gateway_unavailable"},
	{domain.ErrPaymentIncomplete, http.StatusPaymentRequired, "payment_incomplete"},
	{domain.ErrAmountMismatch, http.StatusUnprocessableEntity, "amount_mismatch"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{domain.ErrUserExists, http.StatusConflict, "user_exists"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to status codes and stable error codes.
//   - Flags errors the caller may retry after re-reading state.
//   - Logs unexpected errors internally without leaking details to the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = handler.RespondError(c, status, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, handler.ErrorBody) {
	// Echo's own errors (bind failures, 404 from router, middleware denials).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, handler.ErrorBody{
			Code:      httpErrorCode(he.Code),
			Message:   fmt.Sprintf("%v", he.Message),
			Retryable: he.Code == http.StatusServiceUnavailable,
		}
	}

	for _, de := range domainErrors {
		if errors.Is(err, de.target) {
			return de.status, handler.ErrorBody{
				Code:      de.code,
				Message:   err.Error(),
				Retryable: domain.Retryable(err),
			}
		}
	}

	// Unexpected error: log the real cause, return a generic message.
	if reqLog := logger.FromContext(c.Request().Context()); reqLog.GetLevel() != zerolog.Disabled {
		log = reqLog
	}
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, handler.ErrorBody{
		Code:    "internal",
		Message: "internal server error",
	}
}

func httpErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "http_error"
	}
}
