package handler

import (
	"github.com/labstack/echo/v4"
)

// Envelope wraps every API response body.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody tells the caller what went wrong and whether re-reading state and
// retrying the same request may succeed.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// RespondError renders a failure envelope.
func RespondError(c echo.Context, status int, body ErrorBody) error {
	return c.JSON(status, Envelope{Success: false, Error: &body})
}
