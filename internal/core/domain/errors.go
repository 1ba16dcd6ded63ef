package domain

import "errors"

// Engine error taxonomy. Callers match with errors.Is; services wrap these
// with operation context.
var (
	ErrUnauthorized       = errors.New("actor lacks the role required for this operation")
	ErrInvalidTransition  = errors.New("invalid booking transition")
	ErrInvalidFee         = errors.New("fee must be a positive amount")
	ErrConflict           = errors.New("booking was modified concurrently")
	ErrSessionMismatch    = errors.New("payment session does not belong to booking")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrNotFound           = errors.New("not found")

	ErrPaymentIncomplete = errors.New("payment has not been completed")
	ErrAmountMismatch    = errors.New("paid amount does not match booking fee")
	ErrInvalidInput      = errors.New("invalid input")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
)

// Not-found variants keep a resource-specific message while still matching ErrNotFound.
var (
	ErrBookingNotFound = notFound("booking not found")
	ErrPaymentNotFound = notFound("payment not found")
	ErrServiceNotFound = notFound("service not found")
	ErrUserNotFound    = notFound("user not found")
)

type notFoundError struct{ msg string }

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

// Retryable reports whether the caller may retry the same request after
// re-reading state.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrGatewayUnavailable)
}
