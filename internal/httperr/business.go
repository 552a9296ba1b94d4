package httperr

import (
	"errors"
	"fmt"
)

// BusinessError is a rule violation reported to the caller as-is.
// Retryable marks outcomes the caller may try again (e.g. slot full).
type BusinessError struct {
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e BusinessError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

func (e BusinessError) Unwrap() error {
	return e.Err
}

func ErrBusiness(code string) error {
	return BusinessError{Code: code}
}

func ErrBusinessf(code, format string, args ...any) error {
	return BusinessError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrRetryable builds a business error the caller is allowed to retry.
func ErrRetryable(code, message string) error {
	return BusinessError{Code: code, Message: message, Retryable: true}
}

// Wrap attaches a sentinel so callers can use errors.Is on the result.
func Wrap(sentinel error, code, format string, args ...any) error {
	return BusinessError{Code: code, Message: fmt.Sprintf(format, args...), Err: sentinel}
}

func IsBusiness(err error, code string) bool {
	var be BusinessError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

func AsBusiness(err error) (BusinessError, bool) {
	var be BusinessError
	ok := errors.As(err, &be)
	return be, ok
}

// --------------------------------------------------
// Not found
// --------------------------------------------------

type NotFoundError struct {
	Entity string
}

func (e NotFoundError) Error() string {
	return e.Entity + "_not_found"
}

func ErrNotFound(entity string) error {
	return NotFoundError{Entity: entity}
}

func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
