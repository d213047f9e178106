package core

import "github.com/pkg/errors"

// ErrUnavailable is the cause of every error produced when the document store cannot be reached.
var ErrUnavailable = errors.New("service unavailable")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// Unavailable wraps a driver error so that its cause becomes ErrUnavailable.
func Unavailable(err error, msg string) error {
	return errors.Wrapf(ErrUnavailable, "%s: %v", msg, err)
}
