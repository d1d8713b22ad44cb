package core

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrNotFound is returned by services & repositories when the requested object does not exist.
var ErrNotFound = errors.New("not found")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError means the input is invalid: a missing or malformed field the caller should fix.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

// IsValidationError reports whether err is a *ValidationError or a validator.ValidationErrors.
func IsValidationError(err error) bool {
	switch errors.Cause(err).(type) {
	case *ValidationError, validator.ValidationErrors:
		return true
	}
	return false
}

// ConstraintError means the write clashed with a storage uniqueness constraint,
// eg. the object has already been recorded.
type ConstraintError struct {
	Constraint string
	Err        error
}

func NewConstraintError(constraint string, err error) error {
	return &ConstraintError{Constraint: constraint, Err: err}
}

func (err ConstraintError) Error() string {
	if err.Err == nil {
		return "unique constraint violated: " + err.Constraint
	}
	return err.Err.Error()
}

// IsConstraintViolation reports whether err is a *ConstraintError.
func IsConstraintViolation(err error) bool {
	_, ok := errors.Cause(err).(*ConstraintError)
	return ok
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
