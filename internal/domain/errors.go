package domain

import "github.com/cockroachdb/errors"

var (
	ErrSerializationFailure   = errors.New("serialization failure")
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrCapacityExceeded       = errors.New("capacity exceeded")
	ErrValidation             = errors.New("validation failed")
)

// Kind is the stable, client-visible name of an error class.
type Kind string

const (
	KindNotFound               Kind = "NOT_FOUND"
	KindForbidden              Kind = "FORBIDDEN"
	KindInvalidStateTransition Kind = "INVALID_STATE_TRANSITION"
	KindCapacityExceeded       Kind = "CAPACITY_EXCEEDED"
	KindValidation             Kind = "VALIDATION_ERROR"
	KindConflict               Kind = "CONFLICT"
	KindInternal               Kind = "INTERNAL"
)

// KindOf classifies err. Anything not marked with a domain sentinel is internal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidStateTransition):
		return KindInvalidStateTransition
	case errors.Is(err, ErrCapacityExceeded):
		return KindCapacityExceeded
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict), errors.Is(err, ErrSerializationFailure):
		return KindConflict
	default:
		return KindInternal
	}
}

func NotFoundf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

func Forbiddenf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrForbidden)
}

func InvalidTransitionf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidStateTransition)
}

func CapacityExceededf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCapacityExceeded)
}

func Validationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}
