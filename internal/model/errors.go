package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource or a request is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrIllegalTransition is returned when a task status change is not allowed.
	ErrIllegalTransition = errors.New("illegal transition")
)

// ErrorKind is the classification of an error returned to the callers.
type ErrorKind string

const (
	ErrorKindNotFound          ErrorKind = "not_found"
	ErrorKindAlreadyExists     ErrorKind = "already_exists"
	ErrorKindIllegalTransition ErrorKind = "illegal_transition"
	ErrorKindValidation        ErrorKind = "validation_error"
	ErrorKindStorage           ErrorKind = "storage_error"
)

// KindOf classifies an error. Errors that don't wrap any of the domain
// sentinels are collaborator failures and are reported as storage errors.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return ErrorKindAlreadyExists
	case errors.Is(err, ErrIllegalTransition):
		return ErrorKindIllegalTransition
	case errors.Is(err, ErrNotValid):
		return ErrorKindValidation
	default:
		return ErrorKindStorage
	}
}
