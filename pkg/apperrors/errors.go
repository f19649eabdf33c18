package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrHasDependencies = errors.New("has dependent classifications")
	ErrValidation      = errors.New("validation failed")
)
