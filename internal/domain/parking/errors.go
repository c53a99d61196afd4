package parking

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("parking lot not found")
	ErrConflict   = errors.New("parking lot has reservations")
)
