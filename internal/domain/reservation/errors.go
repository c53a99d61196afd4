package reservation

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrNoAvailability  = errors.New("no available spots in the selected lot")
	ErrAlreadyReleased = errors.New("reservation has already been released")
	ErrForbidden       = errors.New("reservation belongs to another user")
)

var (
	ErrLotNotFound         = fmt.Errorf("parking lot %w", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)

	errSpotNotOccupied = errors.New("spot of an open reservation is not occupied")
)
