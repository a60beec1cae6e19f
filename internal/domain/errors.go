package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every entity validation error.
var ErrValidation = errors.New("validation failed")

// Entity validation errors
var (
	ErrEmptyEventID      = fmt.Errorf("%w: event ID cannot be empty", ErrValidation)
	ErrEmptyEventTitle   = fmt.Errorf("%w: event title cannot be empty", ErrValidation)
	ErrInvalidEventRange = fmt.Errorf("%w: event ends before it starts", ErrValidation)
	ErrEmptyVendorID     = fmt.Errorf("%w: vendor ID cannot be empty", ErrValidation)
	ErrEmptyVendorName   = fmt.Errorf("%w: vendor name cannot be empty", ErrValidation)
	ErrInvalidURL        = fmt.Errorf("%w: URL must be absolute http(s)", ErrValidation)
	ErrEmptyPostID       = fmt.Errorf("%w: post ID cannot be empty", ErrValidation)
	ErrEmptyPostAuthor   = fmt.Errorf("%w: post author cannot be empty", ErrValidation)
	ErrEmptyLabel        = fmt.Errorf("%w: image label cannot be empty", ErrValidation)
	ErrInvalidConfidence = fmt.Errorf("%w: confidence must be between 0 and 1", ErrValidation)
)
