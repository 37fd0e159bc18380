package domain

import "errors"

// Common errors
var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("access forbidden: you don't own this resource")
)

// Validation and state-machine errors
var (
	ErrInvalidProfile  = errors.New("invalid profile")
	ErrInvalidDay      = errors.New("day index must be between 0 and 6")
	ErrInvalidCommand  = errors.New("invalid plan command")
	ErrInvalidFactor   = errors.New("consumption factor must be greater than zero")
	ErrInvalidTarget   = errors.New("fasting target must be greater than zero")
	ErrFastingActive   = errors.New("a fasting session is already running")
	ErrFastingInactive = errors.New("no fasting session is running")
	ErrUnknownMeal     = errors.New("meal is not active")
	ErrDuplicateMeal   = errors.New("meal already exists")
	ErrUnknownGroup    = errors.New("unknown food group")
	ErrEmptyQuery      = errors.New("query cannot be empty")
	ErrNoFoodDetected  = errors.New("no nutrition table detected")
)
