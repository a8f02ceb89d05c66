package errors

import "fmt"

var (
	ErrValidationFailed    = fmt.Errorf("validation failed")
	ErrInvalidName         = fmt.Errorf("invalid participant name: %w", ErrValidationFailed)
	ErrInvalidLimit        = fmt.Errorf("limit must be a positive integer: %w", ErrValidationFailed)
	ErrAlreadyExists       = fmt.Errorf("participant already exists")
	ErrNotFound            = fmt.Errorf("participant not found")
	ErrSenderNotRegistered = fmt.Errorf("sender is not a registered participant")
	ErrStoreUnavailable    = fmt.Errorf("store unavailable")
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrInvalidConfig       = fmt.Errorf("invalid configuration")
)
