package types

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a malformed edit intent. No state change is applied.
	ErrValidation = errors.New("validation error")
	// ErrIndexOutOfRange is a validation error for a day or activity index outside the list.
	ErrIndexOutOfRange = fmt.Errorf("%w: index out of range", ErrValidation)
	// ErrConfirmationRequired is returned when an activity removal was not confirmed.
	ErrConfirmationRequired = errors.New("removal requires explicit confirmation")

	ErrNotFound = errors.New("not found")
	// ErrNetwork marks an unreachable itinerary store or a non-2xx response from it.
	ErrNetwork = errors.New("itinerary store unavailable")
	// ErrLoadFailed marks a page-level fetch failure.
	ErrLoadFailed = errors.New("failed to load itinerary")

	ErrReorderInProgress = errors.New("reorder already in progress for this day")
	ErrSessionNotFound   = errors.New("editing session not found")
)
