package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation.
var (
	ErrInvalidEvent          = errors.New("invalid event")
	ErrInvalidKind           = errors.New("invalid event kind")
	ErrInvalidLifecycleEvent = errors.New("invalid lifecycle event")
	ErrMixedCapture          = errors.New("event carries both http and model capture fields")
)

// ErrEventNotFound is returned when no event matches a lookup.
var ErrEventNotFound = errors.New("event not found")

// ErrDuplicateKey indicates a unique constraint violation on uuid.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
