package domain

import "errors"

var (
	// ErrNotFound means the entity does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrValidation means a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means the operation clashes with current state.
	ErrConflict = errors.New("conflict")
	// ErrConfiguration means required integration settings are missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnauthorized means credentials or token are invalid.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDisabled means the operation is no longer supported.
	ErrDisabled = errors.New("operation disabled")
)
