package content

import "errors"

var (
	// ErrValidation marks malformed input. Nothing was written.
	ErrValidation = errors.New("validation error")
	// ErrIntegrity marks a copy or serialization mismatch. Prior state is kept.
	ErrIntegrity = errors.New("integrity error")
	// ErrTransport marks a storage or network failure.
	ErrTransport = errors.New("transport error")
)
