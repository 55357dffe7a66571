package domain

import (
	"errors"
	"fmt"
)

// Error kinds used throughout the application. Callers wrap these with
// fmt.Errorf("%w: ...") to attach context; handlers translate kinds to HTTP
// status codes via a single mapError function.
var (
	// ErrDuplicateKey signals an id collision on insert.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrService covers bus publish and ack failures.
	ErrService = errors.New("service error")

	// ErrRepository covers store connectivity failures and conditional
	// updates that matched zero documents.
	ErrRepository = errors.New("repository error")

	// ErrSerial covers document and payload encode/decode failures.
	ErrSerial = errors.New("serialization error")
)

// Validation failures all wrap ErrValidation so handlers can map the whole
// family with a single errors.Is check.
var (
	ErrValidation       = errors.New("validation error")
	ErrInvalidChannel   = fmt.Errorf("%w: channel must be push or email", ErrValidation)
	ErrInvalidPriority  = fmt.Errorf("%w: priority must be high or low", ErrValidation)
	ErrInvalidRecipient = fmt.Errorf("%w: recipient id must not be empty", ErrValidation)
	ErrInvalidContent   = fmt.Errorf("%w: content must not be empty", ErrValidation)
	ErrInvalidSchedule  = fmt.Errorf("%w: scheduledTime is required", ErrValidation)
)
