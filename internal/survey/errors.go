package survey

import (
	"errors"

	"github.com/alouzou/sondage/backend/internal/validation"
)

var (
	// ErrUserNotFound means the authenticated caller has no User record. It is a
	// server-side inconsistency, not a client error.
	ErrUserNotFound = errors.New("authenticated user has no account")
	// ErrExportNotFound is returned for an unknown export key.
	ErrExportNotFound = errors.New("export not found")
)

type (
	FieldError      = validation.FieldError
	ValidationError = validation.Error
)
