package model

import "errors"

// Error taxonomy shared by the service and repository layers.  Specific
// failures wrap one of these with fmt.Errorf("%w: ...") so handlers can
// map them to an HTTP status with errors.Is.
var (
	// ErrValidation covers missing or malformed input.  400.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated means no usable identity was supplied.  401.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the caller may not perform the operation.  403.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means the addressed record does not exist.  404.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the operation clashes with existing state.  409.
	ErrConflict = errors.New("conflict")
)
