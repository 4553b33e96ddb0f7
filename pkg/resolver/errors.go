package resolver

import "errors"

// Common errors.
var (
	ErrObjectNotFound = errors.New("resolver: object not found")
	ErrAccessDenied   = errors.New("resolver: access denied")
)
