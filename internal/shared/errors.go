package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidToken indicates a bearer token that failed verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnauthenticated indicates a request without a principal.
	ErrUnauthenticated = errors.New("authentication required")
)
