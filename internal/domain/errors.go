package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrCartNotFound is reported by the backend while a cart for a fresh identity is still being created.
	ErrCartNotFound = errors.New("cart not found")
	// ErrUnauthorized indicates a missing or rejected access token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput wraps validation failures caused by the caller.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIdentityNotReady is returned for cart mutations attempted before the identity resolved.
	ErrIdentityNotReady = errors.New("identity not ready")
	// ErrStaleIdentity marks work whose identity was replaced while it was in flight.
	ErrStaleIdentity = errors.New("stale identity")
	// ErrUnavailable indicates an external collaborator could not be reached.
	ErrUnavailable = errors.New("service unavailable")
)
