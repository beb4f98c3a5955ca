package domain

import "errors"

var (
	// ErrUnauthenticated is returned when a request carries no valid session.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrForbidden is returned when the session user is not the room admin.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates a room, user, question, or answer is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a validation failure on caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates a unique-constraint violation at the store.
	ErrConflict = errors.New("conflict")
	// ErrInternal wraps unexpected storage failures.
	ErrInternal = errors.New("internal error")
)
