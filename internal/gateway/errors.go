package gateway

import "errors"

var (
	// ErrSessionOpen means the student already has a live checkout session.
	ErrSessionOpen = errors.New("checkout session already open")
	// ErrSessionNotFound means no live session exists for the student.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrSessionMismatch means the callback referenced a different order
	// than the live session.
	ErrSessionMismatch = errors.New("checkout session order mismatch")
)
