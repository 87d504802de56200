// Package common defines shared constants and sentinel errors used across
// the SCS server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Validation errors (malformed email, hash, salt, or metadata).
	ErrInvalidInput = errors.New("invalid input")

	// Registration with an email that already has an account.
	ErrConflict = errors.New("already exists")

	// Unknown account or hash mismatch. Deliberately a single value so the
	// caller cannot tell which one it was.
	ErrAuthFailure = errors.New("authentication failed")

	// Requested file or its metadata sidecar is absent.
	ErrNotFound = errors.New("not found")

	// Blob exceeds the configured size cap.
	ErrTooLarge = errors.New("too large")

	// A resolved path escaped its namespace directory. Reported to clients
	// as ErrInvalidInput; kept distinct so it can be logged as a
	// security-relevant event.
	ErrPathTraversal = errors.New("path traversal")

	// Generic internal flow control.
	ErrInternal = errors.New("internal error")
)
