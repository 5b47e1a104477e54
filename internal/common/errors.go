// Package common defines shared constants and errors used across the
// SEC-NEXUS client and provisioner. Callers should use errors.Is / errors.As
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrAlreadyExists is matched by remote store errors reporting a conflict
	// (collection, attribute or document already present).
	ErrAlreadyExists = errors.New("already exists")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrNoSession is returned when an operation requires a signed-in user
	// and no session is persisted locally.
	ErrNoSession = errors.New("no active session")

	// ErrJobSucceeded is returned when a retry is requested for a
	// provisioning job that already completed.
	ErrJobSucceeded = errors.New("job already succeeded")

	// ErrJobFailed wraps a provisioning failure that was already recorded
	// in the job ledger and published. The task need not be redelivered.
	ErrJobFailed = errors.New("job failed")
)
