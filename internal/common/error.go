package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Identity Service error codes. They follow the codes the hosted identity
// SDKs expose so that pages can translate them into fixed messages.
const (
	AuthInvalidEmail        = "auth/invalid-email"
	AuthUserDisabled        = "auth/user-disabled"
	AuthUserNotFound        = "auth/user-not-found"
	AuthWrongPassword       = "auth/wrong-password"
	AuthInvalidCredential   = "auth/invalid-credential"
	AuthTooManyRequests     = "auth/too-many-requests"
	AuthEmailAlreadyInUse   = "auth/email-already-in-use"
	AuthOperationNotAllowed = "auth/operation-not-allowed"
	AuthWeakPassword        = "auth/weak-password"
	AuthPopupClosedByUser   = "auth/popup-closed-by-user"
	AuthPopupBlocked        = "auth/popup-blocked"
	AuthNetworkRequest      = "auth/network-request-failed"
	AuthInvalidUserToken    = "auth/invalid-user-token"
	AuthUserTokenExpired    = "auth/user-token-expired"
	AuthNoCurrentUser       = "auth/no-current-user"
	AuthInternal            = "auth/internal-error"
)

// AuthError is returned by the Identity Service adapter.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "auth: " + e.Code
	}
	return fmt.Sprintf("auth: %s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RemoteError carries the status, type and message reported by the
// Document/File Store.
type RemoteError struct {
	Op      string
	Status  int
	Type    string
	Message string
	Err     error
}

func (e *RemoteError) describe(kind string) string {
	s := kind + ": " + e.Op
	if e.Status != 0 {
		s += fmt.Sprintf(" (%d %s)", e.Status, e.Type)
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *RemoteError) Error() string { return e.describe("remote") }
func (e *RemoteError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAlreadyExists) and errors.Is(err, ErrorNotFound)
// match conflict and missing-resource answers.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrAlreadyExists:
		return e.Status == http.StatusConflict
	case ErrorNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Temporary reports whether repeating the request may succeed. An error
// without a status is a transport failure when it wraps a cause.
func (e *RemoteError) Temporary() bool {
	return (e.Status == 0 && e.Err != nil) || e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// StorageError is returned when a blob upload is rejected.
type StorageError struct{ RemoteError }

func (e *StorageError) Error() string { return e.describe("storage") }
func (e *StorageError) Unwrap() error { return e.Err }

// DataError is returned when a record, collection or attribute write is rejected.
type DataError struct{ RemoteError }

func (e *DataError) Error() string { return e.describe("data") }
func (e *DataError) Unwrap() error { return e.Err }

// ConfigError names a configuration value that is missing or malformed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// IsTemporary reports whether err, or an error it wraps, says that
// repeating the request may succeed.
func IsTemporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}
