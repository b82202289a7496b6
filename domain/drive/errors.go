package drive

import (
	"errors"
	"fmt"
)

// Sentinel kinds for matching with errors.Is
var (
	// ErrAuth means the credential is expired or invalid; reconnect is required
	ErrAuth = errors.New("drive credential expired or invalid")

	// ErrPermission means the operation is not permitted on this file
	ErrPermission = errors.New("permission denied")

	// ErrNotFound means the file does not exist remotely
	ErrNotFound = errors.New("file not found")

	// ErrTransient means a network, timeout, or server failure that may succeed later
	ErrTransient = errors.New("transient drive failure")
)

// Error is the typed outcome surfaced by the gateway. Kind is one of the
// sentinel errors above so callers can use errors.Is.
type Error struct {
	Kind       error
	Op         string // gateway operation, e.g. "download"
	FileID     string
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.FileID != "" {
		msg += " " + e.FileID
	}
	msg += ": " + e.Kind.Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is lets errors.Is match on the kind sentinel
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is an AuthError
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsPermission reports whether err is a PermissionError
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient reports whether err is a TransientError
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// KindForStatus maps an HTTP status code onto the failure taxonomy
func KindForStatus(code int) error {
	switch {
	case code == 401:
		return ErrAuth
	case code == 403:
		return ErrPermission
	case code == 404:
		return ErrNotFound
	default:
		return ErrTransient
	}
}
