package domain

import (
	"errors"
	"fmt"
)

// Sentinels shared by the client and the reference API. The typed errors
// below unwrap to one of them so callers can use errors.Is.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrEmailExists        = errors.New("email already in use")
	ErrProtectedUser      = errors.New("user is protected")
	ErrForbidden          = errors.New("access forbidden")
	ErrUnauthorized       = errors.New("not authenticated")
	ErrMalformedToken     = errors.New("malformed token")
	ErrTransport          = errors.New("transport failure")
	ErrInvalidInput       = errors.New("invalid input")
	ErrPersistence        = errors.New("session persistence failed")
)

// AuthError is returned when the API rejects a login. Message is the
// server-provided detail and is safe to show to the user.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "login failed"
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return ErrInvalidCredentials }

// DecodeError reports a token whose claims could not be read. It degrades the
// session to non-admin instead of failing the login.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode token: %s: %v", e.Reason, e.Err)
	}
	return "decode token: " + e.Reason
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedToken, e.Err}
	}
	return []error{ErrMalformedToken}
}

// NetworkError is a transient failure talking to the API. Status is zero when
// no response was received.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: server returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTransport, e.Err}
	}
	return []error{ErrTransport}
}

// AuthorizationError is a 401/403 on an authenticated request. It forces the
// session to be dropped.
type AuthorizationError struct {
	Status  int
	Message string
}

func (e *AuthorizationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("not authorized (status %d)", e.Status)
	}
	return e.Message
}

func (e *AuthorizationError) Unwrap() error {
	if e.Status == 403 {
		return ErrForbidden
	}
	return ErrUnauthorized
}

// ValidationError carries a user-facing message about rejected input, either
// from local validation or from the API (e.g. duplicate username).
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// PersistenceError wraps a failed session store write. The in-memory session
// was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
