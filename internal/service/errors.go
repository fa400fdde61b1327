package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a failure with a client-safe message. Err keeps the cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind and message, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

var (
	// ErrInvalidCredentials is shared by unknown-email and wrong-password logins.
	ErrInvalidCredentials = &Error{Kind: KindAuth, Message: "Invalid email or password"}
	// ErrAccountDeactivated is returned when an inactive user tries to log in.
	ErrAccountDeactivated = &Error{Kind: KindAuth, Message: "User account has been deactivated, contact the administrator"}
	// ErrUserAlreadyExists is returned when registering an email that is taken.
	ErrUserAlreadyExists = &Error{Kind: KindConflict, Message: "User already exists"}
	// ErrUserNotFound is returned when the target user does not exist.
	ErrUserNotFound = &Error{Kind: KindNotFound, Message: "User not found"}
	// ErrCurrentPasswordMismatch is returned by ChangePassword for a wrong current password.
	ErrCurrentPasswordMismatch = &Error{Kind: KindValidation, Message: "Current password is incorrect"}
)

// KindOf reports the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of err. Foreign errors never leak their text.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	if err == nil {
		return ""
	}
	return "Internal server error"
}
