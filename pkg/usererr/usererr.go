// Package usererr defines the error kind shown directly to users.
//
// Every failure that is the user's to fix (bad reference, missing token,
// missing bug number, declined confirmation) is a single-line *Error.
// main prints the message once and exits non-zero; nothing is retried.
package usererr

import (
	"errors"
	"fmt"
)

// Error is a user-facing failure.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// New returns a user error with the given message.
func New(msg string) *Error {
	return &Error{Msg: msg}
}

// Errorf returns a formatted user error.
func Errorf(format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err is (or wraps) a user error.
func Is(err error) bool {
	var ue *Error
	return errors.As(err, &ue)
}
