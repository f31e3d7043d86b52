// Copyright © 2018 One Concern

// Package errors augments the standard errors with sentinel values that can
// carry a cause.
//
// Sentinels are shared by concurrent callers, so Wrap never mutates the
// receiver: it returns a new error that still matches the sentinel with Is.
package errors

import (
	stderr "errors"
	"fmt"
)

var _ error = New("")

// New Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Error is a sentinel error, optionally wrapping a cause.
type Error struct {
	msg      string
	err      error
	sentinel *Error
}

// Error message, with the cause when there is one
func (e *Error) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap a nested error into a copy of this error
func (e *Error) Wrap(err error) *Error {
	root := e
	if e.sentinel != nil {
		root = e.sentinel
	}
	return &Error{msg: e.msg, err: err, sentinel: root}
}

// Wrapf wraps a formatted message as the cause
func (e *Error) Wrapf(format string, args ...interface{}) *Error {
	return e.Wrap(fmt.Errorf(format, args...))
}

// Is of some error type?
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e == t || (e.sentinel != nil && e.sentinel == t)
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.Is)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
