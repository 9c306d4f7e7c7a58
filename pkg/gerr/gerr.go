// Package gerr defines the stable error categories shared by the execution
// core. Components wrap their failures with a Code so that callers (and the
// final job report) can classify an error without knowing which package
// produced it.
package gerr

import (
	"errors"
	"fmt"
)

// Code represents a stable error category that callers can switch on.
type Code string

const (
	CodeUnknown        Code = "unknown"
	CodeNoClusterMatch Code = "no_cluster_match"
	CodeNoCommandMatch Code = "no_command_match"
	CodeIDUnavailable  Code = "job_id_unavailable"
	CodeLaunchFailed   Code = "launch_failed"
	CodeArchivalFailed Code = "archival_failed"
)

// Error is a simple value type that carries a Code plus the underlying error.
type Error struct {
	Code Code
	err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// New wraps an error with the provided code. If err is nil a nil is returned.
func New(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, err: err}
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code && err != nil
}

// CodeOf extracts the Code from an error, or CodeUnknown if it carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
