// Package apperr defines the error taxonomy shared across Ardiex packages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can decide how far it propagates.
type Kind string

const (
	// Config marks invalid settings or path rules. Aborts the whole command.
	Config Kind = "config"
	// Io marks a filesystem failure. Aborts the affected destination's round.
	Io Kind = "io"
	// Corrupt marks unreadable metadata or a delta record that failed to parse.
	Corrupt Kind = "corrupt"
	// Mismatch marks a hash verification failure.
	Mismatch Kind = "mismatch"
	// Policy is an internal signal (force-full, retention conflict); never user-visible.
	Policy Kind = "policy"
	// Cancelled marks an operation abandoned due to shutdown or reconfiguration.
	Cancelled Kind = "cancelled"
	// Warn marks a non-fatal per-file skip.
	Warn Kind = "warn"
)

// Error is the error type returned by Ardiex packages. It carries enough
// context to print "what failed, where, doing what" without the caller
// needing to parse the message.
type Error struct {
	Kind        Kind
	Op          string // operation being attempted, e.g. "scan", "delta.apply"
	Source      string // source directory, if applicable
	Destination string // backup directory, if applicable
	Err         error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Source != "" {
		msg += fmt.Sprintf(" source=%s", e.Source)
	}
	if e.Destination != "" {
		msg += fmt.Sprintf(" dest=%s", e.Destination)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithSource attaches a source directory to the error and returns it.
func (e *Error) WithSource(path string) *Error {
	e.Source = path
	return e
}

// WithDestination attaches a destination directory to the error and returns it.
func (e *Error) WithDestination(path string) *Error {
	e.Destination = path
	return e
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
