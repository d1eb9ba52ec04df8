// Package syncerr defines the error kinds shared by the sync engine and its collaborators.
package syncerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the expected absence of a remote object. It drives upload-else-skip logic and
	// is not a failure on its own.
	ErrNotFound = errors.New("sync: not found")

	// ErrTransientNetwork marks a failed request. The periodic and event driven loops retry by
	// recurrence, nothing retries inside the engine.
	ErrTransientNetwork = errors.New("sync: network error")

	// ErrLocalIO covers missing files, permission denials and full disks.
	ErrLocalIO = errors.New("sync: local io error")

	// ErrConfiguration means required identifiers or credentials are absent.
	ErrConfiguration = errors.New("sync: configuration error")
)

// Error carries the kind of failure together with the operation and path that produced it.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel so callers can use errors.Is(err, syncerr.ErrLocalIO).
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func newError(kind error, op, path string, err error) error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func LocalIO(op, path string, err error) error {
	return newError(ErrLocalIO, op, path, err)
}

func Network(op, key string, err error) error {
	return newError(ErrTransientNetwork, op, key, err)
}

func NotFound(op, key string) error {
	return newError(ErrNotFound, op, key, nil)
}

func Configuration(format string, args ...any) error {
	return newError(ErrConfiguration, "", "", fmt.Errorf(format, args...))
}

// IsNotFound reports whether err signals a missing remote object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
