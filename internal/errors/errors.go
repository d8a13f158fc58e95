package errors

import (
	"errors"
	"fmt"
)

// DriverError is the base interface for all errors produced by the driver.
type DriverError interface {
	error
	IsDriverError() bool
}

// Compile-time verification that all error types implement DriverError.
var (
	_ DriverError = (*SpawnError)(nil)
	_ DriverError = (*WriteError)(nil)
	_ DriverError = (*ProcessExitError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrTransportClosed indicates the worker's stdin is no longer writable
	// (the process exited or shutdown was initiated).
	ErrTransportClosed = errors.New("transport closed")

	// ErrStreamClosed indicates end-of-stream on the worker's stdout,
	// typically because the process exited.
	ErrStreamClosed = errors.New("output stream closed")

	// ErrRequestTimeout indicates a request received no response before
	// its deadline. The request is retired; its identifier may be reused.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrDuplicateID indicates a request was submitted while another request
	// with the same identifier is still pending. Caller programming error.
	ErrDuplicateID = errors.New("duplicate request identifier")

	// ErrSessionClosed indicates the session has been shut down and cannot
	// accept further requests.
	ErrSessionClosed = errors.New("session closed")
)

// SpawnError indicates the worker process could not be started.
// Fatal to session creation; no partial session is returned.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn worker %q: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsDriverError implements DriverError.
func (e *SpawnError) IsDriverError() bool { return true }

// WriteError indicates a lower-level I/O failure while writing a frame to
// the worker's stdin (e.g. broken pipe).
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write frame: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsDriverError implements DriverError.
func (e *WriteError) IsDriverError() bool { return true }

// ProcessExitError indicates the worker process exited while requests were
// still pending. Every request pending at that moment fails with this error.
type ProcessExitError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("worker exited (code %d): %s", e.ExitCode, e.Stderr)
	}

	if e.Err != nil {
		return fmt.Sprintf("worker exited (code %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("worker exited (code %d)", e.ExitCode)
}

func (e *ProcessExitError) Unwrap() error {
	return e.Err
}

// IsDriverError implements DriverError.
func (e *ProcessExitError) IsDriverError() bool { return true }
