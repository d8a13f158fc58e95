package paintward

import "github.com/wrenware/paintward/internal/errors"

// Re-export error types from internal package

// SpawnError indicates the worker process could not be started.
type SpawnError = errors.SpawnError

// WriteError indicates an I/O failure writing a frame to the worker.
type WriteError = errors.WriteError

// ProcessExitError indicates the worker exited with requests still pending.
type ProcessExitError = errors.ProcessExitError

// DriverError is the base interface for all errors produced by the driver.
type DriverError = errors.DriverError

// Re-export sentinel errors from internal package.
var (
	// ErrTransportClosed indicates the worker's stdin is no longer writable.
	ErrTransportClosed = errors.ErrTransportClosed

	// ErrRequestTimeout indicates a request received no response in time.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrDuplicateID indicates an identifier was reused while still pending.
	ErrDuplicateID = errors.ErrDuplicateID

	// ErrSessionClosed indicates the session has been shut down.
	ErrSessionClosed = errors.ErrSessionClosed
)
