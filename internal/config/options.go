package config

import (
	"log/slog"
	"time"
)

// Defaults applied by Normalize.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultGracePeriod = 3 * time.Second
	DefaultMaxLineSize = 1024 * 1024 // 1MB
)

// Options holds session configuration. Populated through the root package's
// functional options; zero values are normalized before use.
type Options struct {
	// Logger receives structured debug/info/warn/error records.
	// Nil disables logging.
	Logger *slog.Logger

	// Args are extra command-line arguments passed to the worker.
	Args []string

	// Env is an environment overlay applied on top of the inherited
	// environment (historically used to raise worker verbosity, e.g.
	// RUST_LOG=debug).
	Env map[string]string

	// Cwd is the worker's working directory. Empty inherits the caller's.
	Cwd string

	// DefaultTimeout bounds Call when the caller gives no explicit deadline.
	DefaultTimeout time.Duration

	// GracePeriod is how long Shutdown waits for a voluntary exit after the
	// termination signal before forcing a kill.
	GracePeriod time.Duration

	// MaxLineSize caps the length of a single stdout line.
	MaxLineSize int

	// StderrObserver receives each diagnostic-stream line as it arrives.
	StderrObserver func(line string)

	// NotificationObserver receives unsolicited structured frames
	// (method present, identifier absent).
	NotificationObserver func(method string, params []byte)

	// UnmatchedObserver receives frames that were classified as protocol
	// traffic but matched no pending request, including late responses to
	// already-expired requests. Observability hook; such frames are
	// otherwise discarded.
	UnmatchedObserver func(line string)
}

// Normalize fills in defaults for unset fields.
func (o *Options) Normalize() {
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = DefaultTimeout
	}

	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}

	if o.MaxLineSize <= 0 {
		o.MaxLineSize = DefaultMaxLineSize
	}
}
