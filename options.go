package paintward

import (
	"log/slog"
	"time"

	"github.com/wrenware/paintward/internal/config"
)

// Option configures a Session using the functional options pattern.
type Option func(*config.Options)

// applyOptions builds a normalized Options from functional options.
func applyOptions(opts []Option) *config.Options {
	options := &config.Options{}
	for _, opt := range opts {
		opt(options)
	}

	options.Normalize()

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *config.Options) {
		o.Logger = logger
	}
}

// WithArgs passes extra command-line arguments to the worker.
func WithArgs(args ...string) Option {
	return func(o *config.Options) {
		o.Args = args
	}
}

// WithEnv overlays environment variables on the worker's inherited
// environment. Historically used to raise worker verbosity, e.g.
// RUST_LOG=debug.
func WithEnv(env map[string]string) Option {
	return func(o *config.Options) {
		o.Env = env
	}
}

// WithCwd sets the worker's working directory.
// If not set, the worker inherits the caller's.
func WithCwd(cwd string) Option {
	return func(o *config.Options) {
		o.Cwd = cwd
	}
}

// WithDefaultTimeout bounds Call when no explicit deadline is given.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(o *config.Options) {
		o.DefaultTimeout = timeout
	}
}

// WithGracePeriod sets how long Shutdown waits for a voluntary exit before
// forcing a kill.
func WithGracePeriod(grace time.Duration) Option {
	return func(o *config.Options) {
		o.GracePeriod = grace
	}
}

// WithMaxLineSize caps the length of a single worker output line.
func WithMaxLineSize(size int) Option {
	return func(o *config.Options) {
		o.MaxLineSize = size
	}
}

// WithStderrObserver sets a callback receiving each diagnostic-stream line.
func WithStderrObserver(observer func(line string)) Option {
	return func(o *config.Options) {
		o.StderrObserver = observer
	}
}

// WithNotificationObserver sets a callback for unsolicited worker
// notifications (structured frames without an identifier).
func WithNotificationObserver(observer func(method string, params []byte)) Option {
	return func(o *config.Options) {
		o.NotificationObserver = observer
	}
}

// WithUnmatchedObserver sets a callback for protocol frames that matched no
// pending request, including responses arriving after their request expired.
func WithUnmatchedObserver(observer func(line string)) Option {
	return func(o *config.Options) {
		o.UnmatchedObserver = observer
	}
}
