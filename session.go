package paintward

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wrenware/paintward/internal/config"
	"github.com/wrenware/paintward/internal/correlate"
	"github.com/wrenware/paintward/internal/frame"
	"github.com/wrenware/paintward/internal/supervise"
	"github.com/wrenware/paintward/internal/transport"
)

// Response is a protocol frame answering a request. Success is signaled by
// Result, failure by Err; the legacy "status" field is ignored.
type Response = frame.Response

// WireError is the error member of a response envelope.
type WireError = frame.WireError

// Session owns exactly one worker process for its lifetime: the process
// handle, its streams, and the set of outstanding requests. It is destroyed
// only after Shutdown completes (process reaped, streams drained).
type Session struct {
	log        *slog.Logger
	id         string
	options    *config.Options
	supervisor *supervise.Supervisor
	transport  *transport.LineTransport
	correlator *correlate.Correlator

	nextID atomic.Int64

	shutdownOnce sync.Once
	shutdownDone chan struct{}
}

// StartSession spawns the worker at workerPath and wires the duplex line
// protocol around it. On any spawn failure a *SpawnError is returned and no
// partial session exists.
func StartSession(ctx context.Context, workerPath string, opts ...Option) (*Session, error) {
	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	sessionID := ulid.Make().String()
	log = log.With("session", sessionID)

	sup, pipes, err := supervise.Start(ctx, log, workerPath, options)
	if err != nil {
		return nil, err
	}

	tr := transport.New(log, pipes.Stdin, pipes.Stdout, pipes.Stderr, options)
	sup.SetReaderGate(tr.ReadersDone())

	corr := correlate.New(log, tr, sup, options)
	corr.Start(ctx)

	log.Info("Session started", "worker", workerPath, "pid", sup.PID())

	return &Session{
		log:          log,
		id:           sessionID,
		options:      options,
		supervisor:   sup,
		transport:    tr,
		correlator:   corr,
		shutdownDone: make(chan struct{}),
	}, nil
}

// ID returns the session's instance identifier (present on all log records).
func (s *Session) ID() string {
	return s.id
}

// PID returns the worker's process id.
func (s *Session) PID() int {
	return s.supervisor.PID()
}

// Alive reports whether the worker process is still running.
func (s *Session) Alive() bool {
	return s.supervisor.Alive()
}

// StderrTail returns the worker's diagnostic-stream output captured so far.
func (s *Session) StderrTail() string {
	return s.transport.StderrTail()
}

// Call issues a request with an automatically assigned identifier and the
// session's default timeout.
func (s *Session) Call(ctx context.Context, method string, params any) (*Response, error) {
	return s.CallWithID(ctx, s.nextID.Add(1), method, params, s.options.DefaultTimeout)
}

// CallWithID issues a request with a caller-assigned identifier.
//
// Identifiers must be unique among concurrently pending requests; reusing
// one that is still pending fails immediately with ErrDuplicateID. Once a
// request is retired (matched, timed out, or orphaned by process death) its
// identifier is free again.
func (s *Session) CallWithID(
	ctx context.Context,
	id int64,
	method string,
	params any,
	timeout time.Duration,
) (*Response, error) {
	if timeout <= 0 {
		timeout = s.options.DefaultTimeout
	}

	return s.correlator.SendAndAwait(ctx, id, method, params, timeout)
}

// Notify sends an id-less notification frame; the worker answers nothing.
func (s *Session) Notify(ctx context.Context, method string, params any) error {
	return s.correlator.Notify(ctx, method, params)
}

// Shutdown tears the worker down deterministically: stop correlating, close
// stdin, graceful signal, bounded wait, forced kill, reap, stream drain.
//
// Idempotent — later calls wait for the first to finish and return nil. It
// never returns while the OS process is still alive and never fails for a
// process that is already gone.
func (s *Session) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		defer close(s.shutdownDone)

		s.log.Debug("Shutting down session")

		s.correlator.Stop()

		_ = s.transport.CloseStdin()

		// Drain concurrently with the teardown: with the correlator stopped,
		// a worker still spewing output would otherwise fill the line buffer
		// and keep the stream readers blocked, and the reap waits on those
		// readers. The drain runs on a detached context: a cancelled caller
		// context must stop the wait below, never the drain itself, or the
		// reap would hang behind the wedged stdout reader.
		drained := make(chan []string, 1)
		drainCtx := context.WithoutCancel(ctx)

		go func() {
			drained <- s.transport.Drain(drainCtx)
		}()

		code := s.supervisor.Shutdown(ctx, s.options.GracePeriod)

		// Anything the worker flushed on the way out stays observable.
		for _, line := range <-drained {
			s.log.Debug("Undelivered worker output", "line", line)
		}

		s.log.Info("Session shut down", "exit_code", code)
	})

	// Check completion before the context: the caller that performed the
	// teardown above must report success even if its context was already
	// cancelled when it arrived.
	select {
	case <-s.shutdownDone:
		return nil
	default:
	}

	select {
	case <-s.shutdownDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
