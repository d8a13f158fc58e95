package transport

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wrenware/paintward/internal/config"
	"github.com/wrenware/paintward/internal/errors"
)

// maxStderrTailSize caps the retained diagnostic-stream tail. The stream is
// drained indefinitely (the observer sees every line), but the post-mortem
// buffer stops growing after this limit.
const maxStderrTailSize = 10 * 1024 * 1024 // 10MB

// LineTransport owns the worker's three pipes.
//
// Stdout is read line-by-line into a channel by a dedicated goroutine, so
// ReadLine is an event-driven wait rather than a poll. Stderr is drained
// concurrently and independently — if it were not, the worker could block on
// a full pipe buffer and deadlock the whole session — into a capped tail
// buffer consulted for post-mortem reporting.
type LineTransport struct {
	log *slog.Logger

	writeMu     sync.Mutex
	stdin       io.WriteCloser
	stdinClosed bool

	lines chan string

	stderrMu       sync.Mutex
	stderrTail     strings.Builder
	stderrObserver func(string)

	group       errgroup.Group
	readersDone chan struct{}
}

// New wires a transport around the worker's pipes and starts the two stream
// readers. The caller retains no direct access to the pipes afterwards.
func New(
	log *slog.Logger,
	stdin io.WriteCloser,
	stdout io.Reader,
	stderr io.Reader,
	options *config.Options,
) *LineTransport {
	t := &LineTransport{
		log:            log.With("component", "transport"),
		stdin:          stdin,
		lines:          make(chan string, 64),
		stderrObserver: options.StderrObserver,
		readersDone:    make(chan struct{}),
	}

	maxLineSize := options.MaxLineSize

	t.group.Go(func() error {
		return t.readStdout(stdout, maxLineSize)
	})

	t.group.Go(func() error {
		return t.readStderr(stderr)
	})

	go func() {
		if err := t.group.Wait(); err != nil {
			t.log.Debug("Stream reader finished with error", "error", err)
		}

		close(t.readersDone)
	}()

	return t
}

// readStdout feeds complete lines into the line channel until EOF.
// The channel is closed when the stream ends; readers observe ErrStreamClosed.
func (t *LineTransport) readStdout(stdout io.Reader, maxLineSize int) error {
	defer close(t.lines)

	scanner := bufio.NewScanner(stdout)
	buf := make([]byte, maxLineSize)
	scanner.Buffer(buf, maxLineSize)

	for scanner.Scan() {
		t.lines <- scanner.Text()
	}

	if err := scanner.Err(); err != nil {
		// Treated like EOF: the pipe is gone, typically because the process
		// exited or was killed during shutdown.
		t.log.Debug("Stdout scanner stopped", "error", err)

		return err
	}

	return nil
}

// readStderr drains the diagnostic stream into the tail buffer and observer.
func (t *LineTransport) readStderr(stderr io.Reader) error {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()

		t.stderrMu.Lock()

		if t.stderrTail.Len() < maxStderrTailSize {
			if t.stderrTail.Len() > 0 {
				t.stderrTail.WriteString("\n")
			}

			t.stderrTail.WriteString(line)
		}

		t.stderrMu.Unlock()

		if t.stderrObserver != nil {
			t.stderrObserver(line)
		}
	}

	if err := scanner.Err(); err != nil {
		t.log.Debug("Stderr scanner stopped", "error", err)

		return err
	}

	return nil
}

// WriteFrame writes one outbound frame to the worker's stdin, appending the
// terminating newline, atomically with respect to other writers.
//
// Returns ErrTransportClosed if stdin is already closed, or a *WriteError
// wrapping the underlying I/O failure (e.g. broken pipe).
func (t *LineTransport) WriteFrame(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.stdin == nil || t.stdinClosed {
		return errors.ErrTransportClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Copy rather than append: the caller's backing array must not be mutated.
	framed := make([]byte, len(data)+1)
	copy(framed, data)
	framed[len(data)] = '\n'

	// Write in a goroutine so a full pipe buffer cannot outlive the context.
	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(framed)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Debug("Frame write failed", "error", err)

			return &errors.WriteError{Err: err}
		}

		return nil

	case <-ctx.Done():
		// Close stdin to unblock the write (safe since Go 1.9).
		_ = t.stdin.Close()
		t.stdinClosed = true

		select {
		case <-done:
		case <-time.After(time.Second):
			t.log.Warn("Write did not unblock after stdin close")
		}

		return ctx.Err()
	}
}

// ReadLine returns the next complete line from the worker's stdout.
//
// A zero deadline blocks until a line arrives, the stream closes, or the
// context is cancelled. Otherwise it returns ErrRequestTimeout once the
// deadline elapses, or ErrStreamClosed at end-of-stream.
func (t *LineTransport) ReadLine(ctx context.Context, deadline time.Time) (string, error) {
	var timeout <-chan time.Time

	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()

		timeout = timer.C
	}

	select {
	case line, ok := <-t.lines:
		if !ok {
			return "", errors.ErrStreamClosed
		}

		return line, nil

	case <-timeout:
		return "", errors.ErrRequestTimeout

	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// StderrTail returns the diagnostic stream captured so far.
func (t *LineTransport) StderrTail() string {
	t.stderrMu.Lock()
	defer t.stderrMu.Unlock()

	return t.stderrTail.String()
}

// CloseStdin signals end of input to the worker. Safe to call repeatedly.
func (t *LineTransport) CloseStdin() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.stdin == nil || t.stdinClosed {
		return nil
	}

	t.stdinClosed = true

	return t.stdin.Close()
}

// ReadersDone is closed once both stream readers have hit end-of-stream.
// The supervisor must not reap the process before this (os/exec pipes are
// invalidated by Wait).
func (t *LineTransport) ReadersDone() <-chan struct{} {
	return t.readersDone
}

// Drain collects any still-buffered stdout lines after the process has
// exited. It returns once the line channel is exhausted and closed, or the
// context is cancelled.
func (t *LineTransport) Drain(ctx context.Context) []string {
	var remaining []string

	for {
		select {
		case line, ok := <-t.lines:
			if !ok {
				return remaining
			}

			remaining = append(remaining, line)

		case <-ctx.Done():
			return remaining
		}
	}
}
