package correlate

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wrenware/paintward/internal/config"
	"github.com/wrenware/paintward/internal/errors"
	"github.com/wrenware/paintward/internal/frame"
)

// Transport is the minimal stream surface the correlator needs. Satisfied by
// transport.LineTransport; tests inject fakes.
type Transport interface {
	WriteFrame(ctx context.Context, data []byte) error
	ReadLine(ctx context.Context, deadline time.Time) (string, error)
	StderrTail() string
}

// ExitWaiter reports the worker's exit code once it has been reaped.
// Satisfied by supervise.Supervisor.
type ExitWaiter interface {
	AwaitExit(ctx context.Context) (int, error)
}

// Correlator matches response frames to outstanding requests by identifier.
//
// A single route loop pulls lines from the transport, classifies each one,
// and delivers matched responses into per-request channels. Requests move
// Pending -> Matched on a delivered response, Pending -> TimedOut when their
// deadline elapses, and Pending -> Orphaned when the worker dies; each state
// is terminal and retires the identifier.
type Correlator struct {
	log       *slog.Logger
	transport Transport
	exits     ExitWaiter

	notificationObserver func(method string, params []byte)
	unmatchedObserver    func(line string)

	pendingMu sync.Mutex
	pending   map[string]*pendingRequest

	errMu   sync.RWMutex
	exitErr error

	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// pendingRequest tracks one outstanding request awaiting its response.
type pendingRequest struct {
	method   string
	response chan *frame.Response
}

// New creates a correlator over the given transport. Start must be called
// before SendAndAwait.
func New(
	log *slog.Logger,
	transport Transport,
	exits ExitWaiter,
	options *config.Options,
) *Correlator {
	return &Correlator{
		log:                  log.With("component", "correlator"),
		transport:            transport,
		exits:                exits,
		notificationObserver: options.NotificationObserver,
		unmatchedObserver:    options.UnmatchedObserver,
		pending:              make(map[string]*pendingRequest, 4),
		done:                 make(chan struct{}),
	}
}

// Start launches the route loop.
func (c *Correlator) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)

	go c.routeLoop(loopCtx)

	c.log.Debug("Correlator started")
}

// Stop halts the route loop and fails any still-pending requests with
// ErrSessionClosed (or the recorded exit error if the worker already died).
// Safe to call multiple times.
func (c *Correlator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}

	c.closeDone()
	c.wg.Wait()
}

// Done is closed when the correlator stops accepting work, either because
// the worker exited or Stop was called.
func (c *Correlator) Done() <-chan struct{} {
	return c.done
}

// ExitError returns the process-death error, if the worker has died.
func (c *Correlator) ExitError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.exitErr
}

func (c *Correlator) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Correlator) setExitError(err error) {
	c.errMu.Lock()

	if c.exitErr == nil {
		c.exitErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// terminalError is what a failed wait surfaces: process death when known,
// otherwise plain session closure.
func (c *Correlator) terminalError() error {
	if err := c.ExitError(); err != nil {
		return err
	}

	return errors.ErrSessionClosed
}

// SendAndAwait registers the request, writes its frame, and waits for the
// matching response, a timeout, or process death.
//
// Submitting an identifier that is already pending fails immediately with
// ErrDuplicateID and leaves the original request untouched. A timed-out
// identifier is retired and may be reused by a later request.
func (c *Correlator) SendAndAwait(
	ctx context.Context,
	id int64,
	method string,
	params any,
	timeout time.Duration,
) (*frame.Response, error) {
	select {
	case <-c.done:
		return nil, c.terminalError()
	default:
	}

	key := frame.FormatID(id)

	pending := &pendingRequest{
		method: method,
		// Buffered so a response delivered in the instant after our timeout
		// fires never blocks the route loop.
		response: make(chan *frame.Response, 1),
	}

	c.pendingMu.Lock()

	if _, exists := c.pending[key]; exists {
		c.pendingMu.Unlock()

		c.log.Warn("Rejected duplicate request identifier", "id", key, "method", method)

		return nil, fmt.Errorf("%w: %s", errors.ErrDuplicateID, key)
	}

	c.pending[key] = pending
	c.pendingMu.Unlock()

	data, err := frame.EncodeRequest(id, method, params)
	if err != nil {
		c.retire(key)

		return nil, err
	}

	c.log.Debug("Sending request", "id", key, "method", method)

	if err := c.transport.WriteFrame(ctx, data); err != nil {
		c.retire(key)

		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-pending.response:
		c.log.Debug("Request matched", "id", key, "method", method, "is_error", resp.IsError())

		return resp, nil

	case <-timer.C:
		c.retire(key)

		c.log.Warn("Request timed out",
			"id", key,
			"method", method,
			"timeout", timeout,
			"stderr_tail", c.transport.StderrTail(),
		)

		return nil, fmt.Errorf("%w: %s after %s", errors.ErrRequestTimeout, method, timeout)

	case <-c.done:
		c.retire(key)

		return nil, c.terminalError()

	case <-ctx.Done():
		c.retire(key)

		return nil, ctx.Err()
	}
}

// Notify writes an id-less notification frame. Nothing is registered; the
// worker sends no response.
func (c *Correlator) Notify(ctx context.Context, method string, params any) error {
	select {
	case <-c.done:
		return c.terminalError()
	default:
	}

	data, err := frame.EncodeNotification(method, params)
	if err != nil {
		return err
	}

	c.log.Debug("Sending notification", "method", method)

	return c.transport.WriteFrame(ctx, data)
}

// retire removes a pending entry, if still present.
func (c *Correlator) retire(key string) {
	c.pendingMu.Lock()
	delete(c.pending, key)
	c.pendingMu.Unlock()
}

// PendingCount reports the number of outstanding requests.
func (c *Correlator) PendingCount() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	return len(c.pending)
}

// routeLoop pulls lines off the transport until the stream closes or the
// correlator stops, classifying each and dispatching in arrival order.
func (c *Correlator) routeLoop(ctx context.Context) {
	defer c.wg.Done()
	defer c.log.Debug("Route loop stopped")

	for {
		line, err := c.transport.ReadLine(ctx, time.Time{})
		if err != nil {
			switch {
			case stderrors.Is(err, errors.ErrStreamClosed):
				c.handleStreamClosed(ctx)
			case ctx.Err() != nil:
				// Stop or parent cancellation.
			default:
				c.log.Debug("Read loop error", "error", err)
			}

			c.closeDone()

			return
		}

		c.dispatch(line)
	}
}

// dispatch routes one classified line. A bad line never aborts the loop.
func (c *Correlator) dispatch(line string) {
	classified := frame.Classify(line)

	switch classified.Kind {
	case frame.KindResponse:
		c.deliver(classified.Response)

	case frame.KindNotification:
		n := classified.Notification
		c.log.Debug("Worker notification", "method", n.Method)

		if c.notificationObserver != nil {
			c.notificationObserver(n.Method, n.Params)
		}

	case frame.KindDiagnostic:
		c.log.Debug("Worker diagnostic line", "line", line)

	case frame.KindUnrecognized:
		c.log.Warn("Unrecognized frame", "line", line)

		if c.unmatchedObserver != nil {
			c.unmatchedObserver(line)
		}
	}
}

// deliver hands a response to its pending request, if one exists. A response
// whose identifier matches nothing — including one arriving after its
// request already timed out — is observable but inert: logged, surfaced to
// the unmatched observer, and discarded.
func (c *Correlator) deliver(resp *frame.Response) {
	c.pendingMu.Lock()

	pending, exists := c.pending[resp.ID]
	if exists {
		delete(c.pending, resp.ID)
	}

	c.pendingMu.Unlock()

	if !exists {
		c.log.Warn("Response matches no pending request", "id", resp.ID)

		if c.unmatchedObserver != nil {
			c.unmatchedObserver(resp.Raw)
		}

		return
	}

	// We own the entry now; the channel is buffered, so this never blocks.
	pending.response <- resp
}

// handleStreamClosed converts end-of-stream into process death: the exit
// code is reaped from the supervisor and every still-pending request fails
// with the same *ProcessExitError.
func (c *Correlator) handleStreamClosed(ctx context.Context) {
	reapCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	code := -1
	if c.exits != nil {
		if reaped, err := c.exits.AwaitExit(reapCtx); err == nil {
			code = reaped
		}
	}

	exitErr := &errors.ProcessExitError{
		ExitCode: code,
		Stderr:   c.transport.StderrTail(),
	}

	c.log.Warn("Worker output stream closed", "exit_code", code, "pending", c.PendingCount())

	c.setExitError(exitErr)
}
