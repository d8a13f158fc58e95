package correlate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wrenware/paintward/internal/config"
	"github.com/wrenware/paintward/internal/errors"
)

// fakeTransport scripts the worker side of the pipe: each written frame
// triggers onWrite, which typically pushes response lines.
type fakeTransport struct {
	mu      sync.Mutex
	written []string
	onWrite func(frame string)

	lines      chan string
	closed     chan struct{}
	closeOnce  sync.Once
	stderrTail string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		lines:  make(chan string, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) WriteFrame(_ context.Context, data []byte) error {
	f.mu.Lock()
	f.written = append(f.written, string(data))
	onWrite := f.onWrite
	f.mu.Unlock()

	if onWrite != nil {
		onWrite(string(data))
	}

	return nil
}

func (f *fakeTransport) ReadLine(ctx context.Context, deadline time.Time) (string, error) {
	var timeout <-chan time.Time

	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()

		timeout = timer.C
	}

	select {
	case line := <-f.lines:
		return line, nil
	case <-f.closed:
		// Drain scripted lines before reporting EOF.
		select {
		case line := <-f.lines:
			return line, nil
		default:
			return "", errors.ErrStreamClosed
		}
	case <-timeout:
		return "", errors.ErrRequestTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeTransport) StderrTail() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stderrTail
}

func (f *fakeTransport) push(lines ...string) {
	for _, line := range lines {
		f.lines <- line
	}
}

func (f *fakeTransport) closeStream() {
	f.closeOnce.Do(func() {
		close(f.closed)
	})
}

func (f *fakeTransport) writtenFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.written))
	copy(out, f.written)

	return out
}

// fakeExits reports a fixed exit code.
type fakeExits struct {
	code int
}

func (f *fakeExits) AwaitExit(context.Context) (int, error) {
	return f.code, nil
}

func newTestCorrelator(t *testing.T, tr *fakeTransport, exits ExitWaiter, options *config.Options) *Correlator {
	t.Helper()

	if options == nil {
		options = &config.Options{}
	}

	options.Normalize()

	c := New(slog.Default(), tr, exits, options)
	c.Start(context.Background())
	t.Cleanup(c.Stop)

	return c
}

func TestSendAndAwait_MatchesDespiteInterleavedNoise(t *testing.T) {
	tr := newFakeTransport()
	tr.onWrite = func(string) {
		tr.push(
			"2024-05-01T12:00:00Z [INFO] activating window",
			`{"jsonrpc":"2.0","id":999,"result":"not yours"}`, // unmatched
			`{"status":"legacy line"}`,                        // unrecognized
			"plain diagnostic chatter",
			`{"jsonrpc":"2.0","id":7,"result":"ok"}`,
		)
	}

	c := newTestCorrelator(t, tr, &fakeExits{}, nil)

	resp, err := c.SendAndAwait(context.Background(), 7, "draw_line", nil, time.Second)
	require.NoError(t, err)
	require.Equal(t, "7", resp.ID)

	var result string
	require.NoError(t, resp.UnmarshalResult(&result))
	require.Equal(t, "ok", result)
}

func TestSendAndAwait_DuplicateIdentifier(t *testing.T) {
	tr := newFakeTransport()
	c := newTestCorrelator(t, tr, &fakeExits{}, nil)

	firstDone := make(chan error, 1)

	go func() {
		_, err := c.SendAndAwait(context.Background(), 5, "slow_call", nil, 5*time.Second)
		firstDone <- err
	}()

	require.Eventually(t, func() bool {
		return c.PendingCount() == 1
	}, time.Second, time.Millisecond)

	// Second submission with the same identifier fails immediately and does
	// not disturb the first request's pending state.
	_, err := c.SendAndAwait(context.Background(), 5, "slow_call", nil, time.Second)
	require.ErrorIs(t, err, errors.ErrDuplicateID)
	require.Equal(t, 1, c.PendingCount())

	tr.push(`{"jsonrpc":"2.0","id":5,"result":"done"}`)
	require.NoError(t, <-firstDone)
}

func TestSendAndAwait_TimeoutFreesIdentifier(t *testing.T) {
	tr := newFakeTransport()
	tr.mu.Lock()
	tr.stderrTail = "worker stuck in SendInput"
	tr.mu.Unlock()

	c := newTestCorrelator(t, tr, &fakeExits{}, nil)

	start := time.Now()

	_, err := c.SendAndAwait(context.Background(), 9, "draw_shape", nil, 50*time.Millisecond)
	require.ErrorIs(t, err, errors.ErrRequestTimeout)
	require.Less(t, time.Since(start), time.Second)
	require.Zero(t, c.PendingCount())

	// The identifier is retired; reusing it is accepted.
	tr.onWrite = func(string) {
		tr.push(`{"jsonrpc":"2.0","id":9,"result":"second try"}`)
	}

	resp, err := c.SendAndAwait(context.Background(), 9, "draw_shape", nil, time.Second)
	require.NoError(t, err)
	require.Equal(t, "9", resp.ID)
}

func TestSendAndAwait_ProcessExitFailsAllPending(t *testing.T) {
	tr := newFakeTransport()
	c := newTestCorrelator(t, tr, &fakeExits{code: 3}, nil)

	results := make(chan error, 2)

	for id := int64(1); id <= 2; id++ {
		id := id
		go func() {
			_, err := c.SendAndAwait(context.Background(), id, "connect", nil, 5*time.Second)
			results <- err
		}()
	}

	require.Eventually(t, func() bool {
		return c.PendingCount() == 2
	}, time.Second, time.Millisecond)

	tr.closeStream()

	for i := 0; i < 2; i++ {
		err := <-results

		var exitErr *errors.ProcessExitError
		require.ErrorAs(t, err, &exitErr)
		require.Equal(t, 3, exitErr.ExitCode)
	}

	// The session is dead: later submissions fail the same way, not by timeout.
	_, err := c.SendAndAwait(context.Background(), 42, "connect", nil, time.Second)

	var exitErr *errors.ProcessExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 3, exitErr.ExitCode)
}

func TestRouteLoop_UnmatchedResponseIsObservable(t *testing.T) {
	var (
		mu        sync.Mutex
		unmatched []string
	)

	tr := newFakeTransport()
	c := newTestCorrelator(t, tr, &fakeExits{}, &config.Options{
		UnmatchedObserver: func(line string) {
			mu.Lock()
			unmatched = append(unmatched, line)
			mu.Unlock()
		},
	})

	tr.push(`{"jsonrpc":"2.0","id":1234,"result":"late"}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(unmatched) == 1
	}, time.Second, time.Millisecond)

	require.Zero(t, c.PendingCount())
}

func TestRouteLoop_NotificationDelivered(t *testing.T) {
	notified := make(chan string, 1)

	tr := newFakeTransport()
	newTestCorrelator(t, tr, &fakeExits{}, &config.Options{
		NotificationObserver: func(method string, _ []byte) {
			notified <- method
		},
	})

	tr.push(`{"jsonrpc":"2.0","method":"canvas_changed","params":{}}`)

	select {
	case method := <-notified:
		require.Equal(t, "canvas_changed", method)
	case <-time.After(time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestNotify_WritesIdlessFrame(t *testing.T) {
	tr := newFakeTransport()
	c := newTestCorrelator(t, tr, &fakeExits{}, nil)

	require.NoError(t, c.Notify(context.Background(), "notifications/initialized", nil))

	frames := tr.writtenFrames()
	require.Len(t, frames, 1)
	require.NotContains(t, frames[0], `"id"`)
	require.Contains(t, frames[0], `"notifications/initialized"`)
}

func TestStop_FailsPendingWithSessionClosed(t *testing.T) {
	tr := newFakeTransport()
	c := newTestCorrelator(t, tr, &fakeExits{}, nil)

	done := make(chan error, 1)

	go func() {
		_, err := c.SendAndAwait(context.Background(), 1, "connect", nil, 5*time.Second)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return c.PendingCount() == 1
	}, time.Second, time.Millisecond)

	c.Stop()

	require.ErrorIs(t, <-done, errors.ErrSessionClosed)
}

func TestStop_Idempotent(t *testing.T) {
	tr := newFakeTransport()
	c := newTestCorrelator(t, tr, &fakeExits{}, nil)

	c.Stop()
	c.Stop()
	c.Stop()

	select {
	case <-c.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestSendAndAwait_ManySequentialRequests(t *testing.T) {
	tr := newFakeTransport()
	tr.onWrite = func(frame string) {
		// Echo every request back, preceded by a log line, the way the
		// worker interleaves its own output.
		var req struct {
			ID int64 `json:"id"`
		}

		require.NoError(t, json.Unmarshal([]byte(frame), &req))

		tr.push(
			fmt.Sprintf("2024-05-01 12:00:00 [DEBUG] handling request %d", req.ID),
			fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"seq":%d}}`, req.ID, req.ID),
		)
	}

	c := newTestCorrelator(t, tr, &fakeExits{}, nil)

	for id := int64(1); id <= 20; id++ {
		resp, err := c.SendAndAwait(context.Background(), id, "draw_pixel", nil, time.Second)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("%d", id), resp.ID)
	}
}
