package transport

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wrenware/paintward/internal/config"
	"github.com/wrenware/paintward/internal/errors"
)

func newTestTransport(t *testing.T, options *config.Options) (*LineTransport, *io.PipeWriter, *io.PipeWriter, *io.PipeReader) {
	t.Helper()

	if options == nil {
		options = &config.Options{}
	}

	options.Normalize()

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	stdinR, stdinW := io.Pipe()

	tr := New(slog.Default(), stdinW, stdoutR, stderrR, options)

	t.Cleanup(func() {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		_ = stdinR.Close()
	})

	return tr, stdoutW, stderrW, stdinR
}

func TestReadLine_DeliversLines(t *testing.T) {
	tr, stdoutW, _, _ := newTestTransport(t, nil)

	go func() {
		_, _ = io.WriteString(stdoutW, "first\nsecond\n")
	}()

	ctx := context.Background()

	line, err := tr.ReadLine(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, "first", line)

	line, err = tr.ReadLine(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, "second", line)
}

func TestReadLine_Timeout(t *testing.T) {
	tr, _, _, _ := newTestTransport(t, nil)

	start := time.Now()

	_, err := tr.ReadLine(context.Background(), time.Now().Add(50*time.Millisecond))
	require.ErrorIs(t, err, errors.ErrRequestTimeout)
	require.Less(t, time.Since(start), time.Second)
}

func TestReadLine_StreamClosed(t *testing.T) {
	tr, stdoutW, _, _ := newTestTransport(t, nil)

	go func() {
		_, _ = io.WriteString(stdoutW, "last\n")
		_ = stdoutW.Close()
	}()

	ctx := context.Background()

	line, err := tr.ReadLine(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, "last", line)

	_, err = tr.ReadLine(ctx, time.Now().Add(time.Second))
	require.ErrorIs(t, err, errors.ErrStreamClosed)
}

func TestWriteFrame_AppendsNewline(t *testing.T) {
	tr, _, _, stdinR := newTestTransport(t, nil)

	var (
		got     string
		readErr error
		done    = make(chan struct{})
	)

	go func() {
		defer close(done)

		buf := make([]byte, 64)
		n, err := stdinR.Read(buf)
		got, readErr = string(buf[:n]), err
	}()

	err := tr.WriteFrame(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"m"}`))
	require.NoError(t, err)

	<-done
	require.NoError(t, readErr)
	require.Equal(t, `{"jsonrpc":"2.0","id":1,"method":"m"}`+"\n", got)
}

func TestWriteFrame_DoesNotMutateCaller(t *testing.T) {
	tr, _, _, stdinR := newTestTransport(t, nil)

	go func() {
		_, _ = io.Copy(io.Discard, stdinR)
	}()

	// Slice with spare capacity: a lazy append would write into it.
	data := append(make([]byte, 0, 64), []byte(`{"jsonrpc":"2.0","id":1}`)...)
	backup := string(data)

	require.NoError(t, tr.WriteFrame(context.Background(), data))
	require.Equal(t, backup, string(data[:len(backup)]))
}

func TestWriteFrame_AfterCloseStdin(t *testing.T) {
	tr, _, _, _ := newTestTransport(t, nil)

	require.NoError(t, tr.CloseStdin())
	require.NoError(t, tr.CloseStdin()) // repeat is a no-op

	err := tr.WriteFrame(context.Background(), []byte("{}"))
	require.ErrorIs(t, err, errors.ErrTransportClosed)
}

func TestStderr_TailAndObserver(t *testing.T) {
	var (
		mu       sync.Mutex
		observed []string
	)

	tr, _, stderrW, _ := newTestTransport(t, &config.Options{
		StderrObserver: func(line string) {
			mu.Lock()
			observed = append(observed, line)
			mu.Unlock()
		},
	})

	_, err := io.WriteString(stderrW, "warn: slow canvas\npanic imminent\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(observed) == 2
	}, time.Second, 10*time.Millisecond)

	tail := tr.StderrTail()
	require.Contains(t, tail, "warn: slow canvas")
	require.Contains(t, tail, "panic imminent")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"warn: slow canvas", "panic imminent"}, observed)
}

func TestReadersDone_ClosesAfterBothStreamsEnd(t *testing.T) {
	tr, stdoutW, stderrW, _ := newTestTransport(t, nil)

	select {
	case <-tr.ReadersDone():
		t.Fatal("readers reported done while streams are open")
	default:
	}

	require.NoError(t, stdoutW.Close())
	require.NoError(t, stderrW.Close())

	select {
	case <-tr.ReadersDone():
	case <-time.After(time.Second):
		t.Fatal("readers did not finish after both streams closed")
	}
}

func TestDrain_ReturnsBufferedLines(t *testing.T) {
	tr, stdoutW, _, _ := newTestTransport(t, nil)

	_, err := io.WriteString(stdoutW, "leftover one\nleftover two\n")
	require.NoError(t, err)

	require.NoError(t, stdoutW.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	remaining := tr.Drain(ctx)
	require.Equal(t, []string{"leftover one", "leftover two"}, remaining)
}

func TestReadLine_ContextCancelled(t *testing.T) {
	tr, _, _, _ := newTestTransport(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.ReadLine(ctx, time.Time{})
	require.True(t, stderrors.Is(err, context.Canceled))
}
