package supervise

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/wrenware/paintward/internal/config"
	"github.com/wrenware/paintward/internal/errors"
)

// State is the worker process lifecycle state.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateTerminating
	StateExited
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Pipes are the worker's captured stdio streams, handed to the transport.
type Pipes struct {
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser
}

// Supervisor owns the worker process's lifetime: spawn, liveness, and the
// graceful-signal / bounded-wait / forced-kill / reap shutdown sequence.
type Supervisor struct {
	log *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	state    State
	exitCode int
	exited   bool

	// readerGate, when set, delays the reap until the transport's stream
	// readers have hit EOF. cmd.Wait invalidates the pipes otherwise.
	readerGate <-chan struct{}

	reapOnce sync.Once
	reaped   chan struct{}

	startedAt time.Time
}

// Start launches the worker with stdin/stdout/stderr captured as pipes and
// the environment overlay from options applied over the inherited
// environment. Returns a *SpawnError on any failure; no partial supervisor
// is returned.
func Start(
	ctx context.Context,
	log *slog.Logger,
	path string,
	options *config.Options,
) (*Supervisor, *Pipes, error) {
	s := &Supervisor{
		log:    log.With("component", "supervisor"),
		state:  StateStarting,
		reaped: make(chan struct{}),
	}

	//nolint:gosec // G204: launching a caller-specified worker binary is the point
	cmd := exec.CommandContext(ctx, path, options.Args...)
	cmd.Dir = options.Cwd
	cmd.Env = buildEnvironment(options.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, &errors.SpawnError{Path: path, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, &errors.SpawnError{Path: path, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, &errors.SpawnError{Path: path, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		s.log.Error("Failed to start worker", "path", path, "error", err)

		return nil, nil, &errors.SpawnError{Path: path, Err: err}
	}

	s.cmd = cmd
	s.state = StateRunning
	s.startedAt = time.Now()

	s.log.Info("Worker started", "path", path, "pid", cmd.Process.Pid)

	return s, &Pipes{Stdin: stdin, Stdout: stdout, Stderr: stderr}, nil
}

// buildEnvironment overlays the configured variables on the inherited
// environment.
func buildEnvironment(overlay map[string]string) []string {
	env := os.Environ()

	for key, value := range overlay {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}

// SetReaderGate registers the channel the reap must wait on before calling
// Wait. Must be set before the first reap; the session wires it as soon as
// the transport exists.
func (s *Supervisor) SetReaderGate(done <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readerGate = done
}

// PID returns the worker's process id.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}

	return s.cmd.Process.Pid
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Alive is a non-blocking liveness check.
//
// The probe is signal delivery, which a dead-but-unreaped process still
// accepts, so Alive can report true in the window between exit and reap.
// Only a wait observes the exit, and cmd.Wait must run exactly once (from
// reap), so the window cannot be probed away; AwaitExit is authoritative.
func (s *Supervisor) Alive() bool {
	select {
	case <-s.reaped:
		return false
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exited || s.cmd == nil || s.cmd.Process == nil {
		return false
	}

	// Signal 0 probes without delivering anything.
	return s.cmd.Process.Signal(syscall.Signal(0)) == nil
}

// ExitCode returns the worker's exit code, valid only once the second return
// is true (the process has been reaped).
func (s *Supervisor) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.exitCode, s.exited
}

// reap waits for the stream readers, then collects the process exactly once.
func (s *Supervisor) reap() {
	s.reapOnce.Do(func() {
		s.mu.Lock()
		gate := s.readerGate
		s.mu.Unlock()

		if gate != nil {
			<-gate
		}

		err := s.cmd.Wait()

		code := 0

		if err != nil {
			code = -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			}
		}

		s.mu.Lock()
		s.state = StateExited
		s.exitCode = code
		s.exited = true
		s.mu.Unlock()

		s.log.Info("Worker reaped", "exit_code", code, "uptime", time.Since(s.startedAt))

		close(s.reaped)
	})
}

// AwaitExit blocks until the process has been reaped or the context is
// cancelled, returning the exit code.
func (s *Supervisor) AwaitExit(ctx context.Context) (int, error) {
	go s.reap()

	select {
	case <-s.reaped:
		code, _ := s.ExitCode()

		return code, nil

	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Shutdown executes the teardown sequence: graceful signal, bounded wait,
// forced kill, unconditional reap. Idempotent and safe to call on an
// already-exited process; it never returns while the OS process is alive,
// and signal-delivery failures never prevent the forced-kill step.
func (s *Supervisor) Shutdown(ctx context.Context, grace time.Duration) int {
	s.mu.Lock()

	alreadyExited := s.exited
	if !alreadyExited {
		s.state = StateTerminating
	}

	process := (*os.Process)(nil)
	if s.cmd != nil {
		process = s.cmd.Process
	}

	s.mu.Unlock()

	if alreadyExited || process == nil {
		go s.reap()
		<-s.reaped

		code, _ := s.ExitCode()

		return code
	}

	s.log.Debug("Sending termination signal", "pid", process.Pid, "grace", grace)

	if err := process.Signal(syscall.SIGTERM); err != nil {
		// Process may already be gone, or the platform may not deliver the
		// signal. Either way the kill step below still runs.
		s.log.Debug("Termination signal not delivered", "error", err)
	}

	go s.reap()

	select {
	case <-s.reaped:
		code, _ := s.ExitCode()

		return code

	case <-time.After(grace):
		s.log.Warn("Worker did not exit within grace period, killing", "pid", process.Pid)

	case <-ctx.Done():
		s.log.Debug("Shutdown context cancelled, killing", "pid", process.Pid)
	}

	if err := process.Kill(); err != nil {
		s.log.Debug("Kill not delivered", "error", err)
	}

	// Kill guarantees the reap completes; wait unconditionally.
	<-s.reaped

	code, _ := s.ExitCode()

	return code
}
