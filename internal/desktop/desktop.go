package desktop

import (
	"context"
	"fmt"
	"sync"
)

// Point is an absolute screen coordinate.
type Point struct {
	X int
	Y int
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Button is a pointer button.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
)

func (b Button) String() string {
	if b == ButtonRight {
		return "right"
	}

	return "left"
}

// Window identifies a top-level window.
type Window struct {
	Handle uintptr
	Title  string
	PID    int
}

// Process describes an OS process matched by image name.
type Process struct {
	PID   int
	Image string
}

// Automator is the GUI-automation capability boundary. The driver invokes
// these primitives when emulating drawing without going through the worker's
// protocol; it implements none of them. Pointer-drag interpolation lives
// behind DragPointer on the implementing side.
type Automator interface {
	// FindWindow locates a top-level window by title substring.
	FindWindow(ctx context.Context, title string) (Window, error)

	// FindWindowByProcess locates a top-level window owned by a process
	// with the given image name (e.g. "mspaint.exe").
	FindWindowByProcess(ctx context.Context, image string) (Window, error)

	// Activate brings the window to the foreground.
	Activate(ctx context.Context, w Window) error

	// MoveCursor moves the pointer to an absolute screen coordinate.
	MoveCursor(ctx context.Context, p Point) error

	// PressButton presses a pointer button at the current position.
	PressButton(ctx context.Context, b Button) error

	// ReleaseButton releases a pointer button.
	ReleaseButton(ctx context.Context, b Button) error

	// DragPointer presses, moves from a to b (interpolated by the
	// implementation), and releases.
	DragPointer(ctx context.Context, from, to Point) error

	// Processes enumerates OS processes by image name.
	Processes(ctx context.Context, image string) ([]Process, error)
}

// Recorder is an Automator that records every primitive invocation instead
// of touching the OS. Used by tests and by paintctl's dry-run draw path.
type Recorder struct {
	mu  sync.Mutex
	ops []string
}

var _ Automator = (*Recorder)(nil)

func (r *Recorder) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, op)
}

// Ops returns a snapshot of the recorded operations in invocation order.
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.ops))
	copy(out, r.ops)

	return out
}

func (r *Recorder) FindWindow(_ context.Context, title string) (Window, error) {
	r.record(fmt.Sprintf("find-window %q", title))

	return Window{Handle: 1, Title: title}, nil
}

func (r *Recorder) FindWindowByProcess(_ context.Context, image string) (Window, error) {
	r.record(fmt.Sprintf("find-window-by-process %q", image))

	return Window{Handle: 1, Title: image}, nil
}

func (r *Recorder) Activate(_ context.Context, w Window) error {
	r.record(fmt.Sprintf("activate %q", w.Title))

	return nil
}

func (r *Recorder) MoveCursor(_ context.Context, p Point) error {
	r.record("move " + p.String())

	return nil
}

func (r *Recorder) PressButton(_ context.Context, b Button) error {
	r.record("press " + b.String())

	return nil
}

func (r *Recorder) ReleaseButton(_ context.Context, b Button) error {
	r.record("release " + b.String())

	return nil
}

func (r *Recorder) DragPointer(_ context.Context, from, to Point) error {
	r.record(fmt.Sprintf("drag %s -> %s", from, to))

	return nil
}

func (r *Recorder) Processes(_ context.Context, image string) ([]Process, error) {
	r.record(fmt.Sprintf("processes %q", image))

	return nil, nil
}
